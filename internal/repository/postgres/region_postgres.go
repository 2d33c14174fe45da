package postgres

import (
	"context"
	"database/sql"

	"taxportal/internal/database"
	"taxportal/internal/model"
	"taxportal/internal/repository"
)

const regionColumns = `id, name, states, cities, pincodes, created_at, updated_at`

// RegionPostgres is a PostgreSQL implementation of repository.RegionRepository.
type RegionPostgres struct {
	db *sql.DB
}

// NewRegionPostgres creates a new RegionPostgres repository.
func NewRegionPostgres(db *sql.DB) *RegionPostgres {
	return &RegionPostgres{db: db}
}

var _ repository.RegionRepository = (*RegionPostgres)(nil)

func scanRegion(row rowScanner) (*model.Region, error) {
	var (
		reg                      model.Region
		states, cities, pincodes []byte
	)
	if err := row.Scan(&reg.ID, &reg.Name, &states, &cities, &pincodes, &reg.CreatedAt, &reg.UpdatedAt); err != nil {
		return nil, err
	}
	reg.States, reg.Cities, reg.Pincodes = []string{}, []string{}, []string{}
	if err := scanJSON(states, &reg.States); err != nil {
		return nil, err
	}
	if err := scanJSON(cities, &reg.Cities); err != nil {
		return nil, err
	}
	if err := scanJSON(pincodes, &reg.Pincodes); err != nil {
		return nil, err
	}
	return &reg, nil
}

func regionArgs(reg *model.Region) (states, cities, pincodes string, err error) {
	if states, err = jsonArg(reg.States); err != nil {
		return
	}
	if cities, err = jsonArg(reg.Cities); err != nil {
		return
	}
	pincodes, err = jsonArg(reg.Pincodes)
	return
}

// Create inserts a region.
func (r *RegionPostgres) Create(ctx context.Context, reg *model.Region) (*model.Region, error) {
	states, cities, pincodes, err := regionArgs(reg)
	if err != nil {
		return nil, err
	}
	q := `
		INSERT INTO regions (id, name, states, cities, pincodes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING ` + regionColumns
	stored, err := scanRegion(r.db.QueryRowContext(ctx, q, reg.ID, reg.Name, states, cities, pincodes, reg.CreatedAt))
	if err != nil {
		return nil, mapWriteErr(err)
	}
	return stored, nil
}

// Update replaces a region's name and match lists.
func (r *RegionPostgres) Update(ctx context.Context, reg *model.Region) (*model.Region, error) {
	states, cities, pincodes, err := regionArgs(reg)
	if err != nil {
		return nil, err
	}
	q := `
		UPDATE regions SET name = $2, states = $3, cities = $4, pincodes = $5, updated_at = $6
		WHERE id = $1
		RETURNING ` + regionColumns
	stored, err := scanRegion(r.db.QueryRowContext(ctx, q, reg.ID, reg.Name, states, cities, pincodes, reg.UpdatedAt))
	if err != nil {
		return nil, mapWriteErr(err)
	}
	return stored, nil
}

// FindByID fetches a region.
func (r *RegionPostgres) FindByID(ctx context.Context, id string) (*model.Region, error) {
	q := `SELECT ` + regionColumns + ` FROM regions WHERE id = $1`
	return scanRegion(r.db.QueryRowContext(ctx, q, id))
}

// List returns all regions ordered by name.
func (r *RegionPostgres) List(ctx context.Context) ([]model.Region, error) {
	q := `SELECT ` + regionColumns + ` FROM regions ORDER BY name`
	return r.queryRegions(ctx, q)
}

// Delete removes a region; assignments cascade.
func (r *RegionPostgres) Delete(ctx context.Context, id string) error {
	return execOne(ctx, r.db, `DELETE FROM regions WHERE id = $1`, id)
}

// ReplaceAssignments swaps a user's region set atomically.
func (r *RegionPostgres) ReplaceAssignments(ctx context.Context, userID string, regionIDs []string) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM region_assignments WHERE user_id = $1`, userID); err != nil {
			return err
		}
		for _, id := range regionIDs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO region_assignments (user_id, region_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
				userID, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListForUser returns the regions assigned to a user.
func (r *RegionPostgres) ListForUser(ctx context.Context, userID string) ([]model.Region, error) {
	const q = `
		SELECT r.id, r.name, r.states, r.cities, r.pincodes, r.created_at, r.updated_at
		FROM regions r
		JOIN region_assignments ra ON ra.region_id = r.id
		WHERE ra.user_id = $1
		ORDER BY r.name
	`
	return r.queryRegions(ctx, q, userID)
}

func (r *RegionPostgres) queryRegions(ctx context.Context, q string, args ...any) ([]model.Region, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Region, 0)
	for rows.Next() {
		reg, err := scanRegion(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *reg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
