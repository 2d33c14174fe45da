package postgres

import (
	"context"
	"database/sql"

	"taxportal/internal/model"
	"taxportal/internal/repository"
)

const serviceColumns = `id, code, name, category, description, price, required_documents, form_fields, active, created_at, updated_at`

// CatalogPostgres is a PostgreSQL implementation of repository.CatalogRepository.
type CatalogPostgres struct {
	db *sql.DB
}

// NewCatalogPostgres creates a new CatalogPostgres repository.
func NewCatalogPostgres(db *sql.DB) *CatalogPostgres {
	return &CatalogPostgres{db: db}
}

var _ repository.CatalogRepository = (*CatalogPostgres)(nil)

func scanService(row rowScanner) (*model.Service, error) {
	var (
		s            model.Service
		category     string
		docs, fields []byte
	)
	if err := row.Scan(
		&s.ID,
		&s.Code,
		&s.Name,
		&category,
		&s.Description,
		&s.Price,
		&docs,
		&fields,
		&s.Active,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	s.Category = model.Category(category)
	s.RequiredDocuments = []string{}
	s.FormFields = []model.FormField{}
	if err := scanJSON(docs, &s.RequiredDocuments); err != nil {
		return nil, err
	}
	if err := scanJSON(fields, &s.FormFields); err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts a catalog service.
func (r *CatalogPostgres) Create(ctx context.Context, s *model.Service) (*model.Service, error) {
	docs, err := jsonArg(s.RequiredDocuments)
	if err != nil {
		return nil, err
	}
	fields, err := jsonArg(s.FormFields)
	if err != nil {
		return nil, err
	}
	q := `
		INSERT INTO services (id, code, name, category, description, price, required_documents, form_fields, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING ` + serviceColumns
	stored, err := scanService(r.db.QueryRowContext(ctx, q,
		s.ID, s.Code, s.Name, string(s.Category), s.Description, s.Price, docs, fields, s.Active, s.CreatedAt))
	if err != nil {
		return nil, mapWriteErr(err)
	}
	return stored, nil
}

// Update replaces every mutable column of a service.
func (r *CatalogPostgres) Update(ctx context.Context, s *model.Service) (*model.Service, error) {
	docs, err := jsonArg(s.RequiredDocuments)
	if err != nil {
		return nil, err
	}
	fields, err := jsonArg(s.FormFields)
	if err != nil {
		return nil, err
	}
	q := `
		UPDATE services SET code = $2, name = $3, category = $4, description = $5, price = $6,
		       required_documents = $7, form_fields = $8, active = $9, updated_at = $10
		WHERE id = $1
		RETURNING ` + serviceColumns
	stored, err := scanService(r.db.QueryRowContext(ctx, q,
		s.ID, s.Code, s.Name, string(s.Category), s.Description, s.Price, docs, fields, s.Active, s.UpdatedAt))
	if err != nil {
		return nil, mapWriteErr(err)
	}
	return stored, nil
}

// FindByID fetches a service by ID.
func (r *CatalogPostgres) FindByID(ctx context.Context, id string) (*model.Service, error) {
	q := `SELECT ` + serviceColumns + ` FROM services WHERE id = $1`
	return scanService(r.db.QueryRowContext(ctx, q, id))
}

// FindByCode fetches a service by its slug.
func (r *CatalogPostgres) FindByCode(ctx context.Context, code string) (*model.Service, error) {
	q := `SELECT ` + serviceColumns + ` FROM services WHERE code = $1`
	return scanService(r.db.QueryRowContext(ctx, q, code))
}

// List returns services grouped by category then name.
func (r *CatalogPostgres) List(ctx context.Context, activeOnly bool) ([]model.Service, error) {
	q := `SELECT ` + serviceColumns + ` FROM services`
	if activeOnly {
		q += ` WHERE active`
	}
	q += ` ORDER BY category, name`

	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Service, 0)
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// SetActive toggles catalog visibility.
func (r *CatalogPostgres) SetActive(ctx context.Context, id string, active bool) error {
	return execOne(ctx, r.db, `UPDATE services SET active = $2, updated_at = now() WHERE id = $1`, id, active)
}
