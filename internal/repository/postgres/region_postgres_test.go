package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"taxportal/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var regionCols = []string{"id", "name", "states", "cities", "pincodes", "created_at", "updated_at"}

func TestRegionPostgres_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRegionPostgres(db)
	now := time.Now().UTC()
	reg := &model.Region{ID: "r-1", Name: "West", States: []string{"Maharashtra", "Goa"}, CreatedAt: now}

	mock.ExpectQuery("INSERT INTO regions").
		WithArgs("r-1", "West", `["Maharashtra","Goa"]`, "[]", "[]", now).
		WillReturnRows(sqlmock.NewRows(regionCols).
			AddRow("r-1", "West", []byte(`["Maharashtra","Goa"]`), []byte(`[]`), []byte(`[]`), now, now))

	got, err := repo.Create(context.Background(), reg)
	require.NoError(t, err)
	assert.Equal(t, []string{"Maharashtra", "Goa"}, got.States)
	assert.Empty(t, got.Cities)
	assert.NotNil(t, got.Cities)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegionPostgres_ListForUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRegionPostgres(db)
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM regions r JOIN region_assignments ra").
		WithArgs("u-1").
		WillReturnRows(sqlmock.NewRows(regionCols).
			AddRow("r-1", "North", []byte(`["Delhi"]`), []byte(`["Noida"]`), []byte(`["110001"]`), now, now))

	regions, err := repo.ListForUser(context.Background(), "u-1")
	require.NoError(t, err)
	require.Len(t, regions, 1)
	assert.True(t, regions[0].Matches("", "noida", ""))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegionPostgres_ReplaceAssignments(t *testing.T) {
	ctx := context.Background()

	t.Run("commit", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewRegionPostgres(db)

		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM region_assignments WHERE user_id").
			WithArgs("u-1").
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectExec("INSERT INTO region_assignments").
			WithArgs("u-1", "r-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO region_assignments").
			WithArgs("u-1", "r-2").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		assert.NoError(t, repo.ReplaceAssignments(ctx, "u-1", []string{"r-1", "r-2"}))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback on insert failure", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		repo := NewRegionPostgres(db)

		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM region_assignments WHERE user_id").
			WithArgs("u-1").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("INSERT INTO region_assignments").
			WithArgs("u-1", "r-x").
			WillReturnError(errors.New("fk violation"))
		mock.ExpectRollback()

		err = repo.ReplaceAssignments(ctx, "u-1", []string{"r-x"})
		assert.ErrorContains(t, err, "fk violation")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRegionPostgres_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRegionPostgres(db)

	mock.ExpectExec("DELETE FROM regions WHERE id").
		WithArgs("r-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.Delete(context.Background(), "r-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
