package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"taxportal/internal/model"
	"taxportal/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	submissionCols = []string{"id", "user_id", "service_id", "form_data", "state", "city", "pincode", "status", "payment_status", "amount", "created_at", "updated_at"}
	attachmentCols = []string{"id", "submission_id", "field_name", "filename", "storage_path", "size", "content_type", "created_at"}
)

func TestSubmissionPostgres_Create(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	sub := &model.Submission{
		ID:            "sub-1",
		UserID:        "u-1",
		ServiceID:     "s-1",
		FormData:      map[string]any{"pan": "ABCDE1234F"},
		State:         "Maharashtra",
		City:          "Pune",
		Pincode:       "411001",
		Status:        model.StatusPending,
		PaymentStatus: model.PaymentUnpaid,
		Amount:        149900,
		CreatedAt:     now,
		Attachments: []model.Attachment{
			{ID: "a-1", FieldName: "pan_card", Filename: "pan.pdf", StoragePath: "submissions/sub-1/x.pdf", Size: 10, ContentType: "application/pdf", CreatedAt: now},
		},
	}

	t.Run("commit", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewSubmissionPostgres(db)

		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO submissions").
			WithArgs("sub-1", "u-1", "s-1", `{"pan":"ABCDE1234F"}`, "Maharashtra", "Pune", "411001", "pending", "unpaid", int64(149900), now).
			WillReturnRows(sqlmock.NewRows(submissionCols).
				AddRow("sub-1", "u-1", "s-1", []byte(`{"pan":"ABCDE1234F"}`), "Maharashtra", "Pune", "411001", "pending", "unpaid", 149900, now, now))
		mock.ExpectQuery("INSERT INTO attachments").
			WithArgs("a-1", "sub-1", "pan_card", "pan.pdf", "submissions/sub-1/x.pdf", int64(10), "application/pdf", now).
			WillReturnRows(sqlmock.NewRows(attachmentCols).
				AddRow("a-1", "sub-1", "pan_card", "pan.pdf", "submissions/sub-1/x.pdf", 10, "application/pdf", now))
		mock.ExpectCommit()

		got, err := repo.Create(ctx, sub)
		require.NoError(t, err)
		assert.Equal(t, "ABCDE1234F", got.FormData["pan"])
		require.Len(t, got.Attachments, 1)
		assert.Equal(t, "submissions/sub-1/x.pdf", got.Attachments[0].StoragePath)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("attachment insert failure rolls back", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		repo := NewSubmissionPostgres(db)

		mock.ExpectBegin()
		mock.ExpectQuery("INSERT INTO submissions").
			WillReturnRows(sqlmock.NewRows(submissionCols).
				AddRow("sub-1", "u-1", "s-1", []byte(`{}`), "", "", "", "pending", "unpaid", 0, now, now))
		mock.ExpectQuery("INSERT INTO attachments").WillReturnError(errors.New("duplicate key"))
		mock.ExpectRollback()

		got, err := repo.Create(ctx, sub)
		assert.ErrorContains(t, err, "duplicate key")
		assert.Nil(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSubmissionPostgres_FindByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewSubmissionPostgres(db)
	ctx := context.Background()
	now := time.Now()

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM submissions s WHERE s.id").
			WithArgs("sub-1").
			WillReturnRows(sqlmock.NewRows(submissionCols).
				AddRow("sub-1", "u-1", "s-1", []byte(`{"state":"Goa"}`), "Goa", "Panaji", "403001", "under_review", "paid", 100, now, now))
		mock.ExpectQuery("SELECT (.+) FROM attachments WHERE submission_id").
			WithArgs("sub-1").
			WillReturnRows(sqlmock.NewRows(attachmentCols).
				AddRow("a-1", "sub-1", "gst_cert", "cert.png", "submissions/sub-1/a.png", 20, "image/png", now))

		sub, err := repo.FindByID(ctx, "sub-1")
		require.NoError(t, err)
		assert.Equal(t, model.StatusUnderReview, sub.Status)
		assert.Equal(t, model.PaymentPaid, sub.PaymentStatus)
		assert.Len(t, sub.Attachments, 1)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM submissions s WHERE s.id").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		sub, err := repo.FindByID(ctx, "missing")
		assert.ErrorIs(t, err, sql.ErrNoRows)
		assert.Nil(t, sub)
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionPostgres_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewSubmissionPostgres(db)
	ctx := context.Background()
	now := time.Now()

	t.Run("region admin scope", func(t *testing.T) {
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM submissions s WHERE s.status = \$1 AND EXISTS \( ?SELECT 1 FROM region_assignments ra (.+) WHERE ra.user_id = \$2`).
			WithArgs("pending", "ra-1").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectQuery(`SELECT (.+) FROM submissions s WHERE s.status = \$1 AND EXISTS (.+) ORDER BY s.created_at DESC, s.id DESC LIMIT \$3 OFFSET \$4`).
			WithArgs("pending", "ra-1", 20, 40).
			WillReturnRows(sqlmock.NewRows(submissionCols).
				AddRow("sub-1", "u-1", "s-1", []byte(`{}`), "Goa", "", "", "pending", "unpaid", 100, now, now))

		res, err := repo.List(ctx, repository.SubmissionFilter{Status: model.StatusPending, RegionAdminID: "ra-1"}, repository.PageQuery{Limit: 20, Offset: 40})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Total)
		assert.Len(t, res.Items, 1)
	})

	t.Run("owner listing", func(t *testing.T) {
		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM submissions s WHERE s.user_id = \$1`).
			WithArgs("u-1").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectQuery(`SELECT (.+) FROM submissions s WHERE s.user_id = \$1 ORDER BY`).
			WithArgs("u-1", 10, 0).
			WillReturnRows(sqlmock.NewRows(submissionCols))

		res, err := repo.List(ctx, repository.SubmissionFilter{UserID: "u-1"}, repository.PageQuery{Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, 0, res.Total)
		assert.NotNil(t, res.Items)
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionPostgres_Notes(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewSubmissionPostgres(db)
	ctx := context.Background()
	now := time.Now().UTC()
	noteCols := []string{"id", "submission_id", "author_id", "body", "created_at"}

	mock.ExpectQuery("INSERT INTO submission_notes").
		WithArgs("n-1", "sub-1", "admin-1", "PAN mismatch", now).
		WillReturnRows(sqlmock.NewRows(noteCols).AddRow("n-1", "sub-1", "admin-1", "PAN mismatch", now))
	n, err := repo.AddNote(ctx, &model.Note{ID: "n-1", SubmissionID: "sub-1", AuthorID: "admin-1", Body: "PAN mismatch", CreatedAt: now})
	require.NoError(t, err)
	assert.Equal(t, "PAN mismatch", n.Body)

	mock.ExpectQuery("SELECT (.+) FROM submission_notes WHERE submission_id").
		WithArgs("sub-1").
		WillReturnRows(sqlmock.NewRows(noteCols).AddRow("n-1", "sub-1", "admin-1", "PAN mismatch", now))
	notes, err := repo.ListNotes(ctx, "sub-1")
	require.NoError(t, err)
	assert.Len(t, notes, 1)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionPostgres_UpdateStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewSubmissionPostgres(db)
	ctx := context.Background()
	now := time.Now()

	mock.ExpectExec(`UPDATE submissions SET status = \$2, updated_at = \$3 WHERE id = \$1 AND status = \$4`).
		WithArgs("sub-1", "approved", now, "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.UpdateStatus(ctx, "sub-1", model.StatusPending, model.StatusApproved, now))

	// another reviewer already moved it on
	mock.ExpectExec("UPDATE submissions SET status").
		WithArgs("sub-1", "rejected", now, "pending").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.UpdateStatus(ctx, "sub-1", model.StatusPending, model.StatusRejected, now), sql.ErrNoRows)

	assert.NoError(t, mock.ExpectationsWereMet())
}
