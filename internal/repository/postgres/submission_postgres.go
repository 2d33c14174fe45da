package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"taxportal/internal/database"
	"taxportal/internal/model"
	"taxportal/internal/repository"
)

const submissionColumns = `s.id, s.user_id, s.service_id, s.form_data, s.state, s.city, s.pincode, s.status, s.payment_status, s.amount, s.created_at, s.updated_at`

const attachmentColumns = `id, submission_id, field_name, filename, storage_path, size, content_type, created_at`

// regionScopeClause matches a submission against any region assigned to the given user.
const regionScopeClause = `EXISTS (
	SELECT 1 FROM region_assignments ra
	JOIN regions r ON r.id = ra.region_id
	WHERE ra.user_id = ? AND (
		lower(s.state) IN (SELECT lower(v) FROM jsonb_array_elements_text(r.states) v)
		OR lower(s.city) IN (SELECT lower(v) FROM jsonb_array_elements_text(r.cities) v)
		OR s.pincode IN (SELECT v FROM jsonb_array_elements_text(r.pincodes) v)
	)
)`

// SubmissionPostgres is a PostgreSQL implementation of repository.SubmissionRepository.
type SubmissionPostgres struct {
	db *sql.DB
}

// NewSubmissionPostgres creates a new SubmissionPostgres repository.
func NewSubmissionPostgres(db *sql.DB) *SubmissionPostgres {
	return &SubmissionPostgres{db: db}
}

var _ repository.SubmissionRepository = (*SubmissionPostgres)(nil)

func scanSubmission(row rowScanner) (*model.Submission, error) {
	var (
		s              model.Submission
		formData       []byte
		status, paySts string
	)
	if err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.ServiceID,
		&formData,
		&s.State,
		&s.City,
		&s.Pincode,
		&status,
		&paySts,
		&s.Amount,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	s.Status = model.SubmissionStatus(status)
	s.PaymentStatus = model.PaymentState(paySts)
	s.FormData = map[string]any{}
	if err := scanJSON(formData, &s.FormData); err != nil {
		return nil, err
	}
	return &s, nil
}

func scanAttachment(row rowScanner) (*model.Attachment, error) {
	var a model.Attachment
	if err := row.Scan(
		&a.ID,
		&a.SubmissionID,
		&a.FieldName,
		&a.Filename,
		&a.StoragePath,
		&a.Size,
		&a.ContentType,
		&a.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &a, nil
}

// Create inserts a submission and all of its attachments in one transaction.
func (r *SubmissionPostgres) Create(ctx context.Context, sub *model.Submission) (*model.Submission, error) {
	formData, err := json.Marshal(sub.FormData)
	if err != nil {
		return nil, fmt.Errorf("encode form data: %w", err)
	}

	var out *model.Submission
	err = database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		const q = `
			INSERT INTO submissions AS s (id, user_id, service_id, form_data, state, city, pincode, status, payment_status, amount, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
			RETURNING ` + submissionColumns
		stored, err := scanSubmission(tx.QueryRowContext(ctx, q,
			sub.ID,
			sub.UserID,
			sub.ServiceID,
			string(formData),
			sub.State,
			sub.City,
			sub.Pincode,
			string(sub.Status),
			string(sub.PaymentStatus),
			sub.Amount,
			sub.CreatedAt,
		))
		if err != nil {
			return err
		}

		stored.Attachments = make([]model.Attachment, 0, len(sub.Attachments))
		for _, a := range sub.Attachments {
			const qa = `
				INSERT INTO attachments (id, submission_id, field_name, filename, storage_path, size, content_type, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				RETURNING ` + attachmentColumns
			att, err := scanAttachment(tx.QueryRowContext(ctx, qa,
				a.ID, stored.ID, a.FieldName, a.Filename, a.StoragePath, a.Size, a.ContentType, a.CreatedAt))
			if err != nil {
				return err
			}
			stored.Attachments = append(stored.Attachments, *att)
		}
		out = stored
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FindByID loads a submission with its attachments.
func (r *SubmissionPostgres) FindByID(ctx context.Context, id string) (*model.Submission, error) {
	q := `SELECT ` + submissionColumns + ` FROM submissions s WHERE s.id = $1`
	sub, err := scanSubmission(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+attachmentColumns+` FROM attachments WHERE submission_id = $1 ORDER BY created_at, id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sub.Attachments = make([]model.Attachment, 0)
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		sub.Attachments = append(sub.Attachments, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sub, nil
}

// List returns submissions newest first. Attachments are not loaded.
func (r *SubmissionPostgres) List(ctx context.Context, f repository.SubmissionFilter, pq repository.PageQuery) (*repository.PageResult[model.Submission], error) {
	var w whereBuilder
	if f.UserID != "" {
		w.add("s.user_id = ?", f.UserID)
	}
	if f.ServiceID != "" {
		w.add("s.service_id = ?", f.ServiceID)
	}
	if f.Status != "" {
		w.add("s.status = ?", string(f.Status))
	}
	if f.RegionAdminID != "" {
		w.add(regionScopeClause, f.RegionAdminID)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM submissions s`+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, err
	}

	q := `SELECT ` + submissionColumns + ` FROM submissions s` + w.sql() +
		` ORDER BY s.created_at DESC, s.id DESC LIMIT ` + w.next(pq.Limit) + ` OFFSET ` + w.next(pq.Offset)
	rows, err := r.db.QueryContext(ctx, q, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Submission, 0)
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &repository.PageResult[model.Submission]{Items: items, Total: total}, nil
}

// UpdateStatus sets the review status if it still holds the expected value.
func (r *SubmissionPostgres) UpdateStatus(ctx context.Context, id string, from, to model.SubmissionStatus, at time.Time) error {
	const q = `UPDATE submissions SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4`
	return execOne(ctx, r.db, q, id, string(to), at, string(from))
}

// AddNote inserts a staff note.
func (r *SubmissionPostgres) AddNote(ctx context.Context, n *model.Note) (*model.Note, error) {
	const q = `
		INSERT INTO submission_notes (id, submission_id, author_id, body, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, submission_id, author_id, body, created_at
	`
	var out model.Note
	if err := r.db.QueryRowContext(ctx, q, n.ID, n.SubmissionID, n.AuthorID, n.Body, n.CreatedAt).
		Scan(&out.ID, &out.SubmissionID, &out.AuthorID, &out.Body, &out.CreatedAt); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListNotes returns a submission's notes oldest first.
func (r *SubmissionPostgres) ListNotes(ctx context.Context, submissionID string) ([]model.Note, error) {
	const q = `
		SELECT id, submission_id, author_id, body, created_at
		FROM submission_notes
		WHERE submission_id = $1
		ORDER BY created_at, id
	`
	rows, err := r.db.QueryContext(ctx, q, submissionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Note, 0)
	for rows.Next() {
		var n model.Note
		if err := rows.Scan(&n.ID, &n.SubmissionID, &n.AuthorID, &n.Body, &n.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// FindAttachment fetches one attachment scoped to its submission.
func (r *SubmissionPostgres) FindAttachment(ctx context.Context, submissionID, attachmentID string) (*model.Attachment, error) {
	q := `SELECT ` + attachmentColumns + ` FROM attachments WHERE submission_id = $1 AND id = $2`
	return scanAttachment(r.db.QueryRowContext(ctx, q, submissionID, attachmentID))
}
