package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"taxportal/internal/database"
	"taxportal/internal/model"
	"taxportal/internal/repository"
)

const paymentColumns = `id, txn_id, user_id, service_id, submission_id, amount, status, gateway_ref, raw_response, created_at, updated_at`

// PaymentPostgres is a PostgreSQL implementation of repository.PaymentRepository.
type PaymentPostgres struct {
	db *sql.DB
}

// NewPaymentPostgres creates a new PaymentPostgres repository.
func NewPaymentPostgres(db *sql.DB) *PaymentPostgres {
	return &PaymentPostgres{db: db}
}

var _ repository.PaymentRepository = (*PaymentPostgres)(nil)

func scanPayment(row rowScanner) (*model.PaymentTransaction, error) {
	var (
		p            model.PaymentTransaction
		submissionID sql.NullString
		status       string
		raw          []byte
	)
	if err := row.Scan(
		&p.ID,
		&p.TxnID,
		&p.UserID,
		&p.ServiceID,
		&submissionID,
		&p.Amount,
		&status,
		&p.GatewayRef,
		&raw,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.SubmissionID = submissionID.String
	p.Status = model.TransactionStatus(status)
	if len(raw) > 0 {
		p.RawResponse = json.RawMessage(raw)
	}
	return &p, nil
}

// Create inserts an initiated transaction.
func (r *PaymentPostgres) Create(ctx context.Context, t *model.PaymentTransaction) (*model.PaymentTransaction, error) {
	q := `
		INSERT INTO payment_transactions (id, txn_id, user_id, service_id, submission_id, amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING ` + paymentColumns
	return scanPayment(r.db.QueryRowContext(ctx, q,
		t.ID, t.TxnID, t.UserID, t.ServiceID, nullString(t.SubmissionID), t.Amount, string(t.Status), t.CreatedAt))
}

// FindByTxnID fetches a transaction by the id sent to the gateway.
func (r *PaymentPostgres) FindByTxnID(ctx context.Context, txnID string) (*model.PaymentTransaction, error) {
	q := `SELECT ` + paymentColumns + ` FROM payment_transactions WHERE txn_id = $1`
	return scanPayment(r.db.QueryRowContext(ctx, q, txnID))
}

// Settle finalizes a transaction that is still initiated. A successful payment
// flips the linked submission to paid before the commit.
func (r *PaymentPostgres) Settle(ctx context.Context, txnID string, status model.TransactionStatus, gatewayRef string, raw json.RawMessage, at time.Time) error {
	const q = `
		UPDATE payment_transactions
		SET status = $2, gateway_ref = $3, raw_response = $4, updated_at = $5
		WHERE txn_id = $1 AND status = 'initiated'
		RETURNING submission_id
	`
	var rawArg any
	if len(raw) > 0 {
		rawArg = string(raw)
	}
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var submissionID sql.NullString
		if err := tx.QueryRowContext(ctx, q, txnID, string(status), gatewayRef, rawArg, at).Scan(&submissionID); err != nil {
			return err
		}
		if status != model.TxnSuccess || !submissionID.Valid {
			return nil
		}
		return execOne(ctx, tx, `UPDATE submissions SET payment_status = 'paid', updated_at = $2 WHERE id = $1`, submissionID.String, at)
	})
}

// List returns transactions newest first.
func (r *PaymentPostgres) List(ctx context.Context, userID string, pq repository.PageQuery) (*repository.PageResult[model.PaymentTransaction], error) {
	var w whereBuilder
	if userID != "" {
		w.add("user_id = ?", userID)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM payment_transactions`+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, err
	}

	q := `SELECT ` + paymentColumns + ` FROM payment_transactions` + w.sql() +
		` ORDER BY created_at DESC, id DESC LIMIT ` + w.next(pq.Limit) + ` OFFSET ` + w.next(pq.Offset)
	rows, err := r.db.QueryContext(ctx, q, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.PaymentTransaction, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &repository.PageResult[model.PaymentTransaction]{Items: items, Total: total}, nil
}
