package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"taxportal/internal/model"
)

// Repositories return sql.ErrNoRows unchanged when a single row lookup misses;
// translating it is the service layer's job.

// ErrDuplicate is returned when a write violates a unique constraint (email, region name, service code).
var ErrDuplicate = errors.New("duplicate key")

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
type PageResult[T any] struct {
	Items []T
	Total int
}

// UserRepository persists portal accounts and their login bookkeeping.
type UserRepository interface {
	Create(ctx context.Context, u *model.User) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	// FindByEmail matches the lower-cased email.
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	// List filters by role when role is non-empty.
	List(ctx context.Context, role model.Role, pq PageQuery) (*PageResult[model.User], error)
	UpdateRole(ctx context.Context, id string, role model.Role) error
	// RecordLoginFailure atomically increments the failure counter and returns the new value.
	RecordLoginFailure(ctx context.Context, id string) (int, error)
	SetLockedUntil(ctx context.Context, id string, until time.Time) error
	// RecordLoginSuccess clears the failure counter and lock and stamps last_login_at.
	RecordLoginSuccess(ctx context.Context, id string, at time.Time) error
	// Unlock clears the failure counter and lock without touching last_login_at.
	Unlock(ctx context.Context, id string) error
}

// RegionRepository persists regions and region-admin assignments.
type RegionRepository interface {
	Create(ctx context.Context, r *model.Region) (*model.Region, error)
	Update(ctx context.Context, r *model.Region) (*model.Region, error)
	FindByID(ctx context.Context, id string) (*model.Region, error)
	List(ctx context.Context) ([]model.Region, error)
	Delete(ctx context.Context, id string) error
	// ReplaceAssignments swaps a user's region set in one transaction.
	ReplaceAssignments(ctx context.Context, userID string, regionIDs []string) error
	ListForUser(ctx context.Context, userID string) ([]model.Region, error)
}

// CatalogRepository persists the purchasable services.
type CatalogRepository interface {
	Create(ctx context.Context, s *model.Service) (*model.Service, error)
	Update(ctx context.Context, s *model.Service) (*model.Service, error)
	FindByID(ctx context.Context, id string) (*model.Service, error)
	FindByCode(ctx context.Context, code string) (*model.Service, error)
	List(ctx context.Context, activeOnly bool) ([]model.Service, error)
	SetActive(ctx context.Context, id string, active bool) error
}

// SubmissionFilter narrows submission listings. Empty fields do not filter.
type SubmissionFilter struct {
	UserID    string
	ServiceID string
	Status    model.SubmissionStatus
	// RegionAdminID limits results to submissions whose address matches a region assigned to that user.
	RegionAdminID string
}

// SubmissionRepository persists submissions, their attachments and staff notes.
type SubmissionRepository interface {
	// Create inserts the submission and its attachments in one transaction.
	Create(ctx context.Context, s *model.Submission) (*model.Submission, error)
	// FindByID loads the submission with its attachments.
	FindByID(ctx context.Context, id string) (*model.Submission, error)
	List(ctx context.Context, f SubmissionFilter, pq PageQuery) (*PageResult[model.Submission], error)
	// UpdateStatus moves a submission from one status to another. It returns
	// sql.ErrNoRows when the stored status is no longer from.
	UpdateStatus(ctx context.Context, id string, from, to model.SubmissionStatus, at time.Time) error
	AddNote(ctx context.Context, n *model.Note) (*model.Note, error)
	ListNotes(ctx context.Context, submissionID string) ([]model.Note, error)
	FindAttachment(ctx context.Context, submissionID, attachmentID string) (*model.Attachment, error)
}

// PaymentRepository persists gateway transactions.
type PaymentRepository interface {
	Create(ctx context.Context, t *model.PaymentTransaction) (*model.PaymentTransaction, error)
	FindByTxnID(ctx context.Context, txnID string) (*model.PaymentTransaction, error)
	// Settle finalizes an initiated transaction and, on success, marks the linked
	// submission paid in the same database transaction. It returns sql.ErrNoRows
	// when the transaction is unknown or already final.
	Settle(ctx context.Context, txnID string, status model.TransactionStatus, gatewayRef string, raw json.RawMessage, at time.Time) error
	// List filters by user when userID is non-empty.
	List(ctx context.Context, userID string, pq PageQuery) (*PageResult[model.PaymentTransaction], error)
}
