package postgres

import (
	"context"
	"database/sql"
	"time"

	"taxportal/internal/model"
	"taxportal/internal/repository"
)

const userColumns = `id, name, email, phone, password_hash, role, failed_login_attempts, locked_until, last_login_at, created_at, updated_at`

// UserPostgres is a PostgreSQL implementation of repository.UserRepository.
type UserPostgres struct {
	db *sql.DB
}

// NewUserPostgres creates a new UserPostgres repository.
func NewUserPostgres(db *sql.DB) *UserPostgres {
	return &UserPostgres{db: db}
}

var _ repository.UserRepository = (*UserPostgres)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u           model.User
		role        string
		lockedUntil sql.NullTime
		lastLogin   sql.NullTime
	)
	if err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.Phone,
		&u.PasswordHash,
		&role,
		&u.FailedLoginAttempts,
		&lockedUntil,
		&lastLogin,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	u.LockedUntil = timePtr(lockedUntil)
	u.LastLoginAt = timePtr(lastLogin)
	return &u, nil
}

// Create inserts a user and returns the stored row.
func (r *UserPostgres) Create(ctx context.Context, u *model.User) (*model.User, error) {
	q := `
		INSERT INTO users (id, name, email, phone, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, lower($3), $4, $5, $6, $7, $7)
		RETURNING ` + userColumns
	row := r.db.QueryRowContext(ctx, q,
		u.ID,
		u.Name,
		u.Email,
		u.Phone,
		u.PasswordHash,
		string(u.Role),
		u.CreatedAt,
	)
	stored, err := scanUser(row)
	if err != nil {
		return nil, mapWriteErr(err)
	}
	return stored, nil
}

// FindByID fetches a single user by ID.
func (r *UserPostgres) FindByID(ctx context.Context, id string) (*model.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, q, id))
}

// FindByEmail fetches a single user by email.
func (r *UserPostgres) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE email = lower($1)`
	return scanUser(r.db.QueryRowContext(ctx, q, email))
}

// List returns users newest first, optionally restricted to one role.
func (r *UserPostgres) List(ctx context.Context, role model.Role, pq repository.PageQuery) (*repository.PageResult[model.User], error) {
	var w whereBuilder
	if role != "" {
		w.add("role = ?", string(role))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, err
	}

	q := `SELECT ` + userColumns + ` FROM users` + w.sql() +
		` ORDER BY created_at DESC, id DESC LIMIT ` + w.next(pq.Limit) + ` OFFSET ` + w.next(pq.Offset)
	rows, err := r.db.QueryContext(ctx, q, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &repository.PageResult[model.User]{Items: items, Total: total}, nil
}

// UpdateRole changes a user's role. It returns sql.ErrNoRows when the user does not exist.
func (r *UserPostgres) UpdateRole(ctx context.Context, id string, role model.Role) error {
	const q = `UPDATE users SET role = $2, updated_at = now() WHERE id = $1`
	return execOne(ctx, r.db, q, id, string(role))
}

// RecordLoginFailure increments failed_login_attempts in a single statement.
func (r *UserPostgres) RecordLoginFailure(ctx context.Context, id string) (int, error) {
	const q = `
		UPDATE users SET failed_login_attempts = failed_login_attempts + 1, updated_at = now()
		WHERE id = $1
		RETURNING failed_login_attempts
	`
	var attempts int
	if err := r.db.QueryRowContext(ctx, q, id).Scan(&attempts); err != nil {
		return 0, err
	}
	return attempts, nil
}

// SetLockedUntil locks the account until the given instant.
func (r *UserPostgres) SetLockedUntil(ctx context.Context, id string, until time.Time) error {
	const q = `UPDATE users SET locked_until = $2, updated_at = now() WHERE id = $1`
	return execOne(ctx, r.db, q, id, until)
}

// RecordLoginSuccess resets lockout bookkeeping after a good password.
func (r *UserPostgres) RecordLoginSuccess(ctx context.Context, id string, at time.Time) error {
	const q = `
		UPDATE users SET failed_login_attempts = 0, locked_until = NULL, last_login_at = $2, updated_at = now()
		WHERE id = $1
	`
	return execOne(ctx, r.db, q, id, at)
}

// Unlock clears lockout bookkeeping.
func (r *UserPostgres) Unlock(ctx context.Context, id string) error {
	const q = `UPDATE users SET failed_login_attempts = 0, locked_until = NULL, updated_at = now() WHERE id = $1`
	return execOne(ctx, r.db, q, id)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// execOne runs an update that must touch exactly one row.
func execOne(ctx context.Context, db execer, q string, args ...any) error {
	res, err := db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
