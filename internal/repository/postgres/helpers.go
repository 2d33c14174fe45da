package postgres

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"taxportal/internal/repository"
)

const uniqueViolation = "23505"

// mapWriteErr turns unique violations into repository.ErrDuplicate.
func mapWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", repository.ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}

// jsonArg encodes v for a JSONB parameter. nil slices are stored as empty arrays.
func jsonArg(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode json column: %w", err)
	}
	if string(b) == "null" {
		return "[]", nil
	}
	return string(b), nil
}

// scanJSON decodes a JSONB column into dst; NULL or empty leaves dst untouched.
func scanJSON(src []byte, dst any) error {
	if len(src) == 0 {
		return nil
	}
	if err := json.Unmarshal(src, dst); err != nil {
		return fmt.Errorf("decode json column: %w", err)
	}
	return nil
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// whereBuilder accumulates AND-ed predicates with positional placeholders.
type whereBuilder struct {
	clauses []string
	args    []any
}

// add appends a predicate; each "?" in clause is replaced with the next $n.
func (w *whereBuilder) add(clause string, args ...any) {
	for _, a := range args {
		w.args = append(w.args, a)
		clause = strings.Replace(clause, "?", fmt.Sprintf("$%d", len(w.args)), 1)
	}
	w.clauses = append(w.clauses, clause)
}

func (w *whereBuilder) sql() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// next returns the placeholder for an argument appended after the predicates.
func (w *whereBuilder) next(arg any) string {
	w.args = append(w.args, arg)
	return fmt.Sprintf("$%d", len(w.args))
}
