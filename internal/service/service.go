// Package service implements the portal's use cases on top of the repositories,
// object storage, the payment gateway and the notification dispatcher.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"taxportal/internal/model"
	"taxportal/internal/repository"
)

var tracer = otel.Tracer("taxportal/internal/service")

const (
	defaultLimit = 10
	maxLimit     = 100
)

// Actor is the authenticated caller of a use case.
type Actor struct {
	UserID string
	Role   model.Role
}

func (a Actor) IsAdmin() bool { return a.Role == model.RoleAdmin }

// ListResult is the service-level DTO for paginated listings.
type ListResult[T any] struct {
	Items []T `json:"data"`
	Total int `json:"total"`
}

func pageQuery(limit, offset int) repository.PageQuery {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return repository.PageQuery{Limit: limit, Offset: offset}
}

func toList[T any](res *repository.PageResult[T]) *ListResult[T] {
	items := res.Items
	if items == nil {
		items = []T{}
	}
	return &ListResult[T]{Items: items, Total: res.Total}
}

// notFound maps sql.ErrNoRows to ErrNotFound and wraps everything else with op.
func notFound(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// checkID rejects ids from request bodies and queries that cannot be a primary key.
func checkID(field, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return validationf("invalid %s", field)
	}
	return nil
}

func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
