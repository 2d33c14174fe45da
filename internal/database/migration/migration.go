package migration

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/pressly/goose/v3"
)

//go:embed sql/*.sql
var embedded embed.FS

// Files exposes the embedded migration sources rooted at the sql directory.
func Files() fs.FS {
	sub, err := fs.Sub(embedded, "sql")
	if err != nil {
		panic(err)
	}
	return sub
}

// migrator is the part of *goose.Provider the runner drives.
type migrator interface {
	Up(ctx context.Context) ([]*goose.MigrationResult, error)
	Down(ctx context.Context) (*goose.MigrationResult, error)
	DownTo(ctx context.Context, version int64) ([]*goose.MigrationResult, error)
	Status(ctx context.Context) ([]*goose.MigrationStatus, error)
}

// Runner applies the embedded goose migrations against a Postgres database.
type Runner struct {
	provider migrator
	log      *slog.Logger
	dbHost   string
}

// NewRunner builds a goose provider over the embedded migrations.
func NewRunner(db *sql.DB, dbHost string, log *slog.Logger) (*Runner, error) {
	if db == nil {
		return nil, fmt.Errorf("nil database provided")
	}
	if log == nil {
		log = slog.Default()
	}
	p, err := goose.NewProvider(goose.DialectPostgres, db, Files())
	if err != nil {
		return nil, fmt.Errorf("create goose provider: %w", err)
	}
	return &Runner{provider: p, log: log.With("component", "database", "db_host", dbHost), dbHost: dbHost}, nil
}

// Up applies all pending migrations.
func (r *Runner) Up(ctx context.Context) error {
	start := time.Now()
	r.log.Info("db_migration_start", "status", "in_progress")

	results, err := r.provider.Up(ctx)
	for _, res := range results {
		r.logResult(res)
	}
	if err != nil {
		r.log.Error("db_migration_failed", "status", "error", "error", err, "duration_ms", time.Since(start).Milliseconds())
		return fmt.Errorf("apply migrations: %w", err)
	}

	if len(results) == 0 {
		r.log.Info("db_migration_skip", "status", "success", "msg", "schema up to date", "duration_ms", time.Since(start).Milliseconds())
		return nil
	}
	r.log.Info("db_migration_success", "status", "success", "applied", len(results), "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// Down rolls back the latest migration, or every migration above target when target > 0.
func (r *Runner) Down(ctx context.Context, target int64) error {
	if target > 0 {
		results, err := r.provider.DownTo(ctx, target)
		for _, res := range results {
			r.logResult(res)
		}
		if err != nil {
			return fmt.Errorf("rollback to version %d: %w", target, err)
		}
		return nil
	}
	res, err := r.provider.Down(ctx)
	if res != nil {
		r.logResult(res)
	}
	if err != nil {
		return fmt.Errorf("rollback latest migration: %w", err)
	}
	return nil
}

// MigrationState is one row of Status output.
type MigrationState struct {
	Version   int64
	Source    string
	Applied   bool
	AppliedAt time.Time
}

// Status reports applied and pending migrations in version order.
func (r *Runner) Status(ctx context.Context) ([]MigrationState, error) {
	st, err := r.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("migration status: %w", err)
	}
	out := make([]MigrationState, 0, len(st))
	for _, s := range st {
		out = append(out, MigrationState{
			Version:   s.Source.Version,
			Source:    s.Source.Path,
			Applied:   s.State == goose.StateApplied,
			AppliedAt: s.AppliedAt,
		})
	}
	return out, nil
}

func (r *Runner) logResult(res *goose.MigrationResult) {
	if res.Error != nil {
		r.log.Error("db_migration_step", "status", "error", "migration_step", res.Source.Path,
			"direction", res.Direction, "error", res.Error, "step_duration_ms", res.Duration.Milliseconds())
		return
	}
	r.log.Info("db_migration_step", "status", "success", "migration_step", res.Source.Path,
		"direction", res.Direction, "step_duration_ms", res.Duration.Milliseconds())
}
