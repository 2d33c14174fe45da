// Command portalctl runs operator tasks against the portal database.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"

	"taxportal/internal/config"
	"taxportal/internal/database"
	"taxportal/internal/logging"
)

var Version = "dev"

// env is shared by all subcommands. openDB is replaced in tests.
type env struct {
	cfg    *config.AppConfig
	log    *slog.Logger
	openDB func(ctx context.Context) (*sql.DB, error)
}

func main() {
	cfg := config.Load()
	e := &env{
		cfg: cfg,
		log: logging.NewWithWriter(os.Stderr, "portalctl", cfg.LogLevel, cfg.Location()),
		openDB: func(ctx context.Context) (*sql.DB, error) {
			return database.NewPostgres(ctx, cfg.Database)
		},
	}

	if err := newRootCmd(e).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:           "portalctl",
		Short:         "Operator tasks for the tax portal",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(migrateCmd(e))
	root.AddCommand(seedAdminCmd(e))
	return root
}
