package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"taxportal/internal/database/migration"
)

func migrateCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply, roll back or inspect schema migrations",
	}

	withRunner := func(run func(cmd *cobra.Command, r *migration.Runner) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			db, err := e.openDB(cmd.Context())
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()
			r, err := migration.NewRunner(db, e.cfg.Database.Host, e.log)
			if err != nil {
				return err
			}
			return run(cmd, r)
		}
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: withRunner(func(cmd *cobra.Command, r *migration.Runner) error {
			return r.Up(cmd.Context())
		}),
	}

	var target int64
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the latest migration, or down to --to",
		Args:  cobra.NoArgs,
		RunE: withRunner(func(cmd *cobra.Command, r *migration.Runner) error {
			return r.Down(cmd.Context(), target)
		}),
	}
	down.Flags().Int64Var(&target, "to", 0, "roll back every migration above this version")

	status := &cobra.Command{
		Use:   "status",
		Short: "List applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: withRunner(func(cmd *cobra.Command, r *migration.Runner) error {
			states, err := r.Status(cmd.Context())
			if err != nil {
				return err
			}
			return printStatus(cmd.OutOrStdout(), states)
		}),
	}

	cmd.AddCommand(up, down, status)
	return cmd
}

func printStatus(w io.Writer, states []migration.MigrationState) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tSTATE\tAPPLIED AT\tSOURCE")
	for _, s := range states {
		state, at := "pending", "-"
		if s.Applied {
			state = "applied"
			at = s.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.Version, state, at, s.Source)
	}
	return tw.Flush()
}
