package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"taxportal/internal/repository/postgres"
	"taxportal/internal/service"
)

const adminPasswordEnv = "PORTAL_ADMIN_PASSWORD"

func seedAdminCmd(e *env) *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "Create the first admin account if it does not exist",
		Long: `Create an admin account. Running it again with the same email is a no-op.

The password may be passed with --password or through ` + adminPasswordEnv + `.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				password = os.Getenv(adminPasswordEnv)
			}
			db, err := e.openDB(cmd.Context())
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			users := service.NewUserService(postgres.NewUserPostgres(db), postgres.NewRegionPostgres(db), e.log)
			return seedAdmin(cmd.Context(), users, cmd.OutOrStdout(), name, email, password)
		},
	}
	cmd.Flags().StringVar(&name, "name", "Administrator", "display name")
	cmd.Flags().StringVar(&email, "email", "", "login email")
	cmd.Flags().StringVar(&password, "password", "", "initial password (prefer "+adminPasswordEnv+")")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func seedAdmin(ctx context.Context, users service.UserService, out io.Writer, name, email, password string) error {
	if password == "" {
		return errors.New("password is required (--password or " + adminPasswordEnv + ")")
	}
	u, created, err := users.SeedAdmin(ctx, name, email, password)
	if err != nil {
		var ve *service.ValidationError
		if errors.As(err, &ve) {
			return fmt.Errorf("invalid admin account: %s", ve.Msg)
		}
		return err
	}
	if !created {
		fmt.Fprintf(out, "account %s already exists (id %s, role %s)\n", u.Email, u.ID, u.Role)
		return nil
	}
	fmt.Fprintf(out, "created admin %s (id %s)\n", u.Email, u.ID)
	return nil
}
