package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sakif/pygate/internal/auth"
	"github.com/sakif/pygate/internal/repository/sqlite"
	"github.com/sakif/pygate/internal/service"
)

func newClientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Manage agent clients",
	}
	cmd.AddCommand(newClientCreateCmd())
	return cmd
}

func newClientCreateCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register an agent client and print its credentials",
		Long: `Create registers a client for the client-credentials exchange at
POST /auth/token. The secret is printed once and only its hash is stored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cfg.AuthEnabled() {
				return errors.New("JWT_SECRET is not set; clients are only useful with authentication enabled")
			}
			logger := newLogger(cfg, cmd.ErrOrStderr())

			if cfg.Server.DBPath != ":memory:" {
				if err := os.MkdirAll(filepath.Dir(cfg.Server.DBPath), 0o755); err != nil {
					return fmt.Errorf("creating database directory: %w", err)
				}
			}
			db, err := sqlite.New(cfg.Server.DBPath)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()

			tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret)
			if err != nil {
				return err
			}
			authService := service.NewAuthService(db, db, tokens, auth.NewPasswordService(), logger)
			client, secret, err := authService.CreateClient(cmd.Context(), name)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "client_id:     %s\n", client.ID)
			fmt.Fprintf(out, "client_secret: %s\n", secret)
			fmt.Fprintln(cmd.ErrOrStderr(), "Store the secret now; it cannot be shown again.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "Client name")
	cmd.MarkFlagRequired("name")
	return cmd
}
