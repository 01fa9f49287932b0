package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/datachat-ai/datachat/internal/auth"
	"github.com/datachat-ai/datachat/internal/config"
	"github.com/datachat-ai/datachat/internal/db"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "datachat",
		Short: "Chat-with-your-data turn processor",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to the TOML config file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat service",
		Run: func(*cobra.Command, []string) {
			runServe()
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(*cobra.Command, []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if !cfg.Postgres.Enabled {
				return fmt.Errorf("postgres is not enabled in config")
			}
			return db.Migrate(cfg.Postgres)
		},
	}

	tokenCmd := &cobra.Command{
		Use:   "token <principal-id>",
		Short: "Mint a signed API token for a principal",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			expiresIn, err := time.ParseDuration(cfg.Auth.JWTExpiresIn)
			if err != nil {
				return fmt.Errorf("parse jwt_expires_in: %w", err)
			}
			token, expiresAt, err := auth.GenerateToken(args[0], cfg.Auth.JWTSecret, expiresIn)
			if err != nil {
				return err
			}
			fmt.Printf("%s\nexpires: %s\n", token, expiresAt.Format(time.RFC3339))
			return nil
		},
	}

	root.AddCommand(serveCmd, migrateCmd, tokenCmd)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
