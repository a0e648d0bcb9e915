package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/think-in-universe/nearai-cloud-server/internal/storage"
)

var errMissingDatabaseURL = errors.New("DATABASE_URL is required")

func newRootCmd() *cobra.Command {
	var databaseURL string

	rootCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the gateway database schema",
		Long: `Apply, roll back and inspect the gateway's migrations.

The database is taken from --database-url or, when the flag is empty, from
DATABASE_URL. A .env file in the working directory is loaded first.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			if databaseURL == "" {
				databaseURL = os.Getenv("DATABASE_URL")
			}
			if databaseURL == "" {
				return errMissingDatabaseURL
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "Postgres connection URL")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := storage.RunMigrations(databaseURL); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
				return nil
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the last migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := storage.RollbackMigrations(databaseURL); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Rolled back one migration")
				return nil
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				version, dirty, err := storage.MigrationVersion(databaseURL)
				if err != nil {
					return err
				}
				if dirty {
					fmt.Fprintf(cmd.OutOrStdout(), "%d (dirty)\n", version)
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), version)
				return nil
			},
		},
	)

	return rootCmd
}
