package main

import (
	"github.com/spf13/cobra"

	"github.com/noah-isme/content-admin-api/pkg/database"
)

var migrateSteps int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or roll back the embedded schema migrations",
	Long: `Apply the embedded schema migrations.

Examples:
  # Apply everything
  content-api migrate

  # Roll back the last migration
  content-api migrate --steps -1`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logr, err := bootstrap()
		if err != nil {
			return err
		}
		defer logr.Sync() //nolint:errcheck

		db, err := database.NewPostgres(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		return database.Migrate(db.DB, migrateSteps, logr)
	},
}

func init() {
	migrateCmd.Flags().IntVar(&migrateSteps, "steps", 0, "Number of migrations to apply (negative rolls back, 0 applies all)")
	rootCmd.AddCommand(migrateCmd)
}
