package main

import (
	"github.com/spf13/cobra"

	"github.com/spec-kit/carbon-ledger/internal/persistence"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE:  runMigrate,
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back every migration",
	RunE:  runMigrateDown,
}

func init() {
	migrateCmd.AddCommand(migrateDownCmd)
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	env, err := loadEnv()
	if err != nil {
		return err
	}
	defer env.logger.Sync() //nolint:errcheck

	return persistence.RunMigrations(env.cfg.Postgres, env.logger)
}

func runMigrateDown(cmd *cobra.Command, args []string) error {
	env, err := loadEnv()
	if err != nil {
		return err
	}
	defer env.logger.Sync() //nolint:errcheck

	return persistence.RollbackMigrations(env.cfg.Postgres, env.logger)
}
