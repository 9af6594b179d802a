package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-timeline/internal/config"
	"github.com/kozaktomas/photo-timeline/internal/database/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long: `Apply pending database migrations and exit.
Both serve and worker apply migrations on startup as well; this command
exists for deployments that migrate as a separate step.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	pool, err := postgres.Open(&cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	applied, err := pool.MigrationsApplied(context.Background())
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	for _, v := range applied {
		fmt.Printf("applied: %s\n", v)
	}
	return nil
}
