package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/skyroute/internal/infrastructure/config"
	"github.com/nerrad567/skyroute/internal/infrastructure/database"
	"github.com/nerrad567/skyroute/internal/journal"
	"github.com/nerrad567/skyroute/migrations"
)

// newJournalCmd groups maintenance commands for the delivery-failure journal.
func newJournalCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect and maintain the delivery-failure journal",
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withJournalDB(cmd.Context(), *configPath, func(db *database.DB) error {
				return printMigrationStatus(cmd.Context(), cmd.OutOrStdout(), db)
			})
		},
	}

	rollback := &cobra.Command{
		Use:   "rollback",
		Short: "Roll back the most recent schema migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withJournalDB(cmd.Context(), *configPath, func(db *database.DB) error {
				if err := db.MigrateDown(cmd.Context(), migrations.FS); err != nil {
					return fmt.Errorf("rolling back: %w", err)
				}
				return printMigrationStatus(cmd.Context(), cmd.OutOrStdout(), db)
			})
		},
	}

	var olderThan time.Duration
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete entries older than --older-than",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			cfg, err := loadJournalConfig(*configPath)
			if err != nil {
				return err
			}
			store, err := journal.Open(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck // Read-mostly command; close errors are not actionable

			removed, err := store.Prune(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return fmt.Errorf("pruning journal: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries\n", removed)
			return nil
		},
	}
	prune.Flags().DurationVar(&olderThan, "older-than", 7*24*time.Hour, "age of the oldest entry to keep")

	cmd.AddCommand(status, rollback, prune)
	return cmd
}

// loadJournalConfig reads the journal section of the configuration.
func loadJournalConfig(configPath string) (database.Config, error) {
	cfg, err := config.Load(getConfigPath(configPath))
	if err != nil {
		return database.Config{}, fmt.Errorf("loading config: %w", err)
	}
	return database.Config{
		Path:        cfg.Journal.Path,
		WALMode:     cfg.Journal.WALMode,
		BusyTimeout: cfg.Journal.BusyTimeout,
	}, nil
}

// withJournalDB opens the journal database without migrating it.
func withJournalDB(ctx context.Context, configPath string, fn func(*database.DB) error) error {
	cfg, err := loadJournalConfig(configPath)
	if err != nil {
		return err
	}
	db, err := database.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer db.Close() //nolint:errcheck // Maintenance command; close errors are not actionable
	return fn(db)
}

func printMigrationStatus(ctx context.Context, w io.Writer, db *database.DB) error {
	applied, pending, err := db.MigrationStatus(ctx, migrations.FS)
	if err != nil {
		return fmt.Errorf("reading migration status: %w", err)
	}

	fmt.Fprintf(w, "journal: %s\n", db.Path())
	for _, m := range applied {
		fmt.Fprintf(w, "  applied  %s  %s\n", m.Version, m.AppliedAt.UTC().Format(time.RFC3339))
	}
	for _, m := range pending {
		fmt.Fprintf(w, "  pending  %s  %s\n", m.Version, m.Name)
	}
	return nil
}
