package journal

import (
	"context"
	"fmt"

	"github.com/nerrad567/skyroute/internal/infrastructure/database"
	"github.com/nerrad567/skyroute/migrations"
)

// Store is a migrated journal database with its repository.
type Store struct {
	*SQLiteRepository
	db *database.DB
}

// Open opens (creating if needed) the journal database and applies the
// embedded migrations.
func Open(ctx context.Context, cfg database.Config) (*Store, error) {
	db, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("migrating journal: %w", err)
	}
	return &Store{SQLiteRepository: NewSQLiteRepository(db.DB), db: db}, nil
}

// HealthCheck verifies the journal database is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.HealthCheck(ctx)
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
