package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"svckit/internal/log"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_table_events",
		SQL: `CREATE TABLE IF NOT EXISTS events (
  id          UUID        PRIMARY KEY,
  type        TEXT        NOT NULL,
  source      TEXT        NOT NULL,
  payload     JSONB,
  payload_ref TEXT,
  occurred_at TIMESTAMPTZ NOT NULL,
  created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_events_type",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_events_type ON events (type);`,
	},
	{
		Name: "create_index_events_occurred_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_events_occurred_at ON events (occurred_at);`,
	},
}

// EnsureMigrated checks whether the events table exists and applies the
// schema steps when it does not. Steps are idempotent, so a concurrent
// starter racing through them is harmless.
func EnsureMigrated(ctx context.Context, db *sql.DB) error {
	logger := log.WithComponent("database")
	start := time.Now()

	var exists bool
	if err := db.QueryRowContext(ctx, "SELECT to_regclass('public.events') IS NOT NULL").Scan(&exists); err != nil {
		return fmt.Errorf("check events table: %w", err)
	}
	if exists {
		logger.Debug().Msg("schema up to date")
		return nil
	}

	for _, step := range steps {
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			return fmt.Errorf("migration step %q: %w", step.Name, err)
		}
		logger.Info().Str("step", step.Name).Msg("migration step applied")
	}

	logger.Info().
		Dur("elapsed", time.Since(start)).
		Int("steps", len(steps)).
		Msg("schema migrated")
	return nil
}
