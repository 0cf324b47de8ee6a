package pgmemory

import (
	"context"
	"fmt"
)

const createTableSQL = `CREATE TABLE IF NOT EXISTS %s (
    seq        BIGSERIAL PRIMARY KEY,
    id         UUID NOT NULL UNIQUE,
    thread_id  TEXT NOT NULL,
    step       INTEGER NOT NULL,
    state      JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (thread_id, step)
)`

const createThreadIndexSQL = `CREATE INDEX IF NOT EXISTS idx_%s_thread_seq
    ON %s (thread_id, seq)`

// EnsureSchema creates the table and index when missing. Production
// deployments should manage the schema with their migration tooling instead.
func (s *Saver) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, fmt.Sprintf(createTableSQL, s.tableName)); err != nil {
		return fmt.Errorf("pgmemory: create table: %w", err)
	}
	if _, err := s.db.Exec(ctx, fmt.Sprintf(createThreadIndexSQL, s.indexPrefix, s.tableName)); err != nil {
		return fmt.Errorf("pgmemory: create thread index: %w", err)
	}
	return nil
}
