package sqlitememory

import (
	"context"
	"fmt"
)

// seq gives a total write order across threads, which Threads sorts by.
const createTableSQL = `CREATE TABLE IF NOT EXISTS checkpoints (
    seq        INTEGER PRIMARY KEY AUTOINCREMENT,
    id         TEXT NOT NULL UNIQUE,
    thread_id  TEXT NOT NULL,
    step       INTEGER NOT NULL,
    state      BLOB NOT NULL,
    created_at INTEGER NOT NULL,
    UNIQUE (thread_id, step)
)`

const createThreadIndexSQL = `CREATE INDEX IF NOT EXISTS idx_checkpoints_thread_seq
    ON checkpoints (thread_id, seq)`

// EnsureSchema creates the checkpoints table and index when missing.
func (s *Saver) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("sqlitememory: create table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, createThreadIndexSQL); err != nil {
		return fmt.Errorf("sqlitememory: create thread index: %w", err)
	}
	return nil
}
