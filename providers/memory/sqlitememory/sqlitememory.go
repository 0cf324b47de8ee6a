package sqlitememory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/leofalp/aigoflow/internal/utils"
	"github.com/leofalp/aigoflow/providers/memory"
)

// Saver implements memory.Saver on a SQLite database.
type Saver struct {
	db  *sql.DB
	now func() time.Time
}

var _ memory.Saver = (*Saver)(nil)

// Open opens or creates the database at path and ensures the schema.
func Open(path string) (*Saver, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitememory: open %s: %w", path, err)
	}
	// One connection serializes writers and keeps ":memory:" databases from
	// splitting across pooled connections.
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		utils.CloseWithLog(db)
		return nil, fmt.Errorf("sqlitememory: configure %s: %w", path, err)
	}

	saver := New(db)
	if err := saver.EnsureSchema(ctx); err != nil {
		utils.CloseWithLog(db)
		return nil, err
	}
	return saver, nil
}

// New wraps an open database. Call EnsureSchema before first use.
func New(db *sql.DB) *Saver {
	return &Saver{db: db, now: time.Now}
}

func (s *Saver) Close() error {
	return s.db.Close()
}

func (s *Saver) Put(ctx context.Context, threadID string, state json.RawMessage) (*memory.Checkpoint, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlitememory: put begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	var step int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(step), 0) + 1 FROM checkpoints WHERE thread_id = ?`, threadID,
	).Scan(&step)
	if err != nil {
		return nil, fmt.Errorf("sqlitememory: next step: %w", err)
	}

	checkpoint := &memory.Checkpoint{
		ID:        uuid.NewString(),
		ThreadID:  threadID,
		Step:      step,
		State:     append(json.RawMessage(nil), state...),
		CreatedAt: s.now().UTC(),
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO checkpoints (id, thread_id, step, state, created_at) VALUES (?, ?, ?, ?, ?)`,
		checkpoint.ID, checkpoint.ThreadID, checkpoint.Step, []byte(checkpoint.State), checkpoint.CreatedAt.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlitememory: insert checkpoint: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlitememory: put commit: %w", err)
	}
	return checkpoint, nil
}

func (s *Saver) Latest(ctx context.Context, threadID string) (*memory.Checkpoint, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, thread_id, step, state, created_at FROM checkpoints
		WHERE thread_id = ? ORDER BY step DESC LIMIT 1`, threadID)

	checkpoint, err := scanCheckpoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: thread %q", memory.ErrNotFound, threadID)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlitememory: latest: %w", err)
	}
	return checkpoint, nil
}

func (s *Saver) List(ctx context.Context, threadID string) ([]memory.Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, thread_id, step, state, created_at FROM checkpoints
		WHERE thread_id = ? ORDER BY step ASC`, threadID)
	if err != nil {
		return nil, fmt.Errorf("sqlitememory: list: %w", err)
	}
	defer utils.CloseWithLog(rows)

	checkpoints := []memory.Checkpoint{}
	for rows.Next() {
		checkpoint, err := scanCheckpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlitememory: list scan: %w", err)
		}
		checkpoints = append(checkpoints, *checkpoint)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlitememory: list rows: %w", err)
	}
	return checkpoints, nil
}

func (s *Saver) Threads(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT thread_id FROM checkpoints GROUP BY thread_id ORDER BY MAX(seq) DESC`)
	if err != nil {
		return nil, fmt.Errorf("sqlitememory: threads: %w", err)
	}
	defer utils.CloseWithLog(rows)

	threads := []string{}
	for rows.Next() {
		var threadID string
		if err := rows.Scan(&threadID); err != nil {
			return nil, fmt.Errorf("sqlitememory: threads scan: %w", err)
		}
		threads = append(threads, threadID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlitememory: threads rows: %w", err)
	}
	return threads, nil
}

func (s *Saver) Delete(ctx context.Context, threadID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE thread_id = ?`, threadID); err != nil {
		return fmt.Errorf("sqlitememory: delete: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCheckpoint(row scanner) (*memory.Checkpoint, error) {
	var (
		checkpoint memory.Checkpoint
		state      []byte
		createdAt  int64
	)
	if err := row.Scan(&checkpoint.ID, &checkpoint.ThreadID, &checkpoint.Step, &state, &createdAt); err != nil {
		return nil, err
	}
	checkpoint.State = state
	checkpoint.CreatedAt = time.Unix(0, createdAt).UTC()
	return &checkpoint, nil
}
