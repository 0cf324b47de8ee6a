package pgmemory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/leofalp/aigoflow/providers/memory"
)

const defaultTableName = "aigoflow_checkpoints"

// Querier is the subset of pgx used here. *pgxpool.Pool, *pgx.Conn and
// pgx.Tx all satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Saver implements memory.Saver on PostgreSQL.
type Saver struct {
	db          Querier
	tableName   string
	indexPrefix string
	now         func() time.Time
}

var _ memory.Saver = (*Saver)(nil)

type Option func(*Saver)

// WithTableName overrides the table name. The name is quoted with
// pgx.Identifier because it is interpolated into the SQL text.
func WithTableName(name string) Option {
	return func(s *Saver) {
		s.tableName = pgx.Identifier{name}.Sanitize()
		s.indexPrefix = strings.Trim(s.tableName, `"`)
	}
}

func New(db Querier, opts ...Option) *Saver {
	saver := &Saver{
		db:          db,
		tableName:   defaultTableName,
		indexPrefix: defaultTableName,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(saver)
	}
	return saver
}

// Put computes the next step inside the INSERT. Two concurrent writers on
// one thread make the second insert fail on the (thread_id, step) constraint
// rather than silently sharing a step.
func (s *Saver) Put(ctx context.Context, threadID string, state json.RawMessage) (*memory.Checkpoint, error) {
	checkpoint := &memory.Checkpoint{
		ID:        uuid.NewString(),
		ThreadID:  threadID,
		State:     append(json.RawMessage(nil), state...),
		CreatedAt: s.now().UTC(),
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, thread_id, step, state, created_at)
		SELECT $1, $2, COALESCE(MAX(step), 0) + 1, $3, $4 FROM %s WHERE thread_id = $2
		RETURNING step`, s.tableName, s.tableName)

	err := s.db.QueryRow(ctx, query, checkpoint.ID, threadID, []byte(checkpoint.State), checkpoint.CreatedAt).Scan(&checkpoint.Step)
	if err != nil {
		return nil, fmt.Errorf("pgmemory: put: %w", err)
	}
	return checkpoint, nil
}

func (s *Saver) Latest(ctx context.Context, threadID string) (*memory.Checkpoint, error) {
	query := fmt.Sprintf(`SELECT id::text, thread_id, step, state, created_at
		FROM %s WHERE thread_id = $1 ORDER BY step DESC LIMIT 1`, s.tableName)

	checkpoint, err := scanCheckpoint(s.db.QueryRow(ctx, query, threadID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: thread %q", memory.ErrNotFound, threadID)
	}
	if err != nil {
		return nil, fmt.Errorf("pgmemory: latest: %w", err)
	}
	return checkpoint, nil
}

func (s *Saver) List(ctx context.Context, threadID string) ([]memory.Checkpoint, error) {
	query := fmt.Sprintf(`SELECT id::text, thread_id, step, state, created_at
		FROM %s WHERE thread_id = $1 ORDER BY step ASC`, s.tableName)

	rows, err := s.db.Query(ctx, query, threadID)
	if err != nil {
		return nil, fmt.Errorf("pgmemory: list: %w", err)
	}
	defer rows.Close()

	checkpoints := []memory.Checkpoint{}
	for rows.Next() {
		checkpoint, err := scanCheckpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("pgmemory: list scan: %w", err)
		}
		checkpoints = append(checkpoints, *checkpoint)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgmemory: iterate rows: %w", err)
	}
	return checkpoints, nil
}

func (s *Saver) Threads(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(`SELECT thread_id FROM %s GROUP BY thread_id ORDER BY MAX(seq) DESC`, s.tableName)

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("pgmemory: threads: %w", err)
	}
	defer rows.Close()

	threads := []string{}
	for rows.Next() {
		var threadID string
		if err := rows.Scan(&threadID); err != nil {
			return nil, fmt.Errorf("pgmemory: threads scan: %w", err)
		}
		threads = append(threads, threadID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgmemory: iterate rows: %w", err)
	}
	return threads, nil
}

func (s *Saver) Delete(ctx context.Context, threadID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE thread_id = $1`, s.tableName)
	if _, err := s.db.Exec(ctx, query, threadID); err != nil {
		return fmt.Errorf("pgmemory: delete: %w", err)
	}
	return nil
}

func scanCheckpoint(row pgx.Row) (*memory.Checkpoint, error) {
	var (
		checkpoint memory.Checkpoint
		state      []byte
	)
	if err := row.Scan(&checkpoint.ID, &checkpoint.ThreadID, &checkpoint.Step, &state, &checkpoint.CreatedAt); err != nil {
		return nil, err
	}
	checkpoint.State = state
	checkpoint.CreatedAt = checkpoint.CreatedAt.UTC()
	return &checkpoint, nil
}
