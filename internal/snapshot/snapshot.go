// Package snapshot keeps a durable copy of the board after every applied
// operation. Nothing reads it back into a running store; it exists so the
// last known board can be inspected after a crash.
package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"

	"kanban/internal/domain"
	"kanban/internal/events"
	"kanban/internal/repo"
)

// DefaultKey is the fixed slot the board is written to.
const DefaultKey = "kanbanState"

var ErrNotFound = errors.New("snapshot not found")

type Entry struct {
	Key       string       `json:"key"`
	Operation string       `json:"operation"`
	Payload   any          `json:"-"`
	Board     domain.Board `json:"board"`
	SavedAt   time.Time    `json:"saved_at"`
}

type Store interface {
	Save(ctx context.Context, e Entry) error
	Load(ctx context.Context, key string) (Entry, error)
}

// Journal lists recorded operations, newest first.
type Journal interface {
	Journal(ctx context.Context, key string, limit int, opType string) ([]domain.JournalEntry, error)
}

const defaultJournalLimit = 20

// Nop discards snapshots.
type Nop struct{}

func (Nop) Save(context.Context, Entry) error { return nil }

func (Nop) Load(context.Context, string) (Entry, error) { return Entry{}, ErrNotFound }

func (Nop) Journal(context.Context, string, int, string) ([]domain.JournalEntry, error) {
	return []domain.JournalEntry{}, nil
}

// SQLite stores the snapshot and journals the operation in the same
// transaction.
type SQLite struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
}

func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{DB: db, Repo: repo.Repo{DB: db}}
}

func (s *SQLite) Save(ctx context.Context, e Entry) error {
	data, err := encode(e)
	if err != nil {
		return err
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := s.Repo.PutSnapshotTx(ctx, tx, repo.SnapshotRow{
		Key:       e.Key,
		Operation: e.Operation,
		BoardJSON: data,
		SavedAt:   e.SavedAt.UTC().Format(time.RFC3339Nano),
	}); err != nil {
		return err
	}
	if err := s.Events.Append(ctx, tx, e.Key, e.Operation, e.Payload); err != nil {
		return fmt.Errorf("journal operation: %w", err)
	}
	return tx.Commit()
}

func (s *SQLite) Load(ctx context.Context, key string) (Entry, error) {
	row, err := s.Repo.GetSnapshot(ctx, key)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, err
	}
	return decode(row.BoardJSON)
}

func (s *SQLite) Journal(ctx context.Context, key string, limit int, opType string) ([]domain.JournalEntry, error) {
	if limit <= 0 {
		limit = defaultJournalLimit
	}
	return s.Repo.LatestOperations(ctx, key, limit, opType)
}

func encode(e Entry) ([]byte, error) {
	data, err := sonic.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

func decode(data []byte) (Entry, error) {
	var e Entry
	if err := sonic.Unmarshal(data, &e); err != nil {
		return Entry{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if e.Board.Columns == nil {
		e.Board = domain.NewBoard()
	}
	return e, nil
}
