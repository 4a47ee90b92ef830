package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"kanban/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// SnapshotRow is the stored form of a board snapshot.
type SnapshotRow struct {
	Key       string
	Operation string
	BoardJSON []byte
	SavedAt   string
}

// PutSnapshotTx upserts the snapshot row for row.Key inside tx.
func (r Repo) PutSnapshotTx(ctx context.Context, tx *sql.Tx, row SnapshotRow) error {
	if row.Key == "" {
		return errors.New("snapshot key is required")
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO snapshots(key,operation,board_json,saved_at) VALUES (?,?,?,?)
ON CONFLICT(key) DO UPDATE SET operation=excluded.operation, board_json=excluded.board_json, saved_at=excluded.saved_at`,
		row.Key, row.Operation, row.BoardJSON, row.SavedAt)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

func (r Repo) GetSnapshot(ctx context.Context, key string) (SnapshotRow, error) {
	var row SnapshotRow
	err := r.DB.QueryRowContext(ctx, `SELECT key,operation,board_json,saved_at FROM snapshots WHERE key=?`, key).
		Scan(&row.Key, &row.Operation, &row.BoardJSON, &row.SavedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return SnapshotRow{}, ErrNotFound
	}
	return row, err
}

// LatestOperations returns up to limit journal entries for key, newest first.
func (r Repo) LatestOperations(ctx context.Context, key string, limit int, opType string) ([]domain.JournalEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id,ts,snapshot_key,type,payload_json FROM operations WHERE snapshot_key=?`
	args := []any{key}
	if opType != "" {
		query += ` AND type=?`
		args = append(args, opType)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.JournalEntry
	for rows.Next() {
		var e domain.JournalEntry
		if err := rows.Scan(&e.ID, &e.TS, &e.Key, &e.Type, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// CountOperations returns the number of journal entries recorded for key.
func (r Repo) CountOperations(ctx context.Context, key string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM operations WHERE snapshot_key=?`, key).Scan(&n)
	return n, err
}
