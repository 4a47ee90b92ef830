package events

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
)

// Writer appends applied board operations to the local journal.
type Writer struct {
	Now func() time.Time
}

func (w Writer) Append(ctx context.Context, tx *sql.Tx, key, opType string, payload any) error {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	ts := now().UTC().Format(time.RFC3339Nano)
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := sonic.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal operation payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO operations(ts,snapshot_key,type,payload_json) VALUES (?,?,?,?)`,
		ts, key, opType, string(data))
	return err
}
