package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"kanban/internal/domain"
)

const defaultJournalLength = 200

// Redis keeps the snapshot under its key and a capped operation journal in a
// list next to it.
type Redis struct {
	Client        *redis.Client
	TTL           time.Duration
	JournalLength int64
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if client == nil {
		panic("snapshot.NewRedis: client is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Redis{Client: client, TTL: ttl, JournalLength: defaultJournalLength}
}

func journalKey(key string) string {
	return key + ":operations"
}

func (r *Redis) Save(ctx context.Context, e Entry) error {
	data, err := encode(e)
	if err != nil {
		return err
	}
	payload, err := sonic.MarshalString(e.Payload)
	if err != nil {
		return fmt.Errorf("encode operation: %w", err)
	}
	op, err := sonic.Marshal(domain.JournalEntry{
		TS:      e.SavedAt.UTC().Format(time.RFC3339Nano),
		Key:     e.Key,
		Type:    e.Operation,
		Payload: payload,
	})
	if err != nil {
		return fmt.Errorf("encode operation: %w", err)
	}
	length := r.JournalLength
	if length <= 0 {
		length = defaultJournalLength
	}
	pipe := r.Client.TxPipeline()
	pipe.Set(ctx, e.Key, data, r.TTL)
	pipe.LPush(ctx, journalKey(e.Key), op)
	pipe.LTrim(ctx, journalKey(e.Key), 0, length-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}
	return nil
}

func (r *Redis) Load(ctx context.Context, key string) (Entry, error) {
	data, err := r.Client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, err
	}
	return decode(data)
}

// Journal returns up to limit journal entries, newest first. Redis entries
// carry no id; an empty opType matches every operation.
func (r *Redis) Journal(ctx context.Context, key string, limit int, opType string) ([]domain.JournalEntry, error) {
	if limit <= 0 {
		limit = defaultJournalLimit
	}
	raw, err := r.Client.LRange(ctx, journalKey(key), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.JournalEntry, 0, limit)
	for _, item := range raw {
		var entry domain.JournalEntry
		if err := sonic.UnmarshalString(item, &entry); err != nil {
			return nil, fmt.Errorf("decode journal entry: %w", err)
		}
		if opType != "" && entry.Type != opType {
			continue
		}
		out = append(out, entry)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
