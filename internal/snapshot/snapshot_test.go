package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"kanban/internal/db"
	"kanban/internal/domain"
	"kanban/internal/migrate"
)

var savedAt = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func sampleEntry(op string, payload any) Entry {
	b := domain.NewBoard()
	b.ColumnOrder = []string{"todo"}
	b.Columns["todo"] = domain.Column{ID: "todo", Title: "To Do", TaskIDs: []string{"1"}}
	b.Tasks["1"] = domain.Task{ID: "1", Title: "one", Status: "todo", Priority: domain.PriorityHigh}
	return Entry{Key: DefaultKey, Operation: op, Payload: payload, Board: b, SavedAt: savedAt}
}

func openSQLite(t *testing.T) *SQLite {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.MigrateContext(context.Background(), conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewSQLite(conn)
}

func TestSQLiteSaveLoadJournal(t *testing.T) {
	s := openSQLite(t)
	s.Events.Now = func() time.Time { return savedAt }
	ctx := context.Background()

	if _, err := s.Load(ctx, DefaultKey); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Save(ctx, sampleEntry("MOVE_TASK", map[string]any{"task_id": "1"})); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Save(ctx, sampleEntry("ADD_TAG", map[string]any{"task_id": "1", "tag": map[string]any{"name": "ops"}})); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.Load(ctx, DefaultKey)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Operation != "ADD_TAG" || !got.SavedAt.Equal(savedAt) {
		t.Fatalf("unexpected entry %+v", got)
	}
	if got.Board.Tasks["1"].Priority != domain.PriorityHigh || got.Board.Columns["todo"].TaskIDs[0] != "1" {
		t.Fatalf("board not restored: %+v", got.Board)
	}

	all, err := s.Journal(ctx, DefaultKey, 0, "")
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	if len(all) != 2 || all[0].Type != "ADD_TAG" || all[1].Type != "MOVE_TASK" {
		t.Fatalf("unexpected journal %+v", all)
	}
	if all[1].Payload != `{"task_id":"1"}` || all[1].TS != savedAt.Format(time.RFC3339Nano) {
		t.Fatalf("unexpected journal entry %+v", all[1])
	}
	moves, err := s.Journal(ctx, DefaultKey, 5, "MOVE_TASK")
	if err != nil || len(moves) != 1 {
		t.Fatalf("filtered journal: %+v err=%v", moves, err)
	}
	n, err := s.Repo.CountOperations(ctx, DefaultKey)
	if err != nil || n != 2 {
		t.Fatalf("count: %d err=%v", n, err)
	}
}

func newRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedis(client, time.Hour), mr
}

func TestRedisSaveLoadJournal(t *testing.T) {
	r, mr := newRedis(t)
	r.JournalLength = 2
	ctx := context.Background()

	if _, err := r.Load(ctx, DefaultKey); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	for _, op := range []string{"ADD_TASK", "MOVE_TASK", "ADD_TAG"} {
		if err := r.Save(ctx, sampleEntry(op, map[string]any{"task_id": "1"})); err != nil {
			t.Fatalf("save %s: %v", op, err)
		}
	}
	if ttl := mr.TTL(DefaultKey); ttl != time.Hour {
		t.Fatalf("unexpected ttl %v", ttl)
	}
	got, err := r.Load(ctx, DefaultKey)
	if err != nil || got.Operation != "ADD_TAG" || got.Board.Tasks["1"].Title != "one" {
		t.Fatalf("load: %+v err=%v", got, err)
	}

	all, err := r.Journal(ctx, DefaultKey, 10, "")
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	if len(all) != 2 || all[0].Type != "ADD_TAG" || all[1].Type != "MOVE_TASK" {
		t.Fatalf("journal not capped newest first: %+v", all)
	}
	if all[0].Payload != `{"task_id":"1"}` || all[0].Key != DefaultKey {
		t.Fatalf("unexpected entry %+v", all[0])
	}
	tags, err := r.Journal(ctx, DefaultKey, 10, "ADD_TAG")
	if err != nil || len(tags) != 1 {
		t.Fatalf("filtered journal: %+v err=%v", tags, err)
	}
}

func TestNopStore(t *testing.T) {
	var n Nop
	ctx := context.Background()
	if err := n.Save(ctx, sampleEntry("ADD_TASK", nil)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := n.Load(ctx, DefaultKey); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	entries, err := n.Journal(ctx, DefaultKey, 5, "")
	if err != nil || len(entries) != 0 {
		t.Fatalf("journal: %v %v", entries, err)
	}
}
