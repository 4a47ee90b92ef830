package app

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"kanban/internal/board"
	"kanban/internal/config"
	"kanban/internal/db"
	"kanban/internal/domain"
	"kanban/internal/snapshot"
)

func TestOpenSQLiteSessionJournalsOperations(t *testing.T) {
	ws := t.TempDir()
	cfg := config.Default()
	cfg.API.BaseURL = "http://127.0.0.1:1/api"
	cfg.API.Token = "tok"
	ctx := context.Background()

	s, err := Open(ctx, ws, cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := s.Snapshots.(*snapshot.SQLite); !ok {
		t.Fatalf("expected sqlite snapshots, got %T", s.Snapshots)
	}
	if s.Client.BearerToken != "tok" || s.Client.BaseURL != cfg.API.BaseURL {
		t.Fatalf("client not configured: %+v", s.Client)
	}
	if _, err := os.Stat(db.Path(ws)); err != nil {
		t.Fatalf("database not created: %v", err)
	}

	cols := []domain.Column{{ID: "todo", Title: "To Do"}}
	if err := s.Store.Dispatch(ctx, board.ReplaceColumns{Columns: cols}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	entries, err := s.Journal().Journal(ctx, cfg.Snapshot.Key, 10, "")
	if err != nil || len(entries) != 1 || entries[0].Type != board.OpReplaceColumns {
		t.Fatalf("journal: %+v err=%v", entries, err)
	}
	saved, err := s.Snapshots.Load(ctx, cfg.Snapshot.Key)
	if err != nil || saved.Board.Columns["todo"].Title != "To Do" {
		t.Fatalf("snapshot: %+v err=%v", saved, err)
	}
	if err := s.Close(time.Second); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestOpenRedisAndNopSessions(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	cfg := config.Default()
	cfg.Snapshot.Backend = config.BackendRedis
	cfg.Snapshot.RedisAddr = mr.Addr()
	s, err := Open(ctx, t.TempDir(), cfg)
	if err != nil {
		t.Fatalf("open redis: %v", err)
	}
	if _, ok := s.Snapshots.(*snapshot.Redis); !ok {
		t.Fatalf("expected redis snapshots, got %T", s.Snapshots)
	}
	if err := s.Close(time.Second); err != nil {
		t.Fatalf("close: %v", err)
	}

	cfg.Snapshot.RedisAddr = "127.0.0.1:1"
	if _, err := Open(ctx, t.TempDir(), cfg); err == nil {
		t.Fatalf("expected an unreachable redis to fail")
	}

	cfg.Snapshot.Backend = config.BackendNone
	s, err = Open(ctx, t.TempDir(), cfg)
	if err != nil {
		t.Fatalf("open none: %v", err)
	}
	if _, ok := s.Journal().(snapshot.Nop); !ok {
		t.Fatalf("expected nop journal, got %T", s.Journal())
	}
	if err := s.Close(time.Second); err != nil {
		t.Fatalf("close: %v", err)
	}
}
