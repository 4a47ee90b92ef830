package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"kanban/internal/api"
	"kanban/internal/board"
	"kanban/internal/config"
	"kanban/internal/db"
	"kanban/internal/migrate"
	"kanban/internal/snapshot"
)

// Session bundles everything a command needs to work on the board: the
// remote client, the store and the snapshot backend chosen by config.
type Session struct {
	Config    *config.Config
	Client    *api.Client
	Store     *board.Store
	Snapshots snapshot.Store
	Actions   *Actions

	closers []func() error
}

// Open resolves the workspace config into a ready session. The board is not
// loaded; call Store.Load when the command needs remote state.
func Open(ctx context.Context, workspace string, cfg *config.Config) (*Session, error) {
	if cfg == nil {
		loaded, err := config.LoadOptional(workspace)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	client := api.New(cfg.API.BaseURL)
	client.BearerToken = cfg.API.Token
	if cfg.API.Timeout.Duration > 0 {
		client.HTTPClient.Timeout = cfg.API.Timeout.Duration
	}

	s := &Session{Config: cfg, Client: client}
	snaps, err := s.openSnapshots(ctx, workspace)
	if err != nil {
		return nil, err
	}
	s.Snapshots = snaps
	s.Store = board.NewStore(client, snaps)
	s.Store.SnapshotKey = cfg.Snapshot.Key
	if cfg.API.Timeout.Duration > 0 {
		s.Store.EffectTimeout = cfg.API.Timeout.Duration
	}
	s.Actions = &Actions{Remote: client, Store: s.Store}
	return s, nil
}

func (s *Session) openSnapshots(ctx context.Context, workspace string) (snapshot.Store, error) {
	switch s.Config.Snapshot.Backend {
	case config.BackendNone:
		return snapshot.Nop{}, nil
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: s.Config.Snapshot.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect redis %s: %w", s.Config.Snapshot.RedisAddr, err)
		}
		s.closers = append(s.closers, client.Close)
		return snapshot.NewRedis(client, s.Config.Snapshot.RedisTTL.Duration), nil
	default:
		conn, err := OpenDB(ctx, workspace)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, conn.Close)
		return snapshot.NewSQLite(conn), nil
	}
}

// OpenDB opens and migrates the workspace database.
func OpenDB(ctx context.Context, workspace string) (*sql.DB, error) {
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.MigrateContext(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate %s: %w", db.Path(workspace), err)
	}
	return conn, nil
}

// Journal returns the operation journal of the configured backend.
func (s *Session) Journal() snapshot.Journal {
	if j, ok := s.Snapshots.(snapshot.Journal); ok {
		return j
	}
	return snapshot.Nop{}
}

// Close waits up to timeout for pending remote updates, then releases the
// snapshot backend.
func (s *Session) Close(timeout time.Duration) error {
	if s.Store != nil {
		done := make(chan struct{})
		go func() {
			s.Store.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(timeout):
			log.WithField("timeout", timeout).Warn("remote updates still pending at exit")
		}
	}
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	return firstErr
}
