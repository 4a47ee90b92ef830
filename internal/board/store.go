package board

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"kanban/internal/domain"
	"kanban/internal/metrics"
	"kanban/internal/snapshot"
)

// ErrBoardFailed is returned by Dispatch once the initial load has failed.
var ErrBoardFailed = errors.New("board failed to load")

const defaultEffectTimeout = 10 * time.Second

// Remote is the slice of the board API the store reads from at startup and
// mirrors local changes to.
type Remote interface {
	Columns(ctx context.Context) ([]domain.Column, error)
	Tasks(ctx context.Context) ([]domain.Task, error)
	CommentsByTask(ctx context.Context, taskID string) ([]domain.Comment, error)
	Users(ctx context.Context) ([]domain.User, error)
	UpdateTaskStatus(ctx context.Context, taskID, status string) error
	UpdateTimeTracking(ctx context.Context, taskID string, u domain.TimeTrackingUpdate) error
}

// Store owns the board. Operations are applied one at a time under a mutex;
// remote calls they trigger run in the background and are never awaited.
type Store struct {
	Remote        Remote
	Snapshots     snapshot.Store
	SnapshotKey   string
	Now           func() time.Time
	NewID         func() string
	EffectTimeout time.Duration

	mu          sync.Mutex
	board       domain.Board
	loading     bool
	initialized bool
	err         error
	subs        map[int]chan domain.Board
	nextSub     int
	effects     sync.WaitGroup
}

func NewStore(remote Remote, snaps snapshot.Store) *Store {
	if snaps == nil {
		snaps = snapshot.Nop{}
	}
	return &Store{
		Remote:      remote,
		Snapshots:   snaps,
		SnapshotKey: snapshot.DefaultKey,
		Now:         time.Now,
		NewID:       uuid.NewString,
		board:       domain.NewBoard(),
		subs:        map[int]chan domain.Board{},
	}
}

func (s *Store) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Store) env() env {
	newID := s.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return env{now: s.now(), newID: newID}
}

// State returns a copy of the current board.
func (s *Store) State() domain.Board {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.Clone()
}

// Directory returns a read-only user lookup over the current users.
func (s *Store) Directory() Directory {
	s.mu.Lock()
	defer s.mu.Unlock()
	return NewDirectory(s.board.Users)
}

func (s *Store) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the terminal load error, if any.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Dispatch applies op to the board. Operations that change the board are
// snapshotted, published to subscribers and, where they have a server-side
// counterpart, mirrored to the remote in the background.
func (s *Store) Dispatch(ctx context.Context, op Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return fmt.Errorf("%w: %v", ErrBoardFailed, s.err)
	}
	return s.dispatchLocked(ctx, op)
}

func (s *Store) dispatchLocked(ctx context.Context, op Operation) error {
	if op == nil {
		return nil
	}
	e := s.env()
	before := s.board
	next, changed, err := reduce(before, op, e)
	if err != nil {
		metrics.OperationsRejected.WithLabelValues(op.Name()).Inc()
		return err
	}
	if !changed {
		return nil
	}
	s.board = next
	metrics.OperationsApplied.WithLabelValues(op.Name()).Inc()
	s.persist(ctx, op, e.now)
	s.publish()
	s.mirror(op, before, next)
	return nil
}

func (s *Store) persist(ctx context.Context, op Operation, at time.Time) {
	if s.Snapshots == nil {
		return
	}
	key := s.SnapshotKey
	if key == "" {
		key = snapshot.DefaultKey
	}
	err := s.Snapshots.Save(ctx, snapshot.Entry{
		Key:       key,
		Operation: op.Name(),
		Payload:   op,
		Board:     s.board.Clone(),
		SavedAt:   at,
	})
	if err != nil {
		metrics.SnapshotFailures.Inc()
		log.WithError(err).WithField("operation", op.Name()).Error("failed to save board snapshot")
	}
}

// Subscribe registers for board updates. Slow readers only ever see the most
// recent board. The returned func unsubscribes.
func (s *Store) Subscribe() (<-chan domain.Board, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan domain.Board, 1)
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

func (s *Store) publish() {
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s.board.Clone()
	}
}

// Wait blocks until background remote calls issued so far have finished.
func (s *Store) Wait() {
	s.effects.Wait()
}

func (s *Store) mirror(op Operation, before, after domain.Board) {
	if s.Remote == nil {
		return
	}
	var (
		call string
		fn   func(ctx context.Context) error
	)
	switch o := op.(type) {
	case MoveTask:
		prev, ok := before.Tasks[o.TaskID]
		cur := after.Tasks[o.TaskID]
		if !ok || prev.Status == cur.Status {
			return
		}
		call = "update_task_status"
		fn = func(ctx context.Context) error {
			return s.Remote.UpdateTaskStatus(ctx, o.TaskID, cur.Status)
		}
	case StartTimeTracking:
		tt := after.Tasks[o.TaskID].TimeTracking
		call = "start_time_tracking"
		fn = func(ctx context.Context) error {
			return s.Remote.UpdateTimeTracking(ctx, o.TaskID, domain.TimeTrackingUpdate{
				IsTracking: true,
				StartTime:  tt.StartTime,
			})
		}
	case StopTimeTracking:
		spent := after.Tasks[o.TaskID].TimeSpent
		call = "stop_time_tracking"
		fn = func(ctx context.Context) error {
			return s.Remote.UpdateTimeTracking(ctx, o.TaskID, domain.TimeTrackingUpdate{
				IsTracking: false,
				TimeSpent:  &spent,
			})
		}
	default:
		return
	}
	timeout := s.EffectTimeout
	if timeout <= 0 {
		timeout = defaultEffectTimeout
	}
	s.effects.Add(1)
	go func() {
		defer s.effects.Done()
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			metrics.RemoteFailures.WithLabelValues(call).Inc()
			log.WithError(err).WithFields(log.Fields{"call": call, "operation": op.Name()}).Error("remote update failed; local board kept")
		}
	}()
}

// Load populates the board from the remote: columns, then tasks with their
// comments, then users. A failed comment fetch leaves that task with no
// comments; any other failure is terminal for the store.
func (s *Store) Load(ctx context.Context) error {
	if s.Remote == nil {
		return s.fail(errors.New("no remote configured"))
	}
	s.setLoading(true)
	defer s.setLoading(false)

	columns, err := s.Remote.Columns(ctx)
	if err != nil {
		return s.fail(fmt.Errorf("fetch columns: %w", err))
	}
	if err := s.Dispatch(ctx, ReplaceColumns{Columns: columns}); err != nil {
		return s.fail(err)
	}

	tasks, err := s.Remote.Tasks(ctx)
	if err != nil {
		return s.fail(fmt.Errorf("fetch tasks: %w", err))
	}
	for i := range tasks {
		comments, err := s.Remote.CommentsByTask(ctx, tasks[i].ID)
		if err != nil {
			log.WithError(err).WithField("task", tasks[i].ID).Warn("failed to fetch comments; continuing without them")
			tasks[i].Comments = []domain.Comment{}
			continue
		}
		tasks[i].Comments = comments
	}
	if err := s.Dispatch(ctx, ReplaceTasks{Tasks: tasks}); err != nil {
		return s.fail(err)
	}

	users, err := s.Remote.Users(ctx)
	if err != nil {
		return s.fail(fmt.Errorf("fetch users: %w", err))
	}
	if err := s.Dispatch(ctx, ReplaceUsers{Users: users}); err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()
	log.WithFields(log.Fields{"columns": len(columns), "tasks": len(tasks), "users": len(users)}).Info("board loaded")
	return nil
}

func (s *Store) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

func (s *Store) fail(err error) error {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	log.WithError(err).Error("failed to load board")
	return err
}
