package board

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"kanban/internal/domain"
)

var (
	ErrTaskNotFound   = errors.New("task not found")
	ErrColumnNotFound = errors.New("column not found")
	ErrNotTracking    = errors.New("time tracking not started")
	ErrInvalidTask    = errors.New("invalid task")
)

// errUnchanged marks an operation that applied cleanly but left nothing to
// persist.
var errUnchanged = errors.New("unchanged")

// Reduce applies op to b and returns the resulting board. b itself is never
// modified; on error the returned board is b.
func Reduce(b domain.Board, op Operation, now time.Time) (domain.Board, error) {
	next, _, err := reduce(b, op, env{now: now, newID: uuid.NewString})
	return next, err
}

func reduce(b domain.Board, op Operation, e env) (domain.Board, bool, error) {
	if op == nil {
		return b, false, nil
	}
	next := b.Clone()
	if err := op.apply(&next, e); err != nil {
		if errors.Is(err, errUnchanged) {
			return b, false, nil
		}
		return b, false, err
	}
	return next, true, nil
}

func (op ReplaceColumns) apply(b *domain.Board, _ env) error {
	b.Columns = make(map[string]domain.Column, len(op.Columns))
	b.ColumnOrder = make([]string, 0, len(op.Columns))
	for _, c := range op.Columns {
		if _, dup := b.Columns[c.ID]; !dup {
			b.ColumnOrder = append(b.ColumnOrder, c.ID)
		}
		c = c.Clone()
		b.Columns[c.ID] = c
	}
	return nil
}

func (op ReplaceTasks) apply(b *domain.Board, _ env) error {
	b.Tasks = make(map[string]domain.Task, len(op.Tasks))
	for _, t := range op.Tasks {
		t = t.Clone()
		if t.Priority == "" {
			t.Priority = domain.PriorityMedium
		}
		b.Tasks[t.ID] = t
	}
	return nil
}

func (op ReplaceUsers) apply(b *domain.Board, _ env) error {
	b.Users = append([]domain.User{}, op.Users...)
	return nil
}

func (op AddTask) apply(b *domain.Board, _ env) error {
	t := op.Task.Clone()
	if t.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidTask)
	}
	if _, exists := b.Tasks[t.ID]; exists {
		return fmt.Errorf("%w: task %q already exists", ErrInvalidTask, t.ID)
	}
	if colID, listed := b.ColumnOf(t.ID); listed {
		return fmt.Errorf("%w: task %q already listed in %q", ErrInvalidTask, t.ID, colID)
	}
	col, ok := b.Columns[t.Status]
	if !ok {
		return fmt.Errorf("%w: %q", ErrColumnNotFound, t.Status)
	}
	if t.Priority == "" {
		t.Priority = domain.PriorityMedium
	}
	if t.TimeTracking.StartTime == nil {
		t.TimeTracking.IsTracking = false
	}
	b.Tasks[t.ID] = t
	col.TaskIDs = append(col.TaskIDs, t.ID)
	b.Columns[col.ID] = col
	return nil
}

func (op UpdateTask) apply(b *domain.Board, _ env) error {
	p := op.Patch
	cur, ok := b.Tasks[p.ID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrTaskNotFound, p.ID)
	}
	if p.Status.Set && p.Status.Value == "" {
		return fmt.Errorf("%w: status must not be empty", ErrInvalidTask)
	}
	if p.Priority.Set && !p.Priority.Value.Valid() {
		return fmt.Errorf("%w: unknown priority %q", ErrInvalidTask, p.Priority.Value)
	}
	oldStatus := cur.Status
	if p.Title.Set {
		cur.Title = p.Title.Value
	}
	if p.Description.Set {
		cur.Description = p.Description.Value
	}
	if p.StartDate.Set {
		cur.StartDate = p.StartDate.Value
	}
	if p.EndDate.Set {
		cur.EndDate = p.EndDate.Value
	}
	if p.Priority.Set {
		cur.Priority = p.Priority.Value
	}
	if p.Assignee.Set {
		cur.Assignee = p.Assignee.Value
	}
	if p.Tags.Set {
		cur.Tags = append([]domain.Tag{}, p.Tags.Value...)
	}
	if p.Status.Set {
		cur.Status = p.Status.Value
	}
	b.Tasks[cur.ID] = cur.Clone()

	newStatus := cur.Status
	if oldStatus == newStatus || oldStatus == "" {
		return nil
	}
	oldCol, oldOK := b.Columns[oldStatus]
	newCol, newOK := b.Columns[newStatus]
	if !oldOK || !newOK {
		// Membership is left as it was; the task and its column now disagree.
		log.WithFields(log.Fields{"task": cur.ID, "from": oldStatus, "to": newStatus}).
			Warn("status change references a missing column; column membership not updated")
		return nil
	}
	oldCol.TaskIDs = without(oldCol.TaskIDs, cur.ID)
	b.Columns[oldStatus] = oldCol
	if !contains(newCol.TaskIDs, cur.ID) {
		newCol.TaskIDs = append(newCol.TaskIDs, cur.ID)
	}
	b.Columns[newStatus] = newCol
	return nil
}

func (op DeleteTask) apply(b *domain.Board, _ env) error {
	_, known := b.Tasks[op.ID]
	delete(b.Tasks, op.ID)
	colID, listed := b.ColumnOf(op.ID)
	if listed {
		col := b.Columns[colID]
		col.TaskIDs = without(col.TaskIDs, op.ID)
		b.Columns[colID] = col
	}
	if !known && !listed {
		return errUnchanged
	}
	return nil
}

func (op MoveTask) apply(b *domain.Board, _ env) error {
	dst := op.Destination
	if dst == nil || (dst.ColumnID == op.Source.ColumnID && dst.Index == op.Source.Index) {
		return errUnchanged
	}
	fields := log.Fields{"task": op.TaskID, "source": op.Source.ColumnID, "destination": dst.ColumnID}
	src, ok := b.Columns[op.Source.ColumnID]
	if !ok {
		log.WithFields(fields).Error("move: source column not found")
		return errUnchanged
	}
	from, ok := sourceIndex(src.TaskIDs, op.Source.Index, op.TaskID)
	if !ok {
		log.WithFields(fields).WithField("index", op.Source.Index).Error("move: task not at source position")
		return errUnchanged
	}

	if dst.ColumnID == op.Source.ColumnID {
		ids := insertAt(removeAt(src.TaskIDs, from), dst.Index, op.TaskID)
		if slices.Equal(ids, src.TaskIDs) {
			return errUnchanged
		}
		src.TaskIDs = ids
		b.Columns[src.ID] = src
		return nil
	}

	to, ok := b.Columns[dst.ColumnID]
	if !ok {
		log.WithFields(fields).Error("move: destination column not found")
		return errUnchanged
	}
	t, ok := b.Tasks[op.TaskID]
	if !ok {
		log.WithFields(fields).Error("move: task not found")
		return errUnchanged
	}
	src.TaskIDs = removeAt(src.TaskIDs, from)
	to.TaskIDs = insertAt(without(to.TaskIDs, op.TaskID), dst.Index, op.TaskID)
	b.Columns[src.ID] = src
	b.Columns[to.ID] = to
	t.Status = to.ID
	b.Tasks[t.ID] = t
	return nil
}

func (op AddComment) apply(b *domain.Board, e env) error {
	t, ok := b.Tasks[op.TaskID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrTaskNotFound, op.TaskID)
	}
	c := domain.Comment{
		ID:        op.ID,
		TaskID:    op.TaskID,
		Text:      op.Text,
		AuthorID:  op.AuthorID,
		Timestamp: op.Timestamp,
	}
	if c.ID == "" {
		c.ID = e.newID()
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = e.now.UTC()
	}
	t.Comments = append(t.Comments, c)
	b.Tasks[t.ID] = t
	return nil
}

// StartTimeTracking does not guard against an already running session; a
// second start moves StartTime forward.
func (op StartTimeTracking) apply(b *domain.Board, e env) error {
	t, ok := b.Tasks[op.TaskID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrTaskNotFound, op.TaskID)
	}
	start := e.now
	t.TimeTracking = domain.TimeTracking{IsTracking: true, StartTime: &start}
	b.Tasks[t.ID] = t
	return nil
}

func (op StopTimeTracking) apply(b *domain.Board, e env) error {
	t, ok := b.Tasks[op.TaskID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrTaskNotFound, op.TaskID)
	}
	if !t.TimeTracking.IsTracking || t.TimeTracking.StartTime == nil {
		return fmt.Errorf("%w: task %q", ErrNotTracking, op.TaskID)
	}
	elapsed := e.now.Sub(*t.TimeTracking.StartTime).Seconds()
	if elapsed > 0 {
		t.TimeSpent += elapsed
	}
	t.TimeTracking = domain.TimeTracking{}
	b.Tasks[t.ID] = t
	return nil
}

func (op AddTag) apply(b *domain.Board, _ env) error {
	t, ok := b.Tasks[op.TaskID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrTaskNotFound, op.TaskID)
	}
	for _, existing := range t.Tags {
		if existing.Same(op.Tag) {
			return errUnchanged
		}
	}
	t.Tags = append(t.Tags, op.Tag)
	b.Tasks[t.ID] = t
	return nil
}

func (op RemoveTag) apply(b *domain.Board, _ env) error {
	t, ok := b.Tasks[op.TaskID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrTaskNotFound, op.TaskID)
	}
	kept := make([]domain.Tag, 0, len(t.Tags))
	for _, existing := range t.Tags {
		if !existing.Same(op.Tag) {
			kept = append(kept, existing)
		}
	}
	if len(kept) == len(t.Tags) {
		return errUnchanged
	}
	t.Tags = kept
	b.Tasks[t.ID] = t
	return nil
}

func (Unknown) apply(*domain.Board, env) error {
	return errUnchanged
}

// sourceIndex trusts the reported index when it points at taskID and falls
// back to a scan otherwise.
func sourceIndex(ids []string, index int, taskID string) (int, bool) {
	if index >= 0 && index < len(ids) && ids[index] == taskID {
		return index, true
	}
	for i, id := range ids {
		if id == taskID {
			return i, true
		}
	}
	return 0, false
}

func removeAt(ids []string, i int) []string {
	out := make([]string, 0, len(ids))
	out = append(out, ids[:i]...)
	return append(out, ids[i+1:]...)
}

// insertAt clamps i into [0, len(ids)].
func insertAt(ids []string, i int, id string) []string {
	if i < 0 {
		i = 0
	}
	if i > len(ids) {
		i = len(ids)
	}
	out := make([]string, 0, len(ids)+1)
	out = append(out, ids[:i]...)
	out = append(out, id)
	return append(out, ids[i:]...)
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
