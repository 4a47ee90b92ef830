package board

import (
	"encoding/json"
	"time"

	"kanban/internal/domain"
)

// Operation names as they travel over the wire.
const (
	OpReplaceColumns    = "SET_COLUMNS"
	OpReplaceTasks      = "SET_TASKS"
	OpReplaceUsers      = "SET_USERS"
	OpAddTask           = "ADD_TASK"
	OpUpdateTask        = "UPDATE_TASK"
	OpDeleteTask        = "DELETE_TASK"
	OpMoveTask          = "MOVE_TASK"
	OpAddComment        = "ADD_COMMENT"
	OpStartTimeTracking = "START_TIME_TRACKING"
	OpStopTimeTracking  = "STOP_TIME_TRACKING"
	OpAddTag            = "ADD_TAG"
	OpRemoveTag         = "REMOVE_TAG"
)

// Operation is one named transition over the board. The set is closed: only
// the types in this package implement it.
type Operation interface {
	Name() string
	apply(b *domain.Board, env env) error
}

type env struct {
	now   time.Time
	newID func() string
}

type ReplaceColumns struct {
	Columns []domain.Column `json:"columns"`
}

type ReplaceTasks struct {
	Tasks []domain.Task `json:"tasks"`
}

type ReplaceUsers struct {
	Users []domain.User `json:"users"`
}

type AddTask struct {
	Task domain.Task `json:"task"`
}

type UpdateTask struct {
	Patch TaskPatch `json:"patch"`
}

type DeleteTask struct {
	ID string `json:"id"`
}

// Location addresses a slot in a column's task list.
type Location struct {
	ColumnID string `json:"column_id"`
	Index    int    `json:"index"`
}

type MoveTask struct {
	TaskID      string    `json:"task_id"`
	Source      Location  `json:"source"`
	Destination *Location `json:"destination,omitempty"`
}

type AddComment struct {
	TaskID    string    `json:"task_id"`
	ID        string    `json:"id,omitempty"`
	Text      string    `json:"text"`
	AuthorID  string    `json:"author_id"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

type StartTimeTracking struct {
	TaskID string `json:"task_id"`
}

type StopTimeTracking struct {
	TaskID string `json:"task_id"`
}

type AddTag struct {
	TaskID string     `json:"task_id"`
	Tag    domain.Tag `json:"tag"`
}

type RemoveTag struct {
	TaskID string     `json:"task_id"`
	Tag    domain.Tag `json:"tag"`
}

// Unknown carries an operation name nobody recognizes. Applying it leaves the
// board untouched.
type Unknown struct {
	Type string `json:"type"`
}

func (ReplaceColumns) Name() string    { return OpReplaceColumns }
func (ReplaceTasks) Name() string      { return OpReplaceTasks }
func (ReplaceUsers) Name() string      { return OpReplaceUsers }
func (AddTask) Name() string           { return OpAddTask }
func (UpdateTask) Name() string        { return OpUpdateTask }
func (DeleteTask) Name() string        { return OpDeleteTask }
func (MoveTask) Name() string          { return OpMoveTask }
func (AddComment) Name() string        { return OpAddComment }
func (StartTimeTracking) Name() string { return OpStartTimeTracking }
func (StopTimeTracking) Name() string  { return OpStopTimeTracking }
func (AddTag) Name() string            { return OpAddTag }
func (RemoveTag) Name() string         { return OpRemoveTag }
func (u Unknown) Name() string         { return u.Type }

// Field is an optional patch value. Set distinguishes an absent key from an
// explicit zero or null.
type Field[T any] struct {
	Set   bool
	Value T
}

// Value wraps v as a set field.
func Value[T any](v T) Field[T] {
	return Field[T]{Set: true, Value: v}
}

func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Set = true
	if string(data) == "null" {
		var zero T
		f.Value = zero
		return nil
	}
	return json.Unmarshal(data, &f.Value)
}

func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.Set {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// TaskPatch lists the task fields UpdateTask may change. Time tracking and
// comments have their own operations.
type TaskPatch struct {
	ID          string                 `json:"id"`
	Title       Field[string]          `json:"title"`
	Description Field[string]          `json:"description"`
	StartDate   Field[*time.Time]      `json:"start_date"`
	EndDate     Field[*time.Time]      `json:"end_date"`
	Status      Field[string]          `json:"status"`
	Priority    Field[domain.Priority] `json:"priority"`
	Assignee    Field[*string]         `json:"assignee"`
	Tags        Field[[]domain.Tag]    `json:"tags"`
}

// MarshalJSON writes only the fields that are set, so an encoded patch decodes
// back to the same patch.
func (p TaskPatch) MarshalJSON() ([]byte, error) {
	out := map[string]any{"id": p.ID}
	put := func(key string, set bool, v any) {
		if set {
			out[key] = v
		}
	}
	put("title", p.Title.Set, p.Title.Value)
	put("description", p.Description.Set, p.Description.Value)
	put("start_date", p.StartDate.Set, p.StartDate.Value)
	put("end_date", p.EndDate.Set, p.EndDate.Value)
	put("status", p.Status.Set, p.Status.Value)
	put("priority", p.Priority.Set, p.Priority.Value)
	put("assignee", p.Assignee.Set, p.Assignee.Value)
	put("tags", p.Tags.Set, p.Tags.Value)
	return json.Marshal(out)
}
