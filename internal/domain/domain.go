package domain

import "time"

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type Column struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	TaskIDs []string `json:"task_ids"`
}

type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

type Comment struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	Text      string    `json:"text"`
	AuthorID  string    `json:"author_id"`
	Timestamp time.Time `json:"timestamp" format:"date-time"`
}

// Tag is either a persisted tag (ID set) or a name-only tag that the server
// has not assigned an id to yet.
type Tag struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

func (t Tag) Persisted() bool { return t.ID != "" }

// Same reports whether two tags denote the same tag: by id when both are
// persisted, otherwise by name.
func (t Tag) Same(o Tag) bool {
	if t.Persisted() && o.Persisted() {
		return t.ID == o.ID
	}
	return t.Name == o.Name
}

type TimeTracking struct {
	IsTracking bool       `json:"is_tracking"`
	StartTime  *time.Time `json:"start_time,omitempty" format:"date-time"`
}

type Task struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Description  string       `json:"description,omitempty"`
	StartDate    *time.Time   `json:"start_date,omitempty" format:"date-time"`
	EndDate      *time.Time   `json:"end_date,omitempty" format:"date-time"`
	Status       string       `json:"status"`
	Priority     Priority     `json:"priority" enum:"low,medium,high"`
	Assignee     *string      `json:"assignee,omitempty"`
	Tags         []Tag        `json:"tags"`
	Comments     []Comment    `json:"comments"`
	TimeSpent    float64      `json:"time_spent"`
	TimeTracking TimeTracking `json:"time_tracking"`
}

// Board is the whole in-memory board: columns, their display order and tasks.
type Board struct {
	Columns     map[string]Column `json:"columns"`
	ColumnOrder []string          `json:"column_order"`
	Tasks       map[string]Task   `json:"tasks"`
	Users       []User            `json:"users"`
}

// NewBoard returns an empty board with allocated maps.
func NewBoard() Board {
	return Board{
		Columns:     map[string]Column{},
		ColumnOrder: []string{},
		Tasks:       map[string]Task{},
		Users:       []User{},
	}
}

// Clone returns a deep copy of b.
func (b Board) Clone() Board {
	out := Board{
		Columns:     make(map[string]Column, len(b.Columns)),
		ColumnOrder: append([]string{}, b.ColumnOrder...),
		Tasks:       make(map[string]Task, len(b.Tasks)),
		Users:       append([]User{}, b.Users...),
	}
	for id, c := range b.Columns {
		out.Columns[id] = c.Clone()
	}
	for id, t := range b.Tasks {
		out.Tasks[id] = t.Clone()
	}
	return out
}

func (c Column) Clone() Column {
	c.TaskIDs = append([]string{}, c.TaskIDs...)
	return c
}

func (t Task) Clone() Task {
	t.StartDate = cloneTime(t.StartDate)
	t.EndDate = cloneTime(t.EndDate)
	t.TimeTracking.StartTime = cloneTime(t.TimeTracking.StartTime)
	if t.Assignee != nil {
		a := *t.Assignee
		t.Assignee = &a
	}
	t.Tags = append([]Tag{}, t.Tags...)
	t.Comments = append([]Comment{}, t.Comments...)
	return t
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// ColumnOf returns the id of the first column (in display order) whose task
// list contains taskID.
func (b Board) ColumnOf(taskID string) (string, bool) {
	for _, id := range b.ColumnOrder {
		for _, tid := range b.Columns[id].TaskIDs {
			if tid == taskID {
				return id, true
			}
		}
	}
	for id, c := range b.Columns {
		for _, tid := range c.TaskIDs {
			if tid == taskID {
				return id, true
			}
		}
	}
	return "", false
}

// TimeTrackingUpdate is the time-tracking state mirrored to the remote API.
type TimeTrackingUpdate struct {
	IsTracking bool
	StartTime  *time.Time
	TimeSpent  *float64
}

// JournalEntry is one applied operation recorded in the local journal.
type JournalEntry struct {
	ID      int64  `json:"id"`
	TS      string `json:"ts" format:"date-time"`
	Key     string `json:"snapshot_key"`
	Type    string `json:"type"`
	Payload string `json:"payload_json"`
}
