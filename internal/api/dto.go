package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"kanban/internal/board"
	"kanban/internal/domain"
)

// FlexID accepts ids sent either as JSON numbers or strings. Numeric ids are
// written back as numbers.
type FlexID string

func (id *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", string(data), err)
	}
	*id = FlexID(n.String())
	return nil
}

func (id FlexID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id FlexID) String() string { return string(id) }

func optionalID(id *FlexID) *string {
	if id == nil || *id == "" {
		return nil
	}
	s := string(*id)
	return &s
}

// WireTime reads the datetime shapes the board API produces: RFC 3339, naive
// ISO timestamps (taken as UTC), plain dates and epoch milliseconds.
type WireTime struct {
	time.Time
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func ParseWireTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

func (t *WireTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	if len(data) > 0 && data[0] != '"' {
		ms, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("invalid timestamp %s: %w", string(data), err)
		}
		t.Time = time.UnixMilli(int64(ms)).UTC()
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseWireTime(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

func (t WireTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

func wireTime(t *time.Time) *WireTime {
	if t == nil || t.IsZero() {
		return nil
	}
	return &WireTime{Time: *t}
}

func (t *WireTime) ptr() *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}

type ColumnDTO struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Position int      `json:"position"`
	TaskIDs  []FlexID `json:"task_ids"`
}

func (c ColumnDTO) Domain() domain.Column {
	ids := make([]string, 0, len(c.TaskIDs))
	for _, id := range c.TaskIDs {
		ids = append(ids, string(id))
	}
	return domain.Column{ID: c.ID, Title: c.Title, TaskIDs: ids}
}

// TagDTO is a tag as the API or older payloads send it: an object with id and
// name, or a bare name.
type TagDTO struct {
	ID   FlexID `json:"id,omitempty"`
	Name string `json:"name"`
}

func (t *TagDTO) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*t = TagDTO{Name: "Unknown"}
		return nil
	case len(data) > 0 && data[0] == '"':
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*t = TagDTO{Name: name}
		return nil
	}
	type plain TagDTO
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*t = TagDTO(p)
	return nil
}

func (t TagDTO) Domain() domain.Tag {
	return domain.Tag{ID: string(t.ID), Name: t.Name}
}

type UserDTO struct {
	ID     FlexID  `json:"id"`
	Name   string  `json:"name"`
	Avatar *string `json:"avatar,omitempty"`
}

func (u UserDTO) Domain() domain.User {
	out := domain.User{ID: string(u.ID), Name: u.Name}
	if u.Avatar != nil {
		out.Avatar = *u.Avatar
	}
	return out
}

type CommentDTO struct {
	ID        FlexID   `json:"id"`
	TaskID    FlexID   `json:"task_id"`
	Text      string   `json:"text"`
	AuthorID  FlexID   `json:"author_id"`
	Timestamp WireTime `json:"timestamp"`
}

func (c CommentDTO) Domain() domain.Comment {
	return domain.Comment{
		ID:        string(c.ID),
		TaskID:    string(c.TaskID),
		Text:      c.Text,
		AuthorID:  string(c.AuthorID),
		Timestamp: c.Timestamp.Time,
	}
}

type TaskDTO struct {
	ID                FlexID       `json:"id"`
	Title             string       `json:"title"`
	Description       *string      `json:"description"`
	StartDate         *WireTime    `json:"start_date"`
	EndDate           *WireTime    `json:"end_date"`
	Status            string       `json:"status"`
	Priority          string       `json:"priority"`
	AssigneeID        *FlexID      `json:"assignee_id"`
	TimeSpent         float64      `json:"time_spent"`
	IsTracking        bool         `json:"is_tracking"`
	TrackingStartTime *WireTime    `json:"tracking_start_time"`
	CreatedAt         *WireTime    `json:"created_at,omitempty"`
	UpdatedAt         *WireTime    `json:"updated_at,omitempty"`
	Comments          []CommentDTO `json:"comments"`
	Tags              []TagDTO     `json:"tags"`
}

// Domain maps the server task onto the board model. Tracking state is only
// kept when both halves agree.
func (t TaskDTO) Domain() domain.Task {
	out := domain.Task{
		ID:        string(t.ID),
		Title:     t.Title,
		StartDate: t.StartDate.ptr(),
		EndDate:   t.EndDate.ptr(),
		Status:    t.Status,
		Priority:  domain.Priority(t.Priority),
		Assignee:  optionalID(t.AssigneeID),
		Tags:      make([]domain.Tag, 0, len(t.Tags)),
		Comments:  make([]domain.Comment, 0, len(t.Comments)),
		TimeSpent: t.TimeSpent,
	}
	if t.Description != nil {
		out.Description = *t.Description
	}
	if !out.Priority.Valid() {
		out.Priority = domain.PriorityMedium
	}
	if out.TimeSpent < 0 {
		out.TimeSpent = 0
	}
	if start := t.TrackingStartTime.ptr(); t.IsTracking && start != nil {
		out.TimeTracking = domain.TimeTracking{IsTracking: true, StartTime: start}
	}
	for _, tag := range t.Tags {
		out.Tags = append(out.Tags, tag.Domain())
	}
	for _, c := range t.Comments {
		out.Comments = append(out.Comments, c.Domain())
	}
	return out
}

// TaskInput is the body for creating a task.
type TaskInput struct {
	Title       string    `json:"title"`
	Description *string   `json:"description,omitempty"`
	StartDate   *WireTime `json:"start_date,omitempty"`
	EndDate     *WireTime `json:"end_date,omitempty"`
	Status      string    `json:"status"`
	Priority    string    `json:"priority,omitempty"`
	AssigneeID  *FlexID   `json:"assignee_id,omitempty"`
}

// NewTaskInput builds a create body from a draft task.
func NewTaskInput(t domain.Task) TaskInput {
	in := TaskInput{
		Title:     t.Title,
		StartDate: wireTime(t.StartDate),
		EndDate:   wireTime(t.EndDate),
		Status:    t.Status,
		Priority:  string(t.Priority),
	}
	if t.Description != "" {
		d := t.Description
		in.Description = &d
	}
	if t.Assignee != nil && *t.Assignee != "" {
		id := FlexID(*t.Assignee)
		in.AssigneeID = &id
	}
	return in
}

// PatchFields renders the set fields of a board patch as a partial update
// body; cleared values are sent as explicit nulls.
func PatchFields(p board.TaskPatch) map[string]any {
	out := map[string]any{}
	if p.Title.Set {
		out["title"] = p.Title.Value
	}
	if p.Description.Set {
		out["description"] = p.Description.Value
	}
	if p.StartDate.Set {
		out["start_date"] = wireTime(p.StartDate.Value)
	}
	if p.EndDate.Set {
		out["end_date"] = wireTime(p.EndDate.Value)
	}
	if p.Status.Set {
		out["status"] = p.Status.Value
	}
	if p.Priority.Set {
		out["priority"] = string(p.Priority.Value)
	}
	if p.Assignee.Set {
		if p.Assignee.Value == nil {
			out["assignee_id"] = nil
		} else {
			out["assignee_id"] = FlexID(*p.Assignee.Value)
		}
	}
	return out
}

type TimeTrackingRequest struct {
	IsTracking        bool      `json:"is_tracking"`
	TrackingStartTime *WireTime `json:"tracking_start_time"`
	TimeSpent         *float64  `json:"time_spent,omitempty"`
}

type CommentInput struct {
	Text     string `json:"text"`
	TaskID   FlexID `json:"task_id"`
	AuthorID FlexID `json:"author_id"`
}

type TagInput struct {
	Name string `json:"name"`
}

type ColumnInput struct {
	ID       string `json:"id,omitempty"`
	Title    string `json:"title,omitempty"`
	Position *int   `json:"position,omitempty"`
}
