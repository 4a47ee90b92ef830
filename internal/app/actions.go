// Package app holds the board workflows that talk to the API first and then
// record the result in the local store.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"kanban/internal/api"
	"kanban/internal/board"
	"kanban/internal/domain"
)

var (
	ErrTitleRequired = errors.New("title is required")
	ErrEmptyComment  = errors.New("comment text is empty")
	ErrNoAuthor      = errors.New("no author available for comment")
	ErrColumnInUse   = errors.New("column still has tasks")
)

// Remote is the part of the API client the workflows write through.
type Remote interface {
	CreateTask(ctx context.Context, in api.TaskInput) (domain.Task, error)
	UpdateTask(ctx context.Context, id string, fields map[string]any) (domain.Task, error)
	DeleteTask(ctx context.Context, id string) error
	CreateTag(ctx context.Context, name string) (domain.Tag, error)
	AddTagToTask(ctx context.Context, taskID, tagID string) (domain.Task, error)
	RemoveTagFromTask(ctx context.Context, taskID, tagID string) (domain.Task, error)
	CreateComment(ctx context.Context, taskID, authorID, text string) (domain.Comment, error)
	Columns(ctx context.Context) ([]domain.Column, error)
	CreateColumn(ctx context.Context, in api.ColumnInput) (domain.Column, error)
	UpdateColumn(ctx context.Context, id string, in api.ColumnInput) (domain.Column, error)
	DeleteColumn(ctx context.Context, id string) error
}

type Actions struct {
	Remote Remote
	Store  *board.Store
}

// CreateTask creates the task remotely, creates and attaches its tags, then
// adds the result to the board. Nothing is added locally if any call fails.
func (a *Actions) CreateTask(ctx context.Context, draft domain.Task) (domain.Task, error) {
	draft.Title = strings.TrimSpace(draft.Title)
	if draft.Title == "" {
		return domain.Task{}, ErrTitleRequired
	}
	if draft.Priority == "" {
		draft.Priority = domain.PriorityMedium
	}
	created, err := a.Remote.CreateTask(ctx, api.NewTaskInput(draft))
	if err != nil {
		return domain.Task{}, fmt.Errorf("create task: %w", err)
	}
	tags := make([]domain.Tag, 0, len(draft.Tags))
	for _, tag := range draft.Tags {
		if !tag.Persisted() {
			if strings.TrimSpace(tag.Name) == "" {
				continue
			}
			tag, err = a.Remote.CreateTag(ctx, strings.TrimSpace(tag.Name))
			if err != nil {
				return domain.Task{}, fmt.Errorf("create tag: %w", err)
			}
		}
		if _, err := a.Remote.AddTagToTask(ctx, created.ID, tag.ID); err != nil {
			return domain.Task{}, fmt.Errorf("attach tag %s: %w", tag.Name, err)
		}
		tags = append(tags, tag)
	}

	task := draft.Clone()
	task.ID = created.ID
	task.Tags = tags
	task.Comments = []domain.Comment{}
	task.TimeSpent = 0
	task.TimeTracking = domain.TimeTracking{}
	if err := a.Store.Dispatch(ctx, board.AddTask{Task: task}); err != nil {
		return domain.Task{}, err
	}
	log.WithFields(log.Fields{"task": task.ID, "status": task.Status}).Info("task created")
	return task, nil
}

// SaveTask sends the patch to the API and applies it locally once accepted.
func (a *Actions) SaveTask(ctx context.Context, patch board.TaskPatch) error {
	if patch.Title.Set && strings.TrimSpace(patch.Title.Value) == "" {
		return ErrTitleRequired
	}
	if _, ok := a.Store.State().Tasks[patch.ID]; !ok {
		return fmt.Errorf("%w: %q", board.ErrTaskNotFound, patch.ID)
	}
	fields := api.PatchFields(patch)
	if patch.Tags.Set {
		ids := make([]api.FlexID, 0, len(patch.Tags.Value))
		for _, tag := range patch.Tags.Value {
			if tag.Persisted() {
				ids = append(ids, api.FlexID(tag.ID))
			}
		}
		fields["tag_ids"] = ids
	}
	if _, err := a.Remote.UpdateTask(ctx, patch.ID, fields); err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return a.Store.Dispatch(ctx, board.UpdateTask{Patch: patch})
}

func (a *Actions) RemoveTask(ctx context.Context, id string) error {
	if err := a.Remote.DeleteTask(ctx, id); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return a.Store.Dispatch(ctx, board.DeleteTask{ID: id})
}

// PostComment stores a comment remotely and appends it with the server's id
// and timestamp. Without an explicit author the task's assignee is used, then
// the first known user.
func (a *Actions) PostComment(ctx context.Context, taskID, authorID, text string) (domain.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Comment{}, ErrEmptyComment
	}
	state := a.Store.State()
	task, ok := state.Tasks[taskID]
	if !ok {
		return domain.Comment{}, fmt.Errorf("%w: %q", board.ErrTaskNotFound, taskID)
	}
	if authorID == "" {
		switch {
		case task.Assignee != nil && *task.Assignee != "":
			authorID = *task.Assignee
		case len(state.Users) > 0:
			authorID = state.Users[0].ID
		default:
			return domain.Comment{}, ErrNoAuthor
		}
	}
	created, err := a.Remote.CreateComment(ctx, taskID, authorID, text)
	if err != nil {
		return domain.Comment{}, fmt.Errorf("create comment: %w", err)
	}
	op := board.AddComment{
		TaskID:    taskID,
		ID:        created.ID,
		Text:      text,
		AuthorID:  authorID,
		Timestamp: created.Timestamp,
	}
	if err := a.Store.Dispatch(ctx, op); err != nil {
		return domain.Comment{}, err
	}
	comments := a.Store.State().Tasks[taskID].Comments
	return comments[len(comments)-1], nil
}

// AttachTag creates a tag by name and attaches it. A name the task already
// carries (compared case-insensitively) is left alone.
func (a *Actions) AttachTag(ctx context.Context, taskID, name string) (domain.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Tag{}, fmt.Errorf("tag name is empty")
	}
	task, ok := a.Store.State().Tasks[taskID]
	if !ok {
		return domain.Tag{}, fmt.Errorf("%w: %q", board.ErrTaskNotFound, taskID)
	}
	for _, tag := range task.Tags {
		if strings.EqualFold(tag.Name, name) {
			return tag, nil
		}
	}
	tag, err := a.Remote.CreateTag(ctx, name)
	if err != nil {
		return domain.Tag{}, fmt.Errorf("create tag: %w", err)
	}
	if _, err := a.Remote.AddTagToTask(ctx, taskID, tag.ID); err != nil {
		return domain.Tag{}, fmt.Errorf("attach tag: %w", err)
	}
	return tag, a.Store.Dispatch(ctx, board.AddTag{TaskID: taskID, Tag: tag})
}

// DetachTag removes a tag from the task. Unsaved tags only exist locally.
func (a *Actions) DetachTag(ctx context.Context, taskID string, tag domain.Tag) error {
	if tag.Persisted() {
		if _, err := a.Remote.RemoveTagFromTask(ctx, taskID, tag.ID); err != nil {
			return fmt.Errorf("detach tag: %w", err)
		}
	}
	return a.Store.Dispatch(ctx, board.RemoveTag{TaskID: taskID, Tag: tag})
}

// FindTag looks a tag up on a task by id or case-insensitive name.
func FindTag(task domain.Task, ref string) (domain.Tag, bool) {
	for _, tag := range task.Tags {
		if tag.ID != "" && tag.ID == ref {
			return tag, true
		}
	}
	for _, tag := range task.Tags {
		if strings.EqualFold(tag.Name, ref) {
			return tag, true
		}
	}
	return domain.Tag{}, false
}

// Move builds a drag-and-drop move from the task's current position. A
// negative index appends to the destination column.
func (a *Actions) Move(ctx context.Context, taskID, columnID string, index int) error {
	state := a.Store.State()
	from, ok := state.ColumnOf(taskID)
	if !ok {
		return fmt.Errorf("%w: %q is not on any column", board.ErrTaskNotFound, taskID)
	}
	dst, ok := state.Columns[columnID]
	if !ok {
		return fmt.Errorf("%w: %q", board.ErrColumnNotFound, columnID)
	}
	srcIndex := 0
	for i, id := range state.Columns[from].TaskIDs {
		if id == taskID {
			srcIndex = i
			break
		}
	}
	if index < 0 {
		index = len(dst.TaskIDs)
		if from == columnID {
			index = len(dst.TaskIDs) - 1
		}
	}
	return a.Store.Dispatch(ctx, board.MoveTask{
		TaskID:      taskID,
		Source:      board.Location{ColumnID: from, Index: srcIndex},
		Destination: &board.Location{ColumnID: columnID, Index: index},
	})
}

// AddColumn creates a column and reloads the column list from the API. A nil
// position lets the API place it.
func (a *Actions) AddColumn(ctx context.Context, id, title string, position *int) (domain.Column, error) {
	id, title = strings.TrimSpace(id), strings.TrimSpace(title)
	if id == "" || title == "" {
		return domain.Column{}, errors.New("column id and title are required")
	}
	if _, exists := a.Store.State().Columns[id]; exists {
		return domain.Column{}, fmt.Errorf("column %q already exists", id)
	}
	col, err := a.Remote.CreateColumn(ctx, api.ColumnInput{ID: id, Title: title, Position: position})
	if err != nil {
		return domain.Column{}, fmt.Errorf("create column: %w", err)
	}
	return col, a.refreshColumns(ctx)
}

func (a *Actions) RenameColumn(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return errors.New("column title is required")
	}
	if _, ok := a.Store.State().Columns[id]; !ok {
		return fmt.Errorf("%w: %q", board.ErrColumnNotFound, id)
	}
	if _, err := a.Remote.UpdateColumn(ctx, id, api.ColumnInput{Title: title}); err != nil {
		return fmt.Errorf("update column: %w", err)
	}
	return a.refreshColumns(ctx)
}

// RemoveColumn deletes an empty column. Columns that still list tasks are
// refused so no task is left without a column.
func (a *Actions) RemoveColumn(ctx context.Context, id string) error {
	col, ok := a.Store.State().Columns[id]
	if !ok {
		return fmt.Errorf("%w: %q", board.ErrColumnNotFound, id)
	}
	if len(col.TaskIDs) > 0 {
		return fmt.Errorf("%w: %q lists %d tasks", ErrColumnInUse, id, len(col.TaskIDs))
	}
	if err := a.Remote.DeleteColumn(ctx, id); err != nil {
		return fmt.Errorf("delete column: %w", err)
	}
	return a.refreshColumns(ctx)
}

func (a *Actions) refreshColumns(ctx context.Context) error {
	cols, err := a.Remote.Columns(ctx)
	if err != nil {
		return fmt.Errorf("reload columns: %w", err)
	}
	return a.Store.Dispatch(ctx, board.ReplaceColumns{Columns: cols})
}
