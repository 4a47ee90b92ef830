// Package api is the HTTP client for the remote board API.
package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"kanban/internal/domain"
)

const (
	DefaultBaseURL = "http://localhost:8000/api"
	DefaultTimeout = 10 * time.Second
)

// Client talks to the board API over JSON/HTTP.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// APIError wraps non-2xx responses.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: %s %s status=%d body=%s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Columns

func (c *Client) Columns(ctx context.Context) ([]domain.Column, error) {
	var resp []ColumnDTO
	if err := c.do(ctx, http.MethodGet, "columns", nil, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.Column, 0, len(resp))
	for _, col := range resp {
		out = append(out, col.Domain())
	}
	return out, nil
}

func (c *Client) Column(ctx context.Context, id string) (domain.Column, error) {
	var resp ColumnDTO
	err := c.do(ctx, http.MethodGet, "columns/"+url.PathEscape(id), nil, &resp)
	return resp.Domain(), err
}

func (c *Client) CreateColumn(ctx context.Context, in ColumnInput) (domain.Column, error) {
	var resp ColumnDTO
	err := c.do(ctx, http.MethodPost, "columns", in, &resp)
	return resp.Domain(), err
}

func (c *Client) UpdateColumn(ctx context.Context, id string, in ColumnInput) (domain.Column, error) {
	var resp ColumnDTO
	in.ID = ""
	err := c.do(ctx, http.MethodPut, "columns/"+url.PathEscape(id), in, &resp)
	return resp.Domain(), err
}

func (c *Client) DeleteColumn(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "columns/"+url.PathEscape(id), nil, nil)
}

// Tasks

func (c *Client) Tasks(ctx context.Context) ([]domain.Task, error) {
	return c.TasksByStatus(ctx, "")
}

// TasksByStatus lists tasks, optionally only those in one column.
func (c *Client) TasksByStatus(ctx context.Context, status string) ([]domain.Task, error) {
	endpoint := "tasks"
	if status != "" {
		endpoint += "?status=" + url.QueryEscape(status)
	}
	var resp []TaskDTO
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.Task, 0, len(resp))
	for _, t := range resp {
		out = append(out, t.Domain())
	}
	return out, nil
}

func (c *Client) Task(ctx context.Context, id string) (domain.Task, error) {
	var resp TaskDTO
	err := c.do(ctx, http.MethodGet, taskPath(id), nil, &resp)
	return resp.Domain(), err
}

func (c *Client) CreateTask(ctx context.Context, in TaskInput) (domain.Task, error) {
	var resp TaskDTO
	err := c.do(ctx, http.MethodPost, "tasks", in, &resp)
	return resp.Domain(), err
}

// UpdateTask sends a partial update; only the keys present in fields change.
func (c *Client) UpdateTask(ctx context.Context, id string, fields map[string]any) (domain.Task, error) {
	var resp TaskDTO
	err := c.do(ctx, http.MethodPut, taskPath(id), fields, &resp)
	return resp.Domain(), err
}

func (c *Client) UpdateTaskStatus(ctx context.Context, id, status string) error {
	_, err := c.UpdateTask(ctx, id, map[string]any{"status": status})
	return err
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, taskPath(id), nil, nil)
}

func (c *Client) UpdateTimeTracking(ctx context.Context, id string, u domain.TimeTrackingUpdate) error {
	body := TimeTrackingRequest{
		IsTracking:        u.IsTracking,
		TrackingStartTime: wireTime(u.StartTime),
		TimeSpent:         u.TimeSpent,
	}
	return c.do(ctx, http.MethodPut, taskPath(id)+"/time-tracking", body, nil)
}

func (c *Client) AddTagToTask(ctx context.Context, taskID, tagID string) (domain.Task, error) {
	var resp TaskDTO
	err := c.do(ctx, http.MethodPost, taskPath(taskID)+"/tags/"+url.PathEscape(tagID), nil, &resp)
	return resp.Domain(), err
}

func (c *Client) RemoveTagFromTask(ctx context.Context, taskID, tagID string) (domain.Task, error) {
	var resp TaskDTO
	err := c.do(ctx, http.MethodDelete, taskPath(taskID)+"/tags/"+url.PathEscape(tagID), nil, &resp)
	return resp.Domain(), err
}

// Tags

func (c *Client) Tags(ctx context.Context) ([]domain.Tag, error) {
	var resp []TagDTO
	if err := c.do(ctx, http.MethodGet, "tags", nil, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.Tag, 0, len(resp))
	for _, t := range resp {
		out = append(out, t.Domain())
	}
	return out, nil
}

func (c *Client) CreateTag(ctx context.Context, name string) (domain.Tag, error) {
	var resp TagDTO
	err := c.do(ctx, http.MethodPost, "tags", TagInput{Name: name}, &resp)
	return resp.Domain(), err
}

// Users

func (c *Client) Users(ctx context.Context) ([]domain.User, error) {
	var resp []UserDTO
	if err := c.do(ctx, http.MethodGet, "users", nil, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.User, 0, len(resp))
	for _, u := range resp {
		out = append(out, u.Domain())
	}
	return out, nil
}

func (c *Client) User(ctx context.Context, id string) (domain.User, error) {
	var resp UserDTO
	err := c.do(ctx, http.MethodGet, "users/"+url.PathEscape(id), nil, &resp)
	return resp.Domain(), err
}

// Comments

func (c *Client) CommentsByTask(ctx context.Context, taskID string) ([]domain.Comment, error) {
	var resp []CommentDTO
	if err := c.do(ctx, http.MethodGet, "comments/task/"+url.PathEscape(taskID), nil, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.Comment, 0, len(resp))
	for _, cm := range resp {
		out = append(out, cm.Domain())
	}
	return out, nil
}

// CreateComment posts a comment and returns it with the server-assigned id
// and timestamp.
func (c *Client) CreateComment(ctx context.Context, taskID, authorID, text string) (domain.Comment, error) {
	var resp CommentDTO
	body := CommentInput{Text: text, TaskID: FlexID(taskID), AuthorID: FlexID(authorID)}
	err := c.do(ctx, http.MethodPost, "comments", body, &resp)
	return resp.Domain(), err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := sonic.ConfigStd.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("encode %s %s: %w", method, endpoint, err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{Method: method, Path: endpoint, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := sonic.ConfigStd.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, endpoint, err)
	}
	return nil
}

func taskPath(id string) string {
	return "tasks/" + url.PathEscape(id)
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
