package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"kanban/internal/board"
	"kanban/internal/domain"
)

type testServer struct {
	URL    string
	Addr   string
	Store  *board.Store
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func seededStore(t *testing.T) *board.Store {
	t.Helper()
	store := board.NewStore(nil, nil)
	ctx := context.Background()
	ops := []board.Operation{
		board.ReplaceColumns{Columns: []domain.Column{
			{ID: "todo", Title: "To Do", TaskIDs: []string{"1", "2"}},
			{ID: "done", Title: "Done", TaskIDs: []string{}},
		}},
		board.ReplaceTasks{Tasks: []domain.Task{
			{ID: "1", Title: "Write docs", Status: "todo", Priority: domain.PriorityLow},
			{ID: "2", Title: "Fix login", Status: "todo", Priority: domain.PriorityHigh},
		}},
		board.ReplaceUsers{Users: []domain.User{{ID: "u1", Name: "Ada Lovelace"}}},
	}
	for _, op := range ops {
		if err := store.Dispatch(ctx, op); err != nil {
			t.Fatalf("seed %s: %v", op.Name(), err)
		}
	}
	return store
}

func newTestServer(t *testing.T, auth AuthConfig) (*testServer, func()) {
	t.Helper()
	store := seededStore(t)
	handler, err := New(Config{Store: store, BasePath: "/v0", Auth: auth})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Addr:   ln.Addr().String(),
		Store:  store,
		client: &http.Client{Timeout: 5 * time.Second},
		close: func() {
			srv.Close()
			ln.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func decodeBoard(t *testing.T, data []byte) BoardResponse {
	t.Helper()
	var resp BoardResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("unmarshal board: %v: %s", err, string(data))
	}
	return resp
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var env struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal error envelope: %v: %s", err, string(data))
	}
	return env.Error.Code
}

func signToken(t *testing.T, secret, subject string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
		"iat": time.Now().Unix(),
	})
	signed, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestHealthAndBoard(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{})
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/board", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("board status %d: %s", res.StatusCode, string(data))
	}
	resp := decodeBoard(t, data)
	if len(resp.Board.ColumnOrder) != 2 || resp.Board.ColumnOrder[0] != "todo" {
		t.Fatalf("unexpected column order %v", resp.Board.ColumnOrder)
	}
	if got := resp.Board.Columns["todo"].TaskIDs; len(got) != 2 {
		t.Fatalf("unexpected todo tasks %v", got)
	}
}

func TestDispatchMoveTask(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{})
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/board/operations", map[string]any{
		"type": "MOVE_TASK",
		"payload": map[string]any{
			"task_id":     "1",
			"source":      map[string]any{"column_id": "todo", "index": 0},
			"destination": map[string]any{"column_id": "done", "index": 0},
		},
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dispatch status %d: %s", res.StatusCode, string(data))
	}
	resp := decodeBoard(t, data)
	if got := resp.Board.Columns["done"].TaskIDs; len(got) != 1 || got[0] != "1" {
		t.Fatalf("expected task 1 in done, got %v", got)
	}
	if got := resp.Board.Columns["todo"].TaskIDs; len(got) != 1 || got[0] != "2" {
		t.Fatalf("expected only task 2 in todo, got %v", got)
	}
	if resp.Board.Tasks["1"].Status != "done" {
		t.Fatalf("expected status done, got %s", resp.Board.Tasks["1"].Status)
	}
}

func TestDispatchUnknownOperationIsIgnored(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{})
	defer cleanup()
	before := srv.Store.State()

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/board/operations", map[string]any{
		"type":    "RESET_EVERYTHING",
		"payload": map[string]any{"really": true},
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dispatch status %d: %s", res.StatusCode, string(data))
	}
	after := decodeBoard(t, data).Board
	if len(after.Tasks) != len(before.Tasks) || len(after.Columns["todo"].TaskIDs) != 2 {
		t.Fatalf("board changed by unknown operation: %+v", after)
	}
}

func TestDispatchErrorsUseEnvelope(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{})
	defer cleanup()
	client := srv.Client()
	url := srv.URL + "/v0/board/operations"

	res, data := doJSON(t, client, http.MethodPost, url, map[string]any{
		"type": "ADD_TASK",
		"payload": map[string]any{"task": map[string]any{
			"id": "9", "title": "Orphan", "status": "missing", "priority": "low",
		}},
	}, nil)
	if res.StatusCode != http.StatusNotFound || errorCode(t, data) != "column_not_found" {
		t.Fatalf("expected column_not_found, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, url, map[string]any{
		"type":    "STOP_TIME_TRACKING",
		"payload": map[string]any{"task_id": "1"},
	}, nil)
	if res.StatusCode != http.StatusConflict || errorCode(t, data) != "not_tracking" {
		t.Fatalf("expected not_tracking, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, url, map[string]any{
		"type":    "ADD_COMMENT",
		"payload": map[string]any{"task_id": "404", "text": "hello"},
	}, nil)
	if res.StatusCode != http.StatusNotFound || errorCode(t, data) != "task_not_found" {
		t.Fatalf("expected task_not_found, got %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, url, map[string]any{
		"type":    "MOVE_TASK",
		"payload": "not an object",
	}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request for malformed payload, got %d %s", res.StatusCode, string(data))
	}
}

func TestUserLookup(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{})
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/users/u1", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("user status %d: %s", res.StatusCode, string(data))
	}
	var u UserResponse
	if err := json.Unmarshal(data, &u); err != nil {
		t.Fatalf("unmarshal user: %v", err)
	}
	if u.Name != "Ada Lovelace" || u.Avatar != "AL" {
		t.Fatalf("unexpected user %+v", u)
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/users/nobody", nil, nil)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d %s", res.StatusCode, string(data))
	}
}

func TestBearerAuth(t *testing.T) {
	const secret = "test-secret"
	srv, cleanup := newTestServer(t, AuthConfig{JWTSecret: secret})
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health should be open, got %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/board", nil, nil)
	if res.StatusCode != http.StatusUnauthorized || errorCode(t, data) != "unauthorized" {
		t.Fatalf("expected 401 without token, got %d %s", res.StatusCode, string(data))
	}
	bad := signToken(t, "other-secret", "ada")
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/board", nil, map[string]string{"Authorization": "Bearer " + bad})
	if res.StatusCode != http.StatusUnauthorized || errorCode(t, data) != "invalid_credentials" {
		t.Fatalf("expected invalid_credentials, got %d %s", res.StatusCode, string(data))
	}
	good := signToken(t, secret, "ada")
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/board", nil, map[string]string{"Authorization": "Bearer " + good})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d %s", res.StatusCode, string(data))
	}
}

func TestStreamPushesUpdates(t *testing.T) {
	const secret = "stream-secret"
	srv, cleanup := newTestServer(t, AuthConfig{JWTSecret: secret})
	defer cleanup()

	if _, _, err := websocket.DefaultDialer.Dial("ws://"+srv.Addr+"/v0/board/stream", nil); err == nil {
		t.Fatalf("expected handshake without token to fail")
	}
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+srv.Addr+"/v0/board/stream?token="+signToken(t, secret, "ada"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first StreamMessage
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if first.Type != "snapshot" || len(first.Board.Tasks) != 2 {
		t.Fatalf("unexpected first frame %+v", first)
	}

	if err := srv.Store.Dispatch(context.Background(), board.DeleteTask{ID: "2"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	var update StreamMessage
	if err := conn.ReadJSON(&update); err != nil {
		t.Fatalf("read update: %v", err)
	}
	if update.Type != "update" {
		t.Fatalf("expected update frame, got %s", update.Type)
	}
	if _, ok := update.Board.Tasks["2"]; ok {
		t.Fatalf("deleted task still present in update")
	}
}

func TestOpenAPIAndMetrics(t *testing.T) {
	srv, cleanup := newTestServer(t, AuthConfig{JWTSecret: "s"})
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/metrics", nil, nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(data), "kanban_operations_applied_total") {
		t.Fatalf("metrics missing counters: %d", res.StatusCode)
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/docs", nil, nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(data), "/v0/openapi.json") {
		t.Fatalf("docs page: %d", res.StatusCode)
	}
	token := signToken(t, "s", "ada")
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/openapi.json", nil, map[string]string{"Authorization": "Bearer " + token})
	if res.StatusCode != http.StatusOK || !strings.Contains(string(data), "bearerAuth") {
		t.Fatalf("openapi: %d %s", res.StatusCode, string(data))
	}
}
