package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"

	"kanban/internal/board"
	"kanban/internal/domain"
)

var errBadOperation = errors.New("invalid operation")

// Request payloads

// OperationRequest is a wire operation: its name and an arbitrary payload.
type OperationRequest struct {
	Type    string `json:"type" minLength:"1" example:"MOVE_TASK"`
	Payload any    `json:"payload,omitempty"`
}

func (r OperationRequest) operation() (board.Operation, error) {
	name := strings.TrimSpace(r.Type)
	if name == "" {
		return nil, fmt.Errorf("%w: type is required", errBadOperation)
	}
	var raw []byte
	if r.Payload != nil {
		data, err := sonic.Marshal(r.Payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errBadOperation, err)
		}
		raw = data
	}
	op, err := board.Decode(name, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadOperation, err)
	}
	return op, nil
}

// Responses

type HealthResponse struct {
	Status      string `json:"status" enum:"ok,failed"`
	Initialized bool   `json:"initialized"`
	Loading     bool   `json:"loading"`
	Error       string `json:"error,omitempty"`
}

type BoardResponse struct {
	Initialized bool         `json:"initialized"`
	Loading     bool         `json:"loading"`
	Error       string       `json:"error,omitempty"`
	Board       domain.Board `json:"board"`
}

type UserResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

func boardResponse(store *board.Store) BoardResponse {
	resp := BoardResponse{
		Initialized: store.Initialized(),
		Loading:     store.Loading(),
		Board:       store.State(),
	}
	if err := store.Err(); err != nil {
		resp.Error = err.Error()
	}
	return resp
}
