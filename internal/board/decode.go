package board

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Decode turns a wire operation into a typed Operation. Names nobody knows
// decode to Unknown rather than failing.
func Decode(name string, payload []byte) (Operation, error) {
	name = strings.TrimSpace(name)
	var op Operation
	switch name {
	case OpReplaceColumns:
		op = &ReplaceColumns{}
	case OpReplaceTasks:
		op = &ReplaceTasks{}
	case OpReplaceUsers:
		op = &ReplaceUsers{}
	case OpAddTask:
		op = &AddTask{}
	case OpUpdateTask:
		op = &UpdateTask{}
	case OpDeleteTask:
		op = &DeleteTask{}
	case OpMoveTask:
		op = &MoveTask{}
	case OpAddComment:
		op = &AddComment{}
	case OpStartTimeTracking:
		op = &StartTimeTracking{}
	case OpStopTimeTracking:
		op = &StopTimeTracking{}
	case OpAddTag:
		op = &AddTag{}
	case OpRemoveTag:
		op = &RemoveTag{}
	default:
		return Unknown{Type: name}, nil
	}
	if len(payload) > 0 && string(payload) != "null" {
		if err := json.Unmarshal(payload, op); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", name, err)
		}
	}
	return deref(op), nil
}

// deref hands back operations by value so callers can type-switch on the
// plain struct types.
func deref(op Operation) Operation {
	switch v := op.(type) {
	case *ReplaceColumns:
		return *v
	case *ReplaceTasks:
		return *v
	case *ReplaceUsers:
		return *v
	case *AddTask:
		return *v
	case *UpdateTask:
		return *v
	case *DeleteTask:
		return *v
	case *MoveTask:
		return *v
	case *AddComment:
		return *v
	case *StartTimeTracking:
		return *v
	case *StopTimeTracking:
		return *v
	case *AddTag:
		return *v
	case *RemoveTag:
		return *v
	}
	return op
}
