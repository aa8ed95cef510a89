package streaming

import (
	"context"
	"time"
)

// Event is a notification about an execution or a custom event emitted by a
// workflow step or an external caller.
type Event struct {
	Type        string         `json:"type"`
	ExecutionID string         `json:"execution_id,omitempty"`
	WorkflowID  string         `json:"workflow_id,omitempty"`
	StepID      string         `json:"step_id,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// Filter selects events for a subscriber. Empty fields match everything.
type Filter struct {
	WorkflowID  string   `json:"workflow_id,omitempty"`
	ExecutionID string   `json:"execution_id,omitempty"`
	Types       []string `json:"types,omitempty"`
}

// Match reports whether e passes the filter.
func (f Filter) Match(e Event) bool {
	if f.WorkflowID != "" && f.WorkflowID != e.WorkflowID {
		return false
	}
	if f.ExecutionID != "" && f.ExecutionID != e.ExecutionID {
		return false
	}
	if len(f.Types) == 0 {
		return true
	}
	for _, t := range f.Types {
		if t == e.Type {
			return true
		}
	}
	return false
}

// Publisher is the write side of the bus. Executors and handlers only need
// this half.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// EventBus is an in-process pub/sub channel for execution observers and
// event triggers.
type EventBus interface {
	Publisher
	// Subscribe returns a channel of matching events and a cancel func that
	// closes it. The subscription also ends when ctx is done.
	Subscribe(ctx context.Context, filter Filter) (<-chan Event, func(), error)
	// History returns up to limit of the most recent events, oldest first.
	History(limit int) []Event
}
