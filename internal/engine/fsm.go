package engine

import (
	"slices"

	"github.com/rendis/gaiaflow/pkg/schema"
)

// ValidStepTransitions is the step lifecycle. Pending may go straight to
// Skipped (condition or dependency) or Failed (cancelled before start).
var ValidStepTransitions = map[schema.StepStatus][]schema.StepStatus{
	schema.StepStatusPending: {schema.StepStatusRunning, schema.StepStatusSkipped, schema.StepStatusFailed},
	schema.StepStatusRunning: {schema.StepStatusCompleted, schema.StepStatusFailed},
}

// ValidExecutionTransitions is the execution lifecycle. An empty workflow
// completes without running; a run cancelled before its first wave fails
// from pending.
var ValidExecutionTransitions = map[schema.ExecutionStatus][]schema.ExecutionStatus{
	schema.ExecutionStatusPending: {schema.ExecutionStatusRunning, schema.ExecutionStatusCompleted, schema.ExecutionStatusFailed},
	schema.ExecutionStatusRunning: {schema.ExecutionStatusCompleted, schema.ExecutionStatusFailed},
}

// transitionTable validates moves between states of one lifecycle.
type transitionTable[S ~string] struct {
	kind  string
	table map[S][]S
}

var (
	stepFSM      = transitionTable[schema.StepStatus]{kind: "step", table: ValidStepTransitions}
	executionFSM = transitionTable[schema.ExecutionStatus]{kind: "execution", table: ValidExecutionTransitions}
)

func (t transitionTable[S]) allowed(from, to S) bool {
	return slices.Contains(t.table[from], to)
}

// check returns an INVALID_TRANSITION error when from -> to is not in the
// table. id names the step or execution for the error details.
func (t transitionTable[S]) check(id string, from, to S) error {
	if t.allowed(from, to) {
		return nil
	}
	return schema.NewErrorf(schema.ErrCodeInvalidTransition, "invalid %s transition: %s -> %s", t.kind, from, to).
		WithDetails(map[string]any{"id": id, "from": string(from), "to": string(to)})
}
