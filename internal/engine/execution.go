package engine

import (
	"maps"
	"time"

	"github.com/rendis/gaiaflow/pkg/schema"
)

// TriggeredByManual is the default Execution.TriggeredBy.
const TriggeredByManual = "manual"

// Execution is the record of one workflow run. It is complete and
// read-only once Execute returns.
type Execution struct {
	ExecutionID string                 `json:"execution_id"`
	WorkflowID  string                 `json:"workflow_id"`
	Status      schema.ExecutionStatus `json:"status"`
	Results     map[string]*StepResult `json:"results"`
	Variables   map[string]any         `json:"variables"`
	StartedAt   time.Time              `json:"started_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	TriggeredBy string                 `json:"triggered_by"`
	Waves       int                    `json:"waves"`
	Warnings    []string               `json:"warnings,omitempty"`
	Error       string                 `json:"error,omitempty"`

	// Order lists step IDs in declaration order.
	Order []string `json:"order,omitempty"`
}

// StepResult is the outcome of one step.
type StepResult struct {
	StepID      string            `json:"step_id"`
	Status      schema.StepStatus `json:"status"`
	Output      any               `json:"output,omitempty"`
	Error       string            `json:"error,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Duration    time.Duration     `json:"duration"`
	Wave        int               `json:"wave,omitempty"`
}

// Succeeded reports whether the execution completed.
func (e *Execution) Succeeded() bool {
	return e.Status == schema.ExecutionStatusCompleted
}

// Duration is the wall time of the run, or zero while it is in progress.
func (e *Execution) Duration() time.Duration {
	if e.CompletedAt == nil {
		return 0
	}
	return e.CompletedAt.Sub(e.StartedAt)
}

// Result returns the step result for id.
func (e *Execution) Result(id string) (*StepResult, bool) {
	r, ok := e.Results[id]
	return r, ok
}

// Summary counts steps per status.
func (e *Execution) Summary() map[schema.StepStatus]int {
	out := make(map[schema.StepStatus]int, 5)
	for _, r := range e.Results {
		out[r.Status]++
	}
	return out
}

// FailedSteps returns the failed step IDs in declaration order.
func (e *Execution) FailedSteps() []string {
	var out []string
	for _, id := range e.Order {
		if r, ok := e.Results[id]; ok && r.Status == schema.StepStatusFailed {
			out = append(out, id)
		}
	}
	return out
}

// Clone returns a copy that shares no maps or slices with e. Step outputs
// and variable values are copied shallowly.
func (e *Execution) Clone() *Execution {
	c := *e
	c.Results = make(map[string]*StepResult, len(e.Results))
	for id, r := range e.Results {
		rc := *r
		c.Results[id] = &rc
	}
	c.Variables = maps.Clone(e.Variables)
	c.Warnings = append([]string(nil), e.Warnings...)
	c.Order = append([]string(nil), e.Order...)
	if e.CompletedAt != nil {
		t := *e.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

func (r *StepResult) finish(at time.Time) {
	r.CompletedAt = &at
	if r.StartedAt != nil {
		r.Duration = at.Sub(*r.StartedAt)
	}
}
