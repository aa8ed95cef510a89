package schema

// DefaultVersion is applied to workflows that omit a version.
const DefaultVersion = "1.0"

// Workflow is the declarative definition of a set of dependent steps.
// It is immutable once validated and reused across many executions.
type Workflow struct {
	ID          string         `json:"id" yaml:"id"`
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Version     string         `json:"version,omitempty" yaml:"version,omitempty"`
	Variables   map[string]any `json:"variables,omitempty" yaml:"variables,omitempty"`
	Triggers    []Trigger      `json:"triggers,omitempty" yaml:"triggers,omitempty"`
	Steps       []Step         `json:"steps" yaml:"steps"`
	OnError     string         `json:"on_error,omitempty" yaml:"on_error,omitempty"` // informational only
}

// Step is a single unit of work.
type Step struct {
	ID              string         `json:"id" yaml:"id"`
	Name            string         `json:"name,omitempty" yaml:"name,omitempty"`
	Action          string         `json:"action" yaml:"action"`
	Parameters      map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Condition       string         `json:"condition,omitempty" yaml:"condition,omitempty"`
	ContinueOnError bool           `json:"continue_on_error,omitempty" yaml:"continue_on_error,omitempty"`
	DependsOn       []string       `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
}

// TriggerType enumerates the ways a workflow may be started.
type TriggerType string

const (
	TriggerManual   TriggerType = "manual"
	TriggerSchedule TriggerType = "schedule"
	TriggerEvent    TriggerType = "event"
	TriggerWebhook  TriggerType = "webhook"
)

// Valid reports whether t is a known trigger type.
func (t TriggerType) Valid() bool {
	switch t {
	case TriggerManual, TriggerSchedule, TriggerEvent, TriggerWebhook:
		return true
	}
	return false
}

// Trigger declares how a workflow may be started. Config interpretation is
// type-specific: "cron" for schedule, "event" and "filter" for event,
// "path" for webhook.
type Trigger struct {
	Type   TriggerType    `json:"type" yaml:"type"`
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// ConfigString returns a string config value, or "" if absent or not a string.
func (t Trigger) ConfigString(key string) string {
	s, _ := t.Config[key].(string)
	return s
}

// Step returns the step with the given id.
func (w *Workflow) Step(id string) (*Step, bool) {
	for i := range w.Steps {
		if w.Steps[i].ID == id {
			return &w.Steps[i], true
		}
	}
	return nil, false
}

// StepIDs returns step ids in declaration order.
func (w *Workflow) StepIDs() []string {
	ids := make([]string, 0, len(w.Steps))
	for _, s := range w.Steps {
		ids = append(ids, s.ID)
	}
	return ids
}

// TriggersOf returns the triggers of the given type.
func (w *Workflow) TriggersOf(t TriggerType) []Trigger {
	var out []Trigger
	for _, tr := range w.Triggers {
		if tr.Type == t {
			out = append(out, tr)
		}
	}
	return out
}

// ApplyDefaults fills in the document defaults: version "1.0" and step
// names falling back to their ids.
func (w *Workflow) ApplyDefaults() {
	if w.Version == "" {
		w.Version = DefaultVersion
	}
	for i := range w.Steps {
		if w.Steps[i].Name == "" {
			w.Steps[i].Name = w.Steps[i].ID
		}
	}
}
