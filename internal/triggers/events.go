package triggers

import (
	"log/slog"
	"maps"

	"github.com/rendis/gaiaflow/internal/streaming"
	"github.com/rendis/gaiaflow/pkg/schema"
)

func (m *Manager) consume(events <-chan streaming.Event, unsubscribe func()) {
	defer m.wg.Done()
	defer unsubscribe()

	for ev := range events {
		for _, wf := range m.matchEvent(ev) {
			m.runAsync(wf, string(schema.TriggerEvent), eventVariables(ev), nil)
		}
	}
}

// matchEvent returns the workflows with an event trigger for ev.Type whose
// filter, if any, accepts the event. Each workflow fires at most once per
// event.
func (m *Manager) matchEvent(ev streaming.Event) []*schema.Workflow {
	m.mu.RLock()
	ids := m.sortedIDsLocked()
	candidates := make([]*schema.Workflow, 0, len(ids))
	for _, id := range ids {
		candidates = append(candidates, m.workflows[id])
	}
	m.mu.RUnlock()

	var matched []*schema.Workflow
	for _, wf := range candidates {
		for _, tr := range wf.TriggersOf(schema.TriggerEvent) {
			if tr.ConfigString("event") != ev.Type {
				continue
			}
			if m.filterAccepts(wf.ID, tr.ConfigString("filter"), ev) {
				matched = append(matched, wf)
				break
			}
		}
	}
	return matched
}

func (m *Manager) filterAccepts(workflowID, filter string, ev streaming.Event) bool {
	if filter == "" {
		return true
	}
	payload := ev.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	ok, err := m.cel.EvaluateBool(m.runCtx, filter, map[string]any{
		"event":   eventEnvelope(ev),
		"payload": payload,
	})
	if err != nil {
		m.logger.Warn("event filter failed",
			slog.String("workflow_id", workflowID),
			slog.String("event", ev.Type),
			slog.String("error", err.Error()),
		)
		return false
	}
	return ok
}

func eventEnvelope(ev streaming.Event) map[string]any {
	return map[string]any{
		"type":         ev.Type,
		"execution_id": ev.ExecutionID,
		"workflow_id":  ev.WorkflowID,
		"step_id":      ev.StepID,
		"timestamp":    ev.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

// eventVariables exposes the payload keys at the top level and the whole
// event under "event".
func eventVariables(ev streaming.Event) map[string]any {
	vars := make(map[string]any, len(ev.Payload)+1)
	maps.Copy(vars, ev.Payload)
	envelope := eventEnvelope(ev)
	envelope["payload"] = ev.Payload
	vars["event"] = envelope
	return vars
}
