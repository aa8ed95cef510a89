package triggers

import (
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/rendis/gaiaflow/internal/validation"
	"github.com/rendis/gaiaflow/pkg/schema"
)

// scheduleLocked adds a cron entry per schedule trigger of wf.
func (m *Manager) scheduleLocked(wf *schema.Workflow) error {
	for i, tr := range wf.TriggersOf(schema.TriggerSchedule) {
		expr := tr.ConfigString("cron")
		sched, err := validation.ParseCron(expr)
		if err != nil {
			m.unscheduleLocked(wf.ID)
			return fmt.Errorf("workflow %s schedule trigger %d: %w", wf.ID, i, err)
		}
		id := m.cron.Schedule(sched, cron.FuncJob(func() { m.fireScheduled(wf.ID) }))
		m.entries[wf.ID] = append(m.entries[wf.ID], id)
		m.logger.Debug("schedule registered",
			slog.String("workflow_id", wf.ID),
			slog.String("cron", expr),
			slog.Time("next", m.cron.Entry(id).Next),
		)
	}
	return nil
}

func (m *Manager) unscheduleLocked(workflowID string) {
	if m.cron != nil {
		for _, id := range m.entries[workflowID] {
			m.cron.Remove(id)
		}
	}
	delete(m.entries, workflowID)
}

// fireScheduled starts a scheduled run unless the previous one is still
// going.
func (m *Manager) fireScheduled(workflowID string) {
	wf, ok := m.Workflow(workflowID)
	if !ok {
		return
	}
	if !m.tryAcquire(workflowID) {
		m.logger.Warn("skipping scheduled run: previous run still in progress", slog.String("workflow_id", workflowID))
		return
	}
	m.runAsync(wf, string(schema.TriggerSchedule), nil, func() { m.release(workflowID) })
}

// NextRuns returns the next activation time of every scheduled workflow.
// It is empty until Start.
func (m *Manager) NextRuns() map[string][]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string][]string, len(m.entries))
	if m.cron == nil {
		return out
	}
	for wfID, ids := range m.entries {
		for _, id := range ids {
			out[wfID] = append(out[wfID], m.cron.Entry(id).Next.UTC().Format("2006-01-02T15:04:05Z07:00"))
		}
	}
	return out
}

// cronLogger routes the cron runner's logs through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, slog.String("error", err.Error()))...)
}
