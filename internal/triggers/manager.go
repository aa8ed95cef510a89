package triggers

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/rendis/gaiaflow/internal/engine"
	"github.com/rendis/gaiaflow/internal/expressions"
	"github.com/rendis/gaiaflow/internal/streaming"
	"github.com/rendis/gaiaflow/internal/validation"
	"github.com/rendis/gaiaflow/pkg/schema"
)

// Runner executes a workflow. *engine.Executor satisfies it.
type Runner interface {
	Execute(ctx context.Context, wf *schema.Workflow, opts engine.RunOptions) (*engine.Execution, error)
}

// Manager owns the registered workflows and starts executions for their
// triggers: manual calls to Fire, cron schedules, bus events and webhook
// requests. Every path ends in Runner.Execute.
type Manager struct {
	runner Runner
	bus    streaming.EventBus
	cel    *expressions.CELEngine
	logger *slog.Logger

	mu        sync.RWMutex
	workflows map[string]*schema.Workflow
	entries   map[string][]cron.EntryID // workflow ID -> cron entries
	cron      *cron.Cron
	runCtx    context.Context
	stop      context.CancelFunc
	started   bool

	inflightMu sync.Mutex
	inflight   map[string]struct{} // workflow IDs with a scheduled run in progress

	wg sync.WaitGroup
}

// Config holds the Manager's collaborators. Bus may be nil, which disables
// event triggers and Emit.
type Config struct {
	Runner Runner
	Bus    streaming.EventBus
	Logger *slog.Logger
}

// NewManager creates a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Runner == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "trigger manager needs a runner")
	}
	celEngine, err := expressions.NewCELEngine()
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		runner:    cfg.Runner,
		bus:       cfg.Bus,
		cel:       celEngine,
		logger:    logger,
		workflows: make(map[string]*schema.Workflow),
		entries:   make(map[string][]cron.EntryID),
		inflight:  make(map[string]struct{}),
	}, nil
}

// Register adds or replaces a workflow. The workflow must be valid; event
// filters are compiled here so a bad filter is rejected before any event
// arrives.
func (m *Manager) Register(wf *schema.Workflow) error {
	if err := validation.Check(wf).ToError(); err != nil {
		return err
	}
	for i, tr := range wf.TriggersOf(schema.TriggerEvent) {
		if filter := tr.ConfigString("filter"); filter != "" {
			if err := m.cel.Compile(filter); err != nil {
				return fmt.Errorf("event trigger %d filter: %w", i, err)
			}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.installLocked(wf); err != nil {
		return err
	}
	m.logger.Info("workflow registered",
		slog.String("workflow_id", wf.ID),
		slog.Int("triggers", len(wf.Triggers)),
	)
	return nil
}

// installLocked replaces the registration for wf.ID. If scheduling the new
// version fails, the previous version and its schedules are restored.
func (m *Manager) installLocked(wf *schema.Workflow) error {
	prev, hadPrev := m.workflows[wf.ID]

	m.unscheduleLocked(wf.ID)
	m.workflows[wf.ID] = wf
	if !m.started {
		return nil
	}
	err := m.scheduleLocked(wf)
	if err == nil {
		return nil
	}

	if !hadPrev {
		delete(m.workflows, wf.ID)
		return err
	}
	m.workflows[wf.ID] = prev
	if restoreErr := m.scheduleLocked(prev); restoreErr != nil {
		m.logger.Error("restoring previous schedules failed",
			slog.String("workflow_id", wf.ID),
			slog.String("error", restoreErr.Error()),
		)
	}
	return err
}

// Unregister removes a workflow and its schedules. It reports whether the
// workflow was registered.
func (m *Manager) Unregister(workflowID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.workflows[workflowID]; !ok {
		return false
	}
	m.unscheduleLocked(workflowID)
	delete(m.workflows, workflowID)
	return true
}

// Workflow returns a registered workflow.
func (m *Manager) Workflow(id string) (*schema.Workflow, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	wf, ok := m.workflows[id]
	return wf, ok
}

// Workflows returns the registered workflow IDs, sorted.
func (m *Manager) Workflows() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedIDsLocked()
}

func (m *Manager) sortedIDsLocked() []string {
	return slices.Sorted(maps.Keys(m.workflows))
}

// Fire runs a registered workflow synchronously, exactly as a manual
// invocation would. A workflow that declares triggers must include a manual
// one to be fired this way.
func (m *Manager) Fire(ctx context.Context, workflowID, triggeredBy string, variables map[string]any) (*engine.Execution, error) {
	wf, ok := m.Workflow(workflowID)
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "workflow %q is not registered", workflowID)
	}
	if len(wf.Triggers) > 0 && len(wf.TriggersOf(schema.TriggerManual)) == 0 {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "workflow %q has no manual trigger", workflowID)
	}
	if triggeredBy == "" {
		triggeredBy = string(schema.TriggerManual)
	}
	return m.run(ctx, wf, triggeredBy, variables)
}

// Start begins serving schedule and event triggers. Runs started by
// triggers use ctx; Stop waits for them.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return fmt.Errorf("trigger manager already started")
	}

	m.runCtx, m.stop = context.WithCancel(ctx)
	m.cron = cron.New(
		cron.WithParser(validation.CronParser()),
		cron.WithLogger(cronLogger{m.logger}),
		cron.WithChain(cron.Recover(cronLogger{m.logger})),
	)
	for _, id := range m.sortedIDsLocked() {
		if err := m.scheduleLocked(m.workflows[id]); err != nil {
			m.stop()
			return err
		}
	}
	m.cron.Start()

	if m.bus != nil {
		events, unsubscribe, err := m.bus.Subscribe(m.runCtx, streaming.Filter{})
		if err != nil {
			m.cron.Stop()
			m.stop()
			return fmt.Errorf("subscribe to events: %w", err)
		}
		m.wg.Add(1)
		go m.consume(events, unsubscribe)
	}

	m.started = true
	m.logger.Info("trigger manager started", slog.Int("workflows", len(m.workflows)))
	return nil
}

// Stop halts schedules and event delivery and waits for in-flight runs to
// finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	cronDone := m.cron.Stop()
	stop := m.stop
	m.entries = make(map[string][]cron.EntryID)
	m.mu.Unlock()

	<-cronDone.Done()
	// Cancelling ends the event subscription; runs already started keep the
	// context they were given and are drained below.
	stop()
	m.wg.Wait()
	m.logger.Info("trigger manager stopped")
}

// Emit publishes a custom event on the bus. Event triggers listening for
// name fire on it.
func (m *Manager) Emit(ctx context.Context, name string, payload map[string]any) error {
	if m.bus == nil {
		return schema.NewError(schema.ErrCodeValidation, "no event bus configured")
	}
	if name == "" {
		return schema.NewError(schema.ErrCodeValidation, "event name is required")
	}
	return m.bus.Publish(ctx, streaming.Event{Type: name, Payload: payload})
}

func (m *Manager) run(ctx context.Context, wf *schema.Workflow, triggeredBy string, variables map[string]any) (*engine.Execution, error) {
	exec, err := m.runner.Execute(ctx, wf, engine.RunOptions{Variables: variables, TriggeredBy: triggeredBy})
	if err != nil {
		return nil, err
	}
	m.logger.Info("triggered execution finished",
		slog.String("workflow_id", wf.ID),
		slog.String("execution_id", exec.ExecutionID),
		slog.String("triggered_by", triggeredBy),
		slog.String("status", string(exec.Status)),
	)
	return exec, nil
}

// runAsync starts a run tracked by Stop.
func (m *Manager) runAsync(wf *schema.Workflow, triggeredBy string, variables map[string]any, done func()) {
	m.mu.RLock()
	ctx := m.runCtx
	m.mu.RUnlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if done != nil {
			defer done()
		}
		if _, err := m.run(context.WithoutCancel(ctx), wf, triggeredBy, variables); err != nil {
			m.logger.Error("triggered execution failed to start",
				slog.String("workflow_id", wf.ID),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// tryAcquire marks a workflow's scheduled run in flight. It returns false
// when one is already running.
func (m *Manager) tryAcquire(workflowID string) bool {
	m.inflightMu.Lock()
	defer m.inflightMu.Unlock()
	if _, ok := m.inflight[workflowID]; ok {
		return false
	}
	m.inflight[workflowID] = struct{}{}
	return true
}

func (m *Manager) release(workflowID string) {
	m.inflightMu.Lock()
	defer m.inflightMu.Unlock()
	delete(m.inflight, workflowID)
}
