package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rendis/gaiaflow/internal/actions"
	"github.com/rendis/gaiaflow/internal/logging"
	"github.com/rendis/gaiaflow/internal/streaming"
	"github.com/rendis/gaiaflow/pkg/schema"
)

// Resolver finds the handler for an action name. *actions.Registry
// satisfies it.
type Resolver interface {
	Resolve(action string) (actions.Handler, error)
}

// ExecutorConfig holds configuration for the executor.
type ExecutorConfig struct {
	MaxConcurrency int                 // max concurrent steps per wave; 0 = one goroutine per ready step
	Timeout        time.Duration       // workflow timeout; 0 = none
	Logger         *slog.Logger        // nil = slog.Default()
	Bus            streaming.Publisher // optional lifecycle event sink
}

// RunOptions are the per-execution inputs.
type RunOptions struct {
	// Variables overlay the workflow's initial variables.
	Variables   map[string]any
	TriggeredBy string        // default "manual"
	Timeout     time.Duration // overrides ExecutorConfig.Timeout when > 0
}

// Executor runs validated workflows wave by wave. It holds no per-run state
// and is safe for concurrent use.
type Executor struct {
	resolver Resolver
	config   ExecutorConfig
	logger   *slog.Logger
}

// NewExecutor creates an Executor that resolves actions through resolver.
func NewExecutor(resolver Resolver, cfg ExecutorConfig) *Executor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{resolver: resolver, config: cfg, logger: logger}
}

// Execute runs wf to completion and returns its Execution record. The
// workflow must already have passed validation. The error return is only
// for a nil workflow; step failures, timeouts and cancellation are reported
// through the Execution's status.
func (e *Executor) Execute(ctx context.Context, wf *schema.Workflow, opts RunOptions) (*Execution, error) {
	if wf == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "workflow is nil")
	}

	graph := NewGraph(wf)
	exec := &Execution{
		ExecutionID: uuid.NewString(),
		WorkflowID:  wf.ID,
		Status:      schema.ExecutionStatusPending,
		Results:     make(map[string]*StepResult, graph.Len()),
		Variables:   make(map[string]any, len(wf.Variables)+len(opts.Variables)),
		StartedAt:   time.Now().UTC(),
		TriggeredBy: opts.TriggeredBy,
		Order:       append([]string(nil), graph.Order()...),
	}
	if exec.TriggeredBy == "" {
		exec.TriggeredBy = TriggeredByManual
	}
	maps.Copy(exec.Variables, wf.Variables)
	maps.Copy(exec.Variables, opts.Variables)
	for _, id := range graph.Order() {
		exec.Results[id] = &StepResult{StepID: id, Status: schema.StepStatusPending}
	}

	timeout := e.config.Timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()
	runCtx = logging.WithIDs(runCtx, exec.ExecutionID, wf.ID)

	r := &run{
		executor:    e,
		exec:        exec,
		graph:       graph,
		timeout:     timeout,
		descendants: make(map[string][]string, graph.Len()),
	}
	for _, id := range graph.Order() {
		r.descendants[id] = graph.Descendants(id)
	}
	r.execute(runCtx)
	return exec, nil
}

// run is the mutable state of one execution.
type run struct {
	executor    *Executor
	exec        *Execution
	graph       *Graph
	timeout     time.Duration
	descendants map[string][]string // precomputed transitive dependents

	// mu guards exec. Step goroutines only touch their own StepResult, and
	// only to mark it running.
	mu sync.Mutex
}

func (r *run) logger() *slog.Logger { return r.executor.logger }

func (r *run) execute(ctx context.Context) {
	log := r.logger()

	if r.graph.Len() == 0 {
		r.finish(ctx, schema.ExecutionStatusCompleted)
		return
	}
	if ctx.Err() != nil {
		r.cancelRemaining(ctx)
		r.finish(ctx, schema.ExecutionStatusFailed)
		return
	}

	r.setStatus(schema.ExecutionStatusRunning)
	r.emit(ctx, schema.EventExecutionStarted, "", map[string]any{"triggered_by": r.exec.TriggeredBy})
	log.InfoContext(ctx, "execution started",
		slog.Int("steps", r.graph.Len()),
		slog.String("triggered_by", r.exec.TriggeredBy),
	)

	pool := NewWorkerPool(r.executor.config.MaxConcurrency)
	defer pool.Shutdown()

	// Every wave moves at least one step to a terminal state, so the loop
	// cannot outlive the step count.
	for r.exec.Waves < r.graph.Len() && ctx.Err() == nil {
		ready := r.plan(ctx)
		if len(ready) == 0 {
			break
		}

		r.mu.Lock()
		r.exec.Waves++
		wave := r.exec.Waves
		snapshot := maps.Clone(r.exec.Variables)
		r.mu.Unlock()

		log.DebugContext(ctx, "dispatching wave", slog.Int("wave", wave), slog.Any("steps", ready))
		outcomes := r.dispatch(ctx, pool, wave, ready, snapshot)
		r.apply(ctx, wave, ready, outcomes)
	}

	if ctx.Err() != nil {
		r.cancelRemaining(ctx)
	}

	status := schema.ExecutionStatusCompleted
	for _, res := range r.exec.Results {
		if res.Status != schema.StepStatusCompleted && res.Status != schema.StepStatusSkipped {
			status = schema.ExecutionStatusFailed
			break
		}
	}
	r.finish(ctx, status)
}

// plan marks propagated skips until nothing changes and returns the steps
// whose dependencies are all satisfied, in declaration order.
func (r *run) plan(ctx context.Context) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	for changed := true; changed; {
		changed = false
		for _, id := range r.graph.Order() {
			if r.exec.Results[id].Status != schema.StepStatusPending {
				continue
			}
			if reason := r.blockedReason(id); reason != "" {
				r.skipLocked(ctx, id, reason)
				changed = true
			}
		}
	}

	var ready []string
next:
	for _, id := range r.graph.Order() {
		if r.exec.Results[id].Status != schema.StepStatusPending {
			continue
		}
		for _, dep := range r.graph.Dependencies(id) {
			if !r.satisfied(dep) {
				continue next
			}
		}
		ready = append(ready, id)
	}
	return ready
}

// blockedReason explains why id can never run, or returns "".
func (r *run) blockedReason(id string) string {
	for _, dep := range r.graph.Dependencies(id) {
		res, ok := r.exec.Results[dep]
		if !ok {
			continue
		}
		switch res.Status {
		case schema.StepStatusSkipped:
			return fmt.Sprintf("dependency %q was skipped", dep)
		case schema.StepStatusFailed:
			if step, _ := r.graph.Step(dep); !step.ContinueOnError {
				return fmt.Sprintf("dependency %q failed", dep)
			}
		}
	}
	return ""
}

// satisfied reports whether dep lets its dependents run: it completed, or
// it failed with continue_on_error set.
func (r *run) satisfied(dep string) bool {
	res, ok := r.exec.Results[dep]
	if !ok {
		return false
	}
	switch res.Status {
	case schema.StepStatusCompleted:
		return true
	case schema.StepStatusFailed:
		step, _ := r.graph.Step(dep)
		return step.ContinueOnError
	}
	return false
}

// cancelRemaining fails every non-terminal step with "cancelled".
func (r *run) cancelRemaining(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	for _, id := range r.graph.Order() {
		res := r.exec.Results[id]
		if res.Status.IsTerminal() {
			continue
		}
		r.transitionLocked(ctx, res, schema.StepStatusFailed)
		res.Error = cancelledMessage
		res.finish(now)
		r.emit(ctx, schema.EventStepFailed, id, map[string]any{"error": res.Error})
	}

	if r.exec.Error == "" {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded) && r.timeout > 0:
			r.exec.Error = fmt.Sprintf("execution timed out after %s", r.timeout)
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			r.exec.Error = "execution timed out"
		default:
			r.exec.Error = "execution cancelled"
		}
	}
}

func (r *run) finish(ctx context.Context, status schema.ExecutionStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	r.setStatusLocked(status)
	r.exec.CompletedAt = &now

	// The deadline can pass after the last wave was applied; nothing was
	// cancelled then.
	if status == schema.ExecutionStatusCompleted {
		r.exec.Error = ""
	}

	if status == schema.ExecutionStatusFailed && r.exec.Error == "" {
		if failed := r.exec.FailedSteps(); len(failed) > 0 {
			r.exec.Error = "steps failed: " + strings.Join(failed, ", ")
		} else {
			var stuck []string
			for _, id := range r.graph.Order() {
				if !r.exec.Results[id].Status.IsTerminal() {
					stuck = append(stuck, id)
				}
			}
			r.exec.Error = "steps never became ready: " + strings.Join(stuck, ", ")
		}
	}

	counts := r.exec.Summary()
	attrs := []any{
		slog.String("status", string(status)),
		slog.Int("waves", r.exec.Waves),
		slog.Int("completed", counts[schema.StepStatusCompleted]),
		slog.Int("failed", counts[schema.StepStatusFailed]),
		slog.Int("skipped", counts[schema.StepStatusSkipped]),
		slog.Duration("duration", r.exec.Duration()),
	}
	payload := map[string]any{"status": string(status), "waves": r.exec.Waves}
	if status == schema.ExecutionStatusCompleted {
		r.logger().InfoContext(ctx, "execution completed", attrs...)
		r.emit(ctx, schema.EventExecutionCompleted, "", payload)
		return
	}
	payload["error"] = r.exec.Error
	r.logger().WarnContext(ctx, "execution failed", append(attrs, slog.String("error", r.exec.Error))...)
	r.emit(ctx, schema.EventExecutionFailed, "", payload)
}

func (r *run) setStatus(to schema.ExecutionStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setStatusLocked(to)
}

func (r *run) setStatusLocked(to schema.ExecutionStatus) {
	if err := executionFSM.check(r.exec.ExecutionID, r.exec.Status, to); err != nil {
		r.logger().Error("execution state", slog.String("error", err.Error()))
		return
	}
	r.exec.Status = to
}

// transitionLocked moves a step to a new status. It reports false, and
// leaves the step alone, for a move the lifecycle forbids.
func (r *run) transitionLocked(ctx context.Context, res *StepResult, to schema.StepStatus) bool {
	if err := stepFSM.check(res.StepID, res.Status, to); err != nil {
		r.logger().DebugContext(ctx, "step transition rejected", slog.String("step_id", res.StepID), slog.String("error", err.Error()))
		return false
	}
	res.Status = to
	return true
}

func (r *run) skipLocked(ctx context.Context, id, reason string) {
	res := r.exec.Results[id]
	if !r.transitionLocked(ctx, res, schema.StepStatusSkipped) {
		return
	}
	res.Reason = reason
	res.finish(time.Now().UTC())
	r.logger().DebugContext(logging.WithStepID(ctx, id), "step skipped", slog.String("reason", reason))
	r.emit(ctx, schema.EventStepSkipped, id, map[string]any{"reason": reason})
}

// emit publishes a lifecycle event. Events outlive the run's context so
// the final ones are still delivered after a cancellation.
func (r *run) emit(ctx context.Context, eventType, stepID string, payload map[string]any) {
	bus := r.executor.config.Bus
	if bus == nil {
		return
	}
	err := bus.Publish(context.WithoutCancel(ctx), streaming.Event{
		Type:        eventType,
		ExecutionID: r.exec.ExecutionID,
		WorkflowID:  r.exec.WorkflowID,
		StepID:      stepID,
		Payload:     payload,
	})
	if err != nil {
		r.logger().WarnContext(ctx, "publish event", slog.String("type", eventType), slog.String("error", err.Error()))
	}
}
