package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"reflect"
	"slices"
	"time"

	"github.com/rendis/gaiaflow/internal/actions"
	"github.com/rendis/gaiaflow/internal/expressions"
	"github.com/rendis/gaiaflow/internal/logging"
	"github.com/rendis/gaiaflow/pkg/schema"
)

const cancelledMessage = "cancelled"

// isCancellation reports whether err came from the run's context rather
// than from the handler's own work.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		schema.HasCode(err, schema.ErrCodeCancelled)
}

// stepOutcome is what a step goroutine hands back to the barrier.
type stepOutcome struct {
	stepID    string
	started   bool
	skipped   bool
	reason    string
	output    any
	variables map[string]any
	err       error
	at        time.Time
}

// dispatch runs every ready step on its own goroutine and waits for all of
// them. When ctx ends the barrier stops waiting; outcomes that never
// arrived are left to cancelRemaining.
func (r *run) dispatch(ctx context.Context, pool *WorkerPool, wave int, ready []string, snapshot map[string]any) map[string]stepOutcome {
	results := make(chan stepOutcome, len(ready))

	for _, id := range ready {
		step, _ := r.graph.Step(id)
		err := pool.Submit(ctx,
			func(ctx context.Context) { results <- r.runStep(ctx, wave, step, snapshot) },
			func(perr error) {
				results <- stepOutcome{stepID: id, started: true, err: schema.NewError(schema.ErrCodeExecution, perr.Error()), at: time.Now().UTC()}
			},
		)
		if err != nil {
			results <- stepOutcome{stepID: id, err: err, at: time.Now().UTC()}
		}
	}

	outcomes := make(map[string]stepOutcome, len(ready))
	for len(outcomes) < len(ready) {
		select {
		case o := <-results:
			outcomes[o.stepID] = o
		case <-ctx.Done():
			for {
				select {
				case o := <-results:
					outcomes[o.stepID] = o
				default:
					return outcomes
				}
			}
		}
	}
	return outcomes
}

// runStep evaluates the step's condition against the wave snapshot, then
// resolves and invokes its handler.
func (r *run) runStep(ctx context.Context, wave int, step *schema.Step, snapshot map[string]any) stepOutcome {
	ctx = logging.WithStepID(ctx, step.ID)
	out := stepOutcome{stepID: step.ID}

	if step.Condition != "" && !expressions.EvaluateCondition(step.Condition, snapshot) {
		out.skipped = true
		out.reason = "condition not met: " + step.Condition
		out.at = time.Now().UTC()
		return out
	}

	if !r.start(ctx, step.ID, wave) {
		out.err = schema.NewError(schema.ErrCodeCancelled, cancelledMessage)
		out.at = time.Now().UTC()
		return out
	}
	out.started = true

	inv := actions.Invocation{
		ExecutionID: r.exec.ExecutionID,
		WorkflowID:  r.exec.WorkflowID,
		StepID:      step.ID,
		Action:      step.Action,
		Params:      expressions.SubstituteParams(step.Parameters, snapshot),
		Variables:   maps.Clone(snapshot),
	}
	if inv.Variables == nil {
		inv.Variables = map[string]any{}
	}

	handler, err := r.executor.resolver.Resolve(step.Action)
	if err != nil {
		out.err = err
		out.at = time.Now().UTC()
		return out
	}

	res, err := invoke(ctx, handler, inv)
	out.at = time.Now().UTC()
	if res != nil {
		out.output = res.Output
		out.variables = res.Variables
	}
	out.err = err
	return out
}

// invoke calls the handler, turning a panic into an error.
func invoke(ctx context.Context, h actions.Handler, inv actions.Invocation) (res *actions.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			res = nil
			err = schema.NewErrorf(schema.ErrCodeExecution, "action %s panicked: %v", inv.Action, p)
		}
	}()
	return h.Execute(ctx, inv)
}

// start marks a step running. It returns false if the step already reached
// a terminal state, which happens when the run was cancelled while the
// goroutine waited for a pool slot.
func (r *run) start(ctx context.Context, id string, wave int) bool {
	r.mu.Lock()
	res := r.exec.Results[id]
	if !r.transitionLocked(ctx, res, schema.StepStatusRunning) {
		r.mu.Unlock()
		return false
	}
	now := time.Now().UTC()
	res.StartedAt = &now
	res.Wave = wave
	r.mu.Unlock()

	step, _ := r.graph.Step(id)
	r.logger().DebugContext(ctx, "step started", slog.String("action", step.Action), slog.Int("wave", wave))
	r.emit(ctx, schema.EventStepStarted, id, map[string]any{"action": step.Action, "wave": wave})
	return true
}

// apply records a wave's outcomes in declaration order inside one critical
// section. Variable updates from completed steps are merged in that same
// order; a key written with different values by two steps of the wave is
// reported as a warning and the later step's value is kept.
func (r *run) apply(ctx context.Context, wave int, ready []string, outcomes map[string]stepOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cancelled := ctx.Err() != nil
	writers := make(map[string]string)

	for _, id := range ready {
		o, ok := outcomes[id]
		if !ok {
			continue
		}
		res := r.exec.Results[id]
		step, _ := r.graph.Step(id)
		stepCtx := logging.WithStepID(ctx, id)

		switch {
		case o.skipped:
			if !r.transitionLocked(stepCtx, res, schema.StepStatusSkipped) {
				continue
			}
			res.Reason = o.reason
			res.Wave = wave
			res.finish(o.at)
			r.logger().DebugContext(stepCtx, "step skipped", slog.String("reason", o.reason))
			r.emit(ctx, schema.EventStepSkipped, id, map[string]any{"reason": o.reason})

		case o.err != nil:
			if !r.transitionLocked(stepCtx, res, schema.StepStatusFailed) {
				continue
			}
			res.Output = o.output
			res.Error = schema.Message(o.err)
			if !o.started || isCancellation(o.err) {
				res.Error = cancelledMessage
			}
			res.Wave = wave
			res.finish(o.at)
			r.logger().WarnContext(stepCtx, "step failed",
				slog.String("action", step.Action),
				slog.String("error", res.Error),
				slog.Bool("continue_on_error", step.ContinueOnError),
			)
			r.emit(ctx, schema.EventStepFailed, id, map[string]any{"error": res.Error})

			if !step.ContinueOnError && !cancelled {
				for _, d := range r.descendants[id] {
					if r.exec.Results[d].Status == schema.StepStatusPending {
						r.skipLocked(ctx, d, fmt.Sprintf("dependency %q failed", id))
					}
				}
			}

		default:
			if !r.transitionLocked(stepCtx, res, schema.StepStatusCompleted) {
				continue
			}
			res.Output = o.output
			res.finish(o.at)
			r.mergeLocked(stepCtx, wave, id, o.variables, writers)
			r.logger().DebugContext(stepCtx, "step completed", slog.Duration("duration", res.Duration))
			r.emit(ctx, schema.EventStepCompleted, id, map[string]any{
				"wave":        wave,
				"duration_ms": res.Duration.Milliseconds(),
			})
		}
	}
}

func (r *run) mergeLocked(ctx context.Context, wave int, stepID string, updates map[string]any, writers map[string]string) {
	keys := slices.Sorted(maps.Keys(updates))
	for _, k := range keys {
		v := updates[k]
		if prev, ok := writers[k]; ok && !reflect.DeepEqual(r.exec.Variables[k], v) {
			msg := fmt.Sprintf("wave %d: variable %q set by both %q and %q; keeping the value from %q", wave, k, prev, stepID, stepID)
			r.exec.Warnings = append(r.exec.Warnings, msg)
			r.logger().WarnContext(ctx, "conflicting variable update",
				slog.String("variable", k),
				slog.String("previous_step", prev),
				slog.Int("wave", wave),
			)
		}
		r.exec.Variables[k] = v
		writers[k] = stepID
	}
}
