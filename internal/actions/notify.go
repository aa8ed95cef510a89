package actions

import (
	"context"
	"log/slog"
	"strings"

	"github.com/rendis/gaiaflow/internal/streaming"
	"github.com/rendis/gaiaflow/pkg/schema"
)

// Notify logs a message and publishes it as a "notify" event so observers
// and event triggers can react. Parameters: message (required), level
// (debug|info|warn|error, default info), channel.
type Notify struct {
	Bus    streaming.Publisher
	Logger *slog.Logger
}

func (n *Notify) Description() string { return "Publish a notification event" }

func (n *Notify) Execute(ctx context.Context, inv Invocation) (*Result, error) {
	msg, err := requireString("notify", inv.Params, "message")
	if err != nil {
		return nil, err
	}
	level := strings.ToLower(stringParam(inv.Params, "level", "info"))
	channel := stringParam(inv.Params, "channel", "")

	payload := map[string]any{"message": msg, "level": level}
	if channel != "" {
		payload["channel"] = channel
	}

	if n.Logger != nil {
		n.Logger.Log(ctx, slogLevel(level), msg,
			slog.String("channel", channel),
			slog.String("step_id", inv.StepID),
		)
	}

	delivered := false
	if n.Bus != nil {
		err := n.Bus.Publish(ctx, streaming.Event{
			Type:        schema.EventNotify,
			ExecutionID: inv.ExecutionID,
			WorkflowID:  inv.WorkflowID,
			StepID:      inv.StepID,
			Payload:     payload,
		})
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeExecution, "notify: publish: %v", err).WithCause(err)
		}
		delivered = true
	}

	out := map[string]any{"message": msg, "level": level, "delivered": delivered}
	if channel != "" {
		out["channel"] = channel
	}
	return &Result{Output: out}, nil
}

func slogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
