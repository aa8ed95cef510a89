package mcp

import (
	"context"

	"github.com/rendis/gaiaflow/internal/streaming"
	"github.com/rendis/gaiaflow/pkg/schema"
)

// clientNotifier is the slice of *server.MCPServer the forwarder needs.
type clientNotifier interface {
	SendNotificationToAllClients(method string, params map[string]any)
}

// ForwardEvents relays matching bus events to every connected client as
// MCP log notifications. It blocks until ctx is done or the subscription
// closes.
func (s *Server) ForwardEvents(ctx context.Context, bus streaming.EventBus, filter streaming.Filter) error {
	return forwardEvents(ctx, bus, filter, s.mcpServer)
}

func forwardEvents(ctx context.Context, bus streaming.EventBus, filter streaming.Filter, n clientNotifier) error {
	events, cancel, err := bus.Subscribe(ctx, filter)
	if err != nil {
		return err
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			n.SendNotificationToAllClients("notifications/message", notificationParams(ev))
		}
	}
}

func notificationParams(ev streaming.Event) map[string]any {
	level := "info"
	switch ev.Type {
	case schema.EventExecutionFailed, schema.EventStepFailed:
		level = "warning"
	}
	return map[string]any{
		"level":  level,
		"logger": "gaiaflow",
		"data":   ev,
	}
}
