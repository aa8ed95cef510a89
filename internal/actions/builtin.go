package actions

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/rendis/gaiaflow/internal/expressions"
	"github.com/rendis/gaiaflow/internal/streaming"
)

// GaiaNamespace is the prefix served by the collaborator bridge.
const GaiaNamespace = "gaia."

// BuiltinConfig configures the handlers installed by RegisterBuiltins.
type BuiltinConfig struct {
	Logger        *slog.Logger
	Bus           streaming.Publisher
	HTTPClient    *http.Client
	ShellTimeout  time.Duration
	MaxOutputSize int64

	// Collaborators maps a gaia.* route (e.g. "gaia.phase") to the command
	// line of an external collaborator.
	Collaborators map[string]string
}

// RegisterBuiltins installs the standard action set into reg.
func RegisterBuiltins(reg *Registry, cfg BuiltinConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	bridge := NewBridge(GaiaNamespace)
	routes := make([]string, 0, len(cfg.Collaborators))
	for route := range cfg.Collaborators {
		routes = append(routes, route)
	}
	sort.Strings(routes)
	for _, route := range routes {
		c, err := NewCommandCollaborator(cfg.Collaborators[route], cfg.ShellTimeout)
		if err != nil {
			return fmt.Errorf("collaborator %s: %w", route, err)
		}
		if err := bridge.Route(route, c); err != nil {
			return err
		}
	}

	builtins := []struct {
		name    string
		handler Handler
	}{
		{"echo", Echo{}},
		{"vars.set", SetVariables{}},
		{"shell", &Shell{Timeout: cfg.ShellTimeout, MaxOutputSize: cfg.MaxOutputSize}},
		{"http.request", &HTTPRequest{Client: cfg.HTTPClient, MaxResponseSize: cfg.MaxOutputSize}},
		{"notify", &Notify{Bus: cfg.Bus, Logger: logger}},
		{"jq", &JQ{Engine: expressions.NewGoJQEngine()}},
		{"expr.eval", &ExprEval{Engine: expressions.NewExprEngine()}},
		{bridge.Namespace(), bridge},
	}
	for _, b := range builtins {
		if err := reg.Register(b.name, b.handler); err != nil {
			return err
		}
	}

	logger.Debug("built-in actions registered",
		slog.Int("count", len(builtins)),
		slog.Int("collaborators", len(routes)),
	)
	return nil
}
