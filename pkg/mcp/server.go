package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/gaiaflow/internal/actions"
	"github.com/rendis/gaiaflow/internal/engine"
	"github.com/rendis/gaiaflow/internal/triggers"
)

// ServerDeps holds the dependencies for creating a Server.
type ServerDeps struct {
	Executor *engine.Executor
	Registry *actions.Registry
	Triggers *triggers.Manager // optional; enables the registered-workflow tools
	Logger   *slog.Logger
	Version  string
}

// Server wraps an MCP server with gaiaflow tool handlers.
type Server struct {
	executor  *engine.Executor
	registry  *actions.Registry
	triggers  *triggers.Manager
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewServer creates a Server with every tool its dependencies allow.
func NewServer(deps ServerDeps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	version := deps.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{
		executor: deps.Executor,
		registry: deps.Registry,
		triggers: deps.Triggers,
		logger:   logger,
	}

	mcpSrv := server.NewMCPServer(
		"gaiaflow",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("gaiaflow runs declarative workflows of dependent steps. Use gaiaflow.validate to check a YAML or JSON workflow document, gaiaflow.run to execute it, gaiaflow.graph to see its execution waves and gaiaflow.actions to list the actions steps may use."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) tools() []server.ServerTool {
	tools := []server.ServerTool{
		{Tool: runTool(), Handler: s.handleRun},
		{Tool: validateTool(), Handler: s.handleValidate},
		{Tool: graphTool(), Handler: s.handleGraph},
		{Tool: actionsTool(), Handler: s.handleActions},
	}
	if s.triggers != nil {
		tools = append(tools,
			server.ServerTool{Tool: workflowsTool(), Handler: s.handleWorkflows},
			server.ServerTool{Tool: fireTool(), Handler: s.handleFire},
			server.ServerTool{Tool: emitTool(), Handler: s.handleEmit},
		)
	}
	return tools
}

// --- Tool definitions ---

func runTool() mcp.Tool {
	return mcp.NewTool("gaiaflow.run",
		mcp.WithDescription("Validate and execute a workflow document"),
		mcp.WithString("document", mcp.Required(), mcp.Description("Workflow document (YAML or JSON)")),
		mcp.WithObject("variables", mcp.Description("Initial variables, overlaid on the workflow's own")),
		mcp.WithString("timeout", mcp.Description("Execution timeout as a Go duration, e.g. 30s")),
	)
}

func validateTool() mcp.Tool {
	return mcp.NewTool("gaiaflow.validate",
		mcp.WithDescription("Check a workflow document without running it"),
		mcp.WithString("document", mcp.Required(), mcp.Description("Workflow document (YAML or JSON)")),
	)
}

func graphTool() mcp.Tool {
	return mcp.NewTool("gaiaflow.graph",
		mcp.WithDescription("Render the dependency graph of a workflow document"),
		mcp.WithString("document", mcp.Required(), mcp.Description("Workflow document (YAML or JSON)")),
		mcp.WithString("format",
			mcp.Enum("mermaid", "text", "ascii"),
			mcp.Description("Output format (default: mermaid)"),
		),
	)
}

func actionsTool() mcp.Tool {
	return mcp.NewTool("gaiaflow.actions",
		mcp.WithDescription("List registered action names and namespace prefixes"),
	)
}

func workflowsTool() mcp.Tool {
	return mcp.NewTool("gaiaflow.workflows",
		mcp.WithDescription("List workflows registered with the trigger manager"),
	)
}

func fireTool() mcp.Tool {
	return mcp.NewTool("gaiaflow.fire",
		mcp.WithDescription("Run a registered workflow through its manual trigger"),
		mcp.WithString("workflow_id", mcp.Required(), mcp.Description("ID of the registered workflow")),
		mcp.WithObject("variables", mcp.Description("Initial variables")),
	)
}

func emitTool() mcp.Tool {
	return mcp.NewTool("gaiaflow.emit",
		mcp.WithDescription("Publish a custom event for event-triggered workflows"),
		mcp.WithString("event", mcp.Required(), mcp.Description("Event name")),
		mcp.WithObject("payload", mcp.Description("Event payload")),
	)
}
