package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rendis/gaiaflow/internal/diagram"
	"github.com/rendis/gaiaflow/internal/engine"
	"github.com/rendis/gaiaflow/internal/validation"
	"github.com/rendis/gaiaflow/pkg/schema"
)

// validationReport is the payload of gaiaflow.validate, and of gaiaflow.run
// when the document is rejected.
type validationReport struct {
	Valid      bool                     `json:"valid"`
	WorkflowID string                   `json:"workflow_id,omitempty"`
	Errors     []schema.ValidationIssue `json:"errors,omitempty"`
	Warnings   []schema.ValidationIssue `json:"warnings,omitempty"`
}

func newValidationReport(wf *schema.Workflow, result *schema.ValidationResult) validationReport {
	r := validationReport{Valid: result.Valid(), Errors: result.Errors, Warnings: result.Warnings}
	if wf != nil {
		r.WorkflowID = wf.ID
	}
	return r
}

// handleRun validates and executes a workflow document.
func (s *Server) handleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	document, err := req.RequireString("document")
	if err != nil {
		return mcp.NewToolResultError("document is required"), nil
	}
	if s.executor == nil {
		return mcp.NewToolResultError("executor not configured"), nil
	}

	var timeout time.Duration
	if raw := req.GetString("timeout", ""); raw != "" {
		timeout, err = time.ParseDuration(raw)
		if err != nil || timeout < 0 {
			return mcp.NewToolResultError(fmt.Sprintf("invalid timeout %q", raw)), nil
		}
	}

	wf, result := validation.Load([]byte(document))
	if !result.Valid() {
		return errorJSON(newValidationReport(wf, result))
	}

	exec, runErr := s.executor.Execute(ctx, wf, engine.RunOptions{
		Variables:   mcp.ParseStringMap(req, "variables", nil),
		TriggeredBy: "mcp",
		Timeout:     timeout,
	})
	if runErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("workflow execution failed: %v", runErr)), nil
	}

	s.logger.Info("workflow executed via mcp",
		"workflow_id", exec.WorkflowID,
		"execution_id", exec.ExecutionID,
		"status", exec.Status,
	)
	return marshalResult(exec)
}

// handleValidate reports every issue in a document. An invalid document is
// a successful call with valid=false.
func (s *Server) handleValidate(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	document, err := req.RequireString("document")
	if err != nil {
		return mcp.NewToolResultError("document is required"), nil
	}
	wf, result := validation.Load([]byte(document))
	return marshalResult(newValidationReport(wf, result))
}

// handleGraph renders a document's dependency diagram.
func (s *Server) handleGraph(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	document, err := req.RequireString("document")
	if err != nil {
		return mcp.NewToolResultError("document is required"), nil
	}
	format := req.GetString("format", "mermaid")

	wf, result := validation.Load([]byte(document))
	if wf == nil {
		return errorJSON(newValidationReport(wf, result))
	}

	model := diagram.Build(wf, nil)
	var out string
	switch format {
	case "mermaid":
		out = diagram.RenderMermaid(model)
	case "text":
		out = diagram.RenderText(model)
	case "ascii":
		out = diagram.RenderASCII(model)
	default:
		return mcp.NewToolResultError("format must be mermaid, text, or ascii"), nil
	}

	return marshalResult(map[string]any{
		"workflow_id": wf.ID,
		"format":      format,
		"diagram":     out,
		"valid":       result.Valid(),
	})
}

// handleActions lists the action registry.
func (s *Server) handleActions(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.registry == nil {
		return mcp.NewToolResultError("action registry not configured"), nil
	}
	return marshalResult(map[string]any{"actions": s.registry.List()})
}

// handleWorkflows lists the workflows registered for triggering.
func (s *Server) handleWorkflows(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	type entry struct {
		ID       string           `json:"id"`
		Name     string           `json:"name"`
		Triggers []schema.Trigger `json:"triggers,omitempty"`
	}

	ids := s.triggers.Workflows()
	out := make([]entry, 0, len(ids))
	for _, id := range ids {
		wf, ok := s.triggers.Workflow(id)
		if !ok {
			continue
		}
		out = append(out, entry{ID: wf.ID, Name: wf.Name, Triggers: wf.Triggers})
	}
	return marshalResult(map[string]any{"workflows": out})
}

// handleFire runs a registered workflow synchronously.
func (s *Server) handleFire(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflowID, err := req.RequireString("workflow_id")
	if err != nil {
		return mcp.NewToolResultError("workflow_id is required"), nil
	}

	exec, fireErr := s.triggers.Fire(ctx, workflowID, "mcp", mcp.ParseStringMap(req, "variables", nil))
	if fireErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("fire failed: %s", schema.Message(fireErr))), nil
	}
	return marshalResult(exec)
}

// handleEmit publishes a custom event.
func (s *Server) handleEmit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	event, err := req.RequireString("event")
	if err != nil {
		return mcp.NewToolResultError("event is required"), nil
	}

	if emitErr := s.triggers.Emit(ctx, event, mcp.ParseStringMap(req, "payload", nil)); emitErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("emit failed: %v", emitErr)), nil
	}
	return marshalResult(map[string]any{"ok": true, "event": event})
}

// --- Helpers ---

func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}

// errorJSON is marshalResult with IsError set, for failures that carry a
// structured body.
func errorJSON(v any) (*mcp.CallToolResult, error) {
	result, err := marshalResult(v)
	if err != nil {
		return nil, err
	}
	result.IsError = true
	return result, nil
}
