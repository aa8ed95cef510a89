package api

import (
	"net/http"
	"strings"

	"github.com/rendis/gaiaflow/internal/diagram"
	"github.com/rendis/gaiaflow/pkg/schema"
)

type workflowSummary struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Version     string           `json:"version"`
	Steps       int              `json:"steps"`
	Triggers    []schema.Trigger `json:"triggers,omitempty"`
}

func summarize(wf *schema.Workflow) workflowSummary {
	return workflowSummary{
		ID:          wf.ID,
		Name:        wf.Name,
		Description: wf.Description,
		Version:     wf.Version,
		Steps:       len(wf.Steps),
		Triggers:    wf.Triggers,
	}
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, _ *http.Request) {
	ids := s.deps.Triggers.Workflows()
	out := make([]workflowSummary, 0, len(ids))
	for _, id := range ids {
		if wf, ok := s.deps.Triggers.Workflow(id); ok {
			out = append(out, summarize(wf))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"workflows": out})
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, ok := s.deps.Triggers.Workflow(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "workflow not found")
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

func (s *Server) handleWorkflowGraph(w http.ResponseWriter, r *http.Request) {
	wf, ok := s.deps.Triggers.Workflow(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "workflow not found")
		return
	}

	model := diagram.Build(wf, nil)
	var out string
	switch format := r.URL.Query().Get("format"); format {
	case "", "mermaid":
		out = diagram.RenderMermaid(model)
	case "text":
		out = diagram.RenderText(model)
	case "ascii":
		out = diagram.RenderASCII(model)
	default:
		writeError(w, http.StatusBadRequest, "format must be mermaid, text, or ascii")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(out))
}

// handleRunWorkflow fires a workflow's manual trigger and responds with the
// finished Execution: 200 when it completed, 422 when it failed.
func (s *Server) handleRunWorkflow(w http.ResponseWriter, r *http.Request) {
	variables, err := decodeObject(r)
	if err != nil {
		writeFlowError(w, err)
		return
	}

	exec, err := s.deps.Triggers.Fire(r.Context(), r.PathValue("id"), "api", variables)
	if err != nil {
		writeFlowError(w, err)
		return
	}

	status := http.StatusOK
	if !exec.Succeeded() {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, exec)
}

func (s *Server) handleListActions(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Registry == nil {
		writeJSON(w, http.StatusOK, map[string]any{"actions": []any{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"actions": s.deps.Registry.List()})
}

func (s *Server) handleEventHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	if limit < 0 {
		limit = 0
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": s.deps.Bus.History(limit)})
}

func (s *Server) handleEmitEvent(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.PathValue("name"))
	payload, err := decodeObject(r)
	if err != nil {
		writeFlowError(w, err)
		return
	}
	if err := s.deps.Triggers.Emit(r.Context(), name, payload); err != nil {
		writeFlowError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true, "event": name})
}

