package triggers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rendis/gaiaflow/pkg/schema"
)

// WebhookPrefix is the URL prefix served by WebhookHandler.
const WebhookPrefix = "/hooks/"

const maxWebhookBody = 1 << 20

// WebhookHandler serves POST /hooks/{path}. The path is the webhook
// trigger's config.path, or the workflow ID when unset. A JSON object body
// becomes the run's variables. The run is synchronous and the response is
// the Execution: 200 when it completed, 422 when it failed.
func (m *Manager) WebhookHandler() http.Handler {
	return http.HandlerFunc(m.serveWebhook)
}

func (m *Manager) serveWebhook(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, WebhookPrefix), "/")
	wf := m.webhookTarget(path)
	if path == "" || wf == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no webhook registered for " + r.URL.Path})
		return
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method " + r.Method + " not allowed"})
		return
	}

	variables, err := decodeWebhookBody(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	exec, err := m.run(r.Context(), wf, string(schema.TriggerWebhook), variables)
	if err != nil {
		m.logger.Error("webhook run failed", slog.String("workflow_id", wf.ID), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": schema.Message(err)})
		return
	}

	code := http.StatusOK
	if exec.Status != schema.ExecutionStatusCompleted {
		code = http.StatusUnprocessableEntity
	}
	writeJSON(w, code, exec)
}

// webhookTarget finds the workflow whose webhook trigger serves path.
func (m *Manager) webhookTarget(path string) *schema.Workflow {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, id := range m.sortedIDsLocked() {
		wf := m.workflows[id]
		for _, tr := range wf.TriggersOf(schema.TriggerWebhook) {
			p := strings.Trim(tr.ConfigString("path"), "/")
			if p == "" {
				p = wf.ID
			}
			if p == path {
				return wf
			}
		}
	}
	return nil
}

// WebhookPaths lists the served paths by workflow ID.
func (m *Manager) WebhookPaths() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]string)
	for id, wf := range m.workflows {
		for _, tr := range wf.TriggersOf(schema.TriggerWebhook) {
			p := strings.Trim(tr.ConfigString("path"), "/")
			if p == "" {
				p = id
			}
			out[id] = WebhookPrefix + p
		}
	}
	return out
}

func decodeWebhookBody(body io.Reader) (map[string]any, error) {
	raw, err := io.ReadAll(io.LimitReader(body, maxWebhookBody))
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, nil
	}
	var vars map[string]any
	if err := json.Unmarshal(raw, &vars); err != nil {
		return nil, errors.New("request body must be a JSON object")
	}
	return vars, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
