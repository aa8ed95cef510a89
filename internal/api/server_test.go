package api

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/gaiaflow/internal/actions"
	"github.com/rendis/gaiaflow/internal/engine"
	"github.com/rendis/gaiaflow/internal/streaming"
	"github.com/rendis/gaiaflow/internal/triggers"
	"github.com/rendis/gaiaflow/pkg/schema"
)

type fixture struct {
	server  *httptest.Server
	bus     *streaming.MemoryBus
	manager *triggers.Manager
}

func newFixture(t *testing.T, workflows ...*schema.Workflow) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := streaming.NewMemoryBus(0)

	reg := actions.NewRegistry()
	require.NoError(t, actions.RegisterBuiltins(reg, actions.BuiltinConfig{Logger: logger, Bus: bus}))
	exec := engine.NewExecutor(reg, engine.ExecutorConfig{Logger: logger, Bus: bus})

	mgr, err := triggers.NewManager(triggers.Config{Runner: exec, Bus: bus, Logger: logger})
	require.NoError(t, err)
	for _, wf := range workflows {
		require.NoError(t, mgr.Register(wf))
	}

	srv := httptest.NewServer(NewServer(Deps{Triggers: mgr, Registry: reg, Bus: bus, Logger: logger}).Handler())
	t.Cleanup(srv.Close)
	return &fixture{server: srv, bus: bus, manager: mgr}
}

func greetWorkflow() *schema.Workflow {
	return &schema.Workflow{
		ID:      "greet",
		Name:    "Greeter",
		Version: "1.0",
		Steps: []schema.Step{
			{ID: "hello", Action: "echo", Parameters: map[string]any{"message": "hi $who"}},
		},
	}
}

func failingWorkflow() *schema.Workflow {
	return &schema.Workflow{
		ID:    "broken",
		Name:  "Broken",
		Steps: []schema.Step{{ID: "nope", Action: "does.not.exist"}},
	}
}

func scheduledOnly() *schema.Workflow {
	return &schema.Workflow{
		ID:       "nightly",
		Name:     "Nightly",
		Triggers: []schema.Trigger{{Type: schema.TriggerSchedule, Config: map[string]any{"cron": "@daily"}}},
		Steps:    []schema.Step{{ID: "a", Action: "echo"}},
	}
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func post(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestHealth(t *testing.T) {
	f := newFixture(t, greetWorkflow())

	var out map[string]any
	assert.Equal(t, http.StatusOK, getJSON(t, f.server.URL+"/healthz", &out))
	assert.Equal(t, true, out["ok"])
	assert.Equal(t, float64(1), out["workflows"])
}

func TestListAndGetWorkflows(t *testing.T) {
	f := newFixture(t, greetWorkflow(), scheduledOnly())

	var list struct {
		Workflows []workflowSummary `json:"workflows"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, f.server.URL+"/api/workflows", &list))
	require.Len(t, list.Workflows, 2)
	assert.Equal(t, "greet", list.Workflows[0].ID)
	assert.Equal(t, 1, list.Workflows[0].Steps)
	assert.Equal(t, "nightly", list.Workflows[1].ID)

	var wf schema.Workflow
	assert.Equal(t, http.StatusOK, getJSON(t, f.server.URL+"/api/workflows/greet", &wf))
	assert.Equal(t, "Greeter", wf.Name)

	assert.Equal(t, http.StatusNotFound, getJSON(t, f.server.URL+"/api/workflows/missing", nil))
}

func TestWorkflowGraph(t *testing.T) {
	f := newFixture(t, greetWorkflow())

	resp, err := http.Get(f.server.URL + "/api/workflows/greet/graph?format=text")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "=== Greeter ===\nwave 1: hello (echo)\n", string(body))

	assert.Equal(t, http.StatusBadRequest, getJSON(t, f.server.URL+"/api/workflows/greet/graph?format=svg", nil))
}

func TestRunWorkflow(t *testing.T) {
	f := newFixture(t, greetWorkflow(), failingWorkflow(), scheduledOnly())

	resp, out := post(t, f.server.URL+"/api/workflows/greet/run", `{"who":"gaia"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "completed", out["status"])
	assert.Equal(t, "api", out["triggered_by"])
	hello := out["results"].(map[string]any)["hello"].(map[string]any)
	assert.Equal(t, "hi gaia", hello["output"].(map[string]any)["message"])

	resp, out = post(t, f.server.URL+"/api/workflows/greet/run", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "completed", out["status"])

	resp, out = post(t, f.server.URL+"/api/workflows/broken/run", "{}")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "failed", out["status"])

	resp, out = post(t, f.server.URL+"/api/workflows/nightly/run", "{}")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, out["error"], "no manual trigger")

	resp, _ = post(t, f.server.URL+"/api/workflows/missing/run", "{}")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, out = post(t, f.server.URL+"/api/workflows/greet/run", "[1,2]")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, out["error"], "JSON object")
}

func TestListActions(t *testing.T) {
	f := newFixture(t)

	var out struct {
		Actions []actions.Entry `json:"actions"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, f.server.URL+"/api/actions", &out))
	require.NotEmpty(t, out.Actions)
	assert.Equal(t, "echo", out.Actions[0].Name)
}

func TestEmitAndHistory(t *testing.T) {
	f := newFixture(t)

	resp, out := post(t, f.server.URL+"/api/events/deploy.requested", `{"env":"prod"}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "deploy.requested", out["event"])

	var history struct {
		Events []streaming.Event `json:"events"`
	}
	assert.Equal(t, http.StatusOK, getJSON(t, f.server.URL+"/api/events?limit=1", &history))
	require.Len(t, history.Events, 1)
	assert.Equal(t, "deploy.requested", history.Events[0].Type)
	assert.Equal(t, "prod", history.Events[0].Payload["env"])
}

func TestSSE(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.server.URL+"/sse/events?type=custom.ping", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// Headers are only sent once the subscription exists.
	require.NoError(t, f.bus.Publish(context.Background(), streaming.Event{Type: "ignored"}))
	require.NoError(t, f.bus.Publish(context.Background(), streaming.Event{Type: "custom.ping", Payload: map[string]any{"n": 1}}))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: custom.ping\n", line)

	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(line, "data: {"))
	assert.Contains(t, line, `"type":"custom.ping"`)
}

func TestWebhookMounted(t *testing.T) {
	wf := greetWorkflow()
	wf.Triggers = []schema.Trigger{{Type: schema.TriggerWebhook, Config: map[string]any{"path": "greet-hook"}}}
	f := newFixture(t, wf)

	resp, out := post(t, f.server.URL+"/hooks/greet-hook", `{"who":"hook"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "webhook", out["triggered_by"])
}

func TestEventRoutesDisabledWithoutBus(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := actions.NewRegistry()
	exec := engine.NewExecutor(reg, engine.ExecutorConfig{Logger: logger})
	mgr, err := triggers.NewManager(triggers.Config{Runner: exec, Logger: logger})
	require.NoError(t, err)

	srv := httptest.NewServer(NewServer(Deps{Triggers: mgr, Logger: logger}).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/sse/events")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
