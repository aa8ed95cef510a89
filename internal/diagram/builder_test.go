package diagram

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/gaiaflow/internal/engine"
	"github.com/rendis/gaiaflow/pkg/schema"
)

func linearWorkflow() *schema.Workflow {
	return &schema.Workflow{
		ID:   "etl",
		Name: "ETL Pipeline",
		Steps: []schema.Step{
			{ID: "fetch", Action: "http.request"},
			{ID: "transform", Action: "jq", DependsOn: []string{"fetch"}},
			{ID: "store", Action: "shell", DependsOn: []string{"transform"}},
		},
	}
}

func diamondWorkflow() *schema.Workflow {
	return &schema.Workflow{
		ID: "diamond",
		Steps: []schema.Step{
			{ID: "a", Action: "echo"},
			{ID: "b", Action: "echo", DependsOn: []string{"a"}},
			{ID: "c", Action: "echo", DependsOn: []string{"a"}, Condition: "$go == yes"},
			{ID: "d", Action: "echo", DependsOn: []string{"b", "c"}},
		},
	}
}

func TestBuild_Linear(t *testing.T) {
	model := Build(linearWorkflow(), nil)

	assert.Equal(t, "ETL Pipeline", model.Title)
	require.Len(t, model.Nodes, 5)
	assert.Equal(t, StartID, model.Nodes[0].ID)
	assert.Equal(t, EndID, model.Nodes[4].ID)
	assert.Equal(t, NodeKindAction, model.Node("fetch").Kind)
	assert.Equal(t, "jq", model.Node("transform").Action)

	assert.Equal(t, []Edge{
		{From: StartID, To: "fetch"},
		{From: "fetch", To: "transform"},
		{From: "transform", To: "store"},
		{From: "store", To: EndID},
	}, model.Edges)

	assert.Equal(t, [][]string{{StartID}, {"fetch"}, {"transform"}, {"store"}, {EndID}}, model.Levels)
}

func TestBuild_Diamond(t *testing.T) {
	model := Build(diamondWorkflow(), nil)

	assert.Equal(t, "diamond", model.Title)
	assert.Equal(t, [][]string{{StartID}, {"a"}, {"b", "c"}, {"d"}, {EndID}}, model.Levels)
	assert.True(t, model.Node("c").Conditional)
	assert.False(t, model.Node("b").Conditional)
	assert.Nil(t, model.Node("nope"))
}

func TestBuild_UnknownDependency(t *testing.T) {
	wf := &schema.Workflow{
		ID: "broken",
		Steps: []schema.Step{
			{ID: "a", Action: "echo"},
			{ID: "b", Action: "echo", DependsOn: []string{"ghost"}},
		},
	}

	model := Build(wf, nil)
	assert.Contains(t, model.Edges, Edge{From: "ghost", To: "b", Label: "missing"})
	assert.Equal(t, [][]string{{StartID}, {"a"}, {"b"}, {EndID}}, model.Levels)
}

func TestBuild_StatusOverlay(t *testing.T) {
	exec := &engine.Execution{
		Status: schema.ExecutionStatusFailed,
		Results: map[string]*engine.StepResult{
			"a": {StepID: "a", Status: schema.StepStatusCompleted, Duration: 120 * time.Millisecond, Wave: 1},
			"b": {StepID: "b", Status: schema.StepStatusFailed, Error: "boom", Wave: 2},
			"c": {StepID: "c", Status: schema.StepStatusSkipped, Reason: "condition not met: $go == yes", Wave: 2},
		},
	}

	model := Build(diamondWorkflow(), exec)

	a := model.Node("a").Status
	require.NotNil(t, a)
	assert.Equal(t, "completed", a.Status)
	assert.Equal(t, int64(120), a.DurationMs)
	assert.Equal(t, 1, a.Wave)

	assert.Equal(t, "boom", model.Node("b").Status.Error)
	assert.Equal(t, "condition not met: $go == yes", model.Node("c").Status.Reason)
	assert.Nil(t, model.Node("d").Status)
	assert.Nil(t, model.Node(StartID).Status)
}

func TestBuild_LabelPrefersName(t *testing.T) {
	wf := &schema.Workflow{Steps: []schema.Step{{ID: "a", Name: "Fetch data", Action: "echo"}}}

	model := Build(wf, nil)
	assert.Equal(t, "Workflow", model.Title)
	assert.Equal(t, "Fetch data", model.Node("a").Label)
}
