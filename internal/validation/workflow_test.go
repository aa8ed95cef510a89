package validation

import (
	"strings"
	"testing"

	"github.com/rendis/gaiaflow/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wf(steps ...schema.Step) *schema.Workflow {
	return &schema.Workflow{ID: "w1", Name: "test", Steps: steps}
}

func step(id string, deps ...string) schema.Step {
	return schema.Step{ID: id, Action: "echo", DependsOn: deps}
}

func TestValidate_Valid(t *testing.T) {
	errs := Validate(wf(step("a"), step("b", "a"), step("c", "a"), step("d", "b", "c")))
	assert.Empty(t, errs)
}

func TestValidate_Nil(t *testing.T) {
	assert.Equal(t, []string{"workflow is nil"}, Validate(nil))
}

func TestValidate_MissingIdentity(t *testing.T) {
	w := wf(step("a"))
	w.ID = ""
	w.Name = ""

	assert.Equal(t, []string{"workflow id is required", "workflow name is required"}, Validate(w))
}

func TestValidate_StepIDs(t *testing.T) {
	errs := Validate(wf(step("a"), schema.Step{Action: "echo"}, step("a")))
	require.Len(t, errs, 2)
	assert.Equal(t, "step at index 1 has no id", errs[0])
	assert.Equal(t, `duplicate step id "a" (steps[0] and steps[2])`, errs[1])
}

func TestValidate_DanglingDependency(t *testing.T) {
	errs := Validate(wf(step("a"), step("b", "a", "ghost")))
	assert.Equal(t, []string{`step "b" depends on unknown step "ghost"`}, errs)
}

func TestValidate_AccumulatesInOrder(t *testing.T) {
	w := wf(step("a", "b"), step("b", "a"), step("c", "nope"))
	w.Name = ""

	errs := Validate(w)
	require.Len(t, errs, 3)
	assert.Equal(t, "workflow name is required", errs[0])
	assert.Contains(t, errs[1], "unknown step")
	assert.Contains(t, errs[2], "cycle")
}

func TestValidate_Cycles(t *testing.T) {
	tests := []struct {
		name  string
		steps []schema.Step
		want  string
	}{
		{"self", []schema.Step{step("a", "a")}, "dependency cycle detected: a -> a"},
		{"pair", []schema.Step{step("a", "b"), step("b", "a")}, "dependency cycle detected: a -> b -> a"},
		{"triangle", []schema.Step{step("a", "c"), step("b", "a"), step("c", "b")}, "dependency cycle detected: a -> c -> b -> a"},
		{"tail into loop", []schema.Step{step("x", "a"), step("a", "b"), step("b", "a")}, "dependency cycle detected: a -> b -> a"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := wf(tc.steps...)
			errs := Validate(w)
			require.Len(t, errs, 1)
			assert.Equal(t, tc.want, errs[0])
			assert.True(t, HasCycle(w))

			result := Check(w)
			assert.Equal(t, schema.ErrCodeCycleDetected, result.Errors[0].Code)
		})
	}
}

func TestValidate_DiamondIsNotACycle(t *testing.T) {
	w := wf(step("a"), step("b", "a"), step("c", "a"), step("d", "b", "c", "a"))
	assert.False(t, HasCycle(w))
}

func TestValidate_Triggers(t *testing.T) {
	w := wf(step("a"))
	w.Triggers = []schema.Trigger{
		{Type: schema.TriggerManual},
		{Type: schema.TriggerSchedule, Config: map[string]any{"cron": "*/5 * * * *"}},
		{Type: schema.TriggerSchedule, Config: map[string]any{"cron": "@daily"}},
		{Type: schema.TriggerSchedule},
		{Type: schema.TriggerSchedule, Config: map[string]any{"cron": "not a cron"}},
		{Type: schema.TriggerEvent, Config: map[string]any{"event": "phase.advanced"}},
		{Type: schema.TriggerEvent},
		{Type: schema.TriggerWebhook, Config: map[string]any{"path": "deploy"}},
		{Type: "telepathy"},
	}

	errs := Validate(w)
	require.Len(t, errs, 4)
	assert.Equal(t, "schedule trigger 3 has no cron expression", errs[0])
	assert.True(t, strings.HasPrefix(errs[1], "schedule trigger 4: parse cron expression"))
	assert.Equal(t, "event trigger 6 has no event name", errs[2])
	assert.Equal(t, `trigger 8 has unknown type "telepathy"`, errs[3])
}

func TestCheck_Warnings(t *testing.T) {
	w := wf(
		schema.Step{ID: "a"},
		schema.Step{ID: "b", Action: "echo", Condition: "$x > 3"},
		schema.Step{ID: "c", Action: "echo", Condition: "$x exists"},
	)

	result := Check(w)
	assert.True(t, result.Valid())
	require.Len(t, result.Warnings, 2)
	assert.Equal(t, "steps[0].action", result.Warnings[0].Path)
	assert.Equal(t, "steps[1].condition", result.Warnings[1].Path)
	assert.Contains(t, result.Warnings[1].Message, "will always pass")
}

func TestParseCron(t *testing.T) {
	_, err := ParseCron("0 9 * * 1-5")
	assert.NoError(t, err)

	_, err = ParseCron("61 * * * *")
	assert.Error(t, err)
}
