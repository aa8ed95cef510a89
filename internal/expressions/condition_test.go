package expressions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateCondition(t *testing.T) {
	vars := map[string]any{
		"env":     "staging",
		"count":   3,
		"ratio":   0.5,
		"enabled": true,
		"empty":   "",
		"nothing": nil,
	}

	tests := []struct {
		name string
		cond string
		want bool
	}{
		{"empty always runs", "", true},
		{"blank always runs", "   ", true},
		{"exists", "$env exists", true},
		{"exists without dollar", "env exists", true},
		{"exists nil value", "$nothing exists", true},
		{"missing does not exist", "$missing exists", false},
		{"equals string", "$env == staging", true},
		{"equals double quoted", `$env == "staging"`, true},
		{"equals single quoted", "$env == 'staging'", true},
		{"not equal", "$env == prod", false},
		{"equals int", "$count == 3", true},
		{"equals float", "$ratio == 0.5", true},
		{"equals bool", "$enabled == true", true},
		{"missing equals empty", `$missing == ""`, true},
		{"missing equals value", "$missing == x", false},
		{"empty string equals empty", "$empty == ''", true},
		{"unparseable fails open", "$count > 10", true},
		{"garbage fails open", "%%%", true},
		{"bad identifier fails open", "$1abc exists", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, EvaluateCondition(tc.cond, vars))
		})
	}
}

func TestParseCondition(t *testing.T) {
	c, err := ParseCondition("")
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.True(t, c.Evaluate(nil))

	c, err = ParseCondition("  $phase   exists ")
	require.NoError(t, err)
	assert.Equal(t, &Condition{Variable: "phase", Op: OpExists}, c)

	c, err = ParseCondition(`$phase=="implement"`)
	require.NoError(t, err)
	assert.Equal(t, &Condition{Variable: "phase", Op: OpEquals, Literal: "implement"}, c)

	_, err = ParseCondition("$phase != implement")
	assert.Error(t, err)

	_, err = ParseCondition("== x")
	assert.Error(t, err)

	_, err = ParseCondition("$a b exists")
	assert.Error(t, err)
}
