package actions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/gaiaflow/pkg/schema"
)

func named(name string) Handler {
	return HandlerFunc(func(_ context.Context, _ Invocation) (*Result, error) {
		return &Result{Output: name}, nil
	})
}

func resolveName(t *testing.T, reg *Registry, action string) string {
	t.Helper()
	h, err := reg.Resolve(action)
	require.NoError(t, err)
	res, err := h.Execute(context.Background(), Invocation{Action: action})
	require.NoError(t, err)
	return res.Output.(string)
}

func TestRegistry_ExactAndPrefix(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("shell", named("shell")))
	require.NoError(t, reg.Register("gaia.", named("gaia")))
	require.NoError(t, reg.Register("gaia.phase", named("phase")))

	assert.Equal(t, "shell", resolveName(t, reg, "shell"))
	assert.Equal(t, "shell", resolveName(t, reg, "shell.run"))
	assert.Equal(t, "gaia", resolveName(t, reg, "gaia.skill.install"))
	assert.Equal(t, "phase", resolveName(t, reg, "gaia.phase"))
	assert.Equal(t, "phase", resolveName(t, reg, "gaia.phase.advance"))
}

func TestRegistry_ExactBeatsPrefix(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("gaia.", named("prefix")))
	require.NoError(t, reg.Register("gaia.status", named("exact")))

	assert.Equal(t, "exact", resolveName(t, reg, "gaia.status"))
	assert.Equal(t, "prefix", resolveName(t, reg, "gaia.other"))
}

func TestRegistry_NotFound(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("shell", named("shell")))

	for _, action := range []string{"", "shel", "shellx", "sh.ell", "gaia.phase"} {
		_, err := reg.Resolve(action)
		require.Error(t, err, action)
		assert.True(t, schema.HasCode(err, schema.ErrCodeNotFound))
	}

	_, err := reg.Resolve("nope")
	assert.EqualError(t, err, `[NOT_FOUND] handler not found for action "nope"`)
}

func TestRegistry_RegisterErrors(t *testing.T) {
	reg := NewRegistry()

	assert.True(t, schema.HasCode(reg.Register("", named("x")), schema.ErrCodeValidation))
	assert.True(t, schema.HasCode(reg.Register(".", named("x")), schema.ErrCodeValidation))
	assert.True(t, schema.HasCode(reg.Register("echo", nil), schema.ErrCodeValidation))

	require.NoError(t, reg.Register("echo", named("x")))
	assert.True(t, schema.HasCode(reg.Register("echo", named("y")), schema.ErrCodeConflict))
	assert.Panics(t, func() { reg.MustRegister("echo", named("z")) })
}

func TestRegistry_Unregister(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("gaia", named("bare")))
	require.NoError(t, reg.Register("gaia.", named("dotted")))

	assert.Equal(t, "dotted", resolveName(t, reg, "gaia.x"))

	assert.True(t, reg.Unregister("gaia."))
	assert.False(t, reg.Unregister("gaia."))
	assert.Equal(t, "bare", resolveName(t, reg, "gaia.x"))
	assert.Equal(t, "bare", resolveName(t, reg, "gaia"))

	assert.True(t, reg.Unregister("gaia"))
	_, err := reg.Resolve("gaia")
	assert.Error(t, err)
	assert.Zero(t, reg.Count())
}

func TestRegistry_List(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, RegisterBuiltins(reg, BuiltinConfig{}))

	names := make([]string, 0, reg.Count())
	for _, e := range reg.List() {
		names = append(names, e.Name)
		assert.NotEmpty(t, e.Description, e.Name)
	}
	assert.Equal(t, []string{"echo", "expr.eval", "gaia.", "http.request", "jq", "notify", "shell", "vars.set"}, names)
	assert.True(t, reg.Has("gaia."))
	assert.False(t, reg.Has("gaia"))
}

func TestRegisterBuiltins_Conflict(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("echo", named("mine")))

	err := RegisterBuiltins(reg, BuiltinConfig{})
	assert.True(t, schema.HasCode(err, schema.ErrCodeConflict))
}

func TestRegisterBuiltins_BadCollaborator(t *testing.T) {
	err := RegisterBuiltins(NewRegistry(), BuiltinConfig{
		Collaborators: map[string]string{"other.phase": "cat"},
	})
	assert.Error(t, err)

	err = RegisterBuiltins(NewRegistry(), BuiltinConfig{
		Collaborators: map[string]string{"gaia.phase": "  "},
	})
	assert.Error(t, err)
}
