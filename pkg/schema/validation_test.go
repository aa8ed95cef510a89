package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationResult_EmptyIsValid(t *testing.T) {
	r := &ValidationResult{}
	assert.True(t, r.Valid())
	assert.NoError(t, r.ToError())
	assert.Empty(t, r.Messages())
}

func TestValidationResult_WarningsDoNotInvalidate(t *testing.T) {
	r := &ValidationResult{}
	r.AddWarning("triggers[0]", ErrCodeValidation, "unused trigger")

	assert.True(t, r.Valid())
	assert.Equal(t, []string{"unused trigger"}, r.WarningMessages())
}

func TestValidationResult_MessagesKeepOrder(t *testing.T) {
	r := &ValidationResult{}
	r.AddError("id", ErrCodeValidation, "workflow id is required")
	other := &ValidationResult{}
	other.AddError("steps", ErrCodeCycleDetected, "dependency cycle detected: a -> b -> a")
	r.Merge(other)
	r.Merge(nil)

	assert.Equal(t, []string{
		"workflow id is required",
		"dependency cycle detected: a -> b -> a",
	}, r.Messages())
	assert.Equal(t, SeverityError, r.Errors[1].Severity)
}

func TestValidationResult_ToError(t *testing.T) {
	r := &ValidationResult{}
	r.AddError("id", ErrCodeValidation, "first")
	r.AddError("name", ErrCodeValidation, "second")

	err := r.ToError()
	require.Error(t, err)

	var fe *FlowError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, ErrCodeValidation, fe.Code)
	assert.Equal(t, "first (and 1 more)", fe.Message)
	assert.Equal(t, []string{"first", "second"}, fe.Details["errors"])
}

func TestFlowError_Format(t *testing.T) {
	cause := errors.New("boom")
	err := NewErrorf(ErrCodeStepFailed, "handler %s failed", "shell").WithStep("build").WithCause(cause)

	assert.Equal(t, "[STEP_FAILED] step build: handler shell failed", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.True(t, HasCode(err, ErrCodeStepFailed))
	assert.False(t, HasCode(cause, ErrCodeStepFailed))
	assert.Equal(t, "handler shell failed", Message(err))
	assert.Equal(t, "boom", Message(cause))
	assert.Equal(t, "", Message(nil))
}
