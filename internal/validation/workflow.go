package validation

import (
	"fmt"

	"github.com/rendis/gaiaflow/internal/expressions"
	"github.com/rendis/gaiaflow/pkg/schema"
)

// Validate runs every static check on wf and returns the error messages in
// the order they were found. An empty list means the workflow is executable.
func Validate(wf *schema.Workflow) []string {
	return Check(wf).Messages()
}

// Check runs the validation pipeline and returns structured issues. Stages
// run in a fixed order and all of them always run:
//  1. workflow id and name
//  2. step ids present and unique
//  3. depends_on references resolve
//  4. no dependency cycles
//  5. trigger configuration
//
// Warnings (unparseable conditions, steps without an action) never block.
func Check(wf *schema.Workflow) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	if wf == nil {
		result.AddError("/", schema.ErrCodeValidation, "workflow is nil")
		return result
	}

	checkIdentity(wf, result)
	ids := checkStepIDs(wf, result)
	checkDependencies(wf, ids, result)
	result.Merge(checkCycles(wf, ids))
	result.Merge(checkTriggers(wf))
	checkStepWarnings(wf, result)

	return result
}

func checkIdentity(wf *schema.Workflow, result *schema.ValidationResult) {
	if wf.ID == "" {
		result.AddError("id", schema.ErrCodeValidation, "workflow id is required")
	}
	if wf.Name == "" {
		result.AddError("name", schema.ErrCodeValidation, "workflow name is required")
	}
}

// checkStepIDs returns the set of distinct non-empty step ids.
func checkStepIDs(wf *schema.Workflow, result *schema.ValidationResult) map[string]bool {
	ids := make(map[string]bool, len(wf.Steps))
	firstSeen := make(map[string]int, len(wf.Steps))

	for i, step := range wf.Steps {
		path := fmt.Sprintf("steps[%d].id", i)
		if step.ID == "" {
			result.AddError(path, schema.ErrCodeValidation, fmt.Sprintf("step at index %d has no id", i))
			continue
		}
		if prev, dup := firstSeen[step.ID]; dup {
			result.AddError(path, schema.ErrCodeConflict,
				fmt.Sprintf("duplicate step id %q (steps[%d] and steps[%d])", step.ID, prev, i))
			continue
		}
		firstSeen[step.ID] = i
		ids[step.ID] = true
	}
	return ids
}

func checkDependencies(wf *schema.Workflow, ids map[string]bool, result *schema.ValidationResult) {
	for i, step := range wf.Steps {
		for _, dep := range step.DependsOn {
			if ids[dep] {
				continue
			}
			result.AddError(fmt.Sprintf("steps[%d].depends_on", i), schema.ErrCodeNotFound,
				fmt.Sprintf("step %q depends on unknown step %q", step.ID, dep))
		}
	}
}

func checkStepWarnings(wf *schema.Workflow, result *schema.ValidationResult) {
	for i, step := range wf.Steps {
		if step.Action == "" {
			result.AddWarning(fmt.Sprintf("steps[%d].action", i), schema.ErrCodeValidation,
				fmt.Sprintf("step %q has no action and will fail at run time", step.ID))
		}
		if step.Condition == "" {
			continue
		}
		if _, err := expressions.ParseCondition(step.Condition); err != nil {
			result.AddWarning(fmt.Sprintf("steps[%d].condition", i), schema.ErrCodeValidation,
				fmt.Sprintf("step %q condition %q is not understood and will always pass: %v",
					step.ID, step.Condition, err))
		}
	}
}
