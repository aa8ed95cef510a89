package validation

import (
	"strings"

	"github.com/rendis/gaiaflow/pkg/schema"
)

const (
	unvisited = iota
	onStack
	finished
)

// checkCycles walks the dependency graph depth-first, keeping the current
// path as a recursion stack. Reaching a step that is still on the stack is a
// back-edge, and the stack slice from that step onward is the cycle.
// References to unknown or duplicate steps are ignored here; earlier stages
// report them.
func checkCycles(wf *schema.Workflow, ids map[string]bool) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	deps := make(map[string][]string, len(ids))
	for _, step := range wf.Steps {
		if !ids[step.ID] {
			continue
		}
		if _, seen := deps[step.ID]; seen {
			continue // duplicate id, first declaration wins
		}
		list := make([]string, 0, len(step.DependsOn))
		for _, d := range step.DependsOn {
			if ids[d] {
				list = append(list, d)
			}
		}
		deps[step.ID] = list
	}

	state := make(map[string]int, len(ids))
	var stack []string

	var visit func(id string)
	visit = func(id string) {
		state[id] = onStack
		stack = append(stack, id)

		for _, dep := range deps[id] {
			switch state[dep] {
			case onStack:
				result.AddError("steps", schema.ErrCodeCycleDetected,
					"dependency cycle detected: "+formatCycle(stack, dep))
			case unvisited:
				visit(dep)
			}
		}

		stack = stack[:len(stack)-1]
		state[id] = finished
	}

	for _, step := range wf.Steps {
		if ids[step.ID] && state[step.ID] == unvisited {
			visit(step.ID)
		}
	}
	return result
}

// formatCycle renders the cycle closed by a back-edge to target, e.g.
// "a -> b -> c -> a", read as "a depends on b depends on c depends on a".
func formatCycle(stack []string, target string) string {
	start := 0
	for i, id := range stack {
		if id == target {
			start = i
			break
		}
	}
	path := append(append([]string{}, stack[start:]...), target)
	return strings.Join(path, " -> ")
}

// HasCycle reports whether the dependency graph of wf contains a cycle.
func HasCycle(wf *schema.Workflow) bool {
	ids := make(map[string]bool, len(wf.Steps))
	for _, s := range wf.Steps {
		if s.ID != "" {
			ids[s.ID] = true
		}
	}
	return !checkCycles(wf, ids).Valid()
}
