package engine

import (
	"github.com/rendis/gaiaflow/pkg/schema"
)

// Graph is the static dependency view of a workflow, built once per
// execution. Step order is always declaration order so every traversal is
// deterministic.
type Graph struct {
	order      []string
	steps      map[string]*schema.Step
	index      map[string]int
	deps       map[string][]string // step ID -> dependencies (deduplicated)
	dependents map[string][]string // step ID -> direct dependents
}

// NewGraph indexes wf. It tolerates invalid definitions (the first step
// wins for duplicate IDs, unknown dependencies are kept) so it can also back
// diagrams of workflows that failed validation.
func NewGraph(wf *schema.Workflow) *Graph {
	g := &Graph{
		steps:      make(map[string]*schema.Step, len(wf.Steps)),
		index:      make(map[string]int, len(wf.Steps)),
		deps:       make(map[string][]string, len(wf.Steps)),
		dependents: make(map[string][]string, len(wf.Steps)),
	}

	for i := range wf.Steps {
		s := &wf.Steps[i]
		if _, dup := g.steps[s.ID]; dup {
			continue
		}
		g.steps[s.ID] = s
		g.index[s.ID] = len(g.order)
		g.order = append(g.order, s.ID)
	}

	for _, id := range g.order {
		seen := make(map[string]bool)
		for _, dep := range g.steps[id].DependsOn {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			g.deps[id] = append(g.deps[id], dep)
			if _, ok := g.steps[dep]; ok {
				g.dependents[dep] = append(g.dependents[dep], id)
			}
		}
	}
	return g
}

// Order returns step IDs in declaration order.
func (g *Graph) Order() []string { return g.order }

// Len returns the number of distinct steps.
func (g *Graph) Len() int { return len(g.order) }

// Step returns the step definition for id.
func (g *Graph) Step(id string) (*schema.Step, bool) {
	s, ok := g.steps[id]
	return s, ok
}

// Dependencies returns the distinct dependencies of id.
func (g *Graph) Dependencies(id string) []string { return g.deps[id] }

// Dependents returns the steps that depend directly on id.
func (g *Graph) Dependents(id string) []string { return g.dependents[id] }

// Roots returns the steps without dependencies.
func (g *Graph) Roots() []string {
	var roots []string
	for _, id := range g.order {
		if len(g.deps[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// Descendants returns every step that transitively depends on id, in
// declaration order.
func (g *Graph) Descendants(id string) []string {
	seen := map[string]bool{id: true}
	queue := []string{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, d := range g.dependents[cur] {
			if !seen[d] {
				seen[d] = true
				queue = append(queue, d)
			}
		}
	}

	out := make([]string, 0, len(seen)-1)
	for _, sid := range g.order {
		if sid != id && seen[sid] {
			out = append(out, sid)
		}
	}
	return out
}

// Levels groups steps by dependency depth: level 0 holds the roots and each
// step sits one level below its deepest dependency. This is the wave plan
// when every step completes. Steps that can never be reached (unknown
// dependency or cycle) are collected in a final extra level.
func (g *Graph) Levels() [][]string {
	depth := make(map[string]int, len(g.order))
	remaining := make(map[string]int, len(g.order))
	for _, id := range g.order {
		remaining[id] = len(g.deps[id])
	}

	var levels [][]string
	placed := 0
	for {
		var level []string
		for _, id := range g.order {
			if _, done := depth[id]; done || remaining[id] != 0 {
				continue
			}
			level = append(level, id)
		}
		if len(level) == 0 {
			break
		}
		for _, id := range level {
			depth[id] = len(levels)
			for _, d := range g.dependents[id] {
				remaining[d]--
			}
		}
		placed += len(level)
		levels = append(levels, level)
	}

	if placed < len(g.order) {
		var stuck []string
		for _, id := range g.order {
			if _, ok := depth[id]; !ok {
				stuck = append(stuck, id)
			}
		}
		levels = append(levels, stuck)
	}
	return levels
}
