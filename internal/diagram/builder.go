package diagram

import (
	"github.com/rendis/gaiaflow/internal/engine"
	"github.com/rendis/gaiaflow/pkg/schema"
)

// Build constructs a DiagramModel from a workflow and, optionally, an
// execution whose step results are overlaid on the nodes. Invalid
// definitions are tolerated: unknown dependencies become dangling edges
// labelled "missing" and unreachable steps land in a final level.
func Build(wf *schema.Workflow, exec *engine.Execution) *DiagramModel {
	g := engine.NewGraph(wf)

	nodes := make([]*Node, 0, g.Len()+2)
	nodes = append(nodes, &Node{ID: StartID, Label: "Start", Kind: NodeKindStart})
	for _, id := range g.Order() {
		step, _ := g.Step(id)
		node := &Node{
			ID:          id,
			Label:       nodeLabel(step),
			Action:      step.Action,
			Kind:        NodeKindAction,
			Conditional: step.Condition != "",
		}
		if exec != nil {
			overlayStatus(node, exec)
		}
		nodes = append(nodes, node)
	}
	nodes = append(nodes, &Node{ID: EndID, Label: "End", Kind: NodeKindEnd})

	return &DiagramModel{
		Title:  title(wf),
		Nodes:  nodes,
		Edges:  buildEdges(g),
		Levels: buildLevels(g),
	}
}

func nodeLabel(step *schema.Step) string {
	if step.Name != "" && step.Name != step.ID {
		return step.Name
	}
	return step.ID
}

func overlayStatus(node *Node, exec *engine.Execution) {
	r, ok := exec.Result(node.ID)
	if !ok {
		return
	}
	node.Status = &StatusOverlay{
		Status:     string(r.Status),
		DurationMs: r.Duration.Milliseconds(),
		Wave:       r.Wave,
		Error:      r.Error,
		Reason:     r.Reason,
	}
}

// buildEdges links start to the roots, every dependency to its dependent
// and the leaves to end, all in declaration order.
func buildEdges(g *engine.Graph) []Edge {
	var edges []Edge
	for _, root := range g.Roots() {
		edges = append(edges, Edge{From: StartID, To: root})
	}
	for _, id := range g.Order() {
		for _, dep := range g.Dependencies(id) {
			e := Edge{From: dep, To: id}
			if _, ok := g.Step(dep); !ok {
				e.Label = "missing"
			}
			edges = append(edges, e)
		}
	}
	for _, id := range g.Order() {
		if len(g.Dependents(id)) == 0 {
			edges = append(edges, Edge{From: id, To: EndID})
		}
	}
	return edges
}

func buildLevels(g *engine.Graph) [][]string {
	levels := g.Levels()
	out := make([][]string, 0, len(levels)+2)
	out = append(out, []string{StartID})
	out = append(out, levels...)
	out = append(out, []string{EndID})
	return out
}

func title(wf *schema.Workflow) string {
	if wf.Name != "" {
		return wf.Name
	}
	if wf.ID != "" {
		return wf.ID
	}
	return "Workflow"
}
