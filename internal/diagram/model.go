package diagram

// NodeKind classifies a diagram node.
type NodeKind string

const (
	NodeKindAction NodeKind = "action"
	NodeKindStart  NodeKind = "start"
	NodeKindEnd    NodeKind = "end"
)

// Virtual node IDs bracketing every diagram.
const (
	StartID = "__start__"
	EndID   = "__end__"
)

// DiagramModel is the intermediate representation shared by the renderers.
type DiagramModel struct {
	Title  string
	Nodes  []*Node
	Edges  []Edge
	Levels [][]string
}

// Node is one step, or a virtual start/end marker.
type Node struct {
	ID          string
	Label       string
	Action      string
	Kind        NodeKind
	Conditional bool
	Status      *StatusOverlay
}

// StatusOverlay carries the outcome of a step from an execution.
type StatusOverlay struct {
	Status     string
	DurationMs int64
	Wave       int
	Error      string
	Reason     string
}

// Edge is a dependency from a step to its dependent.
type Edge struct {
	From  string
	To    string
	Label string
}

// Node returns the node with the given id, or nil.
func (m *DiagramModel) Node(id string) *Node {
	for _, n := range m.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}
