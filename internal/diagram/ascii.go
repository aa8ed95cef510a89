package diagram

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// statusTag returns a short indicator for a status string.
func statusTag(status string) string {
	switch status {
	case "completed":
		return "[OK]"
	case "failed":
		return "[FAIL]"
	case "running":
		return "[RUN]"
	case "skipped":
		return "[SKIP]"
	case "pending":
		return "[PEND]"
	default:
		return ""
	}
}

// RenderText renders one line per level. Each level of the model is a wave
// of the execution plan when every step completes.
func RenderText(model *DiagramModel) string {
	var b strings.Builder
	if model.Title != "" {
		fmt.Fprintf(&b, "=== %s ===\n", model.Title)
	}

	wave := 0
	for _, level := range model.Levels {
		var parts []string
		for _, id := range level {
			node := model.Node(id)
			if node == nil || node.Kind != NodeKindAction {
				continue
			}
			parts = append(parts, textEntry(node))
		}
		if len(parts) == 0 {
			continue
		}
		wave++
		fmt.Fprintf(&b, "wave %d: %s\n", wave, strings.Join(parts, ", "))
	}

	for _, e := range model.Edges {
		if e.Label == "missing" {
			fmt.Fprintf(&b, "! %s depends on unknown step %s\n", e.To, e.From)
		}
	}
	return b.String()
}

func textEntry(node *Node) string {
	entry := node.ID
	if node.Action != "" {
		entry += " (" + node.Action + ")"
	}
	if node.Status == nil {
		return entry
	}
	if tag := statusTag(node.Status.Status); tag != "" {
		entry += " " + tag
	}
	if node.Status.DurationMs > 0 {
		entry += fmt.Sprintf(" %dms", node.Status.DurationMs)
	}
	return entry
}

// RenderASCII renders a level-based layout with box-drawing characters.
func RenderASCII(model *DiagramModel) string {
	var b strings.Builder

	if model.Title != "" {
		fmt.Fprintf(&b, "=== %s ===\n\n", model.Title)
	}

	for i, level := range model.Levels {
		var boxes []asciiBox
		for _, id := range level {
			if node := model.Node(id); node != nil {
				boxes = append(boxes, makeBox(node))
			}
		}

		renderBoxRow(&b, boxes)
		if i < len(model.Levels)-1 && len(boxes) > 0 {
			b.WriteString("       │\n")
			b.WriteString("       ▼\n")
		}
	}

	return b.String()
}

type asciiBox struct {
	lines []string
	width int
}

func makeBox(node *Node) asciiBox {
	content := []string{node.ID}
	if node.Kind != NodeKindAction {
		content[0] = node.Label
	}
	if node.Action != "" {
		content = append(content, node.Action)
	}
	if node.Status != nil {
		if tag := statusTag(node.Status.Status); tag != "" {
			content = append(content, tag)
		}
		if node.Status.DurationMs > 0 {
			content = append(content, fmt.Sprintf("%dms", node.Status.DurationMs))
		}
	}

	inner := 0
	for _, line := range content {
		inner = max(inner, utf8.RuneCountInString(line))
	}
	width := inner + 4

	lines := make([]string, 0, len(content)+2)
	lines = append(lines, "┌"+strings.Repeat("─", width-2)+"┐")
	for _, line := range content {
		pad := strings.Repeat(" ", inner-utf8.RuneCountInString(line))
		lines = append(lines, "│ "+line+pad+" │")
	}
	lines = append(lines, "└"+strings.Repeat("─", width-2)+"┘")

	return asciiBox{lines: lines, width: width}
}

// renderBoxRow writes boxes side by side, padding shorter ones.
func renderBoxRow(b *strings.Builder, boxes []asciiBox) {
	height := 0
	for _, box := range boxes {
		height = max(height, len(box.lines))
	}

	for row := 0; row < height; row++ {
		for i, box := range boxes {
			if i > 0 {
				b.WriteString("  ")
			}
			if row < len(box.lines) {
				b.WriteString(box.lines[row])
			} else {
				b.WriteString(strings.Repeat(" ", box.width))
			}
		}
		b.WriteByte('\n')
	}
}
