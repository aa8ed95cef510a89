// Package report renders finished executions for terminals and machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/rendis/gaiaflow/internal/engine"
	"github.com/rendis/gaiaflow/pkg/schema"
)

var (
	green = lipgloss.Color("#2E8B57")
	red   = lipgloss.Color("196")
	amber = lipgloss.Color("#F1C40F")
	muted = lipgloss.Color("245")
	cyan  = lipgloss.Color("86")
)

// styles is bound to one renderer so colour support follows the writer.
type styles struct {
	header  lipgloss.Style
	label   lipgloss.Style
	meta    lipgloss.Style
	status  map[string]lipgloss.Style
	warning lipgloss.Style
	err     lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		header: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(cyan).
			Padding(0, 1),
		label:   r.NewStyle().Bold(true),
		meta:    r.NewStyle().Foreground(muted),
		warning: r.NewStyle().Foreground(amber),
		err:     r.NewStyle().Foreground(red).Bold(true),
		status: map[string]lipgloss.Style{
			string(schema.StepStatusCompleted): r.NewStyle().Foreground(green),
			string(schema.StepStatusFailed):    r.NewStyle().Foreground(red),
			string(schema.StepStatusSkipped):   r.NewStyle().Foreground(muted),
			string(schema.StepStatusRunning):   r.NewStyle().Foreground(cyan),
			string(schema.StepStatusPending):   r.NewStyle().Foreground(amber),
		},
	}
}

func (s styles) forStatus(status string) lipgloss.Style {
	if st, ok := s.status[status]; ok {
		return st
	}
	return s.meta
}

var marks = map[string]string{
	string(schema.StepStatusCompleted): "✓",
	string(schema.StepStatusFailed):    "✗",
	string(schema.StepStatusSkipped):   "○",
	string(schema.StepStatusRunning):   "●",
	string(schema.StepStatusPending):   "·",
}

// WriteText renders exec as a styled report. Colours are only emitted when
// w is a terminal.
func WriteText(w io.Writer, exec *engine.Execution) error {
	if exec == nil {
		return schema.NewError(schema.ErrCodeValidation, "execution is nil")
	}

	st := newStyles(lipgloss.NewRenderer(w))
	var b strings.Builder

	title := fmt.Sprintf("%s %s", exec.WorkflowID, st.forStatus(string(exec.Status)).Render(string(exec.Status)))
	meta := st.meta.Render(fmt.Sprintf("execution %s · triggered by %s · %d waves · %s",
		exec.ExecutionID, exec.TriggeredBy, exec.Waves, exec.Duration().Round(time.Millisecond)))
	b.WriteString(st.header.Render(title + "\n" + meta))
	b.WriteString("\n\n")

	writeSteps(&b, st, exec)
	writeVariables(&b, st, exec.Variables)

	if len(exec.Warnings) > 0 {
		b.WriteString(st.label.Render("Warnings") + "\n")
		for _, warn := range exec.Warnings {
			b.WriteString("  " + st.warning.Render(warn) + "\n")
		}
		b.WriteString("\n")
	}
	if exec.Error != "" {
		b.WriteString(st.err.Render("Error: "+exec.Error) + "\n\n")
	}

	b.WriteString(st.label.Render("Summary: ") + summaryLine(exec) + "\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteJSON writes exec as indented JSON.
func WriteJSON(w io.Writer, exec *engine.Execution) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(exec)
}

func writeSteps(b *strings.Builder, st styles, exec *engine.Execution) {
	ids := stepOrder(exec)
	if len(ids) == 0 {
		return
	}

	idWidth, statusWidth := 0, 0
	for _, id := range ids {
		idWidth = max(idWidth, lipgloss.Width(id))
		statusWidth = max(statusWidth, lipgloss.Width(string(exec.Results[id].Status)))
	}
	idCol := st.label.Width(idWidth)

	b.WriteString(st.label.Render("Steps") + "\n")
	for _, id := range ids {
		r := exec.Results[id]
		status := string(r.Status)
		statusStyle := st.forStatus(status)

		line := fmt.Sprintf("  %s %s  %s",
			statusStyle.Render(mark(status)),
			idCol.Render(id),
			statusStyle.Width(statusWidth).Render(status))
		if r.Wave > 0 {
			line += st.meta.Render(fmt.Sprintf("  wave %d", r.Wave))
		}
		if r.Status == schema.StepStatusCompleted || r.Status == schema.StepStatusFailed {
			line += st.meta.Render("  " + r.Duration.Round(time.Millisecond).String())
		}
		switch {
		case r.Error != "":
			line += "  " + st.err.Render(r.Error)
		case r.Reason != "":
			line += "  " + st.meta.Render(r.Reason)
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n")
}

func writeVariables(b *strings.Builder, st styles, vars map[string]any) {
	if len(vars) == 0 {
		return
	}
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b.WriteString(st.label.Render("Variables") + "\n")
	for _, k := range keys {
		fmt.Fprintf(b, "  %s = %s\n", k, formatValue(vars[k]))
	}
	b.WriteString("\n")
}

// stepOrder prefers declaration order and falls back to sorted ids for
// records built without one.
func stepOrder(exec *engine.Execution) []string {
	var ids []string
	seen := make(map[string]bool, len(exec.Results))
	for _, id := range exec.Order {
		if _, ok := exec.Results[id]; ok && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	var rest []string
	for id := range exec.Results {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	return append(ids, rest...)
}

func summaryLine(exec *engine.Execution) string {
	counts := exec.Summary()
	var parts []string
	for _, s := range []schema.StepStatus{
		schema.StepStatusCompleted,
		schema.StepStatusFailed,
		schema.StepStatusSkipped,
		schema.StepStatusRunning,
		schema.StepStatusPending,
	} {
		if n := counts[s]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, s))
		}
	}
	if len(parts) == 0 {
		return "no steps"
	}
	return strings.Join(parts, ", ")
}

func mark(status string) string {
	if m, ok := marks[status]; ok {
		return m
	}
	return "?"
}

func formatValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
