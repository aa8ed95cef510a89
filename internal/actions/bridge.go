package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/rendis/gaiaflow/pkg/schema"
)

// Bridge forwards a namespace of actions (by default "gaia.") to external
// collaborators such as the phase engine or the skill repository. Routes
// are resolved with the same exact-then-longest-prefix rule as the
// top-level Registry, so "gaia.phase" serves "gaia.phase.advance".
type Bridge struct {
	namespace string
	routes    *Registry
}

// NewBridge creates a bridge for namespace, e.g. "gaia.".
func NewBridge(namespace string) *Bridge {
	if !strings.HasSuffix(namespace, ".") {
		namespace += "."
	}
	return &Bridge{namespace: namespace, routes: NewRegistry()}
}

// Namespace returns the prefix the bridge should be registered under.
func (b *Bridge) Namespace() string { return b.namespace }

// Route sends actions under route (e.g. "gaia.phase") to c.
func (b *Bridge) Route(route string, c Handler) error {
	if !strings.HasPrefix(route, b.namespace) {
		return schema.NewErrorf(schema.ErrCodeValidation, "route %q is outside namespace %q", route, b.namespace)
	}
	return b.routes.Register(route, c)
}

// Routes lists the configured routes.
func (b *Bridge) Routes() []Entry { return b.routes.List() }

func (b *Bridge) Description() string {
	return "Forward " + b.namespace + "* actions to external collaborators"
}

func (b *Bridge) Execute(ctx context.Context, inv Invocation) (*Result, error) {
	c, err := b.routes.Resolve(inv.Action)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "no collaborator registered for action %q", inv.Action).WithCause(err)
	}
	return c.Execute(ctx, inv)
}

// CommandCollaborator runs an external program per invocation. The request
// is written to stdin as JSON:
//
//	{"action": "...", "step_id": "...", "parameters": {...}, "variables": {...}}
//
// and stdout must hold a JSON response:
//
//	{"output": ..., "variables": {...}, "error": "..."}
//
// A non-empty "error" or a non-zero exit status fails the step.
type CommandCollaborator struct {
	Command []string
	Timeout time.Duration
}

type collaboratorRequest struct {
	Action     string         `json:"action"`
	StepID     string         `json:"step_id"`
	Parameters map[string]any `json:"parameters"`
	Variables  map[string]any `json:"variables"`
}

type collaboratorResponse struct {
	Output    any            `json:"output"`
	Variables map[string]any `json:"variables"`
	Error     string         `json:"error"`
}

// NewCommandCollaborator splits a command line on whitespace.
func NewCommandCollaborator(commandLine string, timeout time.Duration) (*CommandCollaborator, error) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil, schema.NewError(schema.ErrCodeValidation, "collaborator command is empty")
	}
	return &CommandCollaborator{Command: fields, Timeout: timeout}, nil
}

func (c *CommandCollaborator) Execute(ctx context.Context, inv Invocation) (*Result, error) {
	req, err := json.Marshal(collaboratorRequest{
		Action:     inv.Action,
		StepID:     inv.StepID,
		Parameters: inv.Params,
		Variables:  inv.Variables,
	})
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "%s: encode request: %v", inv.Action, err).WithCause(err)
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultShellTimeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, c.Command[0], c.Command[1:]...)
	cmd.Stdin = bytes.NewReader(req)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &limitedWriter{w: &stdout, limit: defaultMaxOutputSize}
	cmd.Stderr = &limitedWriter{w: &stderr, limit: defaultMaxOutputSize}

	if runErr := cmd.Run(); runErr != nil {
		switch {
		case ctx.Err() != nil:
			return nil, schema.NewErrorf(schema.ErrCodeCancelled, "%s: cancelled", inv.Action).WithCause(ctx.Err())
		case errors.Is(execCtx.Err(), context.DeadlineExceeded):
			return nil, schema.NewErrorf(schema.ErrCodeTimeout, "%s: collaborator timed out after %s", inv.Action, timeout).WithCause(runErr)
		}
		msg := lastLine(stderr.String())
		if msg == "" {
			msg = runErr.Error()
		}
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "%s: collaborator failed: %s", inv.Action, msg).WithCause(runErr)
	}

	var resp collaboratorResponse
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &resp); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "%s: invalid collaborator response: %v", inv.Action, err).WithCause(err)
	}
	res := &Result{Output: resp.Output, Variables: resp.Variables}
	if resp.Error != "" {
		return res, schema.NewErrorf(schema.ErrCodeExecution, "%s: %s", inv.Action, resp.Error)
	}
	return res, nil
}
