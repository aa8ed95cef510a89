package actions

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rendis/gaiaflow/pkg/schema"
)

const (
	DefaultShellTimeout  = 300 * time.Second
	defaultMaxOutputSize = 4 * 1024 * 1024
)

// Shell runs "command" through /bin/sh -c.
//
// Parameters: command (required), timeout (seconds or duration string),
// cwd, env (map, added to the inherited environment), stdin, output_var
// (receives trimmed stdout).
//
// A non-zero exit status, a timeout, or a failure to start the process all
// fail the step. The captured output is still returned with the error.
type Shell struct {
	Timeout       time.Duration
	MaxOutputSize int64
}

func (s *Shell) Description() string { return "Run a shell command" }

func (s *Shell) Execute(ctx context.Context, inv Invocation) (*Result, error) {
	command, err := requireString("shell", inv.Params, "command")
	if err != nil {
		return nil, err
	}

	timeout := durationParam(inv.Params, "timeout", s.defaultTimeout())
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "/bin/sh", "-c", command)
	cmd.WaitDelay = time.Second
	cmd.Dir = stringParam(inv.Params, "cwd", "")
	if env := stringMapParam(inv.Params, "env"); len(env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}
	if stdin := stringParam(inv.Params, "stdin", ""); stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	limit := s.MaxOutputSize
	if limit <= 0 {
		limit = defaultMaxOutputSize
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &limitedWriter{w: &stdout, limit: limit}
	cmd.Stderr = &limitedWriter{w: &stderr, limit: limit}

	start := time.Now()
	runErr := cmd.Run()

	exitCode := 0
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}
	output := map[string]any{
		"stdout":      stdout.String(),
		"stderr":      stderr.String(),
		"exit_code":   exitCode,
		"duration_ms": time.Since(start).Milliseconds(),
	}
	res := withOutputVar(inv.Params, output, strings.TrimSpace(stdout.String()))

	switch {
	case runErr == nil:
		return res, nil
	case ctx.Err() != nil:
		return res, schema.NewError(schema.ErrCodeCancelled, "shell: cancelled").WithCause(ctx.Err())
	case errors.Is(execCtx.Err(), context.DeadlineExceeded):
		return res, schema.NewErrorf(schema.ErrCodeTimeout, "shell: command timed out after %s", timeout).WithCause(runErr)
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		msg := lastLine(stderr.String())
		if msg == "" {
			return res, schema.NewErrorf(schema.ErrCodeExecution, "shell: command exited with status %d", exitCode)
		}
		return res, schema.NewErrorf(schema.ErrCodeExecution, "shell: command exited with status %d: %s", exitCode, msg)
	}
	return nil, schema.NewErrorf(schema.ErrCodeExecution, "shell: %v", runErr).WithCause(runErr)
}

func (s *Shell) defaultTimeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	return DefaultShellTimeout
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}

// limitedWriter keeps the first limit bytes and discards the rest while
// reporting full writes, so a chatty process never blocks on its pipe.
type limitedWriter struct {
	w       io.Writer
	limit   int64
	written int64
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	remaining := lw.limit - lw.written
	if remaining <= 0 {
		return n, nil
	}
	if int64(n) > remaining {
		p = p[:remaining]
	}
	written, err := lw.w.Write(p)
	lw.written += int64(written)
	if err != nil {
		return written, err
	}
	return n, nil
}
