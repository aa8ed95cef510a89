package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rendis/gaiaflow/internal/api"
	"github.com/rendis/gaiaflow/internal/streaming"
	"github.com/rendis/gaiaflow/internal/triggers"
	"github.com/rendis/gaiaflow/pkg/mcp"
	"github.com/rendis/gaiaflow/pkg/schema"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var (
		workflowsDir string
		webhookAddr  string
		serveMCP     bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve workflow triggers",
		Long: `Load every workflow document in the workflows directory, register its
triggers and serve them until interrupted:

  schedule  cron expressions run by the built-in scheduler
  event     custom events published on the in-process bus
  webhook   POST /hooks/{path} on the HTTP address

The HTTP address also serves the JSON API (/api/workflows, /api/actions,
/api/events), the /sse/events stream and /healthz.

With --mcp the MCP tool server also runs on stdin/stdout and execution
results are pushed to the client as log notifications.`,
		Example: `  gaiaflow serve --workflows ./workflows
  gaiaflow serve --webhook-addr 127.0.0.1:8080
  gaiaflow serve --mcp --webhook-addr ""`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("workflows") {
				a.cfg.WorkflowsDir = workflowsDir
			}
			if cmd.Flags().Changed("webhook-addr") {
				a.cfg.WebhookAddr = webhookAddr
			}
			return a.serve(cmd.Context(), serveMCP)
		},
	}

	cmd.Flags().StringVar(&workflowsDir, "workflows", "", "directory of workflow documents (default from config)")
	cmd.Flags().StringVar(&webhookAddr, "webhook-addr", "", "HTTP listen address for the API and webhooks; empty disables it")
	cmd.Flags().BoolVar(&serveMCP, "mcp", false, "also serve MCP tools on stdio")
	return cmd
}

func (a *app) serve(ctx context.Context, serveMCP bool) error {
	st, err := a.newStack()
	if err != nil {
		return err
	}

	manager, err := triggers.NewManager(triggers.Config{Runner: st.executor, Bus: st.bus, Logger: a.logger})
	if err != nil {
		return err
	}
	loaded, err := a.registerWorkflows(manager, a.cfg.WorkflowsDir)
	if err != nil {
		return err
	}

	if err := manager.Start(ctx); err != nil {
		return err
	}
	defer manager.Stop()

	errCh := make(chan error, 2)

	var httpServer *http.Server
	if a.cfg.WebhookAddr != "" {
		handler := api.NewServer(api.Deps{
			Triggers: manager,
			Registry: st.registry,
			Bus:      st.bus,
			Logger:   a.logger,
		}).Handler()
		httpServer = &http.Server{Addr: a.cfg.WebhookAddr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("http server: %w", err)
			}
		}()
	}

	if serveMCP {
		srv := mcp.NewServer(mcp.ServerDeps{
			Executor: st.executor,
			Registry: st.registry,
			Triggers: manager,
			Logger:   a.logger,
			Version:  version,
		})
		go func() {
			filter := streaming.Filter{Types: []string{schema.EventExecutionCompleted, schema.EventExecutionFailed}}
			if err := srv.ForwardEvents(ctx, st.bus, filter); err != nil {
				a.logger.Warn("event forwarding stopped", slog.String("error", err.Error()))
			}
		}()
		go func() {
			// The client closing stdin ends the session and the process.
			errCh <- srv.Serve(ctx)
		}()
	}

	a.logger.Info("gaiaflow serving",
		slog.Int("workflows", loaded),
		slog.String("webhook_addr", a.cfg.WebhookAddr),
		slog.Bool("mcp", serveMCP),
	)

	select {
	case <-ctx.Done():
		err = nil
	case err = <-errCh:
	}

	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			a.logger.Warn("http server shutdown", slog.String("error", shutdownErr.Error()))
		}
	}
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

// registerWorkflows loads every *.yaml, *.yml and *.json document in dir.
// Invalid documents are logged and skipped. A missing directory leaves the
// server with no workflows.
func (a *app) registerWorkflows(manager *triggers.Manager, dir string) (int, error) {
	paths, err := workflowFiles(dir)
	if errors.Is(err, fs.ErrNotExist) {
		a.logger.Warn("workflows directory not found", slog.String("dir", dir))
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	loaded := 0
	for _, path := range paths {
		var problems strings.Builder
		wf, err := loadWorkflow(&problems, path)
		if err != nil {
			a.logger.Error("skipping workflow", slog.String("file", path), slog.String("error", err.Error()),
				slog.String("details", strings.TrimSpace(problems.String())))
			continue
		}
		if err := manager.Register(wf); err != nil {
			a.logger.Error("skipping workflow", slog.String("file", path), slog.String("error", err.Error()))
			continue
		}
		loaded++
		a.logger.Info("workflow registered", slog.String("workflow_id", wf.ID), slog.String("file", path))
	}
	return loaded, nil
}

func workflowFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml", ".json":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
