package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/rendis/gaiaflow/internal/actions"
	"github.com/rendis/gaiaflow/internal/engine"
	"github.com/rendis/gaiaflow/internal/logging"
	"github.com/rendis/gaiaflow/internal/streaming"
)

// app is the state shared by every subcommand, filled in by the root
// command's PersistentPreRunE.
type app struct {
	configPath string
	getenv     func(string) string
	stderr     io.Writer

	cfg    Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{getenv: os.Getenv, stderr: os.Stderr}

	root := &cobra.Command{
		Use:   "gaiaflow",
		Short: "gaiaflow - declarative workflow orchestration",
		Long: `gaiaflow runs workflows of dependent steps described in YAML or JSON.

Steps run in waves: every step whose dependencies are satisfied runs
concurrently, variables are merged between waves, and failures propagate
as skips to the steps that depend on them.

Configuration is layered: defaults, then ~/.gaiaflow/settings.json, then
GAIAFLOW_* environment variables, then flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", settingsPath(), "path to settings.json")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("log-format", "", "log format: text or json")
	pf.Int("max-concurrency", 0, "max concurrently running steps per wave (0 = unbounded)")
	pf.Duration("timeout", 0, "execution timeout (0 = none)")
	pf.Duration("shell-timeout", 0, "default timeout for the shell action")

	root.AddCommand(
		newRunCmd(a),
		newValidateCmd(a),
		newGraphCmd(a),
		newActionsCmd(a),
		newServeCmd(a),
		newVersionCmd(),
	)
	return root
}

// setup resolves the effective configuration and builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := loadConfig(a.configPath, a.getenv)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		cfg.LogFormat, _ = flags.GetString("log-format")
	}
	if flags.Changed("max-concurrency") {
		cfg.MaxConcurrency, _ = flags.GetInt("max-concurrency")
	}
	if flags.Changed("timeout") {
		d, _ := flags.GetDuration("timeout")
		cfg.Timeout = Duration(d)
	}
	if flags.Changed("shell-timeout") {
		d, _ := flags.GetDuration("shell-timeout")
		cfg.ShellTimeout = Duration(d)
	}
	if cfg.MaxConcurrency < 0 {
		return fmt.Errorf("max-concurrency must not be negative")
	}

	logger, err := logging.NewLogger(cfg.LogLevel, cfg.LogFormat, a.stderr)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// stack is the engine stack built from the configuration.
type stack struct {
	bus      *streaming.MemoryBus
	registry *actions.Registry
	executor *engine.Executor
}

func (a *app) newStack() (*stack, error) {
	bus := streaming.NewMemoryBus(0)

	registry := actions.NewRegistry()
	err := actions.RegisterBuiltins(registry, actions.BuiltinConfig{
		Logger:        a.logger,
		Bus:           bus,
		ShellTimeout:  a.cfg.ShellTimeout.Std(),
		Collaborators: a.cfg.Collaborators,
	})
	if err != nil {
		return nil, fmt.Errorf("register actions: %w", err)
	}

	executor := engine.NewExecutor(registry, engine.ExecutorConfig{
		MaxConcurrency: a.cfg.MaxConcurrency,
		Timeout:        a.cfg.Timeout.Std(),
		Logger:         a.logger,
		Bus:            bus,
	})
	return &stack{bus: bus, registry: registry, executor: executor}, nil
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}
