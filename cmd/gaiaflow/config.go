package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all gaiaflow configuration.
// Priority: flags > env vars > settings.json > defaults.
type Config struct {
	LogLevel       string            `json:"log_level"`
	LogFormat      string            `json:"log_format"`
	MaxConcurrency int               `json:"max_concurrency"`
	Timeout        Duration          `json:"timeout"`
	ShellTimeout   Duration          `json:"shell_timeout"`
	WorkflowsDir   string            `json:"workflows_dir"`
	WebhookAddr    string            `json:"webhook_addr"`
	Collaborators  map[string]string `json:"collaborators,omitempty"`
}

// Duration is a time.Duration written as "30s" in settings.json.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string such as \"30s\": %w", err)
	}
	parsed, err := parseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	if d < 0 {
		return 0, fmt.Errorf("duration %q is negative", s)
	}
	return d, nil
}

func defaultConfig() Config {
	return Config{
		LogLevel:     "info",
		LogFormat:    "text",
		ShellTimeout: Duration(300 * time.Second),
		WorkflowsDir: filepath.Join(gaiaflowDir(), "workflows"),
		WebhookAddr:  ":4180",
	}
}

func gaiaflowDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".gaiaflow"
	}
	return filepath.Join(home, ".gaiaflow")
}

func settingsPath() string {
	return filepath.Join(gaiaflowDir(), "settings.json")
}

// loadConfig layers defaults, the settings file at path and GAIAFLOW_*
// environment variables. A missing settings file is not an error; a
// malformed one is.
func loadConfig(path string, getenv func(string) string) (Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := applyEnv(&cfg, getenv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	if v := getenv("GAIAFLOW_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getenv("GAIAFLOW_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := getenv("GAIAFLOW_MAX_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("config: GAIAFLOW_MAX_CONCURRENCY must be a non-negative integer, got %q", v)
		}
		cfg.MaxConcurrency = n
	}
	if v := getenv("GAIAFLOW_TIMEOUT"); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("config: GAIAFLOW_TIMEOUT: %w", err)
		}
		cfg.Timeout = Duration(d)
	}
	if v := getenv("GAIAFLOW_SHELL_TIMEOUT"); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("config: GAIAFLOW_SHELL_TIMEOUT: %w", err)
		}
		cfg.ShellTimeout = Duration(d)
	}
	if v := getenv("GAIAFLOW_WORKFLOWS_DIR"); v != "" {
		cfg.WorkflowsDir = v
	}
	if v := getenv("GAIAFLOW_WEBHOOK_ADDR"); v != "" {
		cfg.WebhookAddr = v
	}
	if v := getenv("GAIAFLOW_COLLABORATORS"); v != "" {
		collaborators, err := parseCollaborators(v)
		if err != nil {
			return fmt.Errorf("config: GAIAFLOW_COLLABORATORS: %w", err)
		}
		cfg.Collaborators = collaborators
	}
	return nil
}

// parseCollaborators reads "route=command;route=command".
func parseCollaborators(s string) (map[string]string, error) {
	out := make(map[string]string)
	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		route, command, ok := strings.Cut(pair, "=")
		route, command = strings.TrimSpace(route), strings.TrimSpace(command)
		if !ok || route == "" || command == "" {
			return nil, fmt.Errorf("expected route=command, got %q", pair)
		}
		out[route] = command
	}
	return out, nil
}
