// Package builtin contains the built-in tools the agent ships with:
// filesystem helpers, git helpers and a shell command runner.
package builtin

import (
	"fmt"
	"time"

	"github.com/slok/agentd/internal/log"
	"github.com/slok/agentd/internal/model"
	"github.com/slok/agentd/internal/tool"
)

const defaultShellTimeout = 5 * time.Minute

// Config is the shared configuration for the built-in tools.
type Config struct {
	// WorkDir is the directory commands and relative paths resolve against.
	// Empty means the process working directory.
	WorkDir string
	// ShellTimeout bounds every shell and git command execution.
	ShellTimeout time.Duration
	Logger       log.Logger
}

func (c *Config) defaults() error {
	if c.ShellTimeout <= 0 {
		c.ShellTimeout = defaultShellTimeout
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "tool.Builtin"})
	return nil
}

// Register registers every built-in tool on the registry.
func Register(reg *tool.Registry, cfg Config) error {
	if err := cfg.defaults(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	tools := []tool.Tool{
		newReadFile(cfg),
		newWriteFile(cfg),
		newListFiles(cfg),
		newGitStatus(cfg),
		newGitCommit(cfg),
		newShell(cfg),
	}

	for _, t := range tools {
		if err := reg.Register(t); err != nil {
			return fmt.Errorf("could not register %q: %w", t.Manifest().Name, err)
		}
	}

	return nil
}

// stringParam extracts a required string parameter.
func stringParam(params map[string]interface{}, key string) (string, error) {
	raw, ok := params[key]
	if !ok {
		return "", fmt.Errorf("missing parameter %q: %w", key, model.ErrNotValid)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("parameter %q must be a string, got %T: %w", key, raw, model.ErrNotValid)
	}
	if s == "" {
		return "", fmt.Errorf("parameter %q is empty: %w", key, model.ErrNotValid)
	}
	return s, nil
}

// optStringParam extracts an optional string parameter with a fallback.
func optStringParam(params map[string]interface{}, key, fallback string) (string, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return fallback, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("parameter %q must be a string, got %T: %w", key, raw, model.ErrNotValid)
	}
	if s == "" {
		return fallback, nil
	}
	return s, nil
}
