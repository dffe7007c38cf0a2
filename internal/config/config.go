// Package config loads the agentd configuration file.
package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// PlannerOpenAI selects the OpenAI backed planner.
	PlannerOpenAI = "openai"
	// PlannerFake selects the deterministic offline planner.
	PlannerFake = "fake"
)

// Config is the application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Planner PlannerConfig `yaml:"planner"`
	Tools   ToolsConfig   `yaml:"tools"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	// Addr is the listen address of the API server.
	Addr string `yaml:"addr"`
}

// PlannerConfig configures the planning oracle.
type PlannerConfig struct {
	// Provider is the planner implementation, "openai" or "fake".
	Provider string `yaml:"provider"`
	// Model is the chat model used for planning.
	Model string `yaml:"model"`
	// BaseURL overrides the OpenAI API endpoint.
	BaseURL string `yaml:"base_url"`
	// APIKey is the OpenAI API key. The OPENAI_API_KEY env var takes
	// precedence when set.
	APIKey string `yaml:"api_key"`
	// TimeoutSeconds bounds a single planning call.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// ToolsConfig configures the builtin tools.
type ToolsConfig struct {
	// WorkDir is the directory tools operate in.
	WorkDir string `yaml:"work_dir"`
	// ShellTimeoutSeconds bounds a single shell command.
	ShellTimeoutSeconds int `yaml:"shell_timeout_seconds"`
}

func (c *Config) defaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Planner.Provider == "" {
		c.Planner.Provider = PlannerFake
	}
	if c.Planner.TimeoutSeconds <= 0 {
		c.Planner.TimeoutSeconds = 30
	}
	if c.Tools.WorkDir == "" {
		c.Tools.WorkDir = "."
	}
	if c.Tools.ShellTimeoutSeconds <= 0 {
		c.Tools.ShellTimeoutSeconds = 300
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.Planner.APIKey = key
	}
}

func (c *Config) validate() error {
	switch c.Planner.Provider {
	case PlannerOpenAI, PlannerFake:
	default:
		return fmt.Errorf("unknown planner provider %q", c.Planner.Provider)
	}

	if c.Planner.Provider == PlannerOpenAI && c.Planner.APIKey == "" {
		return fmt.Errorf("openai planner requires an api key")
	}

	return nil
}

// PlanTimeout returns the planning timeout as a duration.
func (c *Config) PlanTimeout() time.Duration {
	return time.Duration(c.Planner.TimeoutSeconds) * time.Second
}

// ShellTimeout returns the shell command timeout as a duration.
func (c *Config) ShellTimeout() time.Duration {
	return time.Duration(c.Tools.ShellTimeoutSeconds) * time.Second
}

// Load reads a configuration from r, applying defaults and validating it.
func Load(r io.Reader) (*Config, error) {
	cfg := &Config{}

	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("could not decode configuration: %w", err)
	}

	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFile loads the configuration from a file path. An empty path returns
// the default configuration.
func LoadFile(path string) (*Config, error) {
	if path == "" {
		cfg := &Config{}
		cfg.defaults()
		if err := cfg.validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open configuration file: %w", err)
	}
	defer f.Close()

	return Load(f)
}
