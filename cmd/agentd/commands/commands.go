package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/agentd/internal/config"
	"github.com/slok/agentd/internal/log"
	"github.com/slok/agentd/internal/planner"
	plannerfake "github.com/slok/agentd/internal/planner/fake"
	planneropenai "github.com/slok/agentd/internal/planner/openai"
	"github.com/slok/agentd/internal/tool"
	"github.com/slok/agentd/internal/tool/builtin"
)

const (
	// LoggerTypeDefault is the logger default type.
	LoggerTypeDefault = "default"
	// LoggerTypeJSON is the logger json type.
	LoggerTypeJSON = "json"
)

// Command represents an application command, all commands that want to be executed
// should implement and setup on main.
type Command interface {
	Name() string
	Run(ctx context.Context) error
}

// RootCommand represents the root command configuration and global configuration
// for all the commands.
type RootCommand struct {
	// Global flags.
	Debug      bool
	NoLog      bool
	NoColor    bool
	LoggerType string
	ConfigPath string

	// Global instances.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger log.Logger
}

// NewRootCommand initializes the main root configuration.
func NewRootCommand(app *kingpin.Application) *RootCommand {
	c := &RootCommand{}

	app.Flag("debug", "Enable debug mode.").BoolVar(&c.Debug)
	app.Flag("no-log", "Disable logger.").BoolVar(&c.NoLog)
	app.Flag("no-color", "Disable logger color.").BoolVar(&c.NoColor)
	app.Flag("logger", "Selects the logger type.").Default(LoggerTypeDefault).EnumVar(&c.LoggerType, LoggerTypeDefault, LoggerTypeJSON)
	app.Flag("config", "Path to the configuration file.").Envar("AGENTD_CONFIG").StringVar(&c.ConfigPath)

	return c
}

// newToolRegistry creates the tool registry with all builtin tools registered.
func newToolRegistry(cfg *config.Config, logger log.Logger) (*tool.Registry, error) {
	reg := tool.NewRegistry()
	err := builtin.Register(reg, builtin.Config{
		WorkDir:      cfg.Tools.WorkDir,
		ShellTimeout: cfg.ShellTimeout(),
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not register builtin tools: %w", err)
	}

	return reg, nil
}

// newPlanner creates the configured planning oracle.
func newPlanner(cfg *config.Config, logger log.Logger) (planner.Planner, error) {
	switch cfg.Planner.Provider {
	case config.PlannerOpenAI:
		return planneropenai.NewPlanner(planneropenai.PlannerConfig{
			APIKey:  cfg.Planner.APIKey,
			Model:   cfg.Planner.Model,
			BaseURL: cfg.Planner.BaseURL,
			Logger:  logger,
		})
	case config.PlannerFake:
		return plannerfake.NewPlanner(plannerfake.PlannerConfig{Logger: logger})
	}

	return nil, fmt.Errorf("unknown planner provider %q", cfg.Planner.Provider)
}
