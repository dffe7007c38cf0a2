package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/agentd/internal/config"
)

type RunCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	objective string
}

// NewRunCommand returns the run command.
func NewRunCommand(rootCmd *RootCommand, app *kingpin.Application) *RunCommand {
	c := &RunCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("run", "Execute a single objective and print the result.")
	c.Cmd.Arg("objective", "The objective to accomplish.").Required().StringVar(&c.objective)

	return c
}

func (c RunCommand) Name() string { return c.Cmd.FullCommand() }

func (c RunCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	cfg, err := config.LoadFile(c.rootCmd.ConfigPath)
	if err != nil {
		return fmt.Errorf("could not load configuration: %w", err)
	}

	tasks, err := newTaskService(cfg, logger)
	if err != nil {
		return err
	}

	task, err := tasks.Create(ctx, c.objective, nil)
	if err != nil {
		return fmt.Errorf("could not create task: %w", err)
	}

	// The execution runs in the background, wait for it to land.
	tasks.Wait()

	task, err = tasks.Get(ctx, task.ID)
	if err != nil {
		return fmt.Errorf("could not get task: %w", err)
	}

	out, err := json.MarshalIndent(map[string]interface{}{
		"id":        task.ID,
		"objective": task.Objective,
		"state":     task.State,
		"result":    task.Result,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("could not serialize result: %w", err)
	}
	fmt.Fprintln(c.rootCmd.Stdout, string(out))

	if task.Result == nil || !task.Result.Success {
		return fmt.Errorf("task did not complete successfully")
	}

	return nil
}
