package commands

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/alecthomas/kingpin/v2"

	apptask "github.com/slok/agentd/internal/app/task"
	"github.com/slok/agentd/internal/config"
	"github.com/slok/agentd/internal/executor"
	"github.com/slok/agentd/internal/log"
	"github.com/slok/agentd/internal/orchestrator"
	"github.com/slok/agentd/internal/server"
	"github.com/slok/agentd/internal/storage/memory"
)

const serveShutdownTimeout = 10 * time.Second

type ServeCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	addr string
}

// NewServeCommand returns the serve command.
func NewServeCommand(rootCmd *RootCommand, app *kingpin.Application) *ServeCommand {
	c := &ServeCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("serve", "Run the agent HTTP API server.")
	c.Cmd.Flag("addr", "Listen address, overrides the configuration file.").StringVar(&c.addr)

	return c
}

func (c ServeCommand) Name() string { return c.Cmd.FullCommand() }

func (c ServeCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	cfg, err := config.LoadFile(c.rootCmd.ConfigPath)
	if err != nil {
		return fmt.Errorf("could not load configuration: %w", err)
	}
	if c.addr != "" {
		cfg.Server.Addr = c.addr
	}

	tasks, err := newTaskService(cfg, logger)
	if err != nil {
		return err
	}

	handler, err := server.New(server.Config{TaskService: tasks, Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create API handler: %w", err)
	}

	httpServer := &http.Server{Addr: cfg.Server.Addr, Handler: handler}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("API server listening on %s", cfg.Server.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Infof("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), serveShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("could not shutdown server: %w", err)
	}

	// Let in-flight task executions finish before exiting.
	tasks.Wait()

	return nil
}

// newTaskService wires the whole execution stack from the configuration.
func newTaskService(cfg *config.Config, logger log.Logger) (*apptask.Service, error) {
	reg, err := newToolRegistry(cfg, logger)
	if err != nil {
		return nil, err
	}

	plan, err := newPlanner(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("could not create planner: %w", err)
	}

	repo, err := memory.NewRepository(memory.RepositoryConfig{Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("could not create repository: %w", err)
	}

	exec, err := executor.NewService(executor.ServiceConfig{Registry: reg, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("could not create executor: %w", err)
	}

	orch, err := orchestrator.NewService(orchestrator.ServiceConfig{
		Repository:  repo,
		Planner:     plan,
		Registry:    reg,
		Executor:    exec,
		PlanTimeout: cfg.PlanTimeout(),
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create orchestrator: %w", err)
	}

	tasks, err := apptask.NewService(apptask.ServiceConfig{
		Repository:   repo,
		Orchestrator: orch,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create task service: %w", err)
	}

	return tasks, nil
}
