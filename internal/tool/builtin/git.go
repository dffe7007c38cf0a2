package builtin

import (
	"context"
	"fmt"

	"github.com/slok/agentd/internal/tool"
)

type gitStatus struct {
	cfg Config
}

func newGitStatus(cfg Config) *gitStatus { return &gitStatus{cfg: cfg} }

func (t *gitStatus) Manifest() tool.Manifest {
	return tool.Manifest{
		Name:        "git_status",
		Description: "Gets the short status of the git repository.",
	}
}

func (t *gitStatus) Invoke(ctx context.Context, params map[string]interface{}) (string, error) {
	return runCommand(ctx, t.cfg.WorkDir, t.cfg.ShellTimeout, "git", "status", "--short")
}

type gitCommit struct {
	cfg Config
}

func newGitCommit(cfg Config) *gitCommit { return &gitCommit{cfg: cfg} }

func (t *gitCommit) Manifest() tool.Manifest {
	return tool.Manifest{
		Name:        "git_commit",
		Description: "Stages all changes and creates a commit with a message.",
		Parameters:  map[string]string{"message": "Commit message."},
	}
}

func (t *gitCommit) Invoke(ctx context.Context, params map[string]interface{}) (string, error) {
	message, err := stringParam(params, "message")
	if err != nil {
		return "", err
	}

	if _, err := runCommand(ctx, t.cfg.WorkDir, t.cfg.ShellTimeout, "git", "add", "."); err != nil {
		return "", fmt.Errorf("could not stage changes: %w", err)
	}

	out, err := runCommand(ctx, t.cfg.WorkDir, t.cfg.ShellTimeout, "git", "commit", "-m", message)
	if err != nil {
		return "", fmt.Errorf("could not commit: %w", err)
	}

	return out, nil
}
