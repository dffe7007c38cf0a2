package builtin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/slok/agentd/internal/tool"
)

type shell struct {
	cfg Config
}

func newShell(cfg Config) *shell { return &shell{cfg: cfg} }

func (t *shell) Manifest() tool.Manifest {
	return tool.Manifest{
		Name:        "shell",
		Description: "Runs a shell command and returns its output.",
		Parameters:  map[string]string{"command": "Command line to run with `sh -c`."},
	}
}

func (t *shell) Invoke(ctx context.Context, params map[string]interface{}) (string, error) {
	command, err := stringParam(params, "command")
	if err != nil {
		return "", err
	}

	t.cfg.Logger.Debugf("Running shell command: %s", command)

	return runCommand(ctx, t.cfg.WorkDir, t.cfg.ShellTimeout, "sh", "-c", command)
}

// runCommand runs a command with a bounded timeout capturing stdout. On a
// non-zero exit it returns an error carrying the trailing stderr output.
func runCommand(ctx context.Context, dir string, timeout time.Duration, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", fmt.Errorf("command timed out after %s", timeout)
	}
	if err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = strings.TrimSpace(stdout.String())
		}
		if detail != "" {
			return "", fmt.Errorf("command failed: %w: %s", err, lastLines(detail, 10))
		}
		return "", fmt.Errorf("command failed: %w", err)
	}

	return stdout.String(), nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
