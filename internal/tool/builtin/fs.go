package builtin

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/slok/agentd/internal/tool"
)

type readFile struct {
	cfg Config
}

func newReadFile(cfg Config) *readFile { return &readFile{cfg: cfg} }

func (t *readFile) Manifest() tool.Manifest {
	return tool.Manifest{
		Name:        "read_file",
		Description: "Reads the content of a text file.",
		Parameters:  map[string]string{"path": "Path of the file to read."},
	}
}

func (t *readFile) Invoke(ctx context.Context, params map[string]interface{}) (string, error) {
	path, err := stringParam(params, "path")
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(t.resolve(path))
	if err != nil {
		return "", fmt.Errorf("could not read file: %w", err)
	}

	return string(data), nil
}

func (t *readFile) resolve(path string) string { return resolvePath(t.cfg.WorkDir, path) }

type writeFile struct {
	cfg Config
}

func newWriteFile(cfg Config) *writeFile { return &writeFile{cfg: cfg} }

func (t *writeFile) Manifest() tool.Manifest {
	return tool.Manifest{
		Name:        "write_file",
		Description: "Writes (or overwrites) content to a file.",
		Parameters: map[string]string{
			"path":    "Path of the file to write.",
			"content": "Full content to write.",
		},
	}
}

func (t *writeFile) Invoke(ctx context.Context, params map[string]interface{}) (string, error) {
	path, err := stringParam(params, "path")
	if err != nil {
		return "", err
	}
	content, err := optStringParam(params, "content", "")
	if err != nil {
		return "", err
	}

	fullPath := resolvePath(t.cfg.WorkDir, path)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("could not create parent directories: %w", err)
	}
	if err := os.WriteFile(fullPath, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("could not write file: %w", err)
	}

	t.cfg.Logger.Debugf("Wrote %d bytes to %s", len(content), path)

	return fmt.Sprintf("written: %s", path), nil
}

type listFiles struct {
	cfg Config
}

func newListFiles(cfg Config) *listFiles { return &listFiles{cfg: cfg} }

func (t *listFiles) Manifest() tool.Manifest {
	return tool.Manifest{
		Name:        "list_files",
		Description: "Lists files recursively under a directory.",
		Parameters:  map[string]string{"root": "Directory to list, defaults to the working directory."},
	}
}

func (t *listFiles) Invoke(ctx context.Context, params map[string]interface{}) (string, error) {
	root, err := optStringParam(params, "root", ".")
	if err != nil {
		return "", err
	}

	fullRoot := resolvePath(t.cfg.WorkDir, root)
	var files []string
	err = filepath.WalkDir(fullRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(fullRoot, path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("could not list files: %w", err)
	}

	return strings.Join(files, "\n"), nil
}

func resolvePath(workDir, path string) string {
	if workDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(workDir, path)
}
