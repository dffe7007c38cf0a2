// Package tool contains the tool capability contract and the registry that
// resolves tool names to capabilities. No execution policy lives here.
package tool

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/slok/agentd/internal/model"
)

// Manifest describes a registered tool so planners can pick it.
type Manifest struct {
	Name        string
	Description string
	// Parameters maps parameter names to a short description of each.
	Parameters map[string]string
}

// Tool is a capability invokable with named parameters. Implementations
// return a text result or an error, nothing else.
type Tool interface {
	Invoke(ctx context.Context, params map[string]interface{}) (string, error)
	Manifest() Manifest
}

// Func adapts a plain function into a Tool.
type Func struct {
	manifest Manifest
	fn       func(ctx context.Context, params map[string]interface{}) (string, error)
}

// NewFunc returns a Tool backed by fn.
func NewFunc(manifest Manifest, fn func(ctx context.Context, params map[string]interface{}) (string, error)) *Func {
	return &Func{manifest: manifest, fn: fn}
}

func (f *Func) Invoke(ctx context.Context, params map[string]interface{}) (string, error) {
	return f.fn(ctx, params)
}

func (f *Func) Manifest() Manifest { return f.manifest }

// Registry is a concurrency safe name to tool mapping.
type Registry struct {
	tools map[string]Tool
	mu    sync.RWMutex
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: map[string]Tool{}}
}

// Register adds a tool under its manifest name. Registering an already
// registered name fails, callers wanting to replace a tool must deregister
// it first.
func (r *Registry) Register(t Tool) error {
	name := t.Manifest().Name
	if name == "" {
		return fmt.Errorf("tool name is required: %w", model.ErrNotValid)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tools[name]; ok {
		return fmt.Errorf("tool %q: %w", name, model.ErrAlreadyExists)
	}
	r.tools[name] = t

	return nil
}

// Deregister removes a tool by name.
func (r *Registry) Deregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tools[name]; !ok {
		return fmt.Errorf("tool %q: %w", name, model.ErrNotFound)
	}
	delete(r.tools, name)

	return nil
}

// Get resolves a tool by name.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("tool %q: %w", name, model.ErrNotFound)
	}

	return t, nil
}

// Names returns the registered tool names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Manifests returns the manifests of all registered tools sorted by name.
func (r *Registry) Manifests() []Manifest {
	r.mu.RLock()
	defer r.mu.RUnlock()

	manifests := make([]Manifest, 0, len(r.tools))
	for _, t := range r.tools {
		manifests = append(manifests, t.Manifest())
	}
	sort.Slice(manifests, func(i, j int) bool { return manifests[i].Name < manifests[j].Name })

	return manifests
}
