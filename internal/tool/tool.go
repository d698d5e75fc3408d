// Package tool defines the capability contract of the orchestration engine
// and the registry used to dispatch plan steps to concrete tools.
package tool

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// ParamSpec describes one parameter of a tool's schema.
type ParamSpec struct {
	Type        string // "string", "number", "boolean", "array", "object"
	Description string
	Required    bool
	Default     any
}

// Tool is a named side-effecting capability with a declared parameter schema.
// Required parameters are discovered through Schema alone.
type Tool interface {
	// Name returns the exact name steps use to dispatch to this tool.
	Name() string

	// Description returns a short human-readable capability summary.
	Description() string

	// Schema returns the parameter schema keyed by parameter name.
	Schema() map[string]ParamSpec

	// Run executes the tool with resolved parameters.
	Run(ctx context.Context, params map[string]any) (any, error)
}

// RequiredParams returns the sorted names of a tool's required parameters.
func RequiredParams(t Tool) []string {
	var required []string
	for name, spec := range t.Schema() {
		if spec.Required {
			required = append(required, name)
		}
	}
	sort.Strings(required)
	return required
}

// MissingParams returns the sorted required parameter names absent from params.
func MissingParams(t Tool, params map[string]any) []string {
	var missing []string
	for _, name := range RequiredParams(t) {
		if _, ok := params[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// Registry maps tool names to capabilities. Thread-safe.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool to the registry.
// Returns an error if a tool with the same name is already registered.
func (r *Registry) Register(t Tool) error {
	if t == nil {
		return fmt.Errorf("cannot register nil tool")
	}
	if t.Name() == "" {
		return fmt.Errorf("cannot register tool with empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[t.Name()]; exists {
		return fmt.Errorf("tool %q already registered", t.Name())
	}
	r.tools[t.Name()] = t
	return nil
}

// Get looks up a tool by exact name match.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names in sorted order.
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

// All returns the registered tools in name order.
func (r *Registry) All() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	tools := make([]Tool, 0, len(names))
	for _, name := range names {
		tools = append(tools, r.tools[name])
	}
	return tools
}
