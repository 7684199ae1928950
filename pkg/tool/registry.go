package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/wilhg/iamlens/pkg/errmodel"
)

// Registry keeps tools by name. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: map[string]Tool{}}
}

// Register adds t under its descriptor name. Schemas are compiled up front so
// a broken descriptor fails at startup instead of on first call.
func (r *Registry) Register(t Tool) error {
	if t == nil {
		return fmt.Errorf("tool is nil")
	}
	d := t.Describe()
	if d.Name == "" {
		return fmt.Errorf("tool name is empty")
	}
	if err := CompileSchema(d.InputSchema); err != nil {
		return fmt.Errorf("tool %q: input schema: %w", d.Name, err)
	}
	if err := CompileSchema(d.OutputSchema); err != nil {
		return fmt.Errorf("tool %q: output schema: %w", d.Name, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[d.Name]; exists {
		return fmt.Errorf("tool %q already registered", d.Name)
	}
	r.tools[d.Name] = t
	return nil
}

// Resolve returns a Tool by name.
func (r *Registry) Resolve(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Range calls fn for every registered tool in name order.
func (r *Registry) Range(fn func(name string, t Tool)) {
	r.mu.RLock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	snapshot := make(map[string]Tool, len(r.tools))
	for n, t := range r.tools {
		snapshot[n] = t
	}
	r.mu.RUnlock()

	sort.Strings(names)
	for _, n := range names {
		fn(n, snapshot[n])
	}
}

// SafeInvoke checks permissions, validates args against the tool's input
// schema, invokes it and validates the output.
// Permissions are granted by the caller via the allowed set.
func SafeInvoke(ctx context.Context, t Tool, args json.RawMessage, allowed map[string]bool, validate ValidateFunc) (any, error) {
	if t == nil {
		return nil, errmodel.Validation("bad_tool", "tool is nil", nil)
	}
	if validate == nil {
		validate = JSONSchemaValidator
	}
	d := t.Describe()
	for _, p := range d.Permissions {
		if !allowed[p.Name] {
			return nil, errmodel.Policy("forbidden", "permission denied for tool", map[string]any{"permission": p.Name, "tool": d.Name})
		}
	}
	if len(args) == 0 || string(args) == "null" {
		args = json.RawMessage(`{}`)
	}
	if err := validate(d.InputSchema, args); err != nil {
		return nil, errmodel.Validation("invalid_input", "tool input validation failed", map[string]any{"tool": d.Name, "error": err.Error()})
	}
	out, err := t.Invoke(ctx, args)
	if err != nil {
		return nil, err
	}
	if err := validate(d.OutputSchema, out); err != nil {
		return nil, errmodel.Validation("invalid_output", "tool output validation failed", map[string]any{"tool": d.Name, "error": err.Error()})
	}
	return out, nil
}
