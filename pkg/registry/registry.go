// Package registry manages the tools callable by workflow models.
//
// Tools declare a JSON Schema for their arguments; the registry validates
// every invocation against it before dispatching to the handler. Handler
// faults become error results rather than engine failures, so a misbehaving
// tool never wedges a session.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/superego-agent/gateflow/pkg/domain"
	"github.com/superego-agent/gateflow/pkg/ports"
)

// Handler is the signature for a tool implementation.
// It receives a context and the decoded argument map, and returns the
// result text or an error.
type Handler func(ctx context.Context, args map[string]any) (string, error)

// Tool bundles a tool's callable definition with its handler.
type Tool struct {
	Name        string
	Description string
	// Parameters is a JSON Schema object describing the argument payload.
	Parameters map[string]any
	Handler    Handler

	compiled *jsonschema.Schema
}

// Registry manages the available tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
}

// New creates a new empty registry.
func New() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds a tool to the registry.
// If a tool with the same name exists, it is overwritten.
// Returns an error if the tool has no handler or its schema does not compile.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" {
		return fmt.Errorf("tool name must not be empty")
	}
	if t.Handler == nil {
		return fmt.Errorf("tool %s: missing handler", t.Name)
	}
	if t.Parameters != nil {
		compiled, err := compileSchema(t.Name, t.Parameters)
		if err != nil {
			return fmt.Errorf("tool %s: invalid schema: %w", t.Name, err)
		}
		t.compiled = compiled
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name] = &t
	return nil
}

// Specs returns the callable definitions of all registered tools, suitable
// for binding to a model invocation. With no arguments it returns every
// tool; with names it returns only those (unknown names are skipped).
func (r *Registry) Specs(names ...string) []ports.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pick := func(t *Tool) ports.ToolSpec {
		return ports.ToolSpec{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		}
	}

	if len(names) == 0 {
		specs := make([]ports.ToolSpec, 0, len(r.tools))
		for _, t := range r.tools {
			specs = append(specs, pick(t))
		}
		return specs
	}

	specs := make([]ports.ToolSpec, 0, len(names))
	for _, name := range names {
		if t, ok := r.tools[name]; ok {
			specs = append(specs, pick(t))
		}
	}
	return specs
}

// SpecsExcluding returns the definitions of every registered tool except
// the named ones. Used to bind a stage to all tools but another stage's.
func (r *Registry) SpecsExcluding(names ...string) []ports.ToolSpec {
	excluded := make(map[string]struct{}, len(names))
	for _, name := range names {
		excluded[name] = struct{}{}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]ports.ToolSpec, 0, len(r.tools))
	for _, t := range r.tools {
		if _, skip := excluded[t.Name]; skip {
			continue
		}
		specs = append(specs, ports.ToolSpec{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}
	return specs
}

// Invoke resolves a single tool call. An unknown tool or a handler fault
// yields a ToolResult with IsError set; the result is routed identically to
// a successful one.
func (r *Registry) Invoke(ctx context.Context, call domain.ToolCall) domain.ToolResult {
	r.mu.RLock()
	t, ok := r.tools[call.Name]
	r.mu.RUnlock()

	if !ok {
		return domain.ToolResult{
			ID:      call.ID,
			Name:    call.Name,
			Content: fmt.Sprintf("%v: %s", domain.ErrToolNotFound, call.Name),
			IsError: true,
		}
	}

	args := call.Args
	if args == nil {
		args = map[string]any{}
	}

	if t.compiled != nil {
		if err := t.compiled.Validate(normalize(args)); err != nil {
			return domain.ToolResult{
				ID:      call.ID,
				Name:    call.Name,
				Content: fmt.Sprintf("invalid arguments for %s: %v", call.Name, err),
				IsError: true,
			}
		}
	}

	content, err := safeInvoke(ctx, t.Handler, args)
	if err != nil {
		return domain.ToolResult{
			ID:      call.ID,
			Name:    call.Name,
			Content: err.Error(),
			IsError: true,
		}
	}

	return domain.ToolResult{ID: call.ID, Name: call.Name, Content: content}
}

// safeInvoke runs the handler, converting panics into errors.
func safeInvoke(ctx context.Context, h Handler, args map[string]any) (content string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("tool handler panicked: %v", rec)
		}
	}()
	return h(ctx, args)
}

func compileSchema(name string, params map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	url := "gateflow://tools/" + name + ".schema.json"
	if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	return compiler.Compile(url)
}

// normalize round-trips the argument map through JSON so validation sees
// the same value shapes a wire payload would have (e.g. float64 numbers).
func normalize(args map[string]any) any {
	raw, err := json.Marshal(args)
	if err != nil {
		return args
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return args
	}
	return out
}
