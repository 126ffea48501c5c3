// Package tools implements the built-in tool registry: bash, read, write,
// edit, and search-web. Tools are a closed set looked up by name, not a
// dynamic-dispatch hierarchy — new tools extend the registry, they don't
// subclass one.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/turngate/turngate/internal/provider"
)

// Result is what every tool's Execute returns: text the model reads back,
// and whether that text describes a failure.
type Result struct {
	Output  string `json:"output"`
	IsError bool   `json:"is_error"`
}

// Definition describes a tool for both the registry and the completion
// request's tool-schema list.
type Definition struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// Tool is implemented by every built-in. Execute must never panic or return
// a Go error for a tool-level failure — those become Result{IsError: true}
// so the model can see and react to them.
type Tool interface {
	Definition() Definition
	Execute(ctx context.Context, args json.RawMessage) Result
}

// Registry holds the closed set of tools available to the turn loop.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool, keyed by its definition's name. Registering a
// second tool under the same name replaces the first — the registry
// invariant is that names are unique at any point in time, not that
// Register is called at most once per name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Definition().Name] = t
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Schemas returns every registered tool's definition as a completion-request
// tool schema, suitable for passing straight to provider.Provider.ChatStream.
func (r *Registry) Schemas() []provider.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	schemas := make([]provider.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		d := t.Definition()
		schemas = append(schemas, provider.Tool{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.Parameters,
		})
	}
	return schemas
}

// Execute looks up a tool by name and runs it, converting an unknown tool
// name into the same Result shape a failing tool would produce — the turn
// loop does not need a separate not-found branch.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) Result {
	t, ok := r.Get(name)
	if !ok {
		return Result{Output: fmt.Sprintf("Unknown tool: %s", name), IsError: true}
	}
	return t.Execute(ctx, args)
}

// Default returns a new registry holding the five built-in tools. cacheGet
// and cacheSet back the search-web tool's result cache and may be nil to
// disable caching.
func Default(cacheGet func(query string) (string, bool), cacheSet func(query, result string)) *Registry {
	r := NewRegistry()
	r.Register(NewBashTool())
	r.Register(NewReadTool())
	r.Register(NewWriteTool())
	r.Register(NewEditTool())
	r.Register(NewSearchWebTool(cacheGet, cacheSet))
	return r
}
