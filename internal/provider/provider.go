// Package provider defines the streaming chat-completion client interface
// and its one concrete (OpenAI-compatible) implementation.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrProviderNotFound is returned when a requested provider doesn't exist.
var ErrProviderNotFound = errors.New("provider not found")

// Message represents one entry in a conversation sent to the backend.
type Message struct {
	Role         string     `json:"role"`
	Content      string     `json:"content"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"` // assistant messages with tool calls
	ToolCallID   string     `json:"tool_call_id,omitempty"`   // tool-result messages
	FunctionName string     `json:"function_name,omitempty"` // tool-result messages: name of the called function
	CreatedAt    time.Time  `json:"created_at"`
	InputTokens  int        `json:"input_tokens,omitempty"`
	OutputTokens int        `json:"output_tokens,omitempty"`
}

// Tool represents a tool/function definition offered to the model.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolCall is one tool invocation requested by the model.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// StreamEventType identifies the kind of streaming event.
type StreamEventType int

const (
	EventContentDelta StreamEventType = iota
	EventToolCallBegin
	EventToolCallDelta
	EventUsage
	EventDone
	EventError
)

// StreamEvent is a single parsed event from a streamed completion response.
// This is the internal wire-parsing result — distinct from events.Event,
// which is the turn loop's own outward-facing tagged union.
type StreamEvent struct {
	Type StreamEventType

	// Content delta (EventContentDelta).
	Content string

	// Tool call fields (EventToolCallBegin, EventToolCallDelta). ToolCallIndex
	// is the position the backend assigned this call within the response —
	// the turn loop keys its accumulator by this index, not by ID, since IDs
	// may arrive split across several deltas.
	ToolCallIndex int
	ToolCallID    string
	ToolCallName  string
	ToolCallArgs  string

	// FinishReason is set on the terminal chunk only ("stop", "tool_calls", ...).
	FinishReason string

	// Token usage (EventUsage).
	InputTokens  int
	OutputTokens int

	// Err is set on EventError.
	Err error
}

// Model describes one entry in a provider's model catalog.
type Model struct {
	Name       string
	ContextLen int
}

// Provider is a streaming chat-completion backend.
type Provider interface {
	// Name returns the provider's identifier.
	Name() string

	// ChatStream sends messages with optional tools and returns a channel of
	// streaming events. The channel is closed after EventDone or EventError.
	// Pass nil tools to omit the tools field entirely.
	ChatStream(ctx context.Context, messages []Message, tools []Tool) (<-chan StreamEvent, error)

	// ListModels returns the models available from this provider.
	ListModels(ctx context.Context) ([]Model, error)

	// Close releases idle connections and other resources.
	Close() error
}

// Factory constructs a Provider for a given model.
type Factory interface {
	Name() string
	Create(model string, opts Options) Provider
}

// Options holds provider generation settings.
type Options struct {
	Temperature float64
}

// Registry holds registered provider factories, keyed by name.
type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

func (r *Registry) RegisterFactory(name string, f Factory) {
	r.factories[name] = f
}

func (r *Registry) Create(name, model string, opts Options) (Provider, error) {
	f, ok := r.factories[name]
	if !ok {
		log.Error().Str("name", name).Str("model", model).Msg("provider registry: factory not found")
		return nil, ErrProviderNotFound
	}
	log.Info().Str("name", name).Str("model", model).Msg("provider registry: creating provider")
	return f.Create(model, opts), nil
}

// List returns all registered provider names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}

// TaggedModel pairs a provider name with one of its catalog entries.
type TaggedModel struct {
	ProviderName string
	Model        Model
}

// ListAllModels concurrently fetches models from every registered provider.
// An unavailable provider is logged and skipped rather than failing the call.
func (r *Registry) ListAllModels(ctx context.Context, opts Options) []TaggedModel {
	type result struct {
		name   string
		models []Model
	}
	ch := make(chan result, len(r.factories))
	for name := range r.factories {
		name := name
		go func() {
			prov := r.factories[name].Create("", opts)
			models, err := prov.ListModels(ctx)
			prov.Close()
			if err != nil {
				log.Warn().Str("provider", name).Err(err).Msg("ListAllModels: provider error")
				ch <- result{name: name}
				return
			}
			ch <- result{name: name, models: models}
		}()
	}
	var all []TaggedModel
	for range r.factories {
		res := <-ch
		for _, m := range res.models {
			all = append(all, TaggedModel{ProviderName: res.name, Model: m})
		}
	}
	return all
}
