package provider

import (
	"context"
	"encoding/json"
	"sync"
)

// MockProvider is a deterministic test double for Provider: each call to
// ChatStream pops the next scripted response off a queue, so a test can
// script a whole multi-turn exchange (e.g. "first call emits a tool call,
// second call streams text and stops") up front.
type MockProvider struct {
	mu sync.Mutex

	name      string
	responses []MockResponse
	calls     int
}

// MockResponse scripts one ChatStream call's worth of behavior.
type MockResponse struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
	StreamErr    error // if set, ChatStream itself returns this error
	ConnectErr   error // if set, emits EventError instead of streaming content
}

func NewMock(name string, responses ...MockResponse) *MockProvider {
	return &MockProvider{name: name, responses: responses}
}

func (p *MockProvider) Name() string { return p.name }

func (p *MockProvider) Close() error { return nil }

// Calls reports how many ChatStream invocations have been made so far —
// scenario tests use this to assert retry counts and turn counts.
func (p *MockProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func (p *MockProvider) ChatStream(ctx context.Context, messages []Message, tools []Tool) (<-chan StreamEvent, error) {
	p.mu.Lock()
	idx := p.calls
	p.calls++
	p.mu.Unlock()

	if idx >= len(p.responses) {
		panic("provider.MockProvider: more ChatStream calls than scripted responses")
	}
	resp := p.responses[idx]
	if resp.StreamErr != nil {
		return nil, resp.StreamErr
	}

	ch := make(chan StreamEvent, 8)
	go func() {
		defer close(ch)
		if resp.ConnectErr != nil {
			ch <- StreamEvent{Type: EventError, Err: resp.ConnectErr}
			return
		}
		if resp.Content != "" {
			ch <- StreamEvent{Type: EventContentDelta, Content: resp.Content}
		}
		for i, tc := range resp.ToolCalls {
			args := tc.Arguments
			if args == nil {
				args = json.RawMessage("{}")
			}
			ch <- StreamEvent{Type: EventToolCallBegin, ToolCallIndex: i, ToolCallID: tc.ID, ToolCallName: tc.Name}
			ch <- StreamEvent{Type: EventToolCallDelta, ToolCallIndex: i, ToolCallArgs: string(args)}
		}
		ch <- StreamEvent{Type: EventDone, FinishReason: resp.FinishReason}
	}()
	return ch, nil
}

func (p *MockProvider) ListModels(ctx context.Context) ([]Model, error) {
	return []Model{{Name: "mock-model", ContextLen: defaultContextWindow}}, nil
}

// MockFactory lets a test register a scripted provider through the same
// Registry/Factory path production code uses.
type MockFactory struct {
	name string
	mock *MockProvider
}

func NewMockFactory(name string, mock *MockProvider) *MockFactory {
	return &MockFactory{name: name, mock: mock}
}

func (f *MockFactory) Name() string { return f.name }

func (f *MockFactory) Create(model string, opts Options) Provider { return f.mock }
