// Package agent implements the turn loop: one long-lived conversation with a
// completion backend, driven by prompt/steer/abort, with compaction kicking
// in automatically as the conversation grows.
package agent

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/turngate/turngate/internal/events"
	"github.com/turngate/turngate/internal/protocol"
	"github.com/turngate/turngate/internal/provider"
	"github.com/turngate/turngate/internal/tools"
)

// ErrNotRunning is returned by Prompt when the agent has not been started,
// or has been stopped. Steer and ContextInfo do not check whether the agent
// is running and return no error.
var ErrNotRunning = errors.New("agent: not running")

// EventSink receives every event the turn loop emits, in emission order.
type EventSink func(events.Event)

// Agent owns one exclusive conversation history and the provider connection
// backing it. All public methods are safe for concurrent use; the session
// multiplexer is responsible for serializing calls that must not interleave
// (prompt admission), per spec.
type Agent struct {
	mu sync.Mutex

	prov         provider.Provider
	providerName string
	model        string
	registry     *tools.Registry
	systemPrompt string
	emit         EventSink

	history    []provider.Message
	running    bool
	aborted    bool
	steerQueue []string
}

// New constructs an Agent. It does not start the turn loop — call Start.
func New(prov provider.Provider, providerName, model string, registry *tools.Registry, systemPrompt string, emit EventSink) *Agent {
	return &Agent{
		prov:         prov,
		providerName: providerName,
		model:        model,
		registry:     registry,
		systemPrompt: systemPrompt,
		emit:         emit,
	}
}

// Start marks the agent ready to accept prompts.
func (a *Agent) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return errors.New("agent: already running")
	}
	a.running = true
	a.aborted = false
	return nil
}

// Stop sets the abort flag, closes the completion client, and marks the
// agent not running. A subsequent Prompt call fails with ErrNotRunning.
func (a *Agent) Stop() {
	a.mu.Lock()
	a.aborted = true
	a.running = false
	prov := a.prov
	a.mu.Unlock()
	if prov != nil {
		if err := prov.Close(); err != nil {
			log.Warn().Err(err).Msg("agent: error closing provider on stop")
		}
	}
}

// Abort sets the abort flag without stopping the agent — the next
// opportunity the turn loop gets (before opening a stream, before reading
// each chunk, before executing each tool) it ends the turn.
func (a *Agent) Abort() {
	a.mu.Lock()
	a.aborted = true
	a.mu.Unlock()
}

func (a *Agent) isAborted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.aborted
}

func (a *Agent) clearAbort() {
	a.mu.Lock()
	a.aborted = false
	a.mu.Unlock()
}

// IsRunning reports whether the agent currently accepts prompts.
func (a *Agent) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// Steer enqueues steering text observed at the top of the next tool-response
// iteration of the in-flight turn loop, with two inline exceptions: /compact
// runs compaction immediately, and /model-info emits a model_info event
// immediately, rather than waiting for the next iteration boundary.
func (a *Agent) Steer(ctx context.Context, text string, knownModels []events.ModelEntry) {
	switch text {
	case "/compact":
		a.compact(ctx)
	case "/model-info":
		a.emit(events.NewModelInfo(knownModels))
	default:
		a.mu.Lock()
		a.steerQueue = append(a.steerQueue, text)
		a.mu.Unlock()
	}
}

func (a *Agent) drainSteer() {
	a.mu.Lock()
	queue := a.steerQueue
	a.steerQueue = nil
	a.mu.Unlock()
	for _, text := range queue {
		a.appendHistory(provider.Message{Role: "user", Content: text, CreatedAt: stamp()})
	}
}

func (a *Agent) appendHistory(msg provider.Message) {
	a.mu.Lock()
	a.history = append(a.history, msg)
	a.mu.Unlock()
}

func (a *Agent) snapshotHistory() []provider.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]provider.Message, len(a.history))
	copy(out, a.history)
	return out
}

// ContextInfo reports the six-count breakdown of the current conversation.
func (a *Agent) ContextInfo() protocol.ContextInfo {
	a.mu.Lock()
	history := make([]provider.Message, len(a.history))
	copy(history, a.history)
	model := a.model
	a.mu.Unlock()

	info := protocol.ContextInfo{
		System:        1,
		Tools:         len(a.registry.Schemas()),
		ContextWindow: provider.ContextWindowFor(model),
	}
	for _, m := range history {
		switch m.Role {
		case "user":
			info.User++
		case "assistant":
			info.Assistant++
		case "tool":
			info.ToolResults++
		}
	}
	return info
}

// SetModel replaces the model used for subsequent calls, keeping the same
// provider connection and conversation history.
func (a *Agent) SetModel(model string) {
	a.mu.Lock()
	a.model = model
	a.mu.Unlock()
}

// Model returns the currently configured model name.
func (a *Agent) Model() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.model
}

// ProviderName returns the name of the currently wired provider factory.
func (a *Agent) ProviderName() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.providerName
}

// SwapProvider replaces the completion client in place, closing the old one,
// while preserving history/model/system prompt. Used by the gateway's
// optional hot-reload path.
func (a *Agent) SwapProvider(prov provider.Provider, providerName string) error {
	a.mu.Lock()
	old := a.prov
	a.prov = prov
	a.providerName = providerName
	a.mu.Unlock()

	if old != nil {
		return old.Close()
	}
	return nil
}

func stamp() time.Time { return time.Now() }
