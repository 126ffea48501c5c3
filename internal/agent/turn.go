package agent

import (
	"context"
	"strings"

	"github.com/turngate/turngate/internal/events"
	"github.com/turngate/turngate/internal/provider"
)

// toolCallAccumulator tracks tool-call deltas keyed by their positional
// index, since a backend may split id/name/arguments across several chunks
// and only index is guaranteed stable across them.
type toolCallAccumulator struct {
	byIndex     map[int]int
	calls       []provider.ToolCall
	argBuilders []strings.Builder
}

func newToolCallAccumulator() *toolCallAccumulator {
	return &toolCallAccumulator{byIndex: make(map[int]int)}
}

func (acc *toolCallAccumulator) begin(evt provider.StreamEvent) {
	pos, ok := acc.byIndex[evt.ToolCallIndex]
	if !ok {
		pos = len(acc.calls)
		acc.byIndex[evt.ToolCallIndex] = pos
		acc.calls = append(acc.calls, provider.ToolCall{})
		acc.argBuilders = append(acc.argBuilders, strings.Builder{})
	}
	if evt.ToolCallID != "" {
		acc.calls[pos].ID = evt.ToolCallID
	}
	if evt.ToolCallName != "" {
		acc.calls[pos].Name = evt.ToolCallName
	}
}

func (acc *toolCallAccumulator) delta(evt provider.StreamEvent) {
	pos, ok := acc.byIndex[evt.ToolCallIndex]
	if !ok {
		acc.begin(evt)
		pos = acc.byIndex[evt.ToolCallIndex]
	}
	acc.argBuilders[pos].WriteString(evt.ToolCallArgs)
}

func (acc *toolCallAccumulator) finalize() []provider.ToolCall {
	for i := range acc.calls {
		acc.calls[i].Arguments = []byte(acc.argBuilders[i].String())
	}
	return acc.calls
}

type streamOutcome struct {
	text         string
	toolCalls    []provider.ToolCall
	finishReason string
	aborted      bool
}

// consumeStream reads a completion stream to completion (or abort),
// emitting a text_delta event for each non-empty content fragment and
// accumulating tool-call deltas by index.
func (a *Agent) consumeStream(ch <-chan provider.StreamEvent, cancel context.CancelFunc) (streamOutcome, error) {
	var text strings.Builder
	acc := newToolCallAccumulator()
	finishReason := ""

	for evt := range ch {
		if a.isAborted() {
			cancel()
			for range ch {
				// drain so the provider's sender goroutine isn't blocked
			}
			return streamOutcome{aborted: true}, nil
		}

		switch evt.Type {
		case provider.EventContentDelta:
			if evt.Content != "" {
				text.WriteString(evt.Content)
				a.emit(events.NewTextDelta(evt.Content))
			}
		case provider.EventToolCallBegin:
			acc.begin(evt)
		case provider.EventToolCallDelta:
			acc.delta(evt)
		case provider.EventDone:
			finishReason = evt.FinishReason
		case provider.EventError:
			cancel()
			return streamOutcome{}, evt.Err
		}
	}

	return streamOutcome{
		text:         text.String(),
		toolCalls:    acc.finalize(),
		finishReason: finishReason,
	}, nil
}

// Prompt runs the full turn loop for one user message: stream the model's
// reply, execute any requested tools, and repeat until the model stops
// requesting tools or the turn is aborted.
func (a *Agent) Prompt(ctx context.Context, text string) error {
	if !a.IsRunning() {
		return ErrNotRunning
	}
	a.clearAbort()
	a.appendHistory(provider.Message{Role: "user", Content: text, CreatedAt: stamp()})
	a.emit(events.NewTurnStart())

	for {
		a.drainSteer()

		if a.isAborted() {
			a.emit(events.NewTurnEnd())
			a.emit(events.NewAgentEnd())
			return nil
		}

		a.mu.Lock()
		model := a.model
		systemPrompt := a.systemPrompt
		a.mu.Unlock()
		history := a.snapshotHistory()
		schemas := a.registry.Schemas()

		if shouldCompact(systemPrompt, schemas, history, provider.ContextWindowFor(model)) {
			a.compact(ctx)
			history = a.snapshotHistory()
		}

		msgs := append([]provider.Message{{Role: "system", Content: systemPrompt}}, history...)

		if a.isAborted() {
			a.emit(events.NewTurnEnd())
			a.emit(events.NewAgentEnd())
			return nil
		}

		turnCtx, cancel := context.WithCancel(ctx)
		stream, err := a.prov.ChatStream(turnCtx, msgs, schemas)
		if err != nil {
			cancel()
			a.emit(events.NewError(err.Error()))
			a.emit(events.NewAgentEnd())
			return err
		}

		outcome, err := a.consumeStream(stream, cancel)
		cancel()
		if err != nil {
			a.emit(events.NewError(err.Error()))
			a.emit(events.NewAgentEnd())
			return err
		}
		if outcome.aborted {
			a.emit(events.NewTurnEnd())
			a.emit(events.NewAgentEnd())
			return nil
		}

		a.appendHistory(provider.Message{
			Role:      "assistant",
			Content:   outcome.text,
			ToolCalls: outcome.toolCalls,
			CreatedAt: stamp(),
		})

		if len(outcome.toolCalls) == 0 || outcome.finishReason != "tool_calls" {
			a.emit(events.NewTurnEnd())
			a.emit(events.NewAgentEnd())
			return nil
		}

		for _, tc := range outcome.toolCalls {
			if a.isAborted() {
				break
			}
			a.emit(events.NewToolStart(tc.Name, tc.ID, tc.Arguments))
			result := a.registry.Execute(ctx, tc.Name, tc.Arguments)
			a.emit(events.NewToolEnd(tc.Name, tc.ID, result.Output, result.IsError))
			a.appendHistory(provider.Message{
				Role:         "tool",
				Content:      result.Output,
				ToolCallID:   tc.ID,
				FunctionName: tc.Name,
				CreatedAt:    stamp(),
			})
		}

		if a.isAborted() {
			a.emit(events.NewTurnEnd())
			a.emit(events.NewAgentEnd())
			return nil
		}
	}
}
