package agent

import (
	"context"
	"fmt"

	"github.com/turngate/turngate/internal/events"
	"github.com/turngate/turngate/internal/provider"
)

const summarizationPrompt = "Summarize the conversation so far in enough detail that it can continue " +
	"without the original messages. Include key decisions, open questions, and file paths touched."

// findCutIndex walks history from newest to oldest, accumulating token
// estimates, until it has kept roughly keepRecentTokens worth of the tail.
// The cut point is then advanced forward to the next User or Assistant
// message, since cutting at a Tool-Result would keep a tool result in the
// suffix whose tool call was summarized away.
func findCutIndex(history []provider.Message) int {
	if len(history) == 0 {
		return 0
	}
	acc := 0
	cut := 0
	for i := len(history) - 1; i >= 0; i-- {
		acc += estimateMessageTokens(history[i])
		if acc >= keepRecentTokens {
			cut = i
			break
		}
	}
	for cut < len(history) && history[cut].Role != "user" && history[cut].Role != "assistant" {
		cut++
	}
	return cut
}

// compact summarizes history[:cut] with a single completion call (tools=nil),
// collecting its streamed reply into one summary, and splices the result in
// as a synthetic User+Assistant pair ahead of the preserved tail.
func (a *Agent) compact(ctx context.Context) {
	a.mu.Lock()
	history := make([]provider.Message, len(a.history))
	copy(history, a.history)
	systemPrompt := a.systemPrompt
	schemas := a.registry.Schemas()
	a.mu.Unlock()

	tokensBefore := estimateTokens(systemPrompt, schemas, history)

	cut := findCutIndex(history)
	if cut == 0 {
		// Nothing old enough to drop.
		return
	}

	a.emit(events.NewCompactionStart())

	summaryReq := append(append([]provider.Message{}, history[:cut]...),
		provider.Message{Role: "user", Content: summarizationPrompt})
	summaryReq = append([]provider.Message{{Role: "system", Content: systemPrompt}}, summaryReq...)

	stream, err := a.prov.ChatStream(ctx, summaryReq, nil)
	if err != nil {
		a.emit(events.NewCompactionEndError(fmt.Sprintf("compaction failed: %v", err)))
		return
	}

	var summary string
	for evt := range stream {
		switch evt.Type {
		case provider.EventContentDelta:
			summary += evt.Content
		case provider.EventError:
			a.emit(events.NewCompactionEndError(fmt.Sprintf("compaction failed: %v", evt.Err)))
			return
		}
	}
	if summary == "" {
		a.emit(events.NewCompactionEndError("compaction failed: empty summary"))
		return
	}

	synthetic := []provider.Message{
		{Role: "user", Content: "Earlier conversation summary:\n" + summary, CreatedAt: stamp()},
		{Role: "assistant", Content: "Understood — continuing from this summary.", CreatedAt: stamp()},
	}

	a.mu.Lock()
	tail := make([]provider.Message, len(a.history)-cut)
	if cut <= len(a.history) {
		copy(tail, a.history[cut:])
	}
	a.history = append(synthetic, tail...)
	a.mu.Unlock()

	a.emit(events.NewCompactionEnd(summary, tokensBefore))
}
