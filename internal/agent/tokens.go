package agent

import "github.com/turngate/turngate/internal/provider"

// charsPerToken is the coarse chars/4 heuristic used to estimate token
// counts without calling a tokenizer.
const charsPerToken = 4

// keepRecentTokens is how much of the tail of the conversation compaction
// preserves verbatim.
const keepRecentTokens = 20_000

// compactionTriggerFraction is the share of the model's context window at
// which the turn loop compacts before making its next completion call.
const compactionTriggerFraction = 0.9

func estimateTokens(systemPrompt string, toolSchemas []provider.Tool, messages []provider.Message) int {
	chars := len(systemPrompt)
	for _, t := range toolSchemas {
		chars += len(t.Name) + len(t.Description) + len(t.Parameters)
	}
	for _, m := range messages {
		chars += estimateMessageChars(m)
	}
	return chars / charsPerToken
}

func estimateMessageChars(m provider.Message) int {
	chars := len(m.Content) + len(m.Role) + len(m.FunctionName)
	for _, tc := range m.ToolCalls {
		chars += len(tc.Name) + len(tc.Arguments)
	}
	return chars
}

func estimateMessageTokens(m provider.Message) int {
	return estimateMessageChars(m) / charsPerToken
}

func shouldCompact(systemPrompt string, toolSchemas []provider.Tool, messages []provider.Message, contextWindow int) bool {
	estimated := estimateTokens(systemPrompt, toolSchemas, messages)
	return float64(estimated) >= float64(contextWindow)*compactionTriggerFraction
}
