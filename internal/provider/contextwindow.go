package provider

// contextWindows is a small static table of known context-window sizes,
// keyed by model id. Anything absent defaults to 128,000 tokens — the
// token estimate is itself a rough heuristic, so this table only needs to
// be roughly right.
var contextWindows = map[string]int{
	"gpt-4o":           128_000,
	"gpt-4o-mini":       128_000,
	"gpt-4-turbo":       128_000,
	"gpt-4.1":           1_047_576,
	"gpt-4.1-mini":      1_047_576,
	"o3":                200_000,
	"o4-mini":           200_000,
	"claude-3-5-sonnet": 200_000,
	"claude-3-opus":     200_000,
}

const defaultContextWindow = 128_000

// ContextWindowFor returns the declared context window for a model id,
// falling back to defaultContextWindow for anything not in the table.
func ContextWindowFor(model string) int {
	if n, ok := contextWindows[model]; ok {
		return n
	}
	return defaultContextWindow
}
