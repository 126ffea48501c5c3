package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
)

type searchWebArgs struct {
	Query string `json:"query"`
}

var searchWebParameters = json.RawMessage(`{
	"type": "object",
	"properties": {
		"query": {"type": "string", "description": "The search query."}
	},
	"required": ["query"]
}`)

// duckDuckGoResponse is the shape of DuckDuckGo's Instant Answer API.
type duckDuckGoResponse struct {
	AbstractText  string              `json:"AbstractText"`
	Answer        string              `json:"Answer"`
	RelatedTopics []duckDuckGoRelated `json:"RelatedTopics"`
}

type duckDuckGoRelated struct {
	Text   string              `json:"Text"`
	Topics []duckDuckGoRelated `json:"Topics"`
}

const (
	duckDuckGoEndpoint   = "https://api.duckduckgo.com/"
	maxRelatedTopics     = 3
	maxNestedSubtopics   = 2
	searchWebHTTPTimeout = 15 * time.Second
)

// SearchWebTool queries DuckDuckGo's Instant Answer API, which needs no API
// key. Results are cached by query string so repeated questions within a
// session don't re-hit the network.
type SearchWebTool struct {
	client *http.Client
	get    func(query string) (string, bool)
	set    func(query, result string)
}

// NewSearchWebTool builds the tool. get/set may be nil to disable caching.
func NewSearchWebTool(get func(query string) (string, bool), set func(query, result string)) *SearchWebTool {
	return &SearchWebTool{
		client: &http.Client{Timeout: searchWebHTTPTimeout},
		get:    get,
		set:    set,
	}
}

func (t *SearchWebTool) Definition() Definition {
	return Definition{
		Name:        "search_web",
		Description: "Search the web using DuckDuckGo (no API key required).",
		Parameters:  searchWebParameters,
	}
}

func (t *SearchWebTool) Execute(ctx context.Context, rawArgs json.RawMessage) Result {
	var args searchWebArgs
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return Result{Output: fmt.Sprintf("invalid arguments: %v", err), IsError: true}
	}
	if args.Query == "" {
		return Result{Output: "No query provided.", IsError: true}
	}

	if t.get != nil {
		if cached, ok := t.get(args.Query); ok {
			return Result{Output: cached}
		}
	}

	endpoint := duckDuckGoEndpoint + "?" + url.Values{
		"q":           {args.Query},
		"format":      {"json"},
		"no_redirect": {"1"},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{Output: fmt.Sprintf("Failed to search: %v", err), IsError: true}
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return Result{Output: fmt.Sprintf("Failed to search: %v", err), IsError: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return Result{Output: fmt.Sprintf("Failed to search: HTTP %d", resp.StatusCode), IsError: true}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{Output: fmt.Sprintf("Failed to search: %v", err), IsError: true}
	}

	var data duckDuckGoResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return Result{Output: fmt.Sprintf("Failed to search: %v", err), IsError: true}
	}

	result := formatDuckDuckGoResult(data)
	if t.set != nil {
		t.set(args.Query, result)
	}
	return Result{Output: result}
}

func formatDuckDuckGoResult(data duckDuckGoResponse) string {
	var lines []string
	if text := stripHTML(data.AbstractText); text != "" {
		lines = append(lines, fmt.Sprintf("**Summary**: %s", text))
	}
	if text := stripHTML(data.Answer); text != "" {
		lines = append(lines, fmt.Sprintf("**Answer**: %s", text))
	}
	for i, topic := range data.RelatedTopics {
		if i >= maxRelatedTopics {
			break
		}
		if topic.Text != "" {
			lines = append(lines, fmt.Sprintf("- %s", stripHTML(topic.Text)))
			continue
		}
		for j, sub := range topic.Topics {
			if j >= maxNestedSubtopics {
				break
			}
			lines = append(lines, fmt.Sprintf("- %s", stripHTML(sub.Text)))
		}
	}

	if len(lines) == 0 {
		return "No results found."
	}
	return strings.Join(lines, "\n")
}

// stripHTML removes markup DuckDuckGo's Instant Answer fields occasionally
// embed (e.g. <a> links in AbstractText), keeping only the rendered text.
func stripHTML(s string) string {
	if !strings.ContainsRune(s, '<') {
		return strings.TrimSpace(s)
	}

	var b strings.Builder
	tokenizer := html.NewTokenizer(strings.NewReader(s))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.TextToken:
			b.Write(tokenizer.Text())
			b.WriteByte(' ')
		}
	}
}
