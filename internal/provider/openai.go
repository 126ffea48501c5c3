package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
)

const roleSystem = "system"

// maxAttempts and the backoff schedule implement the completion client's
// retry policy: 3 attempts total, 1s/2s/4s.../30s-capped backoff between
// them, retrying only on transport errors and {429,500,502,503}.
const maxAttempts = 3

var baseBackoff = 1 * time.Second
var maxBackoff = 30 * time.Second

// StatusError wraps a non-retryable (or exhausted-retry) HTTP response from
// the completion backend, carrying the status code the caller needs to
// decide whether the model can react to it.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("completion backend status %d: %s", e.StatusCode, e.Body)
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable:
		return true
	default:
		return false
	}
}

// OpenAIProvider is a streaming chat-completion client for any backend that
// speaks the OpenAI chat-completions wire format (OpenAI itself, and the
// many self-hosted servers that mirror it).
type OpenAIProvider struct {
	name        string
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	model       string
	temperature float64
}

// NewOpenAI constructs a provider bound to a specific chat-completions
// endpoint, model, and bearer-token credential.
func NewOpenAI(name, endpoint, apiKey, model string, opts Options) *OpenAIProvider {
	return &OpenAIProvider{
		name:        name,
		baseURL:     strings.TrimRight(endpoint, "/"),
		apiKey:      apiKey,
		httpClient:  &http.Client{},
		model:       model,
		temperature: opts.Temperature,
	}
}

func (p *OpenAIProvider) Name() string { return p.name }

func (p *OpenAIProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

type chatCompletionRequest struct {
	Model         string                         `json:"model"`
	Messages      []openai.ChatCompletionMessage `json:"messages"`
	Tools         []openai.Tool                  `json:"tools,omitempty"`
	Temperature   float32                        `json:"temperature,omitempty"`
	Stream        bool                           `json:"stream"`
	StreamOptions *streamOptions                 `json:"stream_options,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type chatCompletionChunk struct {
	Choices []chatCompletionChunkChoice `json:"choices"`
	Usage   *chatCompletionUsage        `json:"usage,omitempty"`
}

type chatCompletionUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type chatCompletionChunkChoice struct {
	Delta        chatCompletionDelta `json:"delta"`
	FinishReason *string             `json:"finish_reason"`
}

type chatCompletionDelta struct {
	Content   string                   `json:"content,omitempty"`
	ToolCalls []chatCompletionToolCall `json:"tool_calls,omitempty"`
}

type chatCompletionToolCall struct {
	Index    int                    `json:"index"`
	ID       string                 `json:"id"`
	Function chatCompletionFunction `json:"function"`
}

type chatCompletionFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ChatStream opens a streamed chat completion and returns the channel of
// parsed events. The HTTP connection itself is retried per the policy
// documented on maxAttempts; once the stream is open, transport failures
// mid-stream surface as a single EventError (the turn loop decides whether
// to treat that as a terminal turn failure — streaming responses are not
// themselves retried, only the initial connection).
func (p *OpenAIProvider) ChatStream(ctx context.Context, messages []Message, tools []Tool) (<-chan StreamEvent, error) {
	req := chatCompletionRequest{
		Model:         p.model,
		Messages:      mergeSystemMessages(toOpenAIMessages(messages)),
		Tools:         toOpenAITools(tools),
		Temperature:   float32(p.temperature),
		Stream:        true,
		StreamOptions: &streamOptions{IncludeUsage: true},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal completion request: %w", err)
	}

	reader, err := p.connectWithRetry(ctx, body)
	if err != nil {
		return nil, err
	}

	ch := make(chan StreamEvent)
	go func() {
		defer close(ch)
		defer reader.Close()
		parseChatStream(ctx, reader, ch)
	}()
	return ch, nil
}

// connectWithRetry makes up to maxAttempts POST attempts, retrying on
// transport errors and the retryable status set, backing off between
// attempts. A non-retryable status returns immediately as *StatusError.
func (p *OpenAIProvider) connectWithRetry(ctx context.Context, body []byte) (io.ReadCloser, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			delay := backoffFor(attempt - 1)
			log.Warn().Str("provider", p.name).Int("attempt", attempt).Dur("delay", delay).Msg("retrying completion request")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		reader, statusErr, retryErr := p.attempt(ctx, body)
		if statusErr != nil {
			return nil, statusErr
		}
		if retryErr == nil {
			return reader, nil
		}
		lastErr = retryErr
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// backoffFor returns the delay before the nth retry (1-indexed): 1s, 2s,
// 4s, ... capped at maxBackoff.
func backoffFor(n int) time.Duration {
	d := baseBackoff
	for i := 1; i < n; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

// attempt makes one HTTP request. Exactly one of (reader, statusErr, retryErr)
// is non-nil: statusErr is a non-retryable failure the caller should surface
// immediately, retryErr is a transport or retryable-status failure the
// caller should back off and retry.
func (p *OpenAIProvider) attempt(ctx context.Context, body []byte) (reader io.ReadCloser, statusErr error, retryErr error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err, nil
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err, nil
		}
		return nil, nil, err
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp.Body, nil, nil
	}

	payload, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	msg := strings.TrimSpace(string(payload))

	if isRetryableStatus(resp.StatusCode) {
		return nil, nil, &StatusError{StatusCode: resp.StatusCode, Body: msg}
	}
	return nil, &StatusError{StatusCode: resp.StatusCode, Body: msg}, nil
}

// parseChatStream reads SSE "data: " lines and emits StreamEvents. The last
// non-null id/function.name for a given tool-call index wins; arguments
// fragments are forwarded as-is for the caller to concatenate.
func parseChatStream(ctx context.Context, reader io.Reader, ch chan<- StreamEvent) {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 512*1024)

	var finishReason string
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			trySend(ctx, ch, StreamEvent{Type: EventDone, FinishReason: finishReason})
			return
		}

		var chunk chatCompletionChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			log.Warn().Err(err).Str("data", data).Msg("failed to parse completion chunk")
			continue
		}
		if chunk.Usage != nil {
			if !trySend(ctx, ch, StreamEvent{Type: EventUsage, InputTokens: chunk.Usage.PromptTokens, OutputTokens: chunk.Usage.CompletionTokens}) {
				return
			}
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		if choice.FinishReason != nil {
			finishReason = *choice.FinishReason
		}
		if !emitDelta(ctx, ch, choice.Delta) {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		trySend(ctx, ch, StreamEvent{Type: EventError, Err: err})
		return
	}
	trySend(ctx, ch, StreamEvent{Type: EventDone, FinishReason: finishReason})
}

func emitDelta(ctx context.Context, ch chan<- StreamEvent, delta chatCompletionDelta) bool {
	if delta.Content != "" {
		if !trySend(ctx, ch, StreamEvent{Type: EventContentDelta, Content: delta.Content}) {
			return false
		}
	}
	for _, tc := range delta.ToolCalls {
		if tc.Function.Name != "" || tc.ID != "" {
			if !trySend(ctx, ch, StreamEvent{
				Type: EventToolCallBegin, ToolCallIndex: tc.Index,
				ToolCallID: tc.ID, ToolCallName: tc.Function.Name,
			}) {
				return false
			}
		}
		if tc.Function.Arguments != "" {
			if !trySend(ctx, ch, StreamEvent{
				Type: EventToolCallDelta, ToolCallIndex: tc.Index,
				ToolCallArgs: tc.Function.Arguments,
			}) {
				return false
			}
		}
	}
	return true
}

func trySend(ctx context.Context, ch chan<- StreamEvent, evt StreamEvent) bool {
	select {
	case ch <- evt:
		return true
	case <-ctx.Done():
		return false
	}
}

// ListModels fetches the backend's model catalog via the OpenAI-compatible
// GET /models endpoint.
func (p *OpenAIProvider) ListModels(ctx context.Context) ([]Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var listResp struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listResp); err != nil {
		return nil, fmt.Errorf("decode model list: %w", err)
	}

	models := make([]Model, len(listResp.Data))
	for i, m := range listResp.Data {
		models[i] = Model{Name: m.ID, ContextLen: ContextWindowFor(m.ID)}
	}
	return models, nil
}

// toOpenAIMessages converts provider-agnostic messages to go-openai's wire shape.
func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		msg := openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		}
		if m.ToolCallID != "" {
			msg.ToolCallID = m.ToolCallID
		}
		if m.FunctionName != "" {
			msg.Name = m.FunctionName
		}
		if len(m.ToolCalls) > 0 {
			msg.ToolCalls = make([]openai.ToolCall, len(m.ToolCalls))
			for j, tc := range m.ToolCalls {
				msg.ToolCalls[j] = openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				}
			}
		}
		result[i] = msg
	}
	return result
}

// mergeSystemMessages collapses every system message into one leading
// message, preserving the rest of the conversation's order.
func mergeSystemMessages(messages []openai.ChatCompletionMessage) []openai.ChatCompletionMessage {
	if len(messages) == 0 {
		return messages
	}
	var systemParts []string
	var rest []openai.ChatCompletionMessage
	for _, m := range messages {
		if m.Role == roleSystem {
			systemParts = append(systemParts, m.Content)
		} else {
			rest = append(rest, m)
		}
	}
	result := make([]openai.ChatCompletionMessage, 0, len(messages))
	if len(systemParts) > 0 {
		result = append(result, openai.ChatCompletionMessage{
			Role:    roleSystem,
			Content: strings.Join(systemParts, "\n\n"),
		})
	}
	return append(result, rest...)
}

// toOpenAITools converts tool definitions, passing Parameters through as
// json.RawMessage to preserve deterministic key ordering (stable tool
// schemas improve backend prompt-cache hit rate).
func toOpenAITools(tools []Tool) []openai.Tool {
	if tools == nil {
		return nil
	}
	emptyParams := json.RawMessage(`{"type":"object","properties":{}}`)
	result := make([]openai.Tool, len(tools))
	for i, t := range tools {
		params := t.Parameters
		if len(params) == 0 {
			params = emptyParams
		}
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		}
	}
	return result
}
