package provider

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestBackoffFor(t *testing.T) {
	cases := []struct {
		n    int
		want time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{10, 30 * time.Second}, // capped
	}
	for _, c := range cases {
		if got := backoffFor(c.n); got != c.want {
			t.Errorf("backoffFor(%d) = %v, want %v", c.n, got, c.want)
		}
	}
}

func TestIsRetryableStatus(t *testing.T) {
	retryable := []int{429, 500, 502, 503}
	for _, code := range retryable {
		if !isRetryableStatus(code) {
			t.Errorf("status %d should be retryable", code)
		}
	}
	nonRetryable := []int{400, 401, 403, 404, 504}
	for _, code := range nonRetryable {
		if isRetryableStatus(code) {
			t.Errorf("status %d should not be retryable", code)
		}
	}
}

func TestConnectWithRetryEventuallySucceeds(t *testing.T) {
	baseBackoff = time.Millisecond
	maxBackoff = 5 * time.Millisecond
	defer func() {
		baseBackoff = time.Second
		maxBackoff = 30 * time.Second
	}()

	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte("slow down"))
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"hi\"},\"finish_reason\":\"stop\"}]}\n\n"))
		w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer srv.Close()

	p := NewOpenAI("test", srv.URL, "key", "m", Options{})
	ch, err := p.ChatStream(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}
	var gotContent string
	for ev := range ch {
		if ev.Type == EventContentDelta {
			gotContent += ev.Content
		}
	}
	if gotContent != "hi" {
		t.Errorf("content: got %q", gotContent)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestConnectWithRetryNonRetryableFailsFast(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("bad key"))
	}))
	defer srv.Close()

	p := NewOpenAI("test", srv.URL, "key", "m", Options{})
	_, err := p.ChatStream(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	statusErr, ok := err.(*StatusError)
	if !ok {
		t.Fatalf("expected *StatusError, got %T: %v", err, err)
	}
	if statusErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("status: got %d", statusErr.StatusCode)
	}
	if attempts != 1 {
		t.Errorf("expected exactly 1 attempt for non-retryable status, got %d", attempts)
	}
}

func TestConnectWithRetryExhaustion(t *testing.T) {
	baseBackoff = time.Millisecond
	maxBackoff = 2 * time.Millisecond
	defer func() {
		baseBackoff = time.Second
		maxBackoff = 30 * time.Second
	}()

	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewOpenAI("test", srv.URL, "key", "m", Options{})
	_, err := p.ChatStream(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !strings.Contains(err.Error(), "max retries exceeded") {
		t.Errorf("error should mention retry exhaustion: %v", err)
	}
	if attempts != maxAttempts {
		t.Errorf("expected %d attempts, got %d", maxAttempts, attempts)
	}
}

func TestParseChatStreamToolCallDeltas(t *testing.T) {
	raw := strings.Join([]string{
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call-1","function":{"name":"bash"}}]}}]}`,
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"comm"}}]}}]}`,
		`data: {"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"and\":\"ls\"}"}}]}}]}`,
		`data: {"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
		`data: [DONE]`,
		"",
	}, "\n\n")

	ch := make(chan StreamEvent, 16)
	parseChatStream(context.Background(), bufio.NewReader(strings.NewReader(raw)), ch)
	close(ch)

	var gotID, gotName, gotArgs string
	var finish string
	for ev := range ch {
		switch ev.Type {
		case EventToolCallBegin:
			gotID = ev.ToolCallID
			gotName = ev.ToolCallName
		case EventToolCallDelta:
			gotArgs += ev.ToolCallArgs
		case EventDone:
			finish = ev.FinishReason
		}
	}
	if gotID != "call-1" || gotName != "bash" {
		t.Errorf("begin fields: id=%q name=%q", gotID, gotName)
	}
	if gotArgs != `{"command":"ls"}` {
		t.Errorf("concatenated args: got %q", gotArgs)
	}
	if finish != "tool_calls" {
		t.Errorf("finish reason: got %q", finish)
	}
}

func TestMergeSystemMessages(t *testing.T) {
	msgs := toOpenAIMessages([]Message{
		{Role: "system", Content: "a"},
		{Role: "user", Content: "hi"},
		{Role: "system", Content: "b"},
	})
	merged := mergeSystemMessages(msgs)
	if merged[0].Role != roleSystem || merged[0].Content != "a\n\nb" {
		t.Errorf("expected merged leading system message, got %+v", merged[0])
	}
	if len(merged) != 2 {
		t.Fatalf("expected 2 messages after merge, got %d", len(merged))
	}
	if merged[1].Content != "hi" {
		t.Errorf("non-system message should be preserved: %+v", merged[1])
	}
}

func TestContextWindowForDefault(t *testing.T) {
	if got := ContextWindowFor("some-unknown-model"); got != defaultContextWindow {
		t.Errorf("unknown model: got %d, want default %d", got, defaultContextWindow)
	}
	if got := ContextWindowFor("gpt-4o"); got != 128_000 {
		t.Errorf("gpt-4o: got %d", got)
	}
}
