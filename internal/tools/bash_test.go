package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func bashArgsJSON(t *testing.T, command string) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(bashArgs{Command: command})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestBashToolRunsCommand(t *testing.T) {
	bt := NewBashTool()
	got := bt.Execute(context.Background(), bashArgsJSON(t, "echo hello"))
	if got.IsError {
		t.Fatalf("unexpected error result: %+v", got)
	}
	if strings.TrimSpace(got.Output) != "hello" {
		t.Errorf("output: got %q", got.Output)
	}
}

func TestBashToolNonZeroExit(t *testing.T) {
	bt := NewBashTool()
	got := bt.Execute(context.Background(), bashArgsJSON(t, "exit 7"))
	if !got.IsError {
		t.Fatal("expected IsError for non-zero exit")
	}
	if !strings.HasPrefix(got.Output, "Exit code: 7\n") {
		t.Errorf("expected exit code prefix, got %q", got.Output)
	}
}

func TestBashToolMergesStdoutStderr(t *testing.T) {
	bt := NewBashTool()
	got := bt.Execute(context.Background(), bashArgsJSON(t, "echo out; echo err 1>&2"))
	if !strings.Contains(got.Output, "out") || !strings.Contains(got.Output, "err") {
		t.Errorf("expected both stdout and stderr, got %q", got.Output)
	}
}

func TestBashToolTruncatesOutput(t *testing.T) {
	bt := NewBashTool()
	got := bt.Execute(context.Background(), bashArgsJSON(t, "head -c 40000 /dev/zero | tr '\\0' 'a'"))
	if len(got.Output) > bashMaxOutput+len(bashTruncateMark)+1 {
		t.Errorf("output not truncated: %d bytes", len(got.Output))
	}
	if !strings.Contains(got.Output, "truncated") {
		t.Errorf("expected truncation marker, got suffix %q", got.Output[max(0, len(got.Output)-40):])
	}
}

func TestBashToolBlocksDangerousCommand(t *testing.T) {
	bt := NewBashTool()
	got := bt.Execute(context.Background(), bashArgsJSON(t, "sudo rm -rf /"))
	if !got.IsError {
		t.Fatal("expected blocked command to be an error result")
	}
	if !strings.Contains(got.Output, "blocked") {
		t.Errorf("expected blocked-command message, got %q", got.Output)
	}
}

func TestBashToolRejectsEmptyCommand(t *testing.T) {
	bt := NewBashTool()
	got := bt.Execute(context.Background(), bashArgsJSON(t, "  "))
	if !got.IsError {
		t.Fatal("expected error for empty command")
	}
}

func TestBashToolTimesOut(t *testing.T) {
	bt := NewBashTool()
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	got := bt.Execute(ctx, bashArgsJSON(t, "sleep 5"))
	if !got.IsError {
		t.Fatal("expected error when parent context is cancelled")
	}
}

func TestExtractArgvBasic(t *testing.T) {
	argv, ok := extractArgv("rm -rf /tmp/x")
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	want := []string{"rm", "-rf", "/tmp/x"}
	if len(argv) != len(want) {
		t.Fatalf("argv = %v, want %v", argv, want)
	}
	for i := range want {
		if argv[i] != want[i] {
			t.Errorf("argv[%d] = %q, want %q", i, argv[i], want[i])
		}
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
