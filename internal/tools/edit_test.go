package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/turngate/turngate/internal/hashline"
)

func anchorRef(line int, content string) string {
	return fmt.Sprintf("%d:%s", line, hashline.LineHash(content))
}

func TestEditToolSingleLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	os.WriteFile(path, []byte("a\nb\nc\n"), 0o644)

	et := NewEditTool()
	rawArgs, _ := json.Marshal(editArgs{Path: path, Hash: anchorRef(2, "b"), Text: "B"})
	got := et.Execute(context.Background(), rawArgs)
	if got.IsError {
		t.Fatalf("unexpected error: %+v", got)
	}

	body, _ := os.ReadFile(path)
	if string(body) != "a\nB\nc\n" {
		t.Errorf("content: got %q", body)
	}
}

func TestEditToolRange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	os.WriteFile(path, []byte("a\nb\nc\nd\n"), 0o644)

	et := NewEditTool()
	ref := anchorRef(2, "b") + "-" + anchorRef(3, "c")
	rawArgs, _ := json.Marshal(editArgs{Path: path, Hash: ref, Text: "X\nY"})
	got := et.Execute(context.Background(), rawArgs)
	if got.IsError {
		t.Fatalf("unexpected error: %+v", got)
	}

	body, _ := os.ReadFile(path)
	if string(body) != "a\nX\nY\nd\n" {
		t.Errorf("content: got %q", body)
	}
}

func TestEditToolPreservesNoTrailingNewline(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	os.WriteFile(path, []byte("a\nb\nc"), 0o644)

	et := NewEditTool()
	rawArgs, _ := json.Marshal(editArgs{Path: path, Hash: anchorRef(1, "a"), Text: "A"})
	et.Execute(context.Background(), rawArgs)

	body, _ := os.ReadFile(path)
	if string(body) != "A\nb\nc" {
		t.Errorf("content: got %q", body)
	}
}

func TestEditToolRejectsDriftedHash(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	os.WriteFile(path, []byte("a\nb\nc\n"), 0o644)

	et := NewEditTool()
	rawArgs, _ := json.Marshal(editArgs{Path: path, Hash: anchorRef(2, "stale"), Text: "X"})
	got := et.Execute(context.Background(), rawArgs)
	if !got.IsError {
		t.Fatal("expected error for stale hash")
	}

	body, _ := os.ReadFile(path)
	if string(body) != "a\nb\nc\n" {
		t.Errorf("file should be unchanged after rejected edit, got %q", body)
	}
}

func TestEditToolRejectsMalformedRef(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	os.WriteFile(path, []byte("a\n"), 0o644)

	et := NewEditTool()
	rawArgs, _ := json.Marshal(editArgs{Path: path, Hash: "not-a-ref", Text: "X"})
	got := et.Execute(context.Background(), rawArgs)
	if !got.IsError {
		t.Fatal("expected error for malformed hash reference")
	}
}
