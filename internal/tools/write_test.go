package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteToolCreatesFileAndDirs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "f.txt")

	wt := NewWriteTool()
	rawArgs, _ := json.Marshal(writeArgs{Path: path, Content: "hello"})
	got := wt.Execute(context.Background(), rawArgs)
	if got.IsError {
		t.Fatalf("unexpected error: %+v", got)
	}

	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected file to exist: %v", err)
	}
	if string(body) != "hello" {
		t.Errorf("content: got %q", body)
	}
}

func TestWriteToolOverwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	os.WriteFile(path, []byte("old"), 0o644)

	wt := NewWriteTool()
	rawArgs, _ := json.Marshal(writeArgs{Path: path, Content: "new"})
	wt.Execute(context.Background(), rawArgs)

	body, _ := os.ReadFile(path)
	if string(body) != "new" {
		t.Errorf("content: got %q, want %q", body, "new")
	}
}

func TestWriteToolRejectsEmptyPath(t *testing.T) {
	wt := NewWriteTool()
	rawArgs, _ := json.Marshal(writeArgs{Path: "", Content: "x"})
	got := wt.Execute(context.Background(), rawArgs)
	if !got.IsError {
		t.Fatal("expected error for empty path")
	}
}
