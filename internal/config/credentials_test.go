package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCredentialMissing(t *testing.T) {
	t.Setenv(CredentialEnvVar, "")
	if _, err := LoadCredential(); err != ErrCredentialMissing {
		t.Fatalf("got err %v, want ErrCredentialMissing", err)
	}
}

func TestLoadCredentialPresent(t *testing.T) {
	t.Setenv(CredentialEnvVar, "sk-test-123")
	got, err := LoadCredential()
	if err != nil {
		t.Fatalf("LoadCredential: %v", err)
	}
	if got != "sk-test-123" {
		t.Errorf("got %q", got)
	}
}

func TestLoadSystemPromptDefault(t *testing.T) {
	t.Setenv(SystemPromptEnvVar, "")
	got, err := LoadSystemPrompt("default prompt")
	if err != nil {
		t.Fatalf("LoadSystemPrompt: %v", err)
	}
	if got != "default prompt" {
		t.Errorf("got %q", got)
	}
}

func TestLoadSystemPromptFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompt.txt")
	if err := os.WriteFile(path, []byte("custom prompt"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(SystemPromptEnvVar, path)
	got, err := LoadSystemPrompt("default prompt")
	if err != nil {
		t.Fatalf("LoadSystemPrompt: %v", err)
	}
	if got != "custom prompt" {
		t.Errorf("got %q", got)
	}
}

func TestLoadSystemPromptMissingFile(t *testing.T) {
	t.Setenv(SystemPromptEnvVar, filepath.Join(t.TempDir(), "nope.txt"))
	if _, err := LoadSystemPrompt("default"); err == nil {
		t.Fatal("expected error for missing system prompt file")
	}
}
