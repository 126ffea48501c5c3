package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadValid(t *testing.T) {
	path := writeConfig(t, `
default_provider = "openai"

[providers.openai]
endpoint = "https://api.openai.com/v1"
model = "gpt-4o"
temperature = 0.7
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DefaultProvider != "openai" {
		t.Errorf("DefaultProvider = %q", cfg.DefaultProvider)
	}
	if cfg.Providers["openai"].Model != "gpt-4o" {
		t.Errorf("unexpected provider config: %+v", cfg.Providers["openai"])
	}
}

func TestLoadMissingPath(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestValidateRejectsNoProviders(t *testing.T) {
	cfg := &Config{Providers: map[string]ProviderConfig{}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for no providers")
	}
}

func TestValidateRejectsBadEndpoint(t *testing.T) {
	cfg := &Config{Providers: map[string]ProviderConfig{
		"openai": {Endpoint: "not-a-url", Model: "gpt-4o"},
	}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid endpoint")
	}
}

func TestValidateRejectsUnknownDefaultProvider(t *testing.T) {
	cfg := &Config{
		DefaultProvider: "missing",
		Providers: map[string]ProviderConfig{
			"openai": {Endpoint: "https://api.openai.com/v1", Model: "gpt-4o"},
		},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown default_provider")
	}
}

func TestListenAddrOrDefault(t *testing.T) {
	var l ListenConfig
	if got := l.AddrOrDefault(); got != ":8080" {
		t.Errorf("AddrOrDefault() = %q, want :8080", got)
	}
	l.Addr = ":9999"
	if got := l.AddrOrDefault(); got != ":9999" {
		t.Errorf("AddrOrDefault() = %q, want :9999", got)
	}
}

func TestCacheTTLOrDefault(t *testing.T) {
	var c CacheConfig
	if got := c.CacheTTLOrDefault(); got != 24 {
		t.Errorf("CacheTTLOrDefault() = %d, want 24", got)
	}
	c.TTLHours = 6
	if got := c.CacheTTLOrDefault(); got != 6 {
		t.Errorf("CacheTTLOrDefault() = %d, want 6", got)
	}
}

func TestEnvOverrideListenAddr(t *testing.T) {
	path := writeConfig(t, `
default_provider = "openai"

[providers.openai]
endpoint = "https://api.openai.com/v1"
model = "gpt-4o"
`)
	t.Setenv("TURNGATE_LISTEN_ADDR", ":7000")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen.Addr != ":7000" {
		t.Errorf("Listen.Addr = %q, want :7000", cfg.Listen.Addr)
	}
}
