package config

import (
	"errors"
	"os"
)

// CredentialEnvVar is the mandatory environment variable carrying the
// completion backend's bearer token. Its absence is a startup-fatal error
// per spec.
const CredentialEnvVar = "TURNGATE_API_KEY"

// SystemPromptEnvVar optionally names a file whose contents override the
// default system prompt.
const SystemPromptEnvVar = "TURNGATE_SYSTEM_PROMPT_FILE"

// ErrCredentialMissing is returned by LoadCredential when CredentialEnvVar
// is unset.
var ErrCredentialMissing = errors.New("config: " + CredentialEnvVar + " is not set")

// LoadCredential reads the completion backend's API key from the process
// environment. There is no on-disk credential store — the key must come
// from the environment, checked once at startup.
func LoadCredential() (string, error) {
	key := os.Getenv(CredentialEnvVar)
	if key == "" {
		return "", ErrCredentialMissing
	}
	return key, nil
}

// LoadSystemPrompt returns the contents of the file named by
// SystemPromptEnvVar, or defaultPrompt if that variable is unset.
func LoadSystemPrompt(defaultPrompt string) (string, error) {
	path := os.Getenv(SystemPromptEnvVar)
	if path == "" {
		return defaultPrompt, nil
	}
	//nolint:gosec // G304: path from an operator-controlled env var, not user input
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
