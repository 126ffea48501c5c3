package store

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/turngate/turngate/internal/provider"
)

// Snapshot is the optional single-file session persistence format: just
// enough to resume a conversation — not the teacher's per-message SQLite
// history.
type Snapshot struct {
	Model        string            `json:"model"`
	SystemPrompt string            `json:"system_prompt"`
	Messages     []provider.Message `json:"messages"`
}

// LoadSnapshot reads a session snapshot from path. A missing file is not an
// error — it returns (nil, nil), since there's nothing to resume yet.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// SaveSnapshot writes snap to path as indented JSON, creating parent
// directories as needed.
func SaveSnapshot(path string, snap Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
