package client

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// joinState is the persisted (room, name) pair replayed by Rejoin.
// A client-only convenience; the server knows nothing about it.
type joinState struct {
	SessionID   string `json:"sessionId"`
	DisplayName string `json:"displayName"`
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "sharepad", "session.json")
}

func saveState(path string, st joinState) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func loadState(path string) (joinState, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return joinState{}, false
	}
	var st joinState
	if err := json.Unmarshal(data, &st); err != nil {
		return joinState{}, false
	}
	if st.SessionID == "" {
		return joinState{}, false
	}
	return st, true
}

func clearState(path string) {
	_ = os.Remove(path)
}
