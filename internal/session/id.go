package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const currentFile = "session"

// NewID returns a fresh random session ID.
func NewID() string {
	return uuid.NewString()
}

// Current returns the session ID recorded in stateDir, starting a new
// session when none is recorded.
func Current(stateDir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(stateDir, currentFile))
	if err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("reading session id: %w", err)
	}
	return Rotate(stateDir)
}

// Rotate records and returns a new session ID. The previous session's data
// is left for its store to expire.
func Rotate(stateDir string) (string, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return "", fmt.Errorf("creating state dir: %w", err)
	}
	id := NewID()
	if err := os.WriteFile(filepath.Join(stateDir, currentFile), []byte(id+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("writing session id: %w", err)
	}
	return id, nil
}
