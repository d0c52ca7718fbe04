package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"golang.org/x/oauth2"
)

// Session is a provider's persisted sign-in, kept in the config directory so
// the next run can resolve it without asking for credentials.
type Session struct {
	UID   string        `json:"uid"`
	Email string        `json:"email"`
	Token *oauth2.Token `json:"token,omitempty"`
}

// Identity returns the session's user.
func (s *Session) Identity() *Identity {
	return &Identity{UID: s.UID, Email: s.Email}
}

// LoadSession reads the session file at path.
// A missing file returns (nil, nil).
func LoadSession(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse session file: %w", err)
	}
	if s.UID == "" {
		return nil, fmt.Errorf("parse session file: missing uid")
	}
	return &s, nil
}

// SaveSession writes s to path with mode 0600.
func SaveSession(path string, s *Session) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// RemoveSession deletes the session file. A missing file is not an error.
func RemoveSession(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
