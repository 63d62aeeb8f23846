// Package session keeps the journal token between CLI invocations.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Session is the unlocked state of one user's journal. The file holds a live
// bearer token, so it is written with owner-only permissions.
type Session struct {
	UserID      string    `json:"user_id"`
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`

	filePath string
}

func New(filePath string) *Session {
	return &Session{filePath: filePath}
}

// Load reads the session file; a missing file yields an empty session.
func Load(filePath string) (*Session, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return New(filePath), nil
		}
		return nil, fmt.Errorf("read session file: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse session file: %w", err)
	}
	s.filePath = filePath
	return &s, nil
}

func (s *Session) Save() error {
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.filePath, data, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	return nil
}

func (s *Session) Set(userID, token string, expiresAt time.Time) {
	s.UserID, s.AccessToken, s.ExpiresAt = userID, token, expiresAt
}

// Clear forgets the token and removes the file.
func (s *Session) Clear() error {
	s.Set("", "", time.Time{})
	if err := os.Remove(s.filePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

// TokenFor returns the stored token when it belongs to userID and has not
// expired at now.
func (s *Session) TokenFor(userID string, now time.Time) (string, bool) {
	if s.AccessToken == "" || s.UserID != userID || !now.Before(s.ExpiresAt) {
		return "", false
	}
	return s.AccessToken, true
}
