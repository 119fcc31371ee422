package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
)

// ErrNoSession signals that no usable session is present. Callers gate
// every chat operation on it before touching the network.
var ErrNoSession = errors.New("no session")

// Session is the persisted identity of the signed-in agency user. It is
// loaded once and handed to components explicitly instead of being re-read
// from storage at every call site.
type Session struct {
	Token  string `json:"auth_token"`
	UserID string `json:"id"`
	Name   string `json:"name"`
}

// Valid reports whether the session can authenticate chat calls.
func (s Session) Valid() bool {
	if s.Token == "" {
		return false
	}
	_, err := uuid.Parse(s.UserID)
	return err == nil
}

// Store persists the session as a JSON file.
type Store struct {
	path string
}

// NewStore builds a Store backed by path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the session file. A missing file yields ErrNoSession.
func (s *Store) Load() (Session, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Session{}, ErrNoSession
		}
		return Session{}, fmt.Errorf("read session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return Session{}, fmt.Errorf("parse session: %w", err)
	}
	return sess, nil
}

// Save writes the session file with owner-only permissions.
func (s *Store) Save(sess Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

// Clear removes the session file.
func (s *Store) Clear() error {
	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
