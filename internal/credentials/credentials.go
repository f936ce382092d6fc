// Package credentials persists the session/cookie pair used to authenticate
// against the upstream channel source.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Built-in fallbacks used when neither the file nor configuration provide values.
const (
	DefaultSession = "4rrbqqpthi07h0fpqllhqi3oirpgo2pd"
	DefaultCookie  = "e0e161dc671a2d979810244af04d6ddf"
)

var (
	ErrSessionRequired = errors.New("Session is required and must be a string")
	ErrCookieRequired  = errors.New("Cookie is required and must be a string")
)

// Record is the persisted session/cookie pair.
type Record struct {
	Session string `json:"session"`
	Cookie  string `json:"cookie"`
}

// Combined returns the Cookie header value for the record.
func (r Record) Combined() string {
	return Combine(r.Session, r.Cookie)
}

// Combine formats a session and cookie as a single Cookie header value.
func Combine(session, cookie string) string {
	return "ci_session=" + session + "; _cookie=" + cookie
}

// Provider returns the current credentials. Implementations never fail;
// they fall back to defaults instead.
type Provider interface {
	Get() Record
}

// Store is a Provider that can also be updated.
type Store interface {
	Provider
	Set(session, cookie string) (Record, error)
}

// FileStore keeps the record in a small JSON document.
type FileStore struct {
	path     string
	defaults Record
	mu       sync.Mutex
}

// NewFileStore returns a FileStore backed by path. Empty default fields are
// replaced by DefaultSession and DefaultCookie.
func NewFileStore(path string, defaults Record) *FileStore {
	if defaults.Session == "" {
		defaults.Session = DefaultSession
	}
	if defaults.Cookie == "" {
		defaults.Cookie = DefaultCookie
	}
	return &FileStore{path: path, defaults: defaults}
}

// Path returns the file location.
func (s *FileStore) Path() string { return s.path }

// Defaults returns the fallback record.
func (s *FileStore) Defaults() Record { return s.defaults }

// Get reads the record. A missing or unreadable file yields the defaults,
// and each empty field falls back individually.
func (s *FileStore) Get() Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.defaults
	data, err := os.ReadFile(s.path)
	if err != nil {
		return rec
	}
	var stored Record
	if err := json.Unmarshal(data, &stored); err != nil {
		return rec
	}
	if stored.Session != "" {
		rec.Session = stored.Session
	}
	if stored.Cookie != "" {
		rec.Cookie = stored.Cookie
	}
	return rec
}

// Set validates and writes a new record, creating the parent directory.
func (s *FileStore) Set(session, cookie string) (Record, error) {
	if session == "" {
		return Record{}, ErrSessionRequired
	}
	if cookie == "" {
		return Record{}, ErrCookieRequired
	}
	rec := Record{Session: session, Cookie: cookie}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return Record{}, fmt.Errorf("marshal credentials: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return Record{}, fmt.Errorf("save credentials: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return Record{}, fmt.Errorf("save credentials: %w", err)
	}
	return rec, nil
}
