package session

import (
	"encoding/json"
	"fmt"
	"time"
)

// Session is one browser session as seen by a single request. It is not
// safe for concurrent use; concurrency between requests is resolved by the
// Store when the session is committed.
type Session struct {
	id        string
	token     string // set when a new cookie must be issued
	values    map[string]json.RawMessage
	version   int64
	expiresAt time.Time

	dirty       bool
	cleared     bool
	regenerate  bool
	staleIDs    []string
	cookieReset bool // cookie must be expired on the client
}

func newSession() *Session {
	return &Session{values: map[string]json.RawMessage{}}
}

func fromRecord(rec *Record) *Session {
	return &Session{
		id:        rec.ID,
		values:    rec.Values,
		version:   rec.Version,
		expiresAt: rec.ExpiresAt,
	}
}

// IsNew reports whether the session has never been stored.
func (s *Session) IsNew() bool { return s.id == "" }

// Len returns the number of values held.
func (s *Session) Len() int { return len(s.values) }

// Has reports whether key is set.
func (s *Session) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Get decodes the value stored under key into dst. It reports false when
// the key is absent.
func (s *Session) Get(key string, dst any) (bool, error) {
	raw, ok := s.values[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("decode session value %q: %w", key, err)
	}
	return true, nil
}

// Set stores v under key.
func (s *Session) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode session value %q: %w", key, err)
	}
	s.values[key] = raw
	s.dirty = true
	return nil
}

// Delete removes key. Deleting an absent key is a no-op.
func (s *Session) Delete(key string) {
	if _, ok := s.values[key]; ok {
		delete(s.values, key)
		s.dirty = true
	}
}

// Pop returns the value under key and removes it.
func (s *Session) Pop(key string, dst any) (bool, error) {
	ok, err := s.Get(key, dst)
	s.Delete(key)
	return ok, err
}

// Clear drops every value and detaches the session from its stored record.
// The old record is deleted on commit; values set afterwards start a fresh
// session under a new token.
func (s *Session) Clear() {
	s.values = map[string]json.RawMessage{}
	s.dirty = true
	s.cleared = true
	s.detach()
}

// Regenerate keeps the values but moves them to a new token on commit.
func (s *Session) Regenerate() {
	s.dirty = true
	s.regenerate = true
	s.detach()
}

func (s *Session) detach() {
	if s.id != "" {
		s.staleIDs = append(s.staleIDs, s.id)
		s.cookieReset = true
	}
	s.id = ""
	s.token = ""
	s.version = 0
}
