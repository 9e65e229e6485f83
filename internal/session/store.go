// Package session implements server-side browser sessions keyed by an
// opaque cookie token. Values are small JSON documents; writes are
// compare-and-swap on a per-record version so two requests racing on the
// same session cannot both consume the same value.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a session does not exist or has expired.
	ErrNotFound = errors.New("session not found")

	// ErrConflict is returned when a save loses a race against another
	// write to the same session.
	ErrConflict = errors.New("session modified concurrently")
)

// Record is the persisted form of a session.
type Record struct {
	ID        string
	Values    map[string]json.RawMessage
	Version   int64
	ExpiresAt time.Time
}

// Store persists session records.
//
// Save inserts the record when Version is 0 and otherwise updates it only
// if the stored version still equals Version, returning ErrConflict when it
// does not. On success Save increments rec.Version.
type Store interface {
	Load(ctx context.Context, id string) (*Record, error)
	Save(ctx context.Context, rec *Record) error
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

func cloneValues(in map[string]json.RawMessage) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(in))
	for k, v := range in {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}
