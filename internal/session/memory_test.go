package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SaveLoadCAS(t *testing.T) {
	store := NewMemoryStore(10, time.Hour)
	ctx := context.Background()

	rec := &Record{
		ID:        "abc",
		Values:    map[string]json.RawMessage{"k": json.RawMessage(`"v"`)},
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, store.Save(ctx, rec))
	assert.Equal(t, int64(1), rec.Version)

	// Inserting the same id again conflicts.
	dup := &Record{ID: "abc", Values: map[string]json.RawMessage{}, ExpiresAt: rec.ExpiresAt}
	assert.ErrorIs(t, store.Save(ctx, dup), ErrConflict)

	loaded, err := store.Load(ctx, "abc")
	require.NoError(t, err)
	assert.JSONEq(t, `"v"`, string(loaded.Values["k"]))

	// Mutating the loaded copy does not touch the stored record.
	loaded.Values["k"] = json.RawMessage(`"changed"`)
	again, err := store.Load(ctx, "abc")
	require.NoError(t, err)
	assert.JSONEq(t, `"v"`, string(again.Values["k"]))

	require.NoError(t, store.Save(ctx, loaded))
	assert.Equal(t, int64(2), loaded.Version)

	// again still holds version 1.
	assert.ErrorIs(t, store.Save(ctx, again), ErrConflict)
}

func TestMemoryStore_DeleteAndExpire(t *testing.T) {
	store := NewMemoryStore(10, time.Hour)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Save(ctx, &Record{ID: "live", Values: map[string]json.RawMessage{}, ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, store.Save(ctx, &Record{ID: "dead", Values: map[string]json.RawMessage{}, ExpiresAt: now.Add(time.Minute)}))

	n, err := store.DeleteExpired(ctx, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = store.Load(ctx, "dead")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Delete(ctx, "live"))
	_, err = store.Load(ctx, "live")
	assert.ErrorIs(t, err, ErrNotFound)

	// Updating a deleted record conflicts.
	assert.ErrorIs(t, store.Save(ctx, &Record{ID: "live", Version: 1, ExpiresAt: now.Add(time.Hour)}), ErrConflict)
}
