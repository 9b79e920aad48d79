package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(id string) *Session {
	return &Session{
		ID:         id,
		Username:   "alice",
		SessionKey: [32]byte{1, 2, 3},
		CreatedAt:  time.Now(),
		LastUsedAt: time.Now(),
		TTL:        time.Hour,
	}
}

func TestMemoryStoreCreateAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sess := newTestSession("sess-1")
	require.NoError(t, store.Create(ctx, sess))

	got, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, sess.Username, got.Username)
	assert.Equal(t, sess.SessionKey, got.SessionKey)

	// returned Session is a copy: mutating it must not affect the store.
	got.Username = "mallory"
	got2, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got2.Username)
}

func TestMemoryStoreRejectsDuplicateCreate(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newTestSession("dup")))
	err := store.Create(ctx, newTestSession("dup"))
	assert.Error(t, err)
}

func TestMemoryStoreGetUnknownReturnsNotFound(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreGetExpiredReturnsExpired(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sess := newTestSession("expired")
	sess.CreatedAt = time.Now().Add(-2 * time.Hour)
	sess.TTL = time.Hour
	require.NoError(t, store.Create(ctx, sess))

	_, err := store.Get(ctx, "expired")
	assert.ErrorIs(t, err, ErrExpired)
}

func TestMemoryStoreTouchUpdatesLastUsedAt(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sess := newTestSession("touch-me")
	sess.LastUsedAt = time.Now().Add(-time.Hour)
	require.NoError(t, store.Create(ctx, sess))

	before, err := store.Get(ctx, "touch-me")
	require.NoError(t, err)

	require.NoError(t, store.Touch(ctx, "touch-me"))

	after, err := store.Get(ctx, "touch-me")
	require.NoError(t, err)
	assert.True(t, after.LastUsedAt.After(before.LastUsedAt))
}

func TestMemoryStoreTouchUnknownReturnsNotFound(t *testing.T) {
	store := NewMemoryStore()
	err := store.Touch(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newTestSession("to-delete")))
	require.NoError(t, store.Delete(ctx, "to-delete"))

	_, err := store.Get(ctx, "to-delete")
	assert.ErrorIs(t, err, ErrNotFound)

	// deleting an already-absent id is not an error.
	assert.NoError(t, store.Delete(ctx, "to-delete"))
}

func TestMemoryStoreDeleteExpired(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	live := newTestSession("live")
	require.NoError(t, store.Create(ctx, live))

	dead := newTestSession("dead")
	dead.CreatedAt = time.Now().Add(-2 * time.Hour)
	dead.TTL = time.Minute
	require.NoError(t, store.Create(ctx, dead))

	removed, err := store.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = store.Get(ctx, "live")
	assert.NoError(t, err)
	_, err = store.Get(ctx, "dead")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreClose(t *testing.T) {
	store := NewMemoryStore()
	assert.NoError(t, store.Close())
}

func TestSessionExpired(t *testing.T) {
	s := &Session{CreatedAt: time.Now().Add(-time.Hour), TTL: time.Minute}
	assert.True(t, s.Expired(time.Now()))

	s2 := &Session{CreatedAt: time.Now(), TTL: time.Hour}
	assert.False(t, s2.Expired(time.Now()))
}

var _ Store = (*MemoryStore)(nil)
var _ Store = (*PostgresStore)(nil)
