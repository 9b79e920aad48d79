package credential

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecord(username string) *Record {
	return &Record{
		Username:  username,
		Salt:      []byte{1, 2, 3, 4},
		Verifier:  big.NewInt(123456789),
		CreatedAt: time.Now(),
	}
}

func TestMemoryStoreRegisterAndLookup(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	rec := newTestRecord("alice")
	require.NoError(t, store.Register(ctx, rec))

	got, err := store.Lookup(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, rec.Verifier, got.Verifier)
	assert.Equal(t, rec.Salt, got.Salt)

	// mutating the returned record must not affect the store.
	got.Salt[0] = 99
	got2, err := store.Lookup(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, byte(1), got2.Salt[0])
}

func TestMemoryStoreRejectsDuplicateRegister(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Register(ctx, newTestRecord("bob")))
	err := store.Register(ctx, newTestRecord("bob"))
	assert.ErrorIs(t, err, ErrExists)
}

func TestMemoryStoreLookupUnknownReturnsNotFound(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Lookup(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreUnregister(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Register(ctx, newTestRecord("carol")))
	require.NoError(t, store.Unregister(ctx, "carol"))

	_, err := store.Lookup(ctx, "carol")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreReplaysJournalOnReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "credentials.journal")

	fs1, err := OpenFileStore(path)
	require.NoError(t, err)

	require.NoError(t, fs1.Register(ctx, newTestRecord("dave")))
	require.NoError(t, fs1.Register(ctx, newTestRecord("erin")))
	require.NoError(t, fs1.Unregister(ctx, "erin"))
	require.NoError(t, fs1.Close())

	fs2, err := OpenFileStore(path)
	require.NoError(t, err)
	defer fs2.Close()

	rec, err := fs2.Lookup(ctx, "dave")
	require.NoError(t, err)
	assert.Equal(t, "dave", rec.Username)
	assert.Equal(t, newTestRecord("dave").Verifier, rec.Verifier)

	_, err = fs2.Lookup(ctx, "erin")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreRejectsDuplicateRegister(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "credentials.journal")

	fs, err := OpenFileStore(path)
	require.NoError(t, err)
	defer fs.Close()

	require.NoError(t, fs.Register(ctx, newTestRecord("frank")))
	err = fs.Register(ctx, newTestRecord("frank"))
	assert.ErrorIs(t, err, ErrExists)
}

var _ Store = (*MemoryStore)(nil)
var _ Store = (*FileStore)(nil)
var _ Store = (*PostgresStore)(nil)
