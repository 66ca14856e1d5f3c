package session

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"
)

// storeTests runs the common suite against any Store implementation.
func storeTests(t *testing.T, store Store) {
	t.Helper()

	t.Run("PutAndGet", func(t *testing.T) {
		s := Session{
			Username:       "admin",
			CreatedAt:      time.Now(),
			ExpiresAt:      time.Now().Add(time.Hour),
			LastAccessedAt: time.Now(),
		}
		require.NoError(t, store.Put("tok-1", s))
		got, ok := store.Get("tok-1")
		require.True(t, ok, "expected to find session")
		assert.Equal(t, "admin", got.Username)
		assert.WithinDuration(t, s.ExpiresAt, got.ExpiresAt, time.Millisecond)
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, ok := store.Get("no-such-token")
		assert.False(t, ok, "expected not found for missing token")
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Put("tok-del", Session{
			Username:  "yam",
			ExpiresAt: time.Now().Add(time.Hour),
		}))
		store.Delete("tok-del")
		_, ok := store.Get("tok-del")
		assert.False(t, ok, "expected session to be deleted")
	})

	t.Run("DeleteMissing", func(t *testing.T) {
		// Should not panic.
		store.Delete("never-existed")
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, store.Put("tok-ow", Session{Username: "v1", ExpiresAt: time.Now().Add(time.Hour)}))
		require.NoError(t, store.Put("tok-ow", Session{Username: "v2", ExpiresAt: time.Now().Add(time.Hour)}))
		got, ok := store.Get("tok-ow")
		require.True(t, ok, "expected session after overwrite")
		assert.Equal(t, "v2", got.Username)
	})

	t.Run("ExpiredSession", func(t *testing.T) {
		require.NoError(t, store.Put("tok-exp", Session{
			Username:  "old",
			ExpiresAt: time.Now().Add(-time.Second),
		}))
		_, ok := store.Get("tok-exp")
		assert.False(t, ok, "expected expired session to be rejected")
	})

	t.Run("Touch", func(t *testing.T) {
		require.NoError(t, store.Put("tok-touch", Session{
			Username:       "admin",
			ExpiresAt:      time.Now().Add(time.Hour),
			LastAccessedAt: time.Now().Add(-time.Hour),
		}))
		at := time.Now()
		store.Touch("tok-touch", at)
		got, ok := store.Get("tok-touch")
		require.True(t, ok)
		assert.WithinDuration(t, at, got.LastAccessedAt, time.Millisecond)
	})

	t.Run("TouchDoesNotResurrect", func(t *testing.T) {
		require.NoError(t, store.Put("tok-gone", Session{Username: "x", ExpiresAt: time.Now().Add(time.Hour)}))
		store.Delete("tok-gone")
		store.Touch("tok-gone", time.Now())
		_, ok := store.Get("tok-gone")
		assert.False(t, ok)
	})
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	storeTests(t, store)
}

func TestMemoryStore_ExpiredIsRemoved(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Put("tok", Session{Username: "a", ExpiresAt: time.Now().Add(-time.Minute)}))
	assert.Equal(t, 1, store.Len())
	_, ok := store.Get("tok")
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}

func newTestBoltStore(t *testing.T, path string) *BoltStore {
	t.Helper()
	store, err := OpenBoltStore(path, &bbolt.Options{Timeout: time.Second})
	require.NoError(t, err)
	return store
}

func TestBoltStore(t *testing.T) {
	store := newTestBoltStore(t, filepath.Join(t.TempDir(), "sessions.db"))
	defer store.Close()
	storeTests(t, store)
}

func TestBoltStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")

	store := newTestBoltStore(t, path)
	require.NoError(t, store.Put("tok-persist", Session{
		Username:  "admin",
		ExpiresAt: time.Now().Add(time.Hour),
	}))
	require.NoError(t, store.Close())

	reopened := newTestBoltStore(t, path)
	defer reopened.Close()
	got, ok := reopened.Get("tok-persist")
	require.True(t, ok, "session should persist across reopen")
	assert.Equal(t, "admin", got.Username)
}

func TestBoltStore_TokensNotStoredInClear(t *testing.T) {
	store := newTestBoltStore(t, filepath.Join(t.TempDir(), "sessions.db"))
	defer store.Close()

	require.NoError(t, store.Put("plain-token", Session{Username: "a", ExpiresAt: time.Now().Add(time.Hour)}))
	err := store.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(sessionBucket)).ForEach(func(k, _ []byte) error {
			assert.NotEqual(t, "plain-token", string(k))
			return nil
		})
	})
	require.NoError(t, err)
}

func TestBoltStore_SweepExpired(t *testing.T) {
	store := newTestBoltStore(t, filepath.Join(t.TempDir(), "sessions.db"))
	defer store.Close()

	now := time.Now()
	require.NoError(t, store.Put("live", Session{Username: "a", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, store.Put("dead-1", Session{Username: "b", ExpiresAt: now.Add(-time.Minute)}))
	require.NoError(t, store.Put("dead-2", Session{Username: "c", ExpiresAt: now.Add(-time.Hour)}))
	require.NoError(t, store.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(sessionBucket)).Put([]byte("corrupt"), []byte("{not json"))
	}))

	assert.Equal(t, 3, store.sweepExpired(now))
	_, ok := store.Get("live")
	assert.True(t, ok)
	assert.Equal(t, 0, store.sweepExpired(now))
}

func TestBoltStore_CloseIsIdempotent(t *testing.T) {
	store := newTestBoltStore(t, filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}
