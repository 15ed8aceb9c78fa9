package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankitpatel990/neuvox/internal/engagement"
	"github.com/ankitpatel990/neuvox/internal/intel"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	sess := New("sess-1", now)
	sess.TurnCount = 3
	sess.Phase = engagement.PhaseShowInterest
	sess.Intel = intel.Report{
		UPIIDs:       []string{"ramesh@paytm"},
		PhoneNumbers: []string{"9876543210"},
	}
	sess.Intel.Normalize()
	require.NoError(t, store.Put(ctx, sess))

	got, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", got.ID)
	assert.Equal(t, 3, got.TurnCount)
	assert.Equal(t, engagement.PhaseShowInterest, got.Phase)
	assert.Equal(t, sess.Intel, got.Intel)
	assert.False(t, got.Terminated)
	assert.False(t, got.CallbackFired)
	assert.WithinDuration(t, now, got.StartedAt, time.Second)
}

func TestStoreGetNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestStorePutUpsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	sess := New("sess-up", now)
	require.NoError(t, store.Put(ctx, sess))

	sess.TurnCount = 20
	sess.Terminated = true
	sess.CallbackFired = true
	sess.Phase = engagement.PhaseTerminated
	sess.UpdatedAt = now.Add(time.Minute)
	require.NoError(t, store.Put(ctx, sess))

	got, err := store.Get(ctx, "sess-up")
	require.NoError(t, err)
	assert.Equal(t, 20, got.TurnCount)
	assert.True(t, got.Terminated)
	assert.True(t, got.CallbackFired)
	assert.Equal(t, engagement.PhaseTerminated, got.Phase)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestStoreList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC()

	for i, id := range []string{"older", "newer"} {
		sess := New(id, base)
		sess.TurnCount = i + 1
		sess.Intel = intel.Report{UPIIDs: []string{"a@upi"}}
		sess.UpdatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.Put(ctx, sess))
	}

	summaries, err := store.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "newer", summaries[0].ID, "ordered by last activity")
	assert.InDelta(t, 0.30, summaries[0].Confidence, 1e-9)

	limited, err := store.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestStorePurgeTerminated(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	old := New("old-terminated", now.Add(-48*time.Hour))
	old.Terminated = true
	old.UpdatedAt = now.Add(-48 * time.Hour)
	require.NoError(t, store.Put(ctx, old))

	fresh := New("fresh-terminated", now)
	fresh.Terminated = true
	fresh.UpdatedAt = now
	require.NoError(t, store.Put(ctx, fresh))

	live := New("live", now.Add(-48*time.Hour))
	live.UpdatedAt = now.Add(-48 * time.Hour)
	require.NoError(t, store.Put(ctx, live))

	purged, err := store.PurgeTerminated(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	_, err = store.Get(ctx, "old-terminated")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// Active sessions are never purged regardless of age
	_, err = store.Get(ctx, "live")
	assert.NoError(t, err)
	_, err = store.Get(ctx, "fresh-terminated")
	assert.NoError(t, err)
}

func TestIsSQLiteLocked(t *testing.T) {
	assert.False(t, isSQLiteLocked(nil))
	assert.False(t, isSQLiteLocked(errors.New("syntax error")))
	assert.True(t, isSQLiteLocked(errors.New("database is locked")))
	assert.True(t, isSQLiteLocked(errors.New("SQLITE_BUSY: cannot start transaction")))
}
