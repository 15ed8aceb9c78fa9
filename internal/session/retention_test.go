package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunRetention(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	stale := New("stale", now.AddDate(0, 0, -60))
	stale.Terminated = true
	stale.UpdatedAt = now.AddDate(0, 0, -60)
	require.NoError(t, store.Put(ctx, stale))

	recent := New("recent", now)
	recent.Terminated = true
	recent.UpdatedAt = now
	require.NoError(t, store.Put(ctx, recent))

	RunRetention(ctx, store, 30)

	_, err := store.Get(ctx, "stale")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = store.Get(ctx, "recent")
	assert.NoError(t, err)
}

func TestRunRetentionDisabled(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	old := New("old", now.AddDate(0, 0, -365))
	old.Terminated = true
	old.UpdatedAt = now.AddDate(0, 0, -365)
	require.NoError(t, store.Put(ctx, old))

	RunRetention(ctx, store, 0)
	RunRetention(ctx, nil, 30)

	_, err := store.Get(ctx, "old")
	assert.NoError(t, err, "retention disabled leaves everything in place")
}

func TestNewRetentionSweeperBadExpression(t *testing.T) {
	store := newTestStore(t)
	_, err := NewRetentionSweeper(store, "not a cron expr", 30)
	require.Error(t, err)
}

func TestRetentionSweeperStartStop(t *testing.T) {
	store := newTestStore(t)
	sw, err := NewRetentionSweeper(store, "0 3 * * *", 30)
	require.NoError(t, err)
	sw.Start()
	sw.Stop()
}
