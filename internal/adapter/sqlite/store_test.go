package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/pagestate-service/internal/entity"
)

var now = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testBlock(host string, minutes int) *entity.HostnameBlock {
	return &entity.HostnameBlock{
		Hostname:        host,
		BlockedUntil:    now.Add(time.Duration(minutes) * time.Minute),
		Reason:          "Account is locked",
		BlockType:       entity.ErrorTypeAccountLocked,
		BlockedByUserID: "acc-17",
		DurationMinutes: minutes,
		CreatedAt:       now,
	}
}

func TestHostnameBlockLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	b, err := s.FindActive(ctx, "worker-7", now)
	require.NoError(t, err)
	assert.Nil(t, b)

	require.NoError(t, s.Block(ctx, testBlock("worker-7", 45)))
	b, err = s.FindActive(ctx, "worker-7", now.Add(44*time.Minute))
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, *testBlock("worker-7", 45), *b)

	b, err = s.FindActive(ctx, "worker-7", now.Add(45*time.Minute))
	require.NoError(t, err)
	assert.Nil(t, b, "blocked_until is exclusive")

	upd := testBlock("worker-7", 58)
	upd.BlockType = entity.ErrorTypeCheckpoint
	require.NoError(t, s.Block(ctx, upd))
	b, err = s.FindActive(ctx, "worker-7", now)
	require.NoError(t, err)
	assert.Equal(t, 58, b.DurationMinutes)
	assert.Equal(t, entity.ErrorTypeCheckpoint, b.BlockType)

	removed, err := s.Unblock(ctx, "worker-7")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = s.Unblock(ctx, "worker-7")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestListActiveSkipsExpired(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Block(ctx, testBlock("worker-7", 50)))
	require.NoError(t, s.Block(ctx, testBlock("worker-3", 41)))
	require.NoError(t, s.Block(ctx, testBlock("worker-1", -5)))

	blocks, err := s.ListActive(ctx, now)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, "worker-3", blocks[0].Hostname)
	assert.Equal(t, "worker-7", blocks[1].Hostname)
}

func TestAccountBlockEventsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for i, id := range []string{"ev-1", "ev-2", "ev-3"} {
		require.NoError(t, s.Save(ctx, &entity.AccountBlockEvent{
			ID:         id,
			UserID:     "acc-17",
			Reason:     "locked",
			Type:       entity.ErrorTypeAccountLocked,
			Hostname:   "worker-7",
			DetectedAt: now.Add(time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, s.Save(ctx, &entity.AccountBlockEvent{ID: "ev-x", UserID: "acc-2", Type: entity.ErrorTypeCheckpoint, Hostname: "worker-7", DetectedAt: now}))

	events, err := s.ListByUser(ctx, "acc-17", 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "ev-3", events[0].ID)
	assert.Equal(t, "ev-2", events[1].ID)
	assert.Equal(t, now.Add(2*time.Hour), events[0].DetectedAt)

	err = s.Save(ctx, &entity.AccountBlockEvent{ID: "ev-1", UserID: "acc-17", Type: entity.ErrorTypeAccountLocked, Hostname: "worker-7", DetectedAt: now})
	assert.Error(t, err, "events are write-once")
}

func TestEventLog(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ev := &entity.SystemEvent{
		Type:      "hostname_blocked",
		Level:     entity.LevelCritical,
		Message:   "worker-7 blocked for 45 minutes",
		Metadata:  map[string]any{"duration_minutes": 45},
		CreatedAt: now,
	}
	require.NoError(t, s.LogSystemEvent(ctx, ev))
	assert.Equal(t, int64(1), ev.ID)
	require.NoError(t, s.LogSystemEvent(ctx, &entity.SystemEvent{Type: "hostname_unblocked", Level: entity.LevelInfo, Message: "cleared", CreatedAt: now}))

	action := &entity.ActionLog{UserID: "acc-17", ActionType: "account_blocked", Detail: "locked", CreatedAt: now}
	require.NoError(t, s.LogAction(ctx, action))
	assert.Equal(t, int64(1), action.ID)

	events, err := s.SystemEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "hostname_unblocked", events[0].Type)
	assert.Nil(t, events[0].Metadata)
	assert.Equal(t, float64(45), events[1].Metadata["duration_minutes"])
}

func TestOpenFileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pagestate.db")
	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, s.Block(context.Background(), testBlock("worker-7", 45)))
	require.NoError(t, s.Close())

	s, err = Open(context.Background(), path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	b, err := s.FindActive(context.Background(), "worker-7", now)
	require.NoError(t, err)
	assert.NotNil(t, b)
}
