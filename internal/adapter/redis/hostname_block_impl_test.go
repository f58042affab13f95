package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/pagestate-service/internal/entity"
)

func newTestRepo(t *testing.T) (*miniredis.Miniredis, *HostnameBlockRepoImpl, time.Time) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	repo := NewHostnameBlockRepo(client)
	repo.now = func() time.Time { return now }
	return mr, repo, now
}

func block(host string, now time.Time, minutes int) *entity.HostnameBlock {
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

func TestBlockKey(t *testing.T) {
	assert.Equal(t, "pagestate:hostblock:worker-7", blockKey("Worker-7"))
}

func TestHostnameBlockRoundTripWithTTL(t *testing.T) {
	mr, repo, now := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Block(ctx, block("worker-7", now, 45)))
	assert.Equal(t, 45*time.Minute, mr.TTL("pagestate:hostblock:worker-7"))

	b, err := repo.FindActive(ctx, "WORKER-7", now)
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, entity.ErrorTypeAccountLocked, b.BlockType)
	assert.True(t, b.BlockedUntil.Equal(now.Add(45*time.Minute)))

	b, err = repo.FindActive(ctx, "worker-7", now.Add(46*time.Minute))
	require.NoError(t, err)
	assert.Nil(t, b, "expired by the caller's clock")

	mr.FastForward(45 * time.Minute)
	b, err = repo.FindActive(ctx, "worker-7", now)
	require.NoError(t, err)
	assert.Nil(t, b, "key gone after TTL")
}

func TestHostnameBlockOverwriteAndPastBlock(t *testing.T) {
	mr, repo, now := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Block(ctx, block("worker-7", now, 45)))
	require.NoError(t, repo.Block(ctx, block("worker-7", now, 55)))
	assert.Equal(t, 55*time.Minute, mr.TTL("pagestate:hostblock:worker-7"))

	require.NoError(t, repo.Block(ctx, block("worker-7", now, -1)))
	assert.False(t, mr.Exists("pagestate:hostblock:worker-7"))
}

func TestHostnameBlockUnblockAndList(t *testing.T) {
	_, repo, now := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Block(ctx, block("worker-7", now, 50)))
	require.NoError(t, repo.Block(ctx, block("worker-3", now, 41)))

	blocks, err := repo.ListActive(ctx, now)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, "worker-3", blocks[0].Hostname)

	blocks, err = repo.ListActive(ctx, now.Add(45*time.Minute))
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, "worker-7", blocks[0].Hostname)

	removed, err := repo.Unblock(ctx, "worker-7")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = repo.Unblock(ctx, "worker-7")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestHostnameBlockCorruptValue(t *testing.T) {
	mr, repo, now := newTestRepo(t)
	require.NoError(t, mr.Set("pagestate:hostblock:worker-7", "{not json"))

	_, err := repo.FindActive(context.Background(), "worker-7", now)
	assert.ErrorContains(t, err, "failed to decode hostname block")
}
