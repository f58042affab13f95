package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/user/pagestate-service/internal/entity"
	"github.com/user/pagestate-service/internal/repository"
)

const hostnameBlockPrefix = "pagestate:hostblock:"

// HostnameBlockRepoImpl keeps hostname blocks in Redis. Each block is one
// JSON value whose TTL ends at BlockedUntil, so Redis drops expired blocks
// on its own.
type HostnameBlockRepoImpl struct {
	client *redis.Client
	now    func() time.Time
}

var _ repository.HostnameBlockRepository = (*HostnameBlockRepoImpl)(nil)

// NewHostnameBlockRepo creates a new instance of HostnameBlockRepoImpl.
func NewHostnameBlockRepo(client *redis.Client) *HostnameBlockRepoImpl {
	return &HostnameBlockRepoImpl{client: client, now: time.Now}
}

func blockKey(hostname string) string {
	return fmt.Sprintf("%s%s", hostnameBlockPrefix, strings.ToLower(hostname))
}

func (r *HostnameBlockRepoImpl) FindActive(ctx context.Context, hostname string, now time.Time) (*entity.HostnameBlock, error) {
	data, err := r.client.Get(ctx, blockKey(hostname)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	b, err := decodeBlock(data)
	if err != nil {
		return nil, err
	}
	// The key TTL follows the Redis clock; now is authoritative.
	if b.Expired(now) {
		return nil, nil
	}
	return b, nil
}

// Block overwrites the key with a TTL running until BlockedUntil. A block
// that is already over removes the key instead.
func (r *HostnameBlockRepoImpl) Block(ctx context.Context, block *entity.HostnameBlock) error {
	key := blockKey(block.Hostname)
	ttl := block.BlockedUntil.Sub(r.now())
	if ttl <= 0 {
		return r.client.Del(ctx, key).Err()
	}
	data, err := json.Marshal(block)
	if err != nil {
		return fmt.Errorf("failed to encode hostname block: %w", err)
	}
	return r.client.Set(ctx, key, data, ttl).Err()
}

func (r *HostnameBlockRepoImpl) Unblock(ctx context.Context, hostname string) (bool, error) {
	n, err := r.client.Del(ctx, blockKey(hostname)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListActive walks the block keys with SCAN, soonest expiry first.
func (r *HostnameBlockRepoImpl) ListActive(ctx context.Context, now time.Time) ([]*entity.HostnameBlock, error) {
	var blocks []*entity.HostnameBlock
	iter := r.client.Scan(ctx, 0, hostnameBlockPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := r.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			// expired between SCAN and GET
			continue
		}
		if err != nil {
			return nil, err
		}
		b, err := decodeBlock(data)
		if err != nil {
			return nil, err
		}
		if !b.Expired(now) {
			blocks = append(blocks, b)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].BlockedUntil.Before(blocks[j].BlockedUntil) })
	return blocks, nil
}

func decodeBlock(data []byte) (*entity.HostnameBlock, error) {
	var b entity.HostnameBlock
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to decode hostname block: %w", err)
	}
	return &b, nil
}
