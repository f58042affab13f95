package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/user/pagestate-service/internal/entity"
	"github.com/user/pagestate-service/internal/repository"
	"github.com/user/pagestate-service/pkg/metrics"
	"go.uber.org/zap"
)

const (
	DefaultBlockMinMinutes = 40
	DefaultBlockMaxMinutes = 60
)

// Audit record types written by the coordinator.
const (
	ActionAccountBlocked   = "account_blocked"
	EventHostnameBlocked   = "hostname_blocked"
	EventHostnameUnblocked = "hostname_unblocked"
)

// BanProtectionConfig sets the cool-down window. Durations are drawn from
// [MinMinutes, MaxMinutes).
type BanProtectionConfig struct {
	Hostname   string
	MinMinutes int
	MaxMinutes int
}

// BanProtectionCoordinator locks a whole machine out of the fleet for a
// randomized cool-down after one of its accounts gets banned.
//
// The lock is check-then-act on a shared table with no distributed lock: two
// workers may both see "unblocked" and both proceed, or both write a block,
// in which case the last write wins. That window is accepted.
type BanProtectionCoordinator struct {
	blocks   repository.HostnameBlockRepository
	accounts repository.AccountBlockRepository
	events   repository.EventLogRepository
	hostname string
	minMin   int
	maxMin   int
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
	randIntN func(n int) int
}

// NewBanProtectionCoordinator wires the coordinator. accounts and events may
// be nil, in which case the audit steps are skipped.
func NewBanProtectionCoordinator(
	blocks repository.HostnameBlockRepository,
	accounts repository.AccountBlockRepository,
	events repository.EventLogRepository,
	cfg BanProtectionConfig,
	logger *zap.Logger,
	m *metrics.Metrics,
) *BanProtectionCoordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MinMinutes <= 0 {
		cfg.MinMinutes = DefaultBlockMinMinutes
	}
	if cfg.MaxMinutes <= cfg.MinMinutes {
		cfg.MaxMinutes = max(DefaultBlockMaxMinutes, cfg.MinMinutes+1)
	}
	return &BanProtectionCoordinator{
		blocks:   blocks,
		accounts: accounts,
		events:   events,
		hostname: strings.ToLower(cfg.Hostname),
		minMin:   cfg.MinMinutes,
		maxMin:   cfg.MaxMinutes,
		logger:   logger.Named("ban_protection"),
		metrics:  m,
		now:      time.Now,
		randIntN: rand.IntN,
	}
}

// Hostname is the machine identity blocks are written for.
func (b *BanProtectionCoordinator) Hostname() string {
	return b.hostname
}

// IsBlocked reports whether this machine is under an unexpired block.
func (b *BanProtectionCoordinator) IsBlocked(ctx context.Context) bool {
	return b.IsHostBlocked(ctx, b.hostname)
}

// IsHostBlocked reports whether host is under an unexpired block. Read
// failures are logged and reported as not blocked.
func (b *BanProtectionCoordinator) IsHostBlocked(ctx context.Context, host string) bool {
	block, err := b.ActiveBlock(ctx, host)
	if err != nil {
		b.logger.Error("Failed to read hostname block", zap.String("hostname", host), zap.Error(err))
		return false
	}
	return block != nil
}

// ActiveBlock returns the unexpired block of host, or nil.
func (b *BanProtectionCoordinator) ActiveBlock(ctx context.Context, host string) (*entity.HostnameBlock, error) {
	host = strings.ToLower(host)
	now := b.now()
	block, err := b.blocks.FindActive(ctx, host, now)
	if err != nil {
		return nil, fmt.Errorf("find hostname block %s: %w", host, err)
	}
	if block.Expired(now) {
		return nil, nil
	}
	b.logger.Warn("Hostname is blocked",
		zap.String("hostname", host),
		zap.Int("remaining_minutes", block.RemainingMinutes(now)),
		zap.String("reason", block.Reason),
	)
	return block, nil
}

// BlockHostname blocks this machine. minutes <= 0 draws a random duration.
func (b *BanProtectionCoordinator) BlockHostname(ctx context.Context, account entity.Account, reason string, blockType entity.ErrorType, minutes int) bool {
	_, err := b.BlockHost(ctx, b.hostname, account, reason, blockType, minutes)
	return err == nil
}

// BlockHost creates or overwrites the block of host.
func (b *BanProtectionCoordinator) BlockHost(ctx context.Context, host string, account entity.Account, reason string, blockType entity.ErrorType, minutes int) (*entity.HostnameBlock, error) {
	host = strings.ToLower(host)
	if host == "" {
		return nil, errors.New("block hostname: empty hostname")
	}
	if minutes <= 0 {
		minutes = b.RandomDuration()
	}
	now := b.now()
	block := &entity.HostnameBlock{
		Hostname:        host,
		BlockedUntil:    now.Add(time.Duration(minutes) * time.Minute),
		Reason:          reason,
		BlockType:       blockType,
		BlockedByUserID: account.ID,
		DurationMinutes: minutes,
		CreatedAt:       now,
	}
	if err := b.blocks.Block(ctx, block); err != nil {
		b.logger.Error("Failed to block hostname", zap.String("hostname", host), zap.Error(err))
		return nil, fmt.Errorf("block hostname %s: %w", host, err)
	}

	b.metrics.IncHostnameBlock(string(blockType))
	b.logger.Warn("Hostname blocked",
		zap.String("hostname", host),
		zap.String("account", account.ID),
		zap.String("type", string(blockType)),
		zap.Int("minutes", minutes),
		zap.Time("blocked_until", block.BlockedUntil),
	)
	return block, nil
}

// RandomDuration draws a cool-down length in [min, max) minutes.
func (b *BanProtectionCoordinator) RandomDuration() int {
	return b.minMin + b.randIntN(b.maxMin-b.minMin)
}

// HandleNewAccountBlock reacts to a banned account on this machine.
func (b *BanProtectionCoordinator) HandleNewAccountBlock(ctx context.Context, account entity.Account, reason string, blockType entity.ErrorType) *entity.HostnameBlock {
	return b.HandleAccountBlockOn(ctx, b.hostname, account, reason, blockType)
}

// HandleAccountBlockOn records the ban event, writes an audit entry, blocks
// host and logs the fleet lock. Every failure is logged and the remaining
// steps still run; the block is returned when it was written.
func (b *BanProtectionCoordinator) HandleAccountBlockOn(ctx context.Context, host string, account entity.Account, reason string, blockType entity.ErrorType) *entity.HostnameBlock {
	host = strings.ToLower(host)
	now := b.now()
	event := &entity.AccountBlockEvent{
		ID:         uuid.NewString(),
		UserID:     account.ID,
		Reason:     reason,
		Type:       blockType,
		Hostname:   host,
		DetectedAt: now,
	}
	if b.accounts != nil {
		if err := b.accounts.Save(ctx, event); err != nil {
			b.logger.Error("Failed to save account block event", zap.String("account", account.ID), zap.Error(err))
		}
	}
	b.metrics.IncAccountBlockEvent(string(blockType))

	if b.events != nil {
		action := &entity.ActionLog{
			UserID:      account.ID,
			ActionType:  ActionAccountBlocked,
			Detail:      fmt.Sprintf("%s: %s", blockType, reason),
			ReferenceID: event.ID,
			CreatedAt:   now,
		}
		if err := b.events.LogAction(ctx, action); err != nil {
			b.logger.Error("Failed to write account block audit entry", zap.String("account", account.ID), zap.Error(err))
		}
	}

	block, err := b.BlockHost(ctx, host, account, reason, blockType, 0)
	if err != nil {
		return nil
	}

	if b.events != nil {
		ev := &entity.SystemEvent{
			Type:  EventHostnameBlocked,
			Level: entity.LevelCritical,
			Message: fmt.Sprintf("Hostname %s blocked for %d minutes after account %s was blocked",
				host, block.DurationMinutes, account.ID),
			Metadata: map[string]any{
				"hostname":         host,
				"user_id":          account.ID,
				"block_type":       string(blockType),
				"duration_minutes": block.DurationMinutes,
				"blocked_until":    block.BlockedUntil.Format(time.RFC3339),
				"event_id":         event.ID,
			},
			CreatedAt: now,
		}
		if err := b.events.LogSystemEvent(ctx, ev); err != nil {
			b.logger.Error("Failed to write fleet lock event", zap.String("hostname", host), zap.Error(err))
		}
	}
	return block
}

// UnblockHostname lifts the block of host ahead of time.
func (b *BanProtectionCoordinator) UnblockHostname(ctx context.Context, host string) (bool, error) {
	host = strings.ToLower(host)
	removed, err := b.blocks.Unblock(ctx, host)
	if err != nil {
		return false, fmt.Errorf("unblock hostname %s: %w", host, err)
	}
	if !removed {
		return false, nil
	}

	b.logger.Info("Hostname unblocked", zap.String("hostname", host))
	if b.events != nil {
		ev := &entity.SystemEvent{
			Type:      EventHostnameUnblocked,
			Level:     entity.LevelInfo,
			Message:   fmt.Sprintf("Hostname %s unblocked manually", host),
			Metadata:  map[string]any{"hostname": host},
			CreatedAt: b.now(),
		}
		if err := b.events.LogSystemEvent(ctx, ev); err != nil {
			b.logger.Warn("Failed to write unblock event", zap.String("hostname", host), zap.Error(err))
		}
	}
	return true, nil
}

// ActiveBlocks lists every unexpired block in the fleet.
func (b *BanProtectionCoordinator) ActiveBlocks(ctx context.Context) ([]*entity.HostnameBlock, error) {
	blocks, err := b.blocks.ListActive(ctx, b.now())
	if err != nil {
		return nil, fmt.Errorf("list hostname blocks: %w", err)
	}
	return blocks, nil
}

// AccountEvents returns the newest block events of a user.
func (b *BanProtectionCoordinator) AccountEvents(ctx context.Context, userID string, limit int) ([]*entity.AccountBlockEvent, error) {
	if b.accounts == nil {
		return []*entity.AccountBlockEvent{}, nil
	}
	events, err := b.accounts.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list account block events: %w", err)
	}
	return events, nil
}

// ShouldProtect reports whether an analysis shows an account-level ban that
// warrants a hostname block.
func (b *BanProtectionCoordinator) ShouldProtect(result *entity.AnalysisResult) bool {
	_, ok := BanTypeOf(result)
	return ok
}

// BanTypeOf picks the account-ban type carried by result, if any. An
// unexpected login page alone is a lost session, not a ban.
func BanTypeOf(result *entity.AnalysisResult) (entity.ErrorType, bool) {
	if result == nil || !result.Errors.HasErrors {
		return "", false
	}
	e := result.Errors
	switch {
	case e.AccountLocked:
		return entity.ErrorTypeAccountLocked, true
	case e.VideoSelfie:
		return entity.ErrorTypeVideoSelfie, true
	case e.IdentityVerification:
		return entity.ErrorTypeIdentityVerification, true
	case e.Checkpoint:
		return entity.ErrorTypeCheckpoint, true
	}
	return "", false
}
