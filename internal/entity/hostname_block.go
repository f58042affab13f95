package entity

import (
	"math"
	"time"
)

// Account is the worker account a block is attributed to.
type Account struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// HostnameBlock mirrors the `hostname_blocks` table. A block expires
// implicitly once BlockedUntil has passed; nothing deletes it.
type HostnameBlock struct {
	Hostname        string    `json:"hostname"`
	BlockedUntil    time.Time `json:"blocked_until"`
	Reason          string    `json:"reason"`
	BlockType       ErrorType `json:"block_type"`
	BlockedByUserID string    `json:"blocked_by_user_id"`
	DurationMinutes int       `json:"duration_minutes"`
	CreatedAt       time.Time `json:"created_at"`
}

// Expired reports whether the block no longer applies at now.
func (b *HostnameBlock) Expired(now time.Time) bool {
	return b == nil || !now.Before(b.BlockedUntil)
}

// RemainingMinutes rounds the time left up to whole minutes, 0 once expired.
func (b *HostnameBlock) RemainingMinutes(now time.Time) int {
	if b.Expired(now) {
		return 0
	}
	return int(math.Ceil(b.BlockedUntil.Sub(now).Minutes()))
}

// AccountBlockEvent is a write-once audit record of a detected account ban.
type AccountBlockEvent struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Reason     string    `json:"reason"`
	Type       ErrorType `json:"type"`
	Hostname   string    `json:"hostname"`
	DetectedAt time.Time `json:"detected_at"`
}

// Event levels for SystemEvent.
const (
	LevelInfo     = "info"
	LevelWarning  = "warning"
	LevelError    = "error"
	LevelCritical = "critical"
)

// SystemEvent mirrors the `system_events` table.
type SystemEvent struct {
	ID        int64          `json:"id"`
	Type      string         `json:"type"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// ActionLog mirrors the `action_log` table.
type ActionLog struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"user_id"`
	ActionType  string    `json:"action_type"`
	Detail      string    `json:"detail"`
	ReferenceID string    `json:"reference_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
