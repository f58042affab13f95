package response

import (
	"time"

	"github.com/user/pagestate-service/internal/entity"
)

// HostBlockResponse is a DTO for one hostname block, mirroring entity.HostnameBlock.
type HostBlockResponse struct {
	Hostname         string    `json:"hostname"`
	Blocked          bool      `json:"blocked"`
	BlockedUntil     time.Time `json:"blocked_until"`
	RemainingMinutes int       `json:"remaining_minutes"`
	Reason           string    `json:"reason"`
	BlockType        string    `json:"block_type"`
	BlockedByUserID  string    `json:"blocked_by_user_id"`
	DurationMinutes  int       `json:"duration_minutes"`
	CreatedAt        time.Time `json:"created_at"`
}

func NewHostBlock(b *entity.HostnameBlock, now time.Time) HostBlockResponse {
	return HostBlockResponse{
		Hostname:         b.Hostname,
		Blocked:          !b.Expired(now),
		BlockedUntil:     b.BlockedUntil,
		RemainingMinutes: b.RemainingMinutes(now),
		Reason:           b.Reason,
		BlockType:        string(b.BlockType),
		BlockedByUserID:  b.BlockedByUserID,
		DurationMinutes:  b.DurationMinutes,
		CreatedAt:        b.CreatedAt,
	}
}

type HostBlockListResponse struct {
	Count  int                 `json:"count"`
	Blocks []HostBlockResponse `json:"blocks"`
}

// HostStatusResponse answers a lookup for a hostname that may be unblocked.
type HostStatusResponse struct {
	Hostname string             `json:"hostname"`
	Blocked  bool               `json:"blocked"`
	Block    *HostBlockResponse `json:"block,omitempty"`
}

type AccountBlockEventResponse struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Reason     string    `json:"reason"`
	Type       string    `json:"type"`
	Hostname   string    `json:"hostname"`
	DetectedAt time.Time `json:"detected_at"`
}

type AccountBlockEventListResponse struct {
	UserID string                      `json:"user_id"`
	Events []AccountBlockEventResponse `json:"events"`
}

func NewAccountBlockEvents(userID string, events []*entity.AccountBlockEvent) AccountBlockEventListResponse {
	resp := AccountBlockEventListResponse{UserID: userID, Events: make([]AccountBlockEventResponse, 0, len(events))}
	for _, e := range events {
		resp.Events = append(resp.Events, AccountBlockEventResponse{
			ID:         e.ID,
			UserID:     e.UserID,
			Reason:     e.Reason,
			Type:       string(e.Type),
			Hostname:   e.Hostname,
			DetectedAt: e.DetectedAt,
		})
	}
	return resp
}

// ReportAccountBlockResponse is returned after an account ban was recorded.
type ReportAccountBlockResponse struct {
	Status string             `json:"status"`
	Block  *HostBlockResponse `json:"block,omitempty"`
}
