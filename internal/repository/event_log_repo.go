package repository

import (
	"context"

	"github.com/user/pagestate-service/internal/entity"
)

// EventLogRepository defines the interface for the audit trail.
type EventLogRepository interface {
	// LogSystemEvent records a process-level event such as a fleet lock.
	LogSystemEvent(ctx context.Context, event *entity.SystemEvent) error
	// LogAction records an action attributed to an account.
	LogAction(ctx context.Context, action *entity.ActionLog) error
}
