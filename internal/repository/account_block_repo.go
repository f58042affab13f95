package repository

import (
	"context"

	"github.com/user/pagestate-service/internal/entity"
)

// AccountBlockRepository stores write-once account block events.
type AccountBlockRepository interface {
	// Save appends an event. Events are never updated.
	Save(ctx context.Context, event *entity.AccountBlockEvent) error
	// ListByUser returns the newest events of a user first.
	ListByUser(ctx context.Context, userID string, limit int) ([]*entity.AccountBlockEvent, error)
}
