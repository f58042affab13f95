package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/user/pagestate-service/internal/entity"
	"github.com/user/pagestate-service/internal/repository"
)

// EventLogRepoImpl writes the audit trail to the system_events and
// action_log tables.
type EventLogRepoImpl struct {
	db DBTX
}

var _ repository.EventLogRepository = (*EventLogRepoImpl)(nil)

func NewEventLogRepo(db DBTX) *EventLogRepoImpl {
	return &EventLogRepoImpl{db: db}
}

// LogSystemEvent inserts the event and sets its generated ID.
func (r *EventLogRepoImpl) LogSystemEvent(ctx context.Context, event *entity.SystemEvent) error {
	var metadata []byte
	if len(event.Metadata) > 0 {
		var err error
		if metadata, err = json.Marshal(event.Metadata); err != nil {
			return fmt.Errorf("failed to encode event metadata: %w", err)
		}
	}
	query := `
		INSERT INTO system_events (type, level, message, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id;
	`
	return r.db.QueryRow(ctx, query,
		event.Type,
		event.Level,
		event.Message,
		metadata,
		event.CreatedAt,
	).Scan(&event.ID)
}

// LogAction inserts the action and sets its generated ID.
func (r *EventLogRepoImpl) LogAction(ctx context.Context, action *entity.ActionLog) error {
	query := `
		INSERT INTO action_log (user_id, action_type, detail, reference_id, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)
		RETURNING id;
	`
	return r.db.QueryRow(ctx, query,
		action.UserID,
		action.ActionType,
		action.Detail,
		action.ReferenceID,
		action.CreatedAt,
	).Scan(&action.ID)
}
