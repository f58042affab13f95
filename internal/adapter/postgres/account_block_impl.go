package postgres

import (
	"context"

	"github.com/user/pagestate-service/internal/entity"
	"github.com/user/pagestate-service/internal/repository"
)

// AccountBlockRepoImpl stores account block events in PostgreSQL.
type AccountBlockRepoImpl struct {
	db DBTX
}

var _ repository.AccountBlockRepository = (*AccountBlockRepoImpl)(nil)

func NewAccountBlockRepo(db DBTX) *AccountBlockRepoImpl {
	return &AccountBlockRepoImpl{db: db}
}

func (r *AccountBlockRepoImpl) Save(ctx context.Context, event *entity.AccountBlockEvent) error {
	query := `
		INSERT INTO account_block_events (id, user_id, reason, type, hostname, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6);
	`
	_, err := r.db.Exec(ctx, query,
		event.ID,
		event.UserID,
		event.Reason,
		string(event.Type),
		event.Hostname,
		event.DetectedAt,
	)
	return err
}

func (r *AccountBlockRepoImpl) ListByUser(ctx context.Context, userID string, limit int) ([]*entity.AccountBlockEvent, error) {
	query := `
		SELECT id, user_id, reason, type, hostname, detected_at
		FROM account_block_events
		WHERE user_id = $1
		ORDER BY detected_at DESC
		LIMIT $2;
	`
	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*entity.AccountBlockEvent
	for rows.Next() {
		var (
			e       entity.AccountBlockEvent
			errType string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Reason, &errType, &e.Hostname, &e.DetectedAt); err != nil {
			return nil, err
		}
		e.Type = entity.ErrorType(errType)
		events = append(events, &e)
	}
	return events, rows.Err()
}
