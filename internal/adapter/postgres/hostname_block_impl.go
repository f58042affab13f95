package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/user/pagestate-service/internal/entity"
	"github.com/user/pagestate-service/internal/repository"
)

// HostnameBlockRepoImpl provides a concrete implementation for the HostnameBlockRepository interface using PostgreSQL.
type HostnameBlockRepoImpl struct {
	db DBTX
}

var _ repository.HostnameBlockRepository = (*HostnameBlockRepoImpl)(nil)

// NewHostnameBlockRepo creates a new instance of HostnameBlockRepoImpl.
func NewHostnameBlockRepo(db DBTX) *HostnameBlockRepoImpl {
	return &HostnameBlockRepoImpl{db: db}
}

const blockColumns = `hostname, blocked_until, reason, block_type, blocked_by_user_id, duration_minutes, created_at`

// FindActive returns the block for hostname unless it has expired.
func (r *HostnameBlockRepoImpl) FindActive(ctx context.Context, hostname string, now time.Time) (*entity.HostnameBlock, error) {
	query := `SELECT ` + blockColumns + ` FROM hostname_blocks WHERE hostname = $1 AND blocked_until > $2`
	b, err := scanBlock(r.db.QueryRow(ctx, query, hostname, now))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Block inserts the block or replaces the existing row for the hostname.
func (r *HostnameBlockRepoImpl) Block(ctx context.Context, block *entity.HostnameBlock) error {
	query := `
		INSERT INTO hostname_blocks (` + blockColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (hostname) DO UPDATE SET
			blocked_until = EXCLUDED.blocked_until,
			reason = EXCLUDED.reason,
			block_type = EXCLUDED.block_type,
			blocked_by_user_id = EXCLUDED.blocked_by_user_id,
			duration_minutes = EXCLUDED.duration_minutes,
			created_at = EXCLUDED.created_at;
	`
	_, err := r.db.Exec(ctx, query,
		block.Hostname,
		block.BlockedUntil,
		block.Reason,
		string(block.BlockType),
		block.BlockedByUserID,
		block.DurationMinutes,
		block.CreatedAt,
	)
	return err
}

// Unblock deletes the row for hostname.
func (r *HostnameBlockRepoImpl) Unblock(ctx context.Context, hostname string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM hostname_blocks WHERE hostname = $1;`, hostname)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListActive returns the unexpired blocks, soonest expiry first.
func (r *HostnameBlockRepoImpl) ListActive(ctx context.Context, now time.Time) ([]*entity.HostnameBlock, error) {
	query := `SELECT ` + blockColumns + ` FROM hostname_blocks WHERE blocked_until > $1 ORDER BY blocked_until ASC`
	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blocks []*entity.HostnameBlock
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

func scanBlock(row pgx.Row) (*entity.HostnameBlock, error) {
	var (
		b         entity.HostnameBlock
		blockType string
	)
	if err := row.Scan(
		&b.Hostname,
		&b.BlockedUntil,
		&b.Reason,
		&blockType,
		&b.BlockedByUserID,
		&b.DurationMinutes,
		&b.CreatedAt,
	); err != nil {
		return nil, err
	}
	b.BlockType = entity.ErrorType(blockType)
	return &b, nil
}
