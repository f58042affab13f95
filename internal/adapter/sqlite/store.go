// Package sqlite is a single-machine store for hostname blocks, account
// block events and the audit trail. Timestamps are stored as Unix
// milliseconds so range predicates compare integers.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/user/pagestate-service/internal/entity"
	"github.com/user/pagestate-service/internal/repository"
	_ "modernc.org/sqlite" // SQLite driver
)

// Store implements the three persistence repositories on one database.
type Store struct {
	db *sql.DB
}

var (
	_ repository.HostnameBlockRepository = (*Store)(nil)
	_ repository.AccountBlockRepository  = (*Store)(nil)
	_ repository.EventLogRepository      = (*Store)(nil)
)

// Open opens (creating if needed) the database at dsn and applies the schema.
// Use ":memory:" for a throwaway store.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer; also keeps a :memory: database on a single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db}
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS hostname_blocks (
		hostname TEXT PRIMARY KEY,
		blocked_until INTEGER NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		block_type TEXT NOT NULL,
		blocked_by_user_id TEXT NOT NULL DEFAULT '',
		duration_minutes INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_hostname_blocks_until ON hostname_blocks(blocked_until);

	CREATE TABLE IF NOT EXISTS account_block_events (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL,
		hostname TEXT NOT NULL,
		detected_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_account_block_events_user ON account_block_events(user_id, detected_at);

	CREATE TABLE IF NOT EXISTS system_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		type TEXT NOT NULL,
		level TEXT NOT NULL,
		message TEXT NOT NULL,
		metadata TEXT,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS action_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		action_type TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		reference_id TEXT,
		created_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

func millis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

const blockColumns = `hostname, blocked_until, reason, block_type, blocked_by_user_id, duration_minutes, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanBlock(row scanner) (*entity.HostnameBlock, error) {
	var (
		b                  entity.HostnameBlock
		blockType          string
		until, createdAtMs int64
	)
	if err := row.Scan(&b.Hostname, &until, &b.Reason, &blockType, &b.BlockedByUserID, &b.DurationMinutes, &createdAtMs); err != nil {
		return nil, err
	}
	b.BlockType = entity.ErrorType(blockType)
	b.BlockedUntil = fromMillis(until)
	b.CreatedAt = fromMillis(createdAtMs)
	return &b, nil
}

func (s *Store) FindActive(ctx context.Context, hostname string, now time.Time) (*entity.HostnameBlock, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+blockColumns+` FROM hostname_blocks WHERE hostname = ? AND blocked_until > ?`,
		hostname, millis(now))
	b, err := scanBlock(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query hostname block: %w", err)
	}
	return b, nil
}

func (s *Store) Block(ctx context.Context, block *entity.HostnameBlock) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO hostname_blocks (`+blockColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(hostname) DO UPDATE SET
			blocked_until = excluded.blocked_until,
			reason = excluded.reason,
			block_type = excluded.block_type,
			blocked_by_user_id = excluded.blocked_by_user_id,
			duration_minutes = excluded.duration_minutes,
			created_at = excluded.created_at`,
		block.Hostname,
		millis(block.BlockedUntil),
		block.Reason,
		string(block.BlockType),
		block.BlockedByUserID,
		block.DurationMinutes,
		millis(block.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save hostname block: %w", err)
	}
	return nil
}

func (s *Store) Unblock(ctx context.Context, hostname string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM hostname_blocks WHERE hostname = ?`, hostname)
	if err != nil {
		return false, fmt.Errorf("failed to delete hostname block: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) ListActive(ctx context.Context, now time.Time) ([]*entity.HostnameBlock, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+blockColumns+` FROM hostname_blocks WHERE blocked_until > ? ORDER BY blocked_until ASC`,
		millis(now))
	if err != nil {
		return nil, fmt.Errorf("failed to list hostname blocks: %w", err)
	}
	defer func() { _ = rows.Close() }()

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

func (s *Store) Save(ctx context.Context, event *entity.AccountBlockEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO account_block_events (id, user_id, reason, type, hostname, detected_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		event.ID, event.UserID, event.Reason, string(event.Type), event.Hostname, millis(event.DetectedAt))
	if err != nil {
		return fmt.Errorf("failed to save account block event: %w", err)
	}
	return nil
}

func (s *Store) ListByUser(ctx context.Context, userID string, limit int) ([]*entity.AccountBlockEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, reason, type, hostname, detected_at
		FROM account_block_events
		WHERE user_id = ?
		ORDER BY detected_at DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list account block events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []*entity.AccountBlockEvent
	for rows.Next() {
		var (
			e        entity.AccountBlockEvent
			errType  string
			detected int64
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Reason, &errType, &e.Hostname, &detected); err != nil {
			return nil, err
		}
		e.Type = entity.ErrorType(errType)
		e.DetectedAt = fromMillis(detected)
		events = append(events, &e)
	}
	return events, rows.Err()
}

func (s *Store) LogSystemEvent(ctx context.Context, event *entity.SystemEvent) error {
	var metadata sql.NullString
	if len(event.Metadata) > 0 {
		data, err := json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode event metadata: %w", err)
		}
		metadata = sql.NullString{String: string(data), Valid: true}
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO system_events (type, level, message, metadata, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		event.Type, event.Level, event.Message, metadata, millis(event.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to log system event: %w", err)
	}
	event.ID, err = res.LastInsertId()
	return err
}

func (s *Store) LogAction(ctx context.Context, action *entity.ActionLog) error {
	ref := sql.NullString{String: action.ReferenceID, Valid: action.ReferenceID != ""}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO action_log (user_id, action_type, detail, reference_id, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		action.UserID, action.ActionType, action.Detail, ref, millis(action.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to log action: %w", err)
	}
	action.ID, err = res.LastInsertId()
	return err
}

// SystemEvents returns the newest system events first, for inspection.
func (s *Store) SystemEvents(ctx context.Context, limit int) ([]*entity.SystemEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, level, message, metadata, created_at
		FROM system_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list system events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []*entity.SystemEvent
	for rows.Next() {
		var (
			e        entity.SystemEvent
			metadata sql.NullString
			created  int64
		)
		if err := rows.Scan(&e.ID, &e.Type, &e.Level, &e.Message, &metadata, &created); err != nil {
			return nil, err
		}
		if metadata.Valid {
			if err := json.Unmarshal([]byte(metadata.String), &e.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode event metadata: %w", err)
			}
		}
		e.CreatedAt = fromMillis(created)
		events = append(events, &e)
	}
	return events, rows.Err()
}
