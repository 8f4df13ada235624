package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/tutoring.space/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/tutoring.space/internal/services/notifications/storage"
	"github.com/louisbranch/tutoring.space/internal/services/notifications/storage/sqlite/migrations"
)

// Store provides SQLite-backed persistence for notifications state.
type Store struct {
	sqlDB *sql.DB
}

var _ storage.NotificationStore = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a notifications SQLite store at the provided path.
func Open(ctx context.Context, path string) (*Store, error) {
	sqlDB, err := sqlitemigrate.Open(ctx, path, migrations.FS)
	if err != nil {
		return nil, err
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// PutNotification inserts one row and evicts everything older than the newest
// retain rows in the same transaction.
func (s *Store) PutNotification(ctx context.Context, record storage.NotificationRecord, retain int) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	if retain <= 0 {
		return 0, fmt.Errorf("retain must be positive")
	}
	metadataJSON := strings.TrimSpace(record.MetadataJSON)
	if metadataJSON == "" {
		metadataJSON = "{}"
	}
	var readAt sql.NullInt64
	if record.ReadAt != nil {
		readAt = sql.NullInt64{Int64: toMillis(*record.ReadAt), Valid: true}
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin notification write: %w", err)
	}
	rollbackWith := func(cause error) error {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return fmt.Errorf("%w: rollback notification write: %v", cause, rollbackErr)
		}
		return cause
	}

	result, err := tx.ExecContext(ctx, `
INSERT INTO notifications (type, title, message, user_id, metadata_json, created_at, read_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, record.Type, record.Title, record.Message, record.UserID, metadataJSON, toMillis(record.CreatedAt), readAt)
	if err != nil {
		return 0, rollbackWith(fmt.Errorf("put notification: %w", err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, rollbackWith(fmt.Errorf("put notification id: %w", err))
	}
	if _, err := tx.ExecContext(ctx, `
DELETE FROM notifications
WHERE id NOT IN (
    SELECT id FROM notifications ORDER BY id DESC LIMIT ?
)
`, retain); err != nil {
		return 0, rollbackWith(fmt.Errorf("trim notifications: %w", err))
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit notification write: %w", err)
	}
	return id, nil
}

// ListNotifications returns every retained notification oldest first.
func (s *Store) ListNotifications(ctx context.Context) ([]storage.NotificationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, type, title, message, user_id, metadata_json, created_at, read_at
FROM notifications
ORDER BY id ASC
`)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	records := make([]storage.NotificationRecord, 0)
	for rows.Next() {
		record, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return records, nil
}

// MarkNotificationRead sets read_at on one row. Marking an already read row
// keeps its first read time.
func (s *Store) MarkNotificationRead(ctx context.Context, id int64, readAt time.Time) (storage.NotificationRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.NotificationRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.NotificationRecord{}, fmt.Errorf("storage is not configured")
	}
	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE notifications
SET read_at = COALESCE(read_at, ?)
WHERE id = ?
`, toMillis(readAt), id)
	if err != nil {
		return storage.NotificationRecord{}, fmt.Errorf("mark notification read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return storage.NotificationRecord{}, fmt.Errorf("mark notification read rows affected: %w", err)
	}
	if affected == 0 {
		return storage.NotificationRecord{}, storage.ErrNotFound
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, type, title, message, user_id, metadata_json, created_at, read_at
FROM notifications
WHERE id = ?
`, id)
	record, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.NotificationRecord{}, storage.ErrNotFound
	}
	return record, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(row rowScanner) (storage.NotificationRecord, error) {
	var (
		record    storage.NotificationRecord
		createdAt int64
		readAt    sql.NullInt64
	)
	if err := row.Scan(
		&record.ID,
		&record.Type,
		&record.Title,
		&record.Message,
		&record.UserID,
		&record.MetadataJSON,
		&createdAt,
		&readAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.NotificationRecord{}, err
		}
		return storage.NotificationRecord{}, fmt.Errorf("scan notification: %w", err)
	}
	record.CreatedAt = fromMillis(createdAt)
	if readAt.Valid {
		value := fromMillis(readAt.Int64)
		record.ReadAt = &value
	}
	return record, nil
}
