package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/tutoring.space/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/tutoring.space/internal/services/analytics/storage"
	"github.com/louisbranch/tutoring.space/internal/services/analytics/storage/sqlite/migrations"
)

// Store provides SQLite-backed persistence for analytics daily reports.
type Store struct {
	sqlDB *sql.DB
}

var _ storage.DailyReportStore = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens an analytics SQLite store at the provided path.
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

// PutDailyReport upserts the report for record.Date.
func (s *Store) PutDailyReport(ctx context.Context, record storage.DailyReportRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	date := strings.TrimSpace(record.Date)
	if date == "" {
		return fmt.Errorf("report date is required")
	}
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		return fmt.Errorf("report date %q: %w", date, err)
	}
	statsJSON := strings.TrimSpace(record.StatsJSON)
	if statsJSON == "" {
		statsJSON = "{}"
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO daily_reports (report_date, stats_json, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(report_date) DO UPDATE SET
    stats_json = excluded.stats_json,
    updated_at = excluded.updated_at
`, date, statsJSON, toMillis(record.UpdatedAt))
	if err != nil {
		return fmt.Errorf("put daily report: %w", err)
	}
	return nil
}

// ListDailyReports returns every report ordered by date.
func (s *Store) ListDailyReports(ctx context.Context) ([]storage.DailyReportRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT report_date, stats_json, updated_at
FROM daily_reports
ORDER BY report_date ASC
`)
	if err != nil {
		return nil, fmt.Errorf("list daily reports: %w", err)
	}
	defer rows.Close()

	records := make([]storage.DailyReportRecord, 0)
	for rows.Next() {
		var (
			record    storage.DailyReportRecord
			updatedAt int64
		)
		if err := rows.Scan(&record.Date, &record.StatsJSON, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan daily report: %w", err)
		}
		record.UpdatedAt = fromMillis(updatedAt)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily reports: %w", err)
	}
	return records, nil
}

// CountDailyReports returns the number of stored reports.
func (s *Store) CountDailyReports(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	var count int
	if err := s.sqlDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM daily_reports").Scan(&count); err != nil {
		return 0, fmt.Errorf("count daily reports: %w", err)
	}
	return count, nil
}
