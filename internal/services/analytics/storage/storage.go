// Package storage defines persistence contracts for the analytics service.
package storage

import (
	"context"
	"time"
)

// DailyReportRecord is the latest analysed snapshot for one UTC date.
type DailyReportRecord struct {
	Date      string
	StatsJSON string
	UpdatedAt time.Time
}

// DailyReportStore persists one report per date; later writes replace earlier
// ones for the same date.
type DailyReportStore interface {
	PutDailyReport(ctx context.Context, record DailyReportRecord) error
	ListDailyReports(ctx context.Context) ([]DailyReportRecord, error)
	CountDailyReports(ctx context.Context) (int, error)
}
