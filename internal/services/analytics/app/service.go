package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/louisbranch/tutoring.space/internal/services/analytics/domain"
	"github.com/louisbranch/tutoring.space/internal/services/analytics/storage"
	"github.com/louisbranch/tutoring.space/internal/services/shared/coordinatorapi"
	"golang.org/x/sync/errgroup"
)

// ServiceName identifies the analytics collaborator to the coordinator.
const ServiceName = "analytics-service"

// Source reads coordinator state.
type Source interface {
	Participants(ctx context.Context) ([]coordinatorapi.Participant, error)
	Sessions(ctx context.Context) ([]coordinatorapi.Session, error)
	Messages(ctx context.Context) ([]coordinatorapi.Message, error)
}

// Sink receives analytics summaries.
type Sink interface {
	PostAnalyticsData(ctx context.Context, payload any) error
}

// DailyReport is one stored daily snapshot.
type DailyReport struct {
	Date string `json:"date"`
	domain.Stats
}

type pushSummary struct {
	Service         string                 `json:"service"`
	Timestamp       time.Time              `json:"timestamp"`
	RealtimeMetrics domain.RealtimeMetrics `json:"realtime_metrics"`
	Summary         pushSummaryCounts      `json:"summary"`
}

type pushSummaryCounts struct {
	TotalDataPoints       int       `json:"total_data_points"`
	DailyReportsGenerated int       `json:"daily_reports_generated"`
	LastAnalysisTime      time.Time `json:"last_analysis_time"`
}

// analytics collects coordinator snapshots and keeps derived metrics.
type analytics struct {
	source   Source
	sink     Sink
	store    storage.DailyReportStore
	activity *domain.ActivityLog
	clock    func() time.Time

	mu       sync.RWMutex
	realtime domain.RealtimeMetrics
}

func newAnalytics(source Source, sink Sink, store storage.DailyReportStore, clock func() time.Time) *analytics {
	if clock == nil {
		clock = time.Now
	}
	return &analytics{
		source:   source,
		sink:     sink,
		store:    store,
		activity: domain.NewActivityLog(0),
		clock:    clock,
		realtime: domain.RealtimeMetrics{LastUpdate: clock().UTC()},
	}
}

// collect fetches the three coordinator lists in parallel, analyses them, and
// records the daily report, realtime metrics and an activity sample.
func (a *analytics) collect(ctx context.Context) (domain.Stats, error) {
	var (
		participants []coordinatorapi.Participant
		sessions     []coordinatorapi.Session
		messages     []coordinatorapi.Message
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() (err error) {
		participants, err = a.source.Participants(groupCtx)
		return err
	})
	group.Go(func() (err error) {
		sessions, err = a.source.Sessions(groupCtx)
		return err
	})
	group.Go(func() (err error) {
		messages, err = a.source.Messages(groupCtx)
		return err
	})
	if err := group.Wait(); err != nil {
		return domain.Stats{}, fmt.Errorf("fetch coordinator state: %w", err)
	}

	now := a.clock().UTC()
	stats := domain.Analyze(participants, sessions, messages, now)
	if err := a.saveDaily(ctx, stats, now); err != nil {
		return domain.Stats{}, err
	}

	a.mu.Lock()
	a.realtime = domain.Realtime(stats, now)
	a.mu.Unlock()
	a.activity.Append(domain.ActivityPoint{
		Timestamp:   now,
		ActiveUsers: stats.Participants.Online,
		TotalUsers:  stats.Participants.Total,
	})
	return stats, nil
}

func (a *analytics) saveDaily(ctx context.Context, stats domain.Stats, now time.Time) error {
	payload, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("encode daily report: %w", err)
	}
	if err := a.store.PutDailyReport(ctx, storage.DailyReportRecord{
		Date:      now.Format(time.DateOnly),
		StatsJSON: string(payload),
		UpdatedAt: now,
	}); err != nil {
		return fmt.Errorf("save daily report: %w", err)
	}
	return nil
}

func (a *analytics) realtimeMetrics() domain.RealtimeMetrics {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.realtime
}

func (a *analytics) dailyReports(ctx context.Context) ([]DailyReport, error) {
	records, err := a.store.ListDailyReports(ctx)
	if err != nil {
		return nil, fmt.Errorf("list daily reports: %w", err)
	}
	reports := make([]DailyReport, 0, len(records))
	for _, record := range records {
		report := DailyReport{Date: record.Date}
		if err := json.Unmarshal([]byte(record.StatsJSON), &report.Stats); err != nil {
			return nil, fmt.Errorf("decode daily report %s: %w", record.Date, err)
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// latestInsights returns the insights of the most recent daily report.
func (a *analytics) latestInsights(ctx context.Context) ([]string, error) {
	reports, err := a.dailyReports(ctx)
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 || reports[len(reports)-1].Insights == nil {
		return []string{}, nil
	}
	return reports[len(reports)-1].Insights, nil
}

func (a *analytics) push(ctx context.Context) error {
	if a.sink == nil {
		return errors.New("analytics sink is not configured")
	}
	count, err := a.store.CountDailyReports(ctx)
	if err != nil {
		return fmt.Errorf("count daily reports: %w", err)
	}
	realtime := a.realtimeMetrics()
	return a.sink.PostAnalyticsData(ctx, pushSummary{
		Service:         ServiceName,
		Timestamp:       a.clock().UTC(),
		RealtimeMetrics: realtime,
		Summary: pushSummaryCounts{
			TotalDataPoints:       a.activity.Len(),
			DailyReportsGenerated: count,
			LastAnalysisTime:      realtime.LastUpdate,
		},
	})
}

func (a *analytics) weekly(ctx context.Context) (domain.WeeklyReport, error) {
	count, err := a.store.CountDailyReports(ctx)
	if err != nil {
		return domain.WeeklyReport{}, fmt.Errorf("count daily reports: %w", err)
	}
	return domain.BuildWeeklyReport(a.activity, count, a.clock()), nil
}

// Scheduled job bodies. Failures are logged and the next tick retries.

func (a *analytics) collectJob(ctx context.Context) {
	stats, err := a.collect(ctx)
	if err != nil {
		log.Printf("analytics: collect failed: %v", err)
		return
	}
	log.Printf("analytics: collected online=%d sessions=%d", stats.Participants.Online, stats.Sessions.Total)
}

func (a *analytics) pushJob(ctx context.Context) {
	if err := a.push(ctx); err != nil {
		log.Printf("analytics: push summary failed: %v", err)
		return
	}
	log.Printf("analytics: summary pushed")
}

func (a *analytics) weeklyJob(ctx context.Context) {
	report, err := a.weekly(ctx)
	if err != nil {
		log.Printf("analytics: weekly report failed: %v", err)
		return
	}
	log.Printf("analytics: weekly report daily_reports=%d average_active=%.2f data_points=%d",
		report.Summary.DailyReports, report.Summary.AverageActiveUsers, report.Summary.TotalDataPoints)
}
