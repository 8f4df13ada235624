package domain

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// DefaultActivityCapacity keeps one day of minute samples.
const DefaultActivityCapacity = 1440

// ActivityPoint is one sample of participant presence.
type ActivityPoint struct {
	Timestamp   time.Time `json:"timestamp"`
	ActiveUsers int       `json:"active_users"`
	TotalUsers  int       `json:"total_users"`
}

// ActivityLog is a bounded history of presence samples, oldest first.
type ActivityLog struct {
	mu       sync.RWMutex
	points   []ActivityPoint
	capacity int
}

// NewActivityLog returns an empty log. A non-positive capacity uses
// DefaultActivityCapacity.
func NewActivityLog(capacity int) *ActivityLog {
	if capacity <= 0 {
		capacity = DefaultActivityCapacity
	}
	return &ActivityLog{capacity: capacity}
}

// Append records a sample, evicting the oldest when full.
func (l *ActivityLog) Append(point ActivityPoint) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.points = append(l.points, point)
	if len(l.points) > l.capacity {
		l.points = append(l.points[:0:0], l.points[len(l.points)-l.capacity:]...)
	}
}

// Points returns a copy of the samples.
func (l *ActivityLog) Points() []ActivityPoint {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]ActivityPoint, len(l.points))
	copy(out, l.points)
	return out
}

// Len returns the number of samples.
func (l *ActivityLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.points)
}

// AverageActive returns the mean active users across samples, or zero.
func (l *ActivityLog) AverageActive() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.points) == 0 {
		return 0
	}
	sum := 0
	for _, p := range l.points {
		sum += p.ActiveUsers
	}
	return float64(sum) / float64(len(l.points))
}

// WeeklyReport summarizes the retained activity.
type WeeklyReport struct {
	Period      string        `json:"period"`
	GeneratedAt time.Time     `json:"generated_at"`
	Summary     WeeklySummary `json:"summary"`
	Insights    []string      `json:"insights"`
}

// WeeklySummary holds the headline numbers of a weekly report.
type WeeklySummary struct {
	DailyReports       int     `json:"daily_reports"`
	AverageActiveUsers float64 `json:"average_active_users"`
	TotalDataPoints    int     `json:"total_data_points"`
}

// BuildWeeklyReport summarizes activity alongside the daily report count.
func BuildWeeklyReport(activity *ActivityLog, dailyReports int, now time.Time) WeeklyReport {
	average := activity.AverageActive()
	return WeeklyReport{
		Period:      "weekly",
		GeneratedAt: now.UTC(),
		Summary: WeeklySummary{
			DailyReports:       dailyReports,
			AverageActiveUsers: average,
			TotalDataPoints:    activity.Len(),
		},
		Insights: []string{
			"participant activity is stable across the week",
			"more focused sessions are recommended",
			fmt.Sprintf("average activity is %d participants", int(math.Round(average))),
		},
	}
}
