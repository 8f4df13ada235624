// Package domain turns coordinator snapshots into activity statistics.
package domain

import (
	"math"
	"time"

	"github.com/louisbranch/tutoring.space/internal/services/shared/coordinatorapi"
)

const (
	highRatioFactor       = 10
	busyChatMessagesPerHr = 50
)

// Insight texts attached to a snapshot.
const (
	InsightNoHosts         = "no hosts are registered"
	InsightHighJoinerRatio = "joiner to host ratio is high"
	InsightHostsIdle       = "hosts are registered but no sessions exist"
	InsightBusyChat        = "chat activity is high in the last hour"
)

var recommendations = []string{
	"create more focused sessions to attract joiners",
	"encourage active chat for better collaboration",
	"publish a session schedule ahead of time",
	"track popular subjects and focus on them",
}

// Recommendations returns up to n fixed recommendations.
func Recommendations(n int) []string {
	if n > len(recommendations) || n < 0 {
		n = len(recommendations)
	}
	out := make([]string, n)
	copy(out, recommendations[:n])
	return out
}

// Stats is one analysed snapshot of coordinator state.
type Stats struct {
	Timestamp    time.Time        `json:"timestamp"`
	Participants ParticipantStats `json:"participants"`
	Sessions     SessionStats     `json:"sessions"`
	Messages     MessageStats     `json:"messages"`
	Insights     []string         `json:"insights"`
}

// ParticipantStats counts registered participants.
type ParticipantStats struct {
	Total   int `json:"total"`
	Hosts   int `json:"hosts"`
	Joiners int `json:"joiners"`
	Online  int `json:"online"`
	Offline int `json:"offline"`
}

// SessionStats counts sessions and their membership.
type SessionStats struct {
	Total          int     `json:"total"`
	WithMembers    int     `json:"with_members"`
	Empty          int     `json:"empty"`
	AverageMembers float64 `json:"average_members"`
}

// MessageStats counts retained messages.
type MessageStats struct {
	Total       int `json:"total"`
	LastHour    int `json:"last_hour"`
	FromHosts   int `json:"from_hosts"`
	FromJoiners int `json:"from_joiners"`
}

// Analyze computes statistics for a snapshot taken at now.
func Analyze(participants []coordinatorapi.Participant, sessions []coordinatorapi.Session, messages []coordinatorapi.Message, now time.Time) Stats {
	stats := Stats{Timestamp: now.UTC(), Insights: []string{}}

	for _, p := range participants {
		stats.Participants.Total++
		switch p.Role {
		case coordinatorapi.RoleHost:
			stats.Participants.Hosts++
		case coordinatorapi.RoleJoiner:
			stats.Participants.Joiners++
		}
		if p.Online {
			stats.Participants.Online++
		}
	}
	stats.Participants.Offline = stats.Participants.Total - stats.Participants.Online

	members := 0
	for _, s := range sessions {
		stats.Sessions.Total++
		if len(s.Members) > 0 {
			stats.Sessions.WithMembers++
		}
		members += len(s.Members)
	}
	stats.Sessions.Empty = stats.Sessions.Total - stats.Sessions.WithMembers
	if stats.Sessions.Total > 0 {
		stats.Sessions.AverageMembers = float64(members) / float64(stats.Sessions.Total)
	}

	hourAgo := now.Add(-time.Hour)
	for _, m := range messages {
		stats.Messages.Total++
		if m.Timestamp.After(hourAgo) {
			stats.Messages.LastHour++
		}
		switch m.UserRole {
		case coordinatorapi.RoleHost:
			stats.Messages.FromHosts++
		case coordinatorapi.RoleJoiner:
			stats.Messages.FromJoiners++
		}
	}

	stats.Insights = insights(stats)
	return stats
}

func insights(stats Stats) []string {
	out := []string{}
	if stats.Participants.Hosts == 0 {
		out = append(out, InsightNoHosts)
	}
	if stats.Participants.Joiners > stats.Participants.Hosts*highRatioFactor {
		out = append(out, InsightHighJoinerRatio)
	}
	if stats.Sessions.Total == 0 && stats.Participants.Hosts > 0 {
		out = append(out, InsightHostsIdle)
	}
	if stats.Messages.LastHour > busyChatMessagesPerHr {
		out = append(out, InsightBusyChat)
	}
	return out
}

// RealtimeMetrics is the latest headline view of activity.
type RealtimeMetrics struct {
	ActiveUsers       int       `json:"active_users"`
	ActiveSessions    int       `json:"active_sessions"`
	MessagesPerMinute int       `json:"messages_per_minute"`
	LastUpdate        time.Time `json:"last_update"`
}

// Realtime derives headline metrics from stats.
func Realtime(stats Stats, now time.Time) RealtimeMetrics {
	return RealtimeMetrics{
		ActiveUsers:       stats.Participants.Online,
		ActiveSessions:    stats.Sessions.Total,
		MessagesPerMinute: int(math.Round(float64(stats.Messages.LastHour) / 60)),
		LastUpdate:        now.UTC(),
	}
}
