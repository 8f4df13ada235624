// Package domain holds the notification inbox use-cases.
package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound indicates a notification record was not found.
	ErrNotFound = errors.New("notification not found")
	// ErrStoreNotConfigured indicates the service is missing persistence wiring.
	ErrStoreNotConfigured = errors.New("notification store is not configured")
	// ErrTypeRequired indicates a notification type is required.
	ErrTypeRequired = errors.New("notification type is required")
	// ErrTitleRequired indicates a notification title is required.
	ErrTitleRequired = errors.New("notification title is required")
	// ErrMessageRequired indicates a notification message is required.
	ErrMessageRequired = errors.New("notification message is required")
	// ErrInvalidMetadata indicates metadata is not a JSON object.
	ErrInvalidMetadata = errors.New("notification metadata must be a JSON object")
)

// MaxRetained is the number of notifications the inbox keeps.
const MaxRetained = 100

// Notification types produced by the coordinator's collaborators.
const (
	TypeSessionCreated = "session_created"
	TypeSessionJoined  = "session_joined"
	TypeNewMessage     = "new_message"
	TypeUserJoined     = "user_joined"
	TypeReminder       = "reminder"
	TypeSystem         = "system"
)

// KnownTypes lists the types reported by Stats.
var KnownTypes = []string{
	TypeSessionCreated,
	TypeSessionJoined,
	TypeNewMessage,
	TypeUserJoined,
	TypeReminder,
	TypeSystem,
}

const (
	reminderTitle   = "Reminder"
	reminderMessage = "Check the active sessions and answer pending messages."
	startupTitle    = "Service started"
	startupMessage  = "The notifications service is running."
)

// Notification captures one inbox item.
type Notification struct {
	ID           int64
	Type         string
	Title        string
	Message      string
	UserID       string
	MetadataJSON string
	CreatedAt    time.Time
	ReadAt       *time.Time
}

// Read reports whether the notification was acknowledged.
func (n Notification) Read() bool {
	return n.ReadAt != nil
}

// CreateInput describes one producer notification request.
type CreateInput struct {
	Type         string
	Title        string
	Message      string
	UserID       string
	MetadataJSON string
}

// Stats counts retained notifications.
type Stats struct {
	Total  int
	Unread int
	Read   int
	ByType map[string]int
}

// Summary is the headline view pushed to the coordinator.
type Summary struct {
	Count  int
	Unread int
	Last   *Notification
}

// Store is the domain persistence boundary for the inbox.
type Store interface {
	PutNotification(ctx context.Context, notification Notification, retain int) (int64, error)
	ListNotifications(ctx context.Context) ([]Notification, error)
	MarkNotificationRead(ctx context.Context, id int64, readAt time.Time) (Notification, error)
}

// Service orchestrates inbox lifecycle behavior.
type Service struct {
	store Store
	clock func() time.Time
}

// NewService constructs notification domain use-cases.
func NewService(store Store, clock func() time.Time) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		store: store,
		clock: clock,
	}
}

// Create validates and stores one notification, evicting the oldest beyond
// MaxRetained.
func (s *Service) Create(ctx context.Context, input CreateInput) (Notification, error) {
	if s == nil || s.store == nil {
		return Notification{}, ErrStoreNotConfigured
	}
	notificationType := strings.TrimSpace(input.Type)
	if notificationType == "" {
		return Notification{}, ErrTypeRequired
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return Notification{}, ErrTitleRequired
	}
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return Notification{}, ErrMessageRequired
	}
	metadataJSON := strings.TrimSpace(input.MetadataJSON)
	if metadataJSON == "" || metadataJSON == "null" {
		metadataJSON = "{}"
	}
	var metadata map[string]any
	if err := json.Unmarshal([]byte(metadataJSON), &metadata); err != nil {
		return Notification{}, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}

	notification := Notification{
		Type:         notificationType,
		Title:        title,
		Message:      message,
		UserID:       strings.TrimSpace(input.UserID),
		MetadataJSON: metadataJSON,
		CreatedAt:    s.nowUTC(),
	}
	id, err := s.store.PutNotification(ctx, notification, MaxRetained)
	if err != nil {
		return Notification{}, err
	}
	notification.ID = id
	return notification, nil
}

// List returns retained notifications oldest first.
func (s *Service) List(ctx context.Context) ([]Notification, error) {
	if s == nil || s.store == nil {
		return nil, ErrStoreNotConfigured
	}
	return s.store.ListNotifications(ctx)
}

// MarkRead marks one notification as read.
func (s *Service) MarkRead(ctx context.Context, id int64) (Notification, error) {
	if s == nil || s.store == nil {
		return Notification{}, ErrStoreNotConfigured
	}
	if id <= 0 {
		return Notification{}, ErrNotFound
	}
	return s.store.MarkNotificationRead(ctx, id, s.nowUTC())
}

// Stats counts retained notifications by read state and known type.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	notifications, err := s.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	stats := Stats{Total: len(notifications), ByType: make(map[string]int, len(KnownTypes))}
	for _, known := range KnownTypes {
		stats.ByType[known] = 0
	}
	for _, n := range notifications {
		if n.Read() {
			stats.Read++
		} else {
			stats.Unread++
		}
		if _, ok := stats.ByType[n.Type]; ok {
			stats.ByType[n.Type]++
		}
	}
	return stats, nil
}

// Summary returns the count, unread count and newest notification.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	notifications, err := s.List(ctx)
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{Count: len(notifications)}
	for _, n := range notifications {
		if !n.Read() {
			summary.Unread++
		}
	}
	if len(notifications) > 0 {
		last := notifications[len(notifications)-1]
		summary.Last = &last
	}
	return summary, nil
}

// Remind stores an auto-generated reminder.
func (s *Service) Remind(ctx context.Context) (Notification, error) {
	metadata, err := json.Marshal(map[string]any{
		"auto_generated": true,
		"cron_time":      s.nowUTC(),
	})
	if err != nil {
		return Notification{}, fmt.Errorf("encode reminder metadata: %w", err)
	}
	return s.Create(ctx, CreateInput{
		Type:         TypeReminder,
		Title:        reminderTitle,
		Message:      reminderMessage,
		MetadataJSON: string(metadata),
	})
}

// AnnounceStartup stores the system notification emitted on boot.
func (s *Service) AnnounceStartup(ctx context.Context, service string, addr string) (Notification, error) {
	metadata, err := json.Marshal(map[string]string{
		"service": service,
		"addr":    addr,
	})
	if err != nil {
		return Notification{}, fmt.Errorf("encode startup metadata: %w", err)
	}
	return s.Create(ctx, CreateInput{
		Type:         TypeSystem,
		Title:        startupTitle,
		Message:      startupMessage,
		MetadataJSON: string(metadata),
	})
}

func (s *Service) nowUTC() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock().UTC()
}
