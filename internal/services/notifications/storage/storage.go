// Package storage defines persistence contracts for the notifications service.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates a requested notification record is missing.
var ErrNotFound = errors.New("record not found")

// NotificationRecord stores one notification inbox item.
type NotificationRecord struct {
	ID           int64
	Type         string
	Title        string
	Message      string
	UserID       string
	MetadataJSON string
	CreatedAt    time.Time
	ReadAt       *time.Time
}

// NotificationStore persists the bounded notification inbox.
type NotificationStore interface {
	// PutNotification inserts record, assigns its id, and keeps only the
	// newest retain rows.
	PutNotification(ctx context.Context, record NotificationRecord, retain int) (int64, error)
	ListNotifications(ctx context.Context) ([]NotificationRecord, error)
	MarkNotificationRead(ctx context.Context, id int64, readAt time.Time) (NotificationRecord, error)
}
