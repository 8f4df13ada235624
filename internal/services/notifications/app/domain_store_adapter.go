package server

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/tutoring.space/internal/services/notifications/domain"
	"github.com/louisbranch/tutoring.space/internal/services/notifications/storage"
)

type domainStoreAdapter struct {
	notificationStore storage.NotificationStore
}

func newDomainStoreAdapter(notificationStore storage.NotificationStore) *domainStoreAdapter {
	return &domainStoreAdapter{notificationStore: notificationStore}
}

func (a *domainStoreAdapter) PutNotification(ctx context.Context, notification domain.Notification, retain int) (int64, error) {
	if a == nil || a.notificationStore == nil {
		return 0, domain.ErrStoreNotConfigured
	}
	id, err := a.notificationStore.PutNotification(ctx, toStorageNotification(notification), retain)
	if err != nil {
		return 0, mapStorageError(err)
	}
	return id, nil
}

func (a *domainStoreAdapter) ListNotifications(ctx context.Context) ([]domain.Notification, error) {
	if a == nil || a.notificationStore == nil {
		return nil, domain.ErrStoreNotConfigured
	}
	records, err := a.notificationStore.ListNotifications(ctx)
	if err != nil {
		return nil, mapStorageError(err)
	}
	notifications := make([]domain.Notification, 0, len(records))
	for _, record := range records {
		notifications = append(notifications, toDomainNotification(record))
	}
	return notifications, nil
}

func (a *domainStoreAdapter) MarkNotificationRead(ctx context.Context, id int64, readAt time.Time) (domain.Notification, error) {
	if a == nil || a.notificationStore == nil {
		return domain.Notification{}, domain.ErrStoreNotConfigured
	}
	record, err := a.notificationStore.MarkNotificationRead(ctx, id, readAt)
	if err != nil {
		return domain.Notification{}, mapStorageError(err)
	}
	return toDomainNotification(record), nil
}

func toStorageNotification(notification domain.Notification) storage.NotificationRecord {
	return storage.NotificationRecord{
		ID:           notification.ID,
		Type:         notification.Type,
		Title:        notification.Title,
		Message:      notification.Message,
		UserID:       notification.UserID,
		MetadataJSON: notification.MetadataJSON,
		CreatedAt:    notification.CreatedAt,
		ReadAt:       notification.ReadAt,
	}
}

func toDomainNotification(record storage.NotificationRecord) domain.Notification {
	return domain.Notification{
		ID:           record.ID,
		Type:         record.Type,
		Title:        record.Title,
		Message:      record.Message,
		UserID:       record.UserID,
		MetadataJSON: record.MetadataJSON,
		CreatedAt:    record.CreatedAt,
		ReadAt:       record.ReadAt,
	}
}

func mapStorageError(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return domain.ErrNotFound
	default:
		return err
	}
}
