package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"
)

type fakeStore struct {
	nextID        int64
	notifications []Notification
	putErr        error
}

func (f *fakeStore) PutNotification(_ context.Context, notification Notification, retain int) (int64, error) {
	if f.putErr != nil {
		return 0, f.putErr
	}
	f.nextID++
	notification.ID = f.nextID
	f.notifications = append(f.notifications, notification)
	if len(f.notifications) > retain {
		f.notifications = f.notifications[len(f.notifications)-retain:]
	}
	return notification.ID, nil
}

func (f *fakeStore) ListNotifications(context.Context) ([]Notification, error) {
	return append([]Notification(nil), f.notifications...), nil
}

func (f *fakeStore) MarkNotificationRead(_ context.Context, id int64, readAt time.Time) (Notification, error) {
	for i := range f.notifications {
		if f.notifications[i].ID == id {
			if f.notifications[i].ReadAt == nil {
				f.notifications[i].ReadAt = &readAt
			}
			return f.notifications[i], nil
		}
	}
	return Notification{}, ErrNotFound
}

func newTestService(store Store) *Service {
	now := time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC)
	return NewService(store, func() time.Time { return now })
}

func TestCreateValidatesRequiredFields(t *testing.T) {
	tests := []struct {
		name  string
		input CreateInput
		want  error
	}{
		{name: "missing type", input: CreateInput{Title: "t", Message: "m"}, want: ErrTypeRequired},
		{name: "missing title", input: CreateInput{Type: TypeSystem, Title: "  ", Message: "m"}, want: ErrTitleRequired},
		{name: "missing message", input: CreateInput{Type: TypeSystem, Title: "t"}, want: ErrMessageRequired},
		{name: "array metadata", input: CreateInput{Type: TypeSystem, Title: "t", Message: "m", MetadataJSON: "[1]"}, want: ErrInvalidMetadata},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			_, err := newTestService(store).Create(context.Background(), tt.input)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if len(store.notifications) != 0 {
				t.Fatalf("stored = %d, want 0", len(store.notifications))
			}
		})
	}
}

func TestCreateStoresNormalizedNotification(t *testing.T) {
	store := &fakeStore{}
	service := newTestService(store)

	created, err := service.Create(context.Background(), CreateInput{
		Type:    " " + TypeSessionCreated + " ",
		Title:   "New session",
		Message: "Ana opened Algebra",
		UserID:  " h1 ",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID != 1 {
		t.Fatalf("id = %d, want 1", created.ID)
	}
	if created.Type != TypeSessionCreated || created.UserID != "h1" {
		t.Fatalf("created = %+v, want trimmed type and user id", created)
	}
	if created.MetadataJSON != "{}" {
		t.Fatalf("metadata = %q, want {}", created.MetadataJSON)
	}
	if created.Read() {
		t.Fatal("new notification should be unread")
	}
}

func TestCreateKeepsNewestHundred(t *testing.T) {
	store := &fakeStore{}
	service := newTestService(store)

	for i := 1; i <= MaxRetained+5; i++ {
		if _, err := service.Create(context.Background(), CreateInput{Type: TypeSystem, Title: fmt.Sprintf("t%d", i), Message: "m"}); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	list, err := service.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != MaxRetained {
		t.Fatalf("len = %d, want %d", len(list), MaxRetained)
	}
	if list[0].Title != "t6" {
		t.Fatalf("oldest = %q, want t6", list[0].Title)
	}
}

func TestMarkReadAndStats(t *testing.T) {
	store := &fakeStore{}
	service := newTestService(store)
	ctx := context.Background()

	first, err := service.Create(ctx, CreateInput{Type: TypeNewMessage, Title: "t", Message: "m"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := service.Create(ctx, CreateInput{Type: "custom", Title: "t", Message: "m"}); err != nil {
		t.Fatalf("create custom: %v", err)
	}
	if _, err := service.Remind(ctx); err != nil {
		t.Fatalf("remind: %v", err)
	}

	read, err := service.MarkRead(ctx, first.ID)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if !read.Read() {
		t.Fatal("expected notification to be read")
	}
	if _, err := service.MarkRead(ctx, 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("mark zero err = %v, want %v", err, ErrNotFound)
	}
	if _, err := service.MarkRead(ctx, 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("mark unknown err = %v, want %v", err, ErrNotFound)
	}

	stats, err := service.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 3 || stats.Read != 1 || stats.Unread != 2 {
		t.Fatalf("stats = %+v, want total 3 read 1 unread 2", stats)
	}
	if len(stats.ByType) != len(KnownTypes) {
		t.Fatalf("by_type keys = %d, want %d", len(stats.ByType), len(KnownTypes))
	}
	if stats.ByType[TypeNewMessage] != 1 || stats.ByType[TypeReminder] != 1 || stats.ByType[TypeSystem] != 0 {
		t.Fatalf("by_type = %v", stats.ByType)
	}
	if _, ok := stats.ByType["custom"]; ok {
		t.Fatal("unknown types should not be reported")
	}
}

func TestSummary(t *testing.T) {
	store := &fakeStore{}
	service := newTestService(store)
	ctx := context.Background()

	empty, err := service.Summary(ctx)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if empty.Count != 0 || empty.Last != nil {
		t.Fatalf("empty summary = %+v", empty)
	}

	if _, err := service.AnnounceStartup(ctx, "notification-service", ":3001"); err != nil {
		t.Fatalf("announce: %v", err)
	}
	last, err := service.Remind(ctx)
	if err != nil {
		t.Fatalf("remind: %v", err)
	}
	summary, err := service.Summary(ctx)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Count != 2 || summary.Unread != 2 {
		t.Fatalf("summary = %+v, want count 2 unread 2", summary)
	}
	if summary.Last == nil || summary.Last.ID != last.ID {
		t.Fatalf("last = %+v, want id %d", summary.Last, last.ID)
	}
}

func TestRemindMetadata(t *testing.T) {
	service := newTestService(&fakeStore{})

	reminder, err := service.Remind(context.Background())
	if err != nil {
		t.Fatalf("remind: %v", err)
	}
	if reminder.Type != TypeReminder {
		t.Fatalf("type = %q, want %q", reminder.Type, TypeReminder)
	}
	var metadata map[string]any
	if err := json.Unmarshal([]byte(reminder.MetadataJSON), &metadata); err != nil {
		t.Fatalf("decode metadata: %v", err)
	}
	if metadata["auto_generated"] != true {
		t.Fatalf("auto_generated = %v, want true", metadata["auto_generated"])
	}
}

func TestServiceRequiresStore(t *testing.T) {
	var service *Service
	if _, err := service.Create(context.Background(), CreateInput{}); !errors.Is(err, ErrStoreNotConfigured) {
		t.Fatalf("create err = %v, want %v", err, ErrStoreNotConfigured)
	}
	if _, err := NewService(nil, nil).List(context.Background()); !errors.Is(err, ErrStoreNotConfigured) {
		t.Fatalf("list err = %v, want %v", err, ErrStoreNotConfigured)
	}
}

func TestCreatePropagatesStoreError(t *testing.T) {
	boom := errors.New("disk full")
	service := newTestService(&fakeStore{putErr: boom})
	if _, err := service.Create(context.Background(), CreateInput{Type: TypeSystem, Title: "t", Message: "m"}); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}
