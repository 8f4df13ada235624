package domain

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/louisbranch/tutoring.space/internal/platform/id"
)

// DefaultLogCapacity is the number of messages retained by default.
const DefaultLogCapacity = 100

// Message is an immutable chat entry. Author fields are captured at send time.
type Message struct {
	ID         string
	AuthorID   string
	AuthorName string
	AuthorRole Role
	Text       string
	CreatedAt  time.Time
}

// MessageLog keeps the most recent messages, evicting the oldest first.
type MessageLog struct {
	mu       sync.RWMutex
	registry *Registry
	capacity int
	entries  []Message
	last     time.Time
	newID    func() (string, error)
	clock    func() time.Time
}

// NewMessageLog returns an empty log. A non-positive capacity uses
// DefaultLogCapacity.
func NewMessageLog(registry *Registry, capacity int) *MessageLog {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	return &MessageLog{
		registry: registry,
		capacity: capacity,
		entries:  make([]Message, 0, capacity),
		newID:    id.NewID,
		clock:    time.Now,
	}
}

// Append records text from authorID. Unknown authors produce no message.
func (l *MessageLog) Append(authorID, text string) (Message, error) {
	author, ok := l.registry.Lookup(authorID)
	if !ok {
		return Message{}, ErrParticipantNotFound
	}
	messageID, err := l.newID()
	if err != nil {
		return Message{}, fmt.Errorf("generate message id: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	createdAt := l.clock().UTC()
	if createdAt.Before(l.last) {
		createdAt = l.last
	}
	l.last = createdAt

	msg := Message{
		ID:         messageID,
		AuthorID:   author.ID,
		AuthorName: author.Name,
		AuthorRole: author.Role,
		Text:       text,
		CreatedAt:  createdAt,
	}
	if len(l.entries) == l.capacity {
		copy(l.entries, l.entries[1:])
		l.entries = l.entries[:len(l.entries)-1]
	}
	l.entries = append(l.entries, msg)
	return msg, nil
}

// Recent returns the retained messages oldest first.
func (l *MessageLog) Recent() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.entries)
}

// Len returns the number of retained messages.
func (l *MessageLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Capacity returns the retention bound.
func (l *MessageLog) Capacity() int {
	return l.capacity
}
