package domain

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/louisbranch/tutoring.space/internal/platform/id"
)

// Member is the summary of a participant inside a session.
type Member struct {
	ID   string
	Name string
}

// Session is a collaboration context owned by one host.
type Session struct {
	ID          string
	Host        Member
	Subject     string
	Description string
	Members     []Member
	CreatedAt   time.Time
}

// HasMember reports whether participantID already joined.
func (s Session) HasMember(participantID string) bool {
	return slices.ContainsFunc(s.Members, func(m Member) bool { return m.ID == participantID })
}

func (s *Session) clone() Session {
	out := *s
	out.Members = slices.Clone(s.Members)
	return out
}

// Directory stores sessions for the life of the process.
//
// Roles are resolved through the registry before the directory lock is taken,
// so the registry lock is never held while waiting on this one.
type Directory struct {
	mu       sync.RWMutex
	registry *Registry
	sessions map[string]*Session
	order    []string
	newID    func() (string, error)
	clock    func() time.Time
}

// NewDirectory returns an empty directory validating against registry.
func NewDirectory(registry *Registry) *Directory {
	return &Directory{
		registry: registry,
		sessions: make(map[string]*Session),
		newID:    id.NewID,
		clock:    time.Now,
	}
}

// Create opens a session hosted by hostID.
func (d *Directory) Create(hostID, subject, description string) (Session, error) {
	host, ok := d.registry.Lookup(hostID)
	if !ok {
		return Session{}, ErrParticipantNotFound
	}
	if host.Role != RoleHost {
		return Session{}, ErrNotHost
	}
	sessionID, err := d.newID()
	if err != nil {
		return Session{}, fmt.Errorf("generate session id: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.sessions[sessionID]; exists {
		return Session{}, fmt.Errorf("%w: session %s", ErrDuplicateID, sessionID)
	}
	session := &Session{
		ID:          sessionID,
		Host:        Member{ID: host.ID, Name: host.Name},
		Subject:     subject,
		Description: description,
		Members:     []Member{},
		CreatedAt:   d.clock().UTC(),
	}
	d.sessions[sessionID] = session
	d.order = append(d.order, sessionID)
	return session.clone(), nil
}

// Join adds participantID to the session members. joined is false when the
// participant was already a member; the session is returned either way.
func (d *Directory) Join(sessionID, participantID string) (Session, bool, error) {
	participant, ok := d.registry.Lookup(participantID)
	if !ok {
		return Session{}, false, ErrParticipantNotFound
	}
	if participant.Role != RoleJoiner {
		return Session{}, false, ErrNotJoiner
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	session, ok := d.sessions[sessionID]
	if !ok {
		return Session{}, false, ErrSessionNotFound
	}
	if session.HasMember(participantID) {
		return session.clone(), false, nil
	}
	session.Members = append(session.Members, Member{ID: participant.ID, Name: participant.Name})
	return session.clone(), true, nil
}

// Get returns a copy of one session.
func (d *Directory) Get(sessionID string) (Session, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	session, ok := d.sessions[sessionID]
	if !ok {
		return Session{}, false
	}
	return session.clone(), true
}

// List returns every session in creation order.
func (d *Directory) List() []Session {
	d.mu.RLock()
	defer d.mu.RUnlock()
	list := make([]Session, 0, len(d.order))
	for _, sessionID := range d.order {
		list = append(list, d.sessions[sessionID].clone())
	}
	return list
}

// Len returns the number of sessions.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.order)
}
