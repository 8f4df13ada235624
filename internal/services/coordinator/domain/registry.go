package domain

import (
	"fmt"
	"sync"

	"github.com/louisbranch/tutoring.space/internal/platform/id"
)

// ConnID identifies one physical connection. The zero value means offline.
type ConnID uint64

// Participant is a registered identity and its liveness.
type Participant struct {
	ID   string
	Name string
	Role Role
	Conn ConnID
}

// Online reports whether a connection is currently bound.
func (p Participant) Online() bool {
	return p.Conn != 0
}

// Registry maps participant ids to their connection state. Records are kept
// after disconnect so message attribution stays valid.
type Registry struct {
	mu           sync.RWMutex
	participants map[string]*Participant
	order        []string
	newID        func() (string, error)
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		participants: make(map[string]*Participant),
		newID:        id.NewID,
	}
}

// Register stores a new participant bound to conn and returns it. The name is
// stored as given.
func (r *Registry) Register(name string, role Role, conn ConnID) (Participant, error) {
	if !role.Valid() {
		return Participant{}, ErrInvalidRole
	}
	participantID, err := r.newID()
	if err != nil {
		return Participant{}, fmt.Errorf("generate participant id: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.participants[participantID]; exists {
		return Participant{}, fmt.Errorf("%w: participant %s", ErrDuplicateID, participantID)
	}
	participant := &Participant{ID: participantID, Name: name, Role: role, Conn: conn}
	r.participants[participantID] = participant
	r.order = append(r.order, participantID)
	return *participant, nil
}

// Attach binds conn to an existing participant.
func (r *Registry) Attach(participantID string, conn ConnID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	participant, ok := r.participants[participantID]
	if !ok {
		return ErrParticipantNotFound
	}
	participant.Conn = conn
	return nil
}

// Detach marks a participant offline. changed is false when the participant
// was already offline.
func (r *Registry) Detach(participantID string) (Participant, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	participant, ok := r.participants[participantID]
	if !ok {
		return Participant{}, false, ErrParticipantNotFound
	}
	if participant.Conn == 0 {
		return *participant, false, nil
	}
	participant.Conn = 0
	return *participant, true, nil
}

// Lookup returns a copy of the participant record.
func (r *Registry) Lookup(participantID string) (Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	participant, ok := r.participants[participantID]
	if !ok {
		return Participant{}, false
	}
	return *participant, true
}

// List returns every participant in registration order.
func (r *Registry) List() []Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]Participant, 0, len(r.order))
	for _, participantID := range r.order {
		list = append(list, *r.participants[participantID])
	}
	return list
}

// Len returns the number of registered participants.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
