package server

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/louisbranch/tutoring.space/internal/services/coordinator/domain"
)

// connState is the protocol state of one connection. It is only touched by
// the goroutine reading that connection.
type connState struct {
	peer          *wsPeer
	participantID string
	disconnected  bool
}

func (s *connState) registered() bool {
	return s.participantID != "" && !s.disconnected
}

// coordinator owns the stores and serializes every mutation with the enqueue
// of its events, so all connections observe events in commit order.
type coordinator struct {
	commitMu   sync.Mutex
	registry   *domain.Registry
	directory  *domain.Directory
	messages   *domain.MessageLog
	hub        *broadcaster
	strictAcks bool
}

func newCoordinator(registry *domain.Registry, directory *domain.Directory, messages *domain.MessageLog, hub *broadcaster, strictAcks bool) *coordinator {
	return &coordinator{
		registry:   registry,
		directory:  directory,
		messages:   messages,
		hub:        hub,
		strictAcks: strictAcks,
	}
}

// connect adds a new connection to the global audience.
func (c *coordinator) connect(peer *wsPeer) *connState {
	c.commitMu.Lock()
	c.hub.add(peer)
	c.commitMu.Unlock()
	return &connState{peer: peer}
}

func (c *coordinator) register(ctx context.Context, state *connState, requestID string, payload registerPayload) {
	if state.participantID != "" {
		c.reject(ctx, state, requestID, domain.ErrAlreadyRegistered)
		return
	}
	role, err := domain.ParseRole(payload.Role)
	if err != nil {
		c.reject(ctx, state, requestID, err)
		return
	}

	c.commitMu.Lock()
	defer c.commitMu.Unlock()
	participant, err := c.registry.Register(payload.Name, role, state.peer.id)
	if err != nil {
		c.reject(ctx, state, requestID, err)
		return
	}
	state.participantID = participant.ID

	view := participantView(participant)
	c.hub.private(ctx, state.peer, wsFrame{
		Type:      frameRegistered,
		RequestID: requestID,
		Payload:   mustJSON(registeredPayload{ParticipantID: participant.ID, Participant: view}),
	})
	c.hub.global(ctx, frameParticipantRegistered, view)
	log.Printf("coordinator: participant registered id=%q role=%q name=%q", participant.ID, role, participant.Name)
}

func (c *coordinator) sendMessage(ctx context.Context, state *connState, requestID string, payload sendPayload) {
	if !state.registered() {
		c.reject(ctx, state, requestID, errUnregistered)
		return
	}

	c.commitMu.Lock()
	defer c.commitMu.Unlock()
	msg, err := c.messages.Append(state.participantID, payload.Text)
	if err != nil {
		c.reject(ctx, state, requestID, err)
		return
	}
	c.hub.global(ctx, frameMessagePosted, messageView(msg))
}

func (c *coordinator) createSession(ctx context.Context, state *connState, requestID string, payload createSessionPayload) {
	if !state.registered() {
		c.reject(ctx, state, requestID, errUnregistered)
		return
	}

	c.commitMu.Lock()
	defer c.commitMu.Unlock()
	session, err := c.directory.Create(state.participantID, payload.Subject, payload.Description)
	if err != nil {
		c.reject(ctx, state, requestID, err)
		return
	}
	c.hub.global(ctx, frameSessionCreated, sessionView(session))
	log.Printf("coordinator: session created id=%q host=%q subject=%q", session.ID, session.Host.ID, session.Subject)
}

func (c *coordinator) joinSession(ctx context.Context, state *connState, requestID string, payload joinSessionPayload) {
	if !state.registered() {
		c.reject(ctx, state, requestID, errUnregistered)
		return
	}

	c.commitMu.Lock()
	defer c.commitMu.Unlock()
	session, joined, err := c.directory.Join(payload.SessionID, state.participantID)
	if err != nil {
		c.reject(ctx, state, requestID, err)
		return
	}
	if !joined {
		return
	}
	c.hub.subscribe(session.ID, state.peer)

	member := session.Members[len(session.Members)-1]
	event := memberJoinedPayload{SessionID: session.ID, Member: memberView(member)}
	c.hub.global(ctx, frameSessionMemberJoined, event)
	c.hub.session(ctx, session.ID, frameSessionMemberJoined, event)
	log.Printf("coordinator: member joined session=%q participant=%q", session.ID, member.ID)
}

// disconnect removes the connection from every audience and marks its
// participant offline. It is safe to call more than once.
func (c *coordinator) disconnect(ctx context.Context, state *connState) {
	c.commitMu.Lock()
	defer c.commitMu.Unlock()
	c.hub.remove(state.peer)
	if state.disconnected {
		return
	}
	state.disconnected = true
	if state.participantID == "" {
		return
	}

	participant, changed, err := c.registry.Detach(state.participantID)
	if err != nil {
		log.Printf("coordinator: detach participant=%q: %v", state.participantID, err)
		return
	}
	if !changed {
		return
	}
	c.hub.global(ctx, frameParticipantLeft, participantView(participant))
	log.Printf("coordinator: participant left id=%q name=%q", participant.ID, participant.Name)
}

var errUnregistered = errors.New("connection is not registered")

// reject answers a refused action. Precondition failures stay silent unless
// strict acks are enabled; invalid input and defects always answer.
func (c *coordinator) reject(ctx context.Context, state *connState, requestID string, err error) {
	code, message, always := rejection(err)
	if code == codeInternal {
		log.Printf("coordinator: action failed conn=%d participant=%q err=%v", state.peer.id, state.participantID, err)
	}
	if !always && !c.strictAcks {
		return
	}
	c.hub.private(ctx, state.peer, errorFrame(requestID, code, message, false))
}

func rejection(err error) (code string, message string, always bool) {
	switch {
	case errors.Is(err, domain.ErrInvalidRole):
		return codeInvalidArgument, "role must be host or joiner", true
	case errors.Is(err, errUnregistered):
		return codeFailedPrecondition, "register before sending actions", false
	case errors.Is(err, domain.ErrAlreadyRegistered):
		return codeFailedPrecondition, "connection is already registered", false
	case errors.Is(err, domain.ErrParticipantNotFound):
		return codeNotFound, "participant not found", false
	case errors.Is(err, domain.ErrSessionNotFound):
		return codeNotFound, "session not found", false
	case errors.Is(err, domain.ErrNotHost):
		return codeForbidden, "only hosts can create sessions", false
	case errors.Is(err, domain.ErrNotJoiner):
		return codeForbidden, "only joiners can join sessions", false
	default:
		return codeInternal, "action failed", true
	}
}
