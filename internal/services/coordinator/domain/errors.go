package domain

import "errors"

var (
	// ErrParticipantNotFound reports an id that does not resolve in the registry.
	ErrParticipantNotFound = errors.New("participant not found")
	// ErrSessionNotFound reports an id that does not resolve in the directory.
	ErrSessionNotFound = errors.New("session not found")
	// ErrNotHost reports a session creation attempted by a non-host participant.
	ErrNotHost = errors.New("participant is not a host")
	// ErrNotJoiner reports a session join attempted by a non-joiner participant.
	ErrNotJoiner = errors.New("participant is not a joiner")
	// ErrInvalidRole reports a role value outside host and joiner.
	ErrInvalidRole = errors.New("invalid participant role")
	// ErrDuplicateID reports an id collision on insert. It indicates a defect in
	// id generation and aborts only the offending operation.
	ErrDuplicateID = errors.New("duplicate id")
	// ErrAlreadyRegistered reports a second register on a bound connection.
	ErrAlreadyRegistered = errors.New("connection already registered")
)
