package server

import (
	"github.com/louisbranch/tutoring.space/internal/services/coordinator/domain"
	"github.com/louisbranch/tutoring.space/internal/services/shared/coordinatorapi"
)

type registeredPayload struct {
	ParticipantID string                     `json:"participant_id"`
	Participant   coordinatorapi.Participant `json:"participant"`
}

type memberJoinedPayload struct {
	SessionID string                `json:"session_id"`
	Member    coordinatorapi.Member `json:"member"`
}

func participantView(p domain.Participant) coordinatorapi.Participant {
	return coordinatorapi.Participant{
		ID:     p.ID,
		Name:   p.Name,
		Role:   p.Role.String(),
		Online: p.Online(),
	}
}

func participantViews(list []domain.Participant) []coordinatorapi.Participant {
	out := make([]coordinatorapi.Participant, 0, len(list))
	for _, p := range list {
		out = append(out, participantView(p))
	}
	return out
}

func messageView(m domain.Message) coordinatorapi.Message {
	return coordinatorapi.Message{
		ID:        m.ID,
		UserID:    m.AuthorID,
		UserName:  m.AuthorName,
		UserRole:  m.AuthorRole.String(),
		Text:      m.Text,
		Timestamp: m.CreatedAt,
	}
}

func messageViews(list []domain.Message) []coordinatorapi.Message {
	out := make([]coordinatorapi.Message, 0, len(list))
	for _, m := range list {
		out = append(out, messageView(m))
	}
	return out
}

func memberView(m domain.Member) coordinatorapi.Member {
	return coordinatorapi.Member{ID: m.ID, Name: m.Name}
}

func sessionView(s domain.Session) coordinatorapi.Session {
	members := make([]coordinatorapi.Member, 0, len(s.Members))
	for _, m := range s.Members {
		members = append(members, memberView(m))
	}
	return coordinatorapi.Session{
		ID:          s.ID,
		Host:        memberView(s.Host),
		Subject:     s.Subject,
		Description: s.Description,
		Members:     members,
		CreatedAt:   s.CreatedAt,
	}
}

func sessionViews(list []domain.Session) []coordinatorapi.Session {
	out := make([]coordinatorapi.Session, 0, len(list))
	for _, s := range list {
		out = append(out, sessionView(s))
	}
	return out
}
