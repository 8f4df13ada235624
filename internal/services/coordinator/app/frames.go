package server

import (
	"encoding/json"
	"log"
)

// Inbound frame types.
const (
	frameRegister      = "register"
	frameMessageSend   = "message.send"
	frameSessionCreate = "session.create"
	frameSessionJoin   = "session.join"
)

// Outbound frame types.
const (
	frameRegistered            = "registered"
	frameParticipantRegistered = "participant.registered"
	frameParticipantLeft       = "participant.left"
	frameMessagePosted         = "message.posted"
	frameSessionCreated        = "session.created"
	frameSessionMemberJoined   = "session.member_joined"
	frameError                 = "error"
)

const (
	channelGlobal        = "global"
	channelPrivate       = "private"
	sessionChannelPrefix = "session:"
)

// Error codes carried by error frames.
const (
	codeInvalidArgument    = "INVALID_ARGUMENT"
	codeNotFound           = "NOT_FOUND"
	codeForbidden          = "FORBIDDEN"
	codeFailedPrecondition = "FAILED_PRECONDITION"
	codeResourceExhausted  = "RESOURCE_EXHAUSTED"
	codeInternal           = "INTERNAL"
)

type wsFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Channel   string          `json:"channel,omitempty"`
	Seq       int64           `json:"seq,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

type wsErrorEnvelope struct {
	Error wsError `json:"error"`
}

type wsError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

type registerPayload struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

type sendPayload struct {
	Text string `json:"text"`
}

type createSessionPayload struct {
	Subject     string `json:"subject"`
	Description string `json:"description"`
}

type joinSessionPayload struct {
	SessionID string `json:"session_id"`
}

func sessionChannel(sessionID string) string {
	return sessionChannelPrefix + sessionID
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("coordinator: marshal websocket frame payload: %v", err)
		return nil
	}
	return b
}

func errorFrame(requestID string, code string, message string, retryable bool) wsFrame {
	return wsFrame{
		Type:      frameError,
		RequestID: requestID,
		Channel:   channelPrivate,
		Payload: mustJSON(wsErrorEnvelope{
			Error: wsError{Code: code, Message: message, Retryable: retryable},
		}),
	}
}
