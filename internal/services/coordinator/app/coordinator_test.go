package server

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/louisbranch/tutoring.space/internal/services/coordinator/domain"
	"github.com/louisbranch/tutoring.space/internal/services/shared/coordinatorapi"
	"go.opentelemetry.io/otel/metric/noop"
)

type testCoordinator struct {
	*coordinator
	nextConn domain.ConnID
}

func newTestCoordinator(t *testing.T, strict bool) *testCoordinator {
	t.Helper()
	registry := domain.NewRegistry()
	directory := domain.NewDirectory(registry)
	messages := domain.NewMessageLog(registry, 0)
	hub := newBroadcaster(noop.NewMeterProvider().Meter("test"))
	return &testCoordinator{coordinator: newCoordinator(registry, directory, messages, hub, strict)}
}

func (c *testCoordinator) dial() *connState {
	c.nextConn++
	return c.connect(newWSPeer(c.nextConn, 64, 0))
}

func (c *testCoordinator) registerAs(t *testing.T, name string, role string) *connState {
	t.Helper()
	state := c.dial()
	c.register(context.Background(), state, "", registerPayload{Name: name, Role: role})
	if state.participantID == "" {
		t.Fatalf("register %s failed", name)
	}
	return state
}

// drain returns every frame currently queued for state.
func drain(state *connState) []wsFrame {
	var frames []wsFrame
	for {
		select {
		case frame := <-state.peer.outbox:
			frames = append(frames, frame)
		default:
			return frames
		}
	}
}

func frameTypes(frames []wsFrame) []string {
	types := make([]string, 0, len(frames))
	for _, frame := range frames {
		types = append(types, frame.Type)
	}
	return types
}

func assertFrameTypes(t *testing.T, frames []wsFrame, want ...string) {
	t.Helper()
	got := frameTypes(frames)
	if len(got) != len(want) {
		t.Fatalf("frames = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("frames = %v, want %v", got, want)
		}
	}
}

func TestRegisterRepliesPrivatelyBeforeBroadcast(t *testing.T) {
	c := newTestCoordinator(t, false)
	observer := c.dial()
	ana := c.registerAs(t, "Ana", "host")

	frames := drain(ana)
	assertFrameTypes(t, frames, frameRegistered, frameParticipantRegistered)
	if frames[0].Channel != channelPrivate || frames[1].Channel != channelGlobal {
		t.Fatalf("channels = %q, %q", frames[0].Channel, frames[1].Channel)
	}

	var ack registeredPayload
	if err := json.Unmarshal(frames[0].Payload, &ack); err != nil {
		t.Fatalf("decode registered payload: %v", err)
	}
	if ack.ParticipantID != ana.participantID || ack.Participant.Role != coordinatorapi.RoleHost || !ack.Participant.Online {
		t.Fatalf("registered payload = %+v", ack)
	}

	assertFrameTypes(t, drain(observer), frameParticipantRegistered)
}

func TestSecondRegisterOnSameConnectionIsIgnored(t *testing.T) {
	c := newTestCoordinator(t, false)
	ana := c.registerAs(t, "Ana", "host")
	drain(ana)

	first := ana.participantID
	c.register(context.Background(), ana, "", registerPayload{Name: "Other", Role: "joiner"})
	if ana.participantID != first {
		t.Fatalf("participant id changed to %q", ana.participantID)
	}
	if got := c.registry.Len(); got != 1 {
		t.Fatalf("registry len = %d, want 1", got)
	}
	assertFrameTypes(t, drain(ana))
}

func TestInvalidRoleAlwaysAnswers(t *testing.T) {
	c := newTestCoordinator(t, false)
	state := c.dial()
	c.register(context.Background(), state, "req-1", registerPayload{Name: "Eve", Role: "admin"})

	frames := drain(state)
	assertFrameTypes(t, frames, frameError)
	assertErrorCode(t, frames[0], codeInvalidArgument)
	if frames[0].RequestID != "req-1" {
		t.Fatalf("request id = %q, want req-1", frames[0].RequestID)
	}
	if got := c.registry.Len(); got != 0 {
		t.Fatalf("registry len = %d, want 0", got)
	}
}

func TestUnregisteredSendIsSilent(t *testing.T) {
	c := newTestCoordinator(t, false)
	observer := c.registerAs(t, "Ana", "host")
	drain(observer)

	stranger := c.dial()
	c.sendMessage(context.Background(), stranger, "", sendPayload{Text: "hi"})

	if got := c.messages.Len(); got != 0 {
		t.Fatalf("message log len = %d, want 0", got)
	}
	assertFrameTypes(t, drain(stranger))
	assertFrameTypes(t, drain(observer))
}

func TestJoinerCannotCreateSession(t *testing.T) {
	c := newTestCoordinator(t, false)
	ben := c.registerAs(t, "Ben", "joiner")
	drain(ben)

	c.createSession(context.Background(), ben, "", createSessionPayload{Subject: "Math"})
	if got := c.directory.Len(); got != 0 {
		t.Fatalf("directory len = %d, want 0", got)
	}
	assertFrameTypes(t, drain(ben))
}

func TestStrictAcksAnswerPrivately(t *testing.T) {
	c := newTestCoordinator(t, true)
	ana := c.registerAs(t, "Ana", "host")
	ben := c.registerAs(t, "Ben", "joiner")
	drain(ana)
	drain(ben)
	ctx := context.Background()

	c.createSession(ctx, ben, "r1", createSessionPayload{Subject: "Math"})
	frames := drain(ben)
	assertFrameTypes(t, frames, frameError)
	assertErrorCode(t, frames[0], codeForbidden)

	c.joinSession(ctx, ben, "r2", joinSessionPayload{SessionID: "missing"})
	frames = drain(ben)
	assertFrameTypes(t, frames, frameError)
	assertErrorCode(t, frames[0], codeNotFound)

	stranger := c.dial()
	drain(stranger)
	c.sendMessage(ctx, stranger, "r3", sendPayload{Text: "hi"})
	frames = drain(stranger)
	assertFrameTypes(t, frames, frameError)
	assertErrorCode(t, frames[0], codeFailedPrecondition)

	assertFrameTypes(t, drain(ana))
}

func TestHostJoinerSessionFlow(t *testing.T) {
	c := newTestCoordinator(t, false)
	ctx := context.Background()
	ana := c.registerAs(t, "Ana", "host")
	ben := c.registerAs(t, "Ben", "joiner")
	drain(ana)
	drain(ben)

	c.createSession(ctx, ana, "", createSessionPayload{Subject: "Math", Description: "Algebra help"})
	frames := drain(ana)
	assertFrameTypes(t, frames, frameSessionCreated)
	var session coordinatorapi.Session
	if err := json.Unmarshal(frames[0].Payload, &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if session.Subject != "Math" || session.Description != "Algebra help" || session.Host.Name != "Ana" {
		t.Fatalf("session = %+v", session)
	}
	drain(ben)

	c.joinSession(ctx, ben, "", joinSessionPayload{SessionID: session.ID})
	benFrames := drain(ben)
	assertFrameTypes(t, benFrames, frameSessionMemberJoined, frameSessionMemberJoined)
	if benFrames[0].Channel != channelGlobal || benFrames[1].Channel != sessionChannel(session.ID) {
		t.Fatalf("channels = %q, %q", benFrames[0].Channel, benFrames[1].Channel)
	}
	assertFrameTypes(t, drain(ana), frameSessionMemberJoined)

	c.joinSession(ctx, ben, "", joinSessionPayload{SessionID: session.ID})
	assertFrameTypes(t, drain(ben))
	assertFrameTypes(t, drain(ana))

	stored, _ := c.directory.Get(session.ID)
	if len(stored.Members) != 1 || stored.Members[0].Name != "Ben" {
		t.Fatalf("members = %+v, want [Ben]", stored.Members)
	}
	if got := c.hub.subscriberCount(session.ID); got != 1 {
		t.Fatalf("session subscribers = %d, want 1", got)
	}
}

func TestDisconnectEmitsLeftOnce(t *testing.T) {
	c := newTestCoordinator(t, false)
	ctx := context.Background()
	ana := c.registerAs(t, "Ana", "host")
	ben := c.registerAs(t, "Ben", "joiner")
	drain(ana)

	c.disconnect(ctx, ben)
	c.disconnect(ctx, ben)

	frames := drain(ana)
	assertFrameTypes(t, frames, frameParticipantLeft)
	var left coordinatorapi.Participant
	if err := json.Unmarshal(frames[0].Payload, &left); err != nil {
		t.Fatalf("decode participant: %v", err)
	}
	if left.ID != ben.participantID || left.Online || left.Name != "Ben" || left.Role != coordinatorapi.RoleJoiner {
		t.Fatalf("left = %+v", left)
	}
	if got := c.hub.liveCount(); got != 1 {
		t.Fatalf("live connections = %d, want 1", got)
	}

	stored, ok := c.registry.Lookup(ben.participantID)
	if !ok || stored.Online() || stored.Name != "Ben" {
		t.Fatalf("stored = %+v, %v", stored, ok)
	}
}

func TestDisconnectOfUnregisteredConnectionIsQuiet(t *testing.T) {
	c := newTestCoordinator(t, false)
	ana := c.registerAs(t, "Ana", "host")
	drain(ana)

	stranger := c.dial()
	c.disconnect(context.Background(), stranger)
	assertFrameTypes(t, drain(ana))
}

func TestBroadcastSequenceIsSharedAcrossConnections(t *testing.T) {
	c := newTestCoordinator(t, false)
	ctx := context.Background()
	ana := c.registerAs(t, "Ana", "host")
	ben := c.registerAs(t, "Ben", "joiner")
	drain(ana)
	drain(ben)

	for i := 0; i < 5; i++ {
		c.sendMessage(ctx, ana, "", sendPayload{Text: "a"})
		c.sendMessage(ctx, ben, "", sendPayload{Text: "b"})
	}

	anaFrames := drain(ana)
	benFrames := drain(ben)
	if len(anaFrames) != 10 || len(benFrames) != 10 {
		t.Fatalf("frames = %d/%d, want 10/10", len(anaFrames), len(benFrames))
	}
	for i := range anaFrames {
		if anaFrames[i].Seq != benFrames[i].Seq {
			t.Fatalf("seq[%d] = %d vs %d", i, anaFrames[i].Seq, benFrames[i].Seq)
		}
		if i > 0 && anaFrames[i].Seq <= anaFrames[i-1].Seq {
			t.Fatalf("seq not increasing at %d: %d <= %d", i, anaFrames[i].Seq, anaFrames[i-1].Seq)
		}
	}
}

func TestRejectionMapping(t *testing.T) {
	tests := []struct {
		err    error
		code   string
		always bool
	}{
		{err: domain.ErrInvalidRole, code: codeInvalidArgument, always: true},
		{err: errUnregistered, code: codeFailedPrecondition},
		{err: domain.ErrAlreadyRegistered, code: codeFailedPrecondition},
		{err: domain.ErrParticipantNotFound, code: codeNotFound},
		{err: domain.ErrSessionNotFound, code: codeNotFound},
		{err: domain.ErrNotHost, code: codeForbidden},
		{err: domain.ErrNotJoiner, code: codeForbidden},
		{err: domain.ErrDuplicateID, code: codeInternal, always: true},
		{err: errors.New("boom"), code: codeInternal, always: true},
	}
	for _, tc := range tests {
		t.Run(tc.err.Error(), func(t *testing.T) {
			code, _, always := rejection(tc.err)
			if code != tc.code || always != tc.always {
				t.Fatalf("rejection = %s/%v, want %s/%v", code, always, tc.code, tc.always)
			}
		})
	}
}

func assertErrorCode(t *testing.T, frame wsFrame, want string) {
	t.Helper()
	var envelope wsErrorEnvelope
	if err := json.Unmarshal(frame.Payload, &envelope); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if envelope.Error.Code != want {
		t.Fatalf("error code = %q, want %q", envelope.Error.Code, want)
	}
}
