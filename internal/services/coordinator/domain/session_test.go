package domain

import (
	"errors"
	"sync"
	"testing"
)

func registerPair(t *testing.T, registry *Registry) (Participant, Participant) {
	t.Helper()
	host, err := registry.Register("Ana", RoleHost, 1)
	if err != nil {
		t.Fatalf("register host: %v", err)
	}
	joiner, err := registry.Register("Ben", RoleJoiner, 2)
	if err != nil {
		t.Fatalf("register joiner: %v", err)
	}
	return host, joiner
}

func TestDirectoryHostJoinerScenario(t *testing.T) {
	registry := NewRegistry()
	directory := NewDirectory(registry)
	host, joiner := registerPair(t, registry)

	session, err := directory.Create(host.ID, "Math", "Algebra help")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if session.Host.ID != host.ID || session.Subject != "Math" || session.Description != "Algebra help" {
		t.Fatalf("session = %+v", session)
	}
	if len(session.Members) != 0 {
		t.Fatalf("new session members = %d, want 0", len(session.Members))
	}

	joined, ok, err := directory.Join(session.ID, joiner.ID)
	if err != nil || !ok {
		t.Fatalf("join = %v, %v; want joined", ok, err)
	}
	if len(joined.Members) != 1 || joined.Members[0].ID != joiner.ID || joined.Members[0].Name != "Ben" {
		t.Fatalf("members = %+v, want [Ben]", joined.Members)
	}

	again, ok, err := directory.Join(session.ID, joiner.ID)
	if err != nil {
		t.Fatalf("repeat join: %v", err)
	}
	if ok {
		t.Fatal("repeat join reported a new membership")
	}
	if len(again.Members) != 1 {
		t.Fatalf("members after repeat join = %d, want 1", len(again.Members))
	}
	stored, _ := directory.Get(session.ID)
	if len(stored.Members) != 1 {
		t.Fatalf("stored members = %d, want 1", len(stored.Members))
	}
}

func TestDirectoryJoinerCannotCreate(t *testing.T) {
	registry := NewRegistry()
	directory := NewDirectory(registry)
	_, joiner := registerPair(t, registry)

	if _, err := directory.Create(joiner.ID, "Math", ""); !errors.Is(err, ErrNotHost) {
		t.Fatalf("create error = %v, want ErrNotHost", err)
	}
	if _, err := directory.Create("missing", "Math", ""); !errors.Is(err, ErrParticipantNotFound) {
		t.Fatalf("create error = %v, want ErrParticipantNotFound", err)
	}
	if got := directory.Len(); got != 0 {
		t.Fatalf("directory len = %d, want 0", got)
	}
}

func TestDirectoryJoinPreconditions(t *testing.T) {
	registry := NewRegistry()
	directory := NewDirectory(registry)
	host, joiner := registerPair(t, registry)
	session, err := directory.Create(host.ID, "Math", "")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	tests := []struct {
		name          string
		sessionID     string
		participantID string
		want          error
	}{
		{name: "host joining", sessionID: session.ID, participantID: host.ID, want: ErrNotJoiner},
		{name: "unknown session", sessionID: "missing", participantID: joiner.ID, want: ErrSessionNotFound},
		{name: "unknown participant", sessionID: session.ID, participantID: "missing", want: ErrParticipantNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := directory.Join(tc.sessionID, tc.participantID); !errors.Is(err, tc.want) {
				t.Fatalf("join error = %v, want %v", err, tc.want)
			}
		})
	}
	stored, _ := directory.Get(session.ID)
	if len(stored.Members) != 0 {
		t.Fatalf("members = %d, want 0", len(stored.Members))
	}
}

func TestDirectoryConcurrentJoinKeepsOneMembership(t *testing.T) {
	registry := NewRegistry()
	directory := NewDirectory(registry)
	host, joiner := registerPair(t, registry)
	session, err := directory.Create(host.ID, "Math", "")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	newMemberships := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, joined, err := directory.Join(session.ID, joiner.ID)
			if err != nil {
				t.Errorf("join: %v", err)
				return
			}
			if joined {
				mu.Lock()
				newMemberships++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if newMemberships != 1 {
		t.Fatalf("new memberships = %d, want 1", newMemberships)
	}
	stored, _ := directory.Get(session.ID)
	if len(stored.Members) != 1 {
		t.Fatalf("members = %d, want 1", len(stored.Members))
	}
}

func TestDirectoryReturnsCopies(t *testing.T) {
	registry := NewRegistry()
	directory := NewDirectory(registry)
	host, joiner := registerPair(t, registry)
	session, _ := directory.Create(host.ID, "Math", "")
	joined, _, _ := directory.Join(session.ID, joiner.ID)

	joined.Members[0].Name = "mutated"
	stored, _ := directory.Get(session.ID)
	if stored.Members[0].Name != "Ben" {
		t.Fatalf("stored member name = %q, want Ben", stored.Members[0].Name)
	}
	if list := directory.List(); len(list) != 1 || list[0].ID != session.ID {
		t.Fatalf("list = %+v", list)
	}
}
