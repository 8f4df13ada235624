package coordinatorclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/louisbranch/tutoring.space/internal/services/shared/coordinatorapi"
)

func TestNewRequiresURL(t *testing.T) {
	if _, err := New("  ", "analytics", nil); err == nil {
		t.Fatal("expected error for empty url")
	}
}

func TestClientListsState(t *testing.T) {
	var gotService string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotService = r.Header.Get(ServiceHeader)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case coordinatorapi.PathUsers:
			_ = json.NewEncoder(w).Encode([]coordinatorapi.Participant{{ID: "p1", Name: "Ana", Role: "host", Online: true}})
		case coordinatorapi.PathSessions:
			_ = json.NewEncoder(w).Encode([]coordinatorapi.Session{{ID: "s1", Subject: "Math"}})
		case coordinatorapi.PathMessages:
			_ = json.NewEncoder(w).Encode([]coordinatorapi.Message{{ID: "m1", Text: "hi"}})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	client, err := New(srv.URL+"/", "analytics-service", nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	ctx := context.Background()

	participants, err := client.Participants(ctx)
	if err != nil {
		t.Fatalf("participants: %v", err)
	}
	if len(participants) != 1 || participants[0].Name != "Ana" || !participants[0].Online {
		t.Fatalf("participants = %+v", participants)
	}
	if gotService != "analytics-service" {
		t.Fatalf("service header = %q, want analytics-service", gotService)
	}

	sessions, err := client.Sessions(ctx)
	if err != nil || len(sessions) != 1 || sessions[0].Subject != "Math" {
		t.Fatalf("sessions = %+v, %v", sessions, err)
	}
	messages, err := client.Messages(ctx)
	if err != nil || len(messages) != 1 || messages[0].Text != "hi" {
		t.Fatalf("messages = %+v, %v", messages, err)
	}
}

func TestClientPostsSummaries(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(coordinatorapi.Ack{Success: true})
	}))
	t.Cleanup(srv.Close)

	client, _ := New(srv.URL, "notification-service", nil)
	if err := client.PostNotificationStats(context.Background(), map[string]any{"unread_count": 2}); err != nil {
		t.Fatalf("post stats: %v", err)
	}
	if gotPath != coordinatorapi.PathNotificationStats {
		t.Fatalf("path = %q, want %q", gotPath, coordinatorapi.PathNotificationStats)
	}
	if gotBody["unread_count"] != float64(2) {
		t.Fatalf("body = %+v", gotBody)
	}

	if err := client.PostAnalyticsData(context.Background(), map[string]any{}); err != nil {
		t.Fatalf("post analytics: %v", err)
	}
	if gotPath != coordinatorapi.PathAnalyticsData {
		t.Fatalf("path = %q, want %q", gotPath, coordinatorapi.PathAnalyticsData)
	}
}

func TestClientReportsStatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	client, _ := New(srv.URL, "", nil)
	_, err := client.Participants(context.Background())
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("participants error = %v, want status 502", err)
	}
}
