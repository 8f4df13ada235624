package server

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/louisbranch/tutoring.space/internal/services/shared/coordinatorapi"
	"github.com/louisbranch/tutoring.space/internal/services/shared/coordinatorclient"
)

const maxSummaryBodyBytes = 1 << 20

// apiHandlers serve the read-only state surface and the collaborator summary
// sinks.
type apiHandlers struct {
	coordinator *coordinator
	prober      *statusProber
}

func (h apiHandlers) register(mux *http.ServeMux) {
	mux.HandleFunc("GET "+coordinatorapi.PathUsers, h.handleUsers)
	mux.HandleFunc("GET "+coordinatorapi.PathMessages, h.handleMessages)
	mux.HandleFunc("GET "+coordinatorapi.PathSessions, h.handleSessions)
	mux.HandleFunc("POST "+coordinatorapi.PathNotificationStats, h.summarySink("notification stats", "notification stats received"))
	mux.HandleFunc("POST "+coordinatorapi.PathAnalyticsData, h.summarySink("analytics data", "analytics data received"))
	mux.HandleFunc("GET "+coordinatorapi.PathServicesStatus, h.handleServicesStatus)
}

func (h apiHandlers) handleUsers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, participantViews(h.coordinator.registry.List()))
}

func (h apiHandlers) handleMessages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, messageViews(h.coordinator.messages.Recent()))
}

func (h apiHandlers) handleSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, sessionViews(h.coordinator.directory.List()))
}

func (h apiHandlers) summarySink(label string, reply string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxSummaryBodyBytes))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, coordinatorapi.Ack{Success: false, Message: "read body failed"})
			return
		}
		if !json.Valid(body) {
			writeJSON(w, http.StatusBadRequest, coordinatorapi.Ack{Success: false, Message: "invalid json body"})
			return
		}
		log.Printf("coordinator: received %s from service=%q body=%s", label, r.Header.Get(coordinatorclient.ServiceHeader), body)
		writeJSON(w, http.StatusOK, coordinatorapi.Ack{Success: true, Message: reply})
	}
}

func (h apiHandlers) handleServicesStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, coordinatorapi.StatusReport{
		Success:  true,
		Services: h.prober.probe(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("coordinator: encode response: %v", err)
	}
}
