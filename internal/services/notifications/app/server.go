// Package server hosts the notifications collaborator: a bounded inbox over
// HTTP plus reminder and stats jobs.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/tutoring.space/internal/platform/schedule"
	"github.com/louisbranch/tutoring.space/internal/platform/timeouts"
	"github.com/louisbranch/tutoring.space/internal/services/notifications/domain"
	"github.com/louisbranch/tutoring.space/internal/services/notifications/storage/sqlite"
	"github.com/louisbranch/tutoring.space/internal/services/shared/coordinatorclient"
	"golang.org/x/sync/errgroup"
)

// ServiceName identifies the notifications collaborator to the coordinator.
const ServiceName = "notification-service"

// maxRequestBytes bounds POST bodies.
const maxRequestBytes = 64 << 10

// Config defines the inputs for the notifications process.
type Config struct {
	HTTPAddr          string
	CoordinatorURL    string
	DBPath            string
	ReminderSchedule  string
	StatsSchedule     string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Sink receives notification summaries.
type Sink interface {
	PostNotificationStats(ctx context.Context, payload any) error
}

type notificationView struct {
	ID        int64           `json:"id"`
	Type      string          `json:"type"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	UserID    string          `json:"user_id,omitempty"`
	Metadata  json.RawMessage `json:"metadata"`
	Timestamp time.Time       `json:"timestamp"`
	Read      bool            `json:"read"`
}

type statsView struct {
	Total  int            `json:"total"`
	Unread int            `json:"unread"`
	Read   int            `json:"read"`
	ByType map[string]int `json:"by_type"`
}

type statsPush struct {
	Service            string            `json:"service"`
	Timestamp          time.Time         `json:"timestamp"`
	NotificationsCount int               `json:"notifications_count"`
	UnreadCount        int               `json:"unread_count"`
	LastNotification   *notificationView `json:"last_notification"`
}

type createRequest struct {
	Type     string          `json:"type"`
	Title    string          `json:"title"`
	Message  string          `json:"message"`
	UserID   string          `json:"user_id"`
	Metadata json.RawMessage `json:"metadata"`
}

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Count   *int   `json:"count,omitempty"`
	Error   string `json:"error,omitempty"`
}

type healthView struct {
	Service       string    `json:"service"`
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	UptimeSeconds float64   `json:"uptime_seconds"`
}

func toView(n domain.Notification) notificationView {
	metadata := json.RawMessage(n.MetadataJSON)
	if len(metadata) == 0 {
		metadata = json.RawMessage("{}")
	}
	return notificationView{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		UserID:    n.UserID,
		Metadata:  metadata,
		Timestamp: n.CreatedAt,
		Read:      n.Read(),
	}
}

// notifier binds the inbox service to its HTTP routes and jobs.
type notifier struct {
	service *domain.Service
	sink    Sink
	clock   func() time.Time
}

func newNotifier(service *domain.Service, sink Sink, clock func() time.Time) *notifier {
	if clock == nil {
		clock = time.Now
	}
	return &notifier{service: service, sink: sink, clock: clock}
}

func (n *notifier) handler(startedAt time.Time) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		now := n.clock().UTC()
		writeJSON(w, http.StatusOK, healthView{
			Service:       ServiceName,
			Status:        "healthy",
			Timestamp:     now,
			UptimeSeconds: now.Sub(startedAt).Seconds(),
		})
	})
	mux.HandleFunc("GET /api/notifications", n.handleList)
	mux.HandleFunc("POST /api/notifications", n.handleCreate)
	mux.HandleFunc("PUT /api/notifications/{id}/read", n.handleMarkRead)
	mux.HandleFunc("GET /api/notifications/stats", n.handleStats)
	return mux
}

func (n *notifier) handleList(w http.ResponseWriter, r *http.Request) {
	notifications, err := n.service.List(r.Context())
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, err)
		return
	}
	views := make([]notificationView, 0, len(notifications))
	for _, notification := range notifications {
		views = append(views, toView(notification))
	}
	count := len(views)
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: views, Count: &count})
}

func (n *notifier) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "invalid JSON body"})
		return
	}
	created, err := n.service.Create(r.Context(), domain.CreateInput{
		Type:         req.Type,
		Title:        req.Title,
		Message:      req.Message,
		UserID:       req.UserID,
		MetadataJSON: string(req.Metadata),
	})
	switch {
	case errors.Is(err, domain.ErrTypeRequired),
		errors.Is(err, domain.ErrTitleRequired),
		errors.Is(err, domain.ErrMessageRequired):
		writeJSON(w, http.StatusBadRequest, envelope{Success: false, Error: "type, title and message are required"})
		return
	case errors.Is(err, domain.ErrInvalidMetadata):
		writeJSON(w, http.StatusBadRequest, envelope{Success: false, Error: err.Error()})
		return
	case err != nil:
		writeFailure(w, http.StatusInternalServerError, err)
		return
	}
	log.Printf("notifications: created id=%d type=%q title=%q", created.ID, created.Type, created.Title)
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: toView(created)})
}

func (n *notifier) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusNotFound, envelope{Success: false, Error: "notification not found"})
		return
	}
	notification, err := n.service.MarkRead(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, envelope{Success: false, Error: "notification not found"})
		return
	}
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: toView(notification)})
}

func (n *notifier) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := n.service.Stats(r.Context())
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: statsView{
		Total:  stats.Total,
		Unread: stats.Unread,
		Read:   stats.Read,
		ByType: stats.ByType,
	}})
}

func (n *notifier) pushStats(ctx context.Context) error {
	if n.sink == nil {
		return errors.New("notifications sink is not configured")
	}
	summary, err := n.service.Summary(ctx)
	if err != nil {
		return fmt.Errorf("summarize notifications: %w", err)
	}
	payload := statsPush{
		Service:            ServiceName,
		Timestamp:          n.clock().UTC(),
		NotificationsCount: summary.Count,
		UnreadCount:        summary.Unread,
	}
	if summary.Last != nil {
		last := toView(*summary.Last)
		payload.LastNotification = &last
	}
	return n.sink.PostNotificationStats(ctx, payload)
}

func (n *notifier) reminderJob(ctx context.Context) {
	reminder, err := n.service.Remind(ctx)
	if err != nil {
		log.Printf("notifications: reminder failed: %v", err)
		return
	}
	log.Printf("notifications: reminder created id=%d", reminder.ID)
}

func (n *notifier) statsJob(ctx context.Context) {
	if err := n.pushStats(ctx); err != nil {
		log.Printf("notifications: push stats failed: %v", err)
		return
	}
	log.Printf("notifications: stats pushed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("notifications: encode response: %v", err)
	}
}

func writeFailure(w http.ResponseWriter, status int, err error) {
	log.Printf("notifications: request failed: %v", err)
	writeJSON(w, status, envelope{Success: false, Error: http.StatusText(status)})
}

// Server hosts the notifications HTTP surface and its scheduled jobs.
type Server struct {
	listener        net.Listener
	httpServer      *http.Server
	scheduler       *schedule.Scheduler
	store           *sqlite.Store
	shutdownTimeout time.Duration
}

// NewServer opens storage, records the startup notification, and validates
// job schedules.
func NewServer(ctx context.Context, config Config) (*Server, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = timeouts.Shutdown
	}

	client, err := coordinatorclient.New(config.CoordinatorURL, ServiceName, nil)
	if err != nil {
		return nil, err
	}
	store, err := sqlite.Open(ctx, config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open notifications store: %w", err)
	}

	n := newNotifier(domain.NewService(newDomainStoreAdapter(store), nil), client, nil)
	scheduler, err := schedule.New(
		schedule.Job{Name: "reminder", Expr: config.ReminderSchedule, Run: n.reminderJob},
		schedule.Job{Name: "stats", Expr: config.StatsSchedule, Run: n.statsJob},
	)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("configure notifications jobs: %w", err)
	}

	listener, err := (&net.ListenConfig{}).Listen(ctx, "tcp", httpAddr)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("listen on %s: %w", httpAddr, err)
	}
	if _, err := n.service.AnnounceStartup(ctx, ServiceName, listener.Addr().String()); err != nil {
		_ = listener.Close()
		_ = store.Close()
		return nil, fmt.Errorf("record startup notification: %w", err)
	}

	return &Server{
		listener: listener,
		httpServer: &http.Server{
			Handler:           n.handler(time.Now()),
			ReadHeaderTimeout: config.ReadHeaderTimeout,
		},
		scheduler:       scheduler,
		store:           store,
		shutdownTimeout: config.ShutdownTimeout,
	}, nil
}

// Addr returns the HTTP listener address.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves a notifications server until the context ends.
func Run(ctx context.Context, config Config) error {
	server, err := NewServer(ctx, config)
	if err != nil {
		return fmt.Errorf("init notifications server: %w", err)
	}
	defer server.Close()

	if err := server.Serve(ctx); err != nil {
		return fmt.Errorf("serve notifications: %w", err)
	}
	return nil
}

// Serve runs the HTTP server and the job scheduler until the context ends.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("notifications server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		s.scheduler.Run(groupCtx)
		return nil
	})
	group.Go(func() error {
		serveErr := make(chan error, 1)
		log.Printf("notifications: listening addr=%s", s.Addr())
		go func() {
			serveErr <- s.httpServer.Serve(s.listener)
		}()
		select {
		case <-groupCtx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
			defer cancel()
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown http server: %w", err)
			}
			return nil
		case err := <-serveErr:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("serve http: %w", err)
		}
	})
	return group.Wait()
}

// Close releases server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("notifications: close store: %v", err)
		}
	}
}
