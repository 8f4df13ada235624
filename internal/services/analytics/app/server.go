// Package server hosts the analytics collaborator: scheduled collection from
// the coordinator and the HTTP surface over its results.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/louisbranch/tutoring.space/internal/platform/schedule"
	"github.com/louisbranch/tutoring.space/internal/platform/timeouts"
	"github.com/louisbranch/tutoring.space/internal/services/analytics/domain"
	"github.com/louisbranch/tutoring.space/internal/services/analytics/storage/sqlite"
	"github.com/louisbranch/tutoring.space/internal/services/shared/coordinatorclient"
	"golang.org/x/sync/errgroup"
)

const insightRecommendations = 3

// Config defines the inputs for the analytics process.
type Config struct {
	HTTPAddr          string
	CoordinatorURL    string
	DBPath            string
	CollectSchedule   string
	PushSchedule      string
	WeeklySchedule    string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

type overview struct {
	RealtimeMetrics domain.RealtimeMetrics `json:"realtime_metrics"`
	UserActivity    []domain.ActivityPoint `json:"user_activity"`
	DailyReports    []DailyReport          `json:"daily_reports"`
}

type insightsView struct {
	Insights        []string `json:"insights"`
	Recommendations []string `json:"recommendations"`
}

type healthView struct {
	Service       string    `json:"service"`
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	UptimeSeconds float64   `json:"uptime_seconds"`
	DataPoints    int       `json:"data_points"`
	LastAnalysis  time.Time `json:"last_analysis"`
}

func newHandler(a *analytics, startedAt time.Time) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		now := a.clock().UTC()
		writeJSON(w, http.StatusOK, healthView{
			Service:       ServiceName,
			Status:        "healthy",
			Timestamp:     now,
			UptimeSeconds: now.Sub(startedAt).Seconds(),
			DataPoints:    a.activity.Len(),
			LastAnalysis:  a.realtimeMetrics().LastUpdate,
		})
	})
	mux.HandleFunc("GET /api/analytics", func(w http.ResponseWriter, r *http.Request) {
		reports, err := a.dailyReports(r.Context())
		if err != nil {
			writeFailure(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, envelope{Success: true, Data: overview{
			RealtimeMetrics: a.realtimeMetrics(),
			UserActivity:    a.activity.Points(),
			DailyReports:    reports,
		}})
	})
	mux.HandleFunc("GET /api/analytics/realtime", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, envelope{Success: true, Data: a.realtimeMetrics()})
	})
	mux.HandleFunc("GET /api/analytics/daily", func(w http.ResponseWriter, r *http.Request) {
		reports, err := a.dailyReports(r.Context())
		if err != nil {
			writeFailure(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, envelope{Success: true, Data: reports})
	})
	mux.HandleFunc("GET /api/analytics/insights", func(w http.ResponseWriter, r *http.Request) {
		insights, err := a.latestInsights(r.Context())
		if err != nil {
			writeFailure(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, envelope{Success: true, Data: insightsView{
			Insights:        insights,
			Recommendations: domain.Recommendations(insightRecommendations),
		}})
	})
	mux.HandleFunc("POST /api/analytics/refresh", func(w http.ResponseWriter, r *http.Request) {
		log.Printf("analytics: refresh requested")
		stats, err := a.collect(r.Context())
		if err != nil {
			log.Printf("analytics: refresh failed: %v", err)
			writeJSON(w, http.StatusInternalServerError, envelope{Success: false, Error: "could not fetch coordinator state"})
			return
		}
		writeJSON(w, http.StatusOK, envelope{Success: true, Data: stats})
	})
	return mux
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("analytics: encode response: %v", err)
	}
}

func writeFailure(w http.ResponseWriter, status int, err error) {
	log.Printf("analytics: request failed: %v", err)
	writeJSON(w, status, envelope{Success: false, Error: http.StatusText(status)})
}

// Server hosts the analytics HTTP surface and its scheduled jobs.
type Server struct {
	listener        net.Listener
	httpServer      *http.Server
	scheduler       *schedule.Scheduler
	store           *sqlite.Store
	shutdownTimeout time.Duration
}

// NewServer opens storage, wires the coordinator client, and validates job
// schedules.
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
		return nil, fmt.Errorf("open analytics store: %w", err)
	}

	a := newAnalytics(client, client, store, time.Now)
	scheduler, err := schedule.New(
		schedule.Job{Name: "collect", Expr: config.CollectSchedule, Run: a.collectJob},
		schedule.Job{Name: "push", Expr: config.PushSchedule, Run: a.pushJob},
		schedule.Job{Name: "weekly", Expr: config.WeeklySchedule, Run: a.weeklyJob},
	)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("configure analytics jobs: %w", err)
	}

	listener, err := (&net.ListenConfig{}).Listen(ctx, "tcp", httpAddr)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("listen on %s: %w", httpAddr, err)
	}

	return &Server{
		listener: listener,
		httpServer: &http.Server{
			Handler:           newHandler(a, time.Now()),
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

// Run creates and serves an analytics server until the context ends.
func Run(ctx context.Context, config Config) error {
	server, err := NewServer(ctx, config)
	if err != nil {
		return fmt.Errorf("init analytics server: %w", err)
	}
	defer server.Close()

	if err := server.Serve(ctx); err != nil {
		return fmt.Errorf("serve analytics: %w", err)
	}
	return nil
}

// Serve runs the HTTP server and the job scheduler until the context ends.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("analytics server is nil")
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
		log.Printf("analytics: listening addr=%s", s.Addr())
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
			log.Printf("analytics: close store: %v", err)
		}
	}
}
