// Package server hosts the coordinator: the WebSocket protocol, the event
// broadcaster, and the read-only HTTP surface over the shared state.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/louisbranch/tutoring.space/internal/platform/timeouts"
	"github.com/louisbranch/tutoring.space/internal/services/coordinator/domain"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
)

const instrumentationName = "github.com/louisbranch/tutoring.space/internal/services/coordinator/app"

// Config defines the inputs for the coordinator process.
type Config struct {
	HTTPAddr           string
	GRPCAddr           string
	Collaborators      []Collaborator
	StrictAcks         bool
	MessageLogCapacity int
	OutboxSize         int
	ReadHeaderTimeout  time.Duration
	ShutdownTimeout    time.Duration
	WriteTimeout       time.Duration
	HTTPClient         *http.Client
}

func (c Config) withDefaults() Config {
	if c.ReadHeaderTimeout <= 0 {
		c.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = timeouts.Shutdown
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = timeouts.WebSocketWrite
	}
	if c.MessageLogCapacity <= 0 {
		c.MessageLogCapacity = domain.DefaultLogCapacity
	}
	if c.OutboxSize <= 0 {
		c.OutboxSize = defaultOutboxSize
	}
	return c
}

// runtime is one coordinator instance: its stores, broadcaster and routes.
type runtime struct {
	coordinator *coordinator
	transport   *transport
	prober      *statusProber
	handler     http.Handler
}

func newRuntime(config Config) *runtime {
	config = config.withDefaults()

	registry := domain.NewRegistry()
	directory := domain.NewDirectory(registry)
	messages := domain.NewMessageLog(registry, config.MessageLogCapacity)
	hub := newBroadcaster(otel.Meter(instrumentationName))
	coord := newCoordinator(registry, directory, messages, hub, config.StrictAcks)

	rt := &runtime{
		coordinator: coord,
		transport: &transport{
			coordinator:  coord,
			tracer:       otel.Tracer(instrumentationName),
			outboxSize:   config.OutboxSize,
			writeTimeout: config.WriteTimeout,
		},
		prober: newStatusProber(config.Collaborators, config.HTTPClient),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	apiHandlers{coordinator: coord, prober: rt.prober}.register(mux)

	wsHandler := rt.transport.handler()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		wsHandler.ServeHTTP(w, r)
	})
	rt.handler = mux
	return rt
}

// NewHandler builds the coordinator routes over a fresh in-memory state.
func NewHandler(config Config) http.Handler {
	return newRuntime(config).handler
}

// Server hosts the coordinator HTTP/WebSocket surface and optional gRPC health.
type Server struct {
	listener        net.Listener
	httpServer      *http.Server
	health          *healthServer
	shutdownTimeout time.Duration
}

// NewServer builds a configured coordinator server.
func NewServer(config Config) (*Server, error) {
	return NewServerWithContext(context.Background(), config)
}

// NewServerWithContext builds a configured coordinator server with an
// explicit context.
func NewServerWithContext(ctx context.Context, config Config) (*Server, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	config = config.withDefaults()

	listener, err := (&net.ListenConfig{}).Listen(ctx, "tcp", httpAddr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", httpAddr, err)
	}

	var health *healthServer
	if grpcAddr := strings.TrimSpace(config.GRPCAddr); grpcAddr != "" {
		health, err = newHealthServer(grpcAddr)
		if err != nil {
			_ = listener.Close()
			return nil, err
		}
	}

	return &Server{
		listener: listener,
		httpServer: &http.Server{
			Handler:           newRuntime(config).handler,
			ReadHeaderTimeout: config.ReadHeaderTimeout,
		},
		health:          health,
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

// HealthAddr returns the gRPC health listener address, or empty when disabled.
func (s *Server) HealthAddr() string {
	if s == nil || s.health == nil {
		return ""
	}
	return s.health.addr()
}

// Run creates and serves a coordinator until the context ends.
func Run(ctx context.Context, config Config) error {
	server, err := NewServerWithContext(ctx, config)
	if err != nil {
		return fmt.Errorf("init coordinator server: %w", err)
	}
	defer server.Close()

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve coordinator: %w", err)
	}
	return nil
}

// ListenAndServe serves until the context ends or a listener fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("coordinator server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return s.serveHTTP(groupCtx)
	})
	if s.health != nil {
		group.Go(func() error {
			return s.health.serve(groupCtx)
		})
	}
	return group.Wait()
}

func (s *Server) serveHTTP(ctx context.Context) error {
	serveErr := make(chan error, 1)
	log.Printf("coordinator: listening addr=%s", s.Addr())
	go func() {
		serveErr <- s.httpServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		log.Printf("coordinator: shut down")
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
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
	if s.health != nil {
		s.health.close()
	}
}
