// Package coordinator parses coordinator command flags and composes transport
// entrypoints.
package coordinator

import (
	"context"
	"flag"
	"fmt"
	"strings"

	entrypoint "github.com/louisbranch/tutoring.space/internal/platform/cmd"
	server "github.com/louisbranch/tutoring.space/internal/services/coordinator/app"
)

// Collaborator names reported by the services status endpoint.
const (
	notificationsServiceName = "notification-service"
	analyticsServiceName     = "analytics-service"
)

// Config holds coordinator command configuration.
type Config struct {
	HTTPAddr            string `env:"COORDINATOR_HTTP_ADDR"            envDefault:":3000"`
	GRPCAddr            string `env:"COORDINATOR_GRPC_ADDR"`
	NotificationsHealth string `env:"NOTIFICATIONS_HEALTH_URL"         envDefault:"http://localhost:3001/health"`
	AnalyticsHealth     string `env:"ANALYTICS_HEALTH_URL"             envDefault:"http://localhost:3002/health"`
	StrictAcks          bool   `env:"COORDINATOR_STRICT_ACKS"          envDefault:"false"`
	MessageLogCapacity  int    `env:"COORDINATOR_MESSAGE_LOG_CAPACITY" envDefault:"100"`
	OutboxSize          int    `env:"COORDINATOR_OUTBOX_SIZE"          envDefault:"64"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "coordinator HTTP listen address")
	fs.StringVar(&cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "gRPC health listen address (empty disables)")
	fs.StringVar(&cfg.NotificationsHealth, "notifications-health-url", cfg.NotificationsHealth, "notifications service health URL")
	fs.StringVar(&cfg.AnalyticsHealth, "analytics-health-url", cfg.AnalyticsHealth, "analytics service health URL")
	fs.BoolVar(&cfg.StrictAcks, "strict-acks", cfg.StrictAcks, "reply with error frames for rejected actions")
	fs.IntVar(&cfg.MessageLogCapacity, "message-log-capacity", cfg.MessageLogCapacity, "number of chat messages retained")
	fs.IntVar(&cfg.OutboxSize, "outbox-size", cfg.OutboxSize, "per-connection outbound frame buffer")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// collaborators lists the configured health endpoints, skipping empty URLs.
func (cfg Config) collaborators() []server.Collaborator {
	var out []server.Collaborator
	if url := strings.TrimSpace(cfg.NotificationsHealth); url != "" {
		out = append(out, server.Collaborator{Name: notificationsServiceName, HealthURL: url})
	}
	if url := strings.TrimSpace(cfg.AnalyticsHealth); url != "" {
		out = append(out, server.Collaborator{Name: analyticsServiceName, HealthURL: url})
	}
	return out
}

// Run builds the coordinator and serves until ctx ends.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceCoordinator, func(ctx context.Context) error {
		if err := server.Run(ctx, server.Config{
			HTTPAddr:           cfg.HTTPAddr,
			GRPCAddr:           cfg.GRPCAddr,
			Collaborators:      cfg.collaborators(),
			StrictAcks:         cfg.StrictAcks,
			MessageLogCapacity: cfg.MessageLogCapacity,
			OutboxSize:         cfg.OutboxSize,
		}); err != nil {
			return fmt.Errorf("serve coordinator: %w", err)
		}
		return nil
	})
}
