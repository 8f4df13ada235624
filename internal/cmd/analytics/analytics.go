// Package analytics parses analytics command flags and composes the service
// entrypoint.
package analytics

import (
	"context"
	"flag"
	"fmt"

	entrypoint "github.com/louisbranch/tutoring.space/internal/platform/cmd"
	server "github.com/louisbranch/tutoring.space/internal/services/analytics/app"
)

// Config holds analytics command configuration.
type Config struct {
	HTTPAddr        string `env:"ANALYTICS_HTTP_ADDR"        envDefault:":3002"`
	CoordinatorURL  string `env:"COORDINATOR_URL"            envDefault:"http://localhost:3000"`
	DBPath          string `env:"ANALYTICS_DB_PATH"          envDefault:"data/analytics.db"`
	CollectSchedule string `env:"ANALYTICS_COLLECT_SCHEDULE" envDefault:"* * * * *"`
	PushSchedule    string `env:"ANALYTICS_PUSH_SCHEDULE"    envDefault:"*/3 * * * *"`
	WeeklySchedule  string `env:"ANALYTICS_WEEKLY_SCHEDULE"  envDefault:"0 0 * * 0"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "analytics HTTP listen address")
	fs.StringVar(&cfg.CoordinatorURL, "coordinator-url", cfg.CoordinatorURL, "coordinator base URL")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "analytics SQLite path")
	fs.StringVar(&cfg.CollectSchedule, "collect-schedule", cfg.CollectSchedule, "cron expression for data collection")
	fs.StringVar(&cfg.PushSchedule, "push-schedule", cfg.PushSchedule, "cron expression for summary pushes")
	fs.StringVar(&cfg.WeeklySchedule, "weekly-schedule", cfg.WeeklySchedule, "cron expression for weekly reports")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run builds the analytics service and serves until ctx ends.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceAnalytics, func(ctx context.Context) error {
		if err := server.Run(ctx, server.Config{
			HTTPAddr:        cfg.HTTPAddr,
			CoordinatorURL:  cfg.CoordinatorURL,
			DBPath:          cfg.DBPath,
			CollectSchedule: cfg.CollectSchedule,
			PushSchedule:    cfg.PushSchedule,
			WeeklySchedule:  cfg.WeeklySchedule,
		}); err != nil {
			return fmt.Errorf("serve analytics: %w", err)
		}
		return nil
	})
}
