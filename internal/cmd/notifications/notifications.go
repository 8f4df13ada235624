// Package notifications parses notifications command flags and composes the
// service entrypoint.
package notifications

import (
	"context"
	"flag"
	"fmt"

	entrypoint "github.com/louisbranch/tutoring.space/internal/platform/cmd"
	server "github.com/louisbranch/tutoring.space/internal/services/notifications/app"
)

// Config holds notifications command configuration.
type Config struct {
	HTTPAddr         string `env:"NOTIFICATIONS_HTTP_ADDR"         envDefault:":3001"`
	CoordinatorURL   string `env:"COORDINATOR_URL"                 envDefault:"http://localhost:3000"`
	DBPath           string `env:"NOTIFICATIONS_DB_PATH"           envDefault:"data/notifications.db"`
	ReminderSchedule string `env:"NOTIFICATIONS_REMINDER_SCHEDULE" envDefault:"*/5 * * * *"`
	StatsSchedule    string `env:"NOTIFICATIONS_STATS_SCHEDULE"    envDefault:"*/2 * * * *"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "notifications HTTP listen address")
	fs.StringVar(&cfg.CoordinatorURL, "coordinator-url", cfg.CoordinatorURL, "coordinator base URL")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "notifications SQLite path")
	fs.StringVar(&cfg.ReminderSchedule, "reminder-schedule", cfg.ReminderSchedule, "cron expression for reminders")
	fs.StringVar(&cfg.StatsSchedule, "stats-schedule", cfg.StatsSchedule, "cron expression for stats pushes")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run builds the notifications service and serves until ctx ends.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceNotifications, func(ctx context.Context) error {
		if err := server.Run(ctx, server.Config{
			HTTPAddr:         cfg.HTTPAddr,
			CoordinatorURL:   cfg.CoordinatorURL,
			DBPath:           cfg.DBPath,
			ReminderSchedule: cfg.ReminderSchedule,
			StatsSchedule:    cfg.StatsSchedule,
		}); err != nil {
			return fmt.Errorf("serve notifications: %w", err)
		}
		return nil
	})
}
