package notifications

import (
	"flag"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("notifications", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != ":3001" {
		t.Fatalf("expected default http addr :3001, got %q", cfg.HTTPAddr)
	}
	if cfg.ReminderSchedule != "*/5 * * * *" || cfg.StatsSchedule != "*/2 * * * *" {
		t.Fatalf("unexpected default schedules %+v", cfg)
	}
	if cfg.DBPath != "data/notifications.db" {
		t.Fatalf("expected default db path, got %q", cfg.DBPath)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("TUTORING_SPACE_NOTIFICATIONS_HTTP_ADDR", ":9090")

	fs := flag.NewFlagSet("notifications", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-http-addr", ":9091"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != ":9091" {
		t.Fatalf("expected http addr override :9091, got %q", cfg.HTTPAddr)
	}
}
