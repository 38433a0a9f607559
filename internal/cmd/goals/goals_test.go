package goals

import (
	"flag"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("goals", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.DBPath != "goals.db" {
		t.Fatalf("expected default db path, got %q", cfg.DBPath)
	}
	if cfg.RedisAddr != "" || cfg.TrackerURL != "" {
		t.Fatalf("expected optional collaborators unset, got %+v", cfg)
	}
}

func TestParseConfigFlagOverridesEnv(t *testing.T) {
	t.Setenv("ATTAIN_WORKS_GOALS_DB_PATH", "/var/lib/goals.db")
	t.Setenv("ATTAIN_WORKS_GOALS_REDIS_ADDR", "localhost:6379")

	fs := flag.NewFlagSet("goals", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-db", "/tmp/override.db"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.DBPath != "/tmp/override.db" {
		t.Fatalf("expected flag to win, got %q", cfg.DBPath)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Fatalf("expected env redis addr, got %q", cfg.RedisAddr)
	}
}
