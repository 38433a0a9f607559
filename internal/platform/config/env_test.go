package config

import "testing"

type testConfig struct {
	Port int    `env:"ATTAIN_WORKS_TEST_PORT" envDefault:"8090"`
	Addr string `env:"ATTAIN_WORKS_TEST_ADDR"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg testConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 8090 {
		t.Fatalf("expected default port 8090, got %d", cfg.Port)
	}
	if cfg.Addr != "" {
		t.Fatalf("expected empty addr, got %q", cfg.Addr)
	}
}

func TestParseEnvOverride(t *testing.T) {
	t.Setenv("ATTAIN_WORKS_TEST_PORT", "9001")
	t.Setenv("ATTAIN_WORKS_TEST_ADDR", "127.0.0.1:9001")

	var cfg testConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 9001 {
		t.Fatalf("expected port 9001, got %d", cfg.Port)
	}
	if cfg.Addr != "127.0.0.1:9001" {
		t.Fatalf("expected addr override, got %q", cfg.Addr)
	}
}
