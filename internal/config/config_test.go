package config

import (
	"errors"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "gsk_test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.DBPath != "./data/visitors.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.Session.TTL != 60*time.Minute || cfg.Session.SweepInterval != 5*time.Minute {
		t.Errorf("unexpected session config %+v", cfg.Session)
	}
	if cfg.LLM.BaseURL != "https://api.groq.com/openai/v1" || cfg.LLM.RequestTimeout != 0 {
		t.Errorf("unexpected llm config %+v", cfg.LLM)
	}
	if cfg.RateLimit.Requests != 10 || cfg.RateLimit.Window != time.Minute {
		t.Errorf("unexpected rate limit %+v", cfg.RateLimit)
	}
	if len(cfg.HTTP.AllowedOrigins) != 1 || cfg.HTTP.AllowedOrigins[0] != "*" {
		t.Errorf("unexpected origins %v", cfg.HTTP.AllowedOrigins)
	}
	if !cfg.IsDevelopment() {
		t.Error("expected development mode without FRONTEND_URL")
	}
}

func TestLoadMissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "  ")

	_, err := Load()
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "gsk_test")
	t.Setenv("SESSION_TTL", "15m")
	t.Setenv("LLM_REQUEST_TIMEOUT", "30s")
	t.Setenv("RATE_LIMIT_REQUESTS", "3")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("FRONTEND_URL", "https://homes.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Session.TTL != 15*time.Minute {
		t.Errorf("SESSION_TTL = %v", cfg.Session.TTL)
	}
	if cfg.LLM.RequestTimeout != 30*time.Second {
		t.Errorf("LLM_REQUEST_TIMEOUT = %v", cfg.LLM.RequestTimeout)
	}
	if cfg.RateLimit.Requests != 3 {
		t.Errorf("RATE_LIMIT_REQUESTS = %d", cfg.RateLimit.Requests)
	}
	if len(cfg.HTTP.AllowedOrigins) != 2 || cfg.HTTP.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("origins = %v", cfg.HTTP.AllowedOrigins)
	}
	if cfg.IsDevelopment() {
		t.Error("expected production mode")
	}
}

func TestLoadInvalidDurationFallsBack(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "gsk_test")
	t.Setenv("SESSION_SWEEP_INTERVAL", "soon")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Session.SweepInterval != 5*time.Minute {
		t.Errorf("expected fallback interval, got %v", cfg.Session.SweepInterval)
	}
}
