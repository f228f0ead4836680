package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LLM_API_KEY", "test-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.HTTPPort != 8080 {
		t.Fatalf("expected default HTTP port 8080, got %d", cfg.HTTPPort)
	}
	if cfg.GRPCPort != 9090 {
		t.Fatalf("expected default gRPC port 9090, got %d", cfg.GRPCPort)
	}
	if cfg.LLM.Provider != "anthropic" {
		t.Fatalf("expected the anthropic provider by default, got %s", cfg.LLM.Provider)
	}
	if cfg.Engine.MaxResearchDepth != 5 {
		t.Fatalf("expected default max research depth 5, got %d", cfg.Engine.MaxResearchDepth)
	}
	if cfg.Engine.SessionTimeout != 30*time.Minute {
		t.Fatalf("expected default session timeout 30m, got %s", cfg.Engine.SessionTimeout)
	}
	if cfg.Redis.Addr != "" {
		t.Fatalf("expected Redis to be disabled by default, got %q", cfg.Redis.Addr)
	}
	if cfg.Redis.CacheTTL != 6*time.Hour {
		t.Fatalf("expected default cache ttl 6h, got %s", cfg.Redis.CacheTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "scripted")
	t.Setenv("ARBITER_HTTP_PORT", "9999")
	t.Setenv("ENGINE_MAX_RESEARCH_DEPTH", "3")
	t.Setenv("ENGINE_SESSION_TIMEOUT", "10m")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.HTTPPort != 9999 {
		t.Fatalf("expected HTTP port 9999, got %d", cfg.HTTPPort)
	}
	if cfg.Engine.MaxResearchDepth != 3 {
		t.Fatalf("expected max research depth 3, got %d", cfg.Engine.MaxResearchDepth)
	}
	if cfg.Engine.SessionTimeout != 10*time.Minute {
		t.Fatalf("expected session timeout 10m, got %s", cfg.Engine.SessionTimeout)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Fatalf("expected the Redis address override, got %q", cfg.Redis.Addr)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			HTTPPort: 8080,
			GRPCPort: 9090,
			LogLevel: "info",
			LLM:      LLMConfig{Provider: "scripted"},
			Engine: EngineConfig{
				MaxResearchDepth:   5,
				MaxRiskRounds:      3,
				MaxLookbackDays:    365,
				SessionTimeout:     30 * time.Minute,
				ToolTimeout:        150 * time.Second,
				ToolMaxAttempts:    3,
				AnalystParallelism: 4,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:    "bad http port",
			mutate:  func(c *Config) { c.HTTPPort = 0 },
			wantErr: "HTTP port",
		},
		{
			name:    "bad grpc port",
			mutate:  func(c *Config) { c.GRPCPort = 70000 },
			wantErr: "gRPC port",
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.LLM.Provider = "oracle" },
			wantErr: "provider",
		},
		{
			name:    "anthropic without key",
			mutate:  func(c *Config) { c.LLM.Provider = "anthropic" },
			wantErr: "API key",
		},
		{
			name:    "zero research depth",
			mutate:  func(c *Config) { c.Engine.MaxResearchDepth = 0 },
			wantErr: "research depth",
		},
		{
			name:    "zero risk rounds",
			mutate:  func(c *Config) { c.Engine.MaxRiskRounds = 0 },
			wantErr: "risk rounds",
		},
		{
			name:    "zero tool attempts",
			mutate:  func(c *Config) { c.Engine.ToolMaxAttempts = 0 },
			wantErr: "tool max attempts",
		},
		{
			name:    "zero parallelism",
			mutate:  func(c *Config) { c.Engine.AnalystParallelism = 0 },
			wantErr: "parallelism",
		},
		{
			name:    "tool timeout above session timeout",
			mutate:  func(c *Config) { c.Engine.ToolTimeout = time.Hour },
			wantErr: "tool timeout",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.LogLevel = "verbose" },
			wantErr: "log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected valid config, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestAddrHelpers(t *testing.T) {
	cfg := &Config{HTTPPort: 8080, GRPCPort: 9090}
	if cfg.GetHTTPAddr() != ":8080" {
		t.Fatalf("unexpected HTTP addr %q", cfg.GetHTTPAddr())
	}
	if cfg.GetGRPCAddr() != ":9090" {
		t.Fatalf("unexpected gRPC addr %q", cfg.GetGRPCAddr())
	}
}
