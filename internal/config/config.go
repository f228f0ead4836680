package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all configuration for the arbiter service. A Config value is
// passed explicitly into the engine at construction; nothing reads
// process-wide defaults mid-run.
type Config struct {
	// Server configuration
	HTTPPort int    `env:"ARBITER_HTTP_PORT" envDefault:"8080"`
	GRPCPort int    `env:"ARBITER_GRPC_PORT" envDefault:"9090"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Redis configuration
	Redis RedisConfig

	// LLM configuration
	LLM LLMConfig

	// Data vendor configuration
	Vendors VendorConfig

	// Engine configuration
	Engine EngineConfig
}

// RedisConfig holds Redis connection configuration. Redis backs the tool
// cache, the session archive and the event stream mirror; when Addr is
// empty the in-memory adapters are used instead.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASS"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`

	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	MaxRetries   int           `env:"REDIS_MAX_RETRIES" envDefault:"3"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`

	ArchiveTTL time.Duration `env:"REDIS_ARCHIVE_TTL" envDefault:"24h"`
	CacheTTL   time.Duration `env:"REDIS_CACHE_TTL" envDefault:"6h"`
}

// LLMConfig holds LLM provider configuration. Analysts use the quick model,
// deliberation roles the deep model.
type LLMConfig struct {
	Provider string `env:"LLM_PROVIDER" envDefault:"anthropic"`
	APIKey   string `env:"LLM_API_KEY"`

	QuickModel         string        `env:"LLM_QUICK_MODEL" envDefault:"claude-3-5-haiku-20241022"`
	DeepModel          string        `env:"LLM_DEEP_MODEL" envDefault:"claude-3-5-sonnet-20241022"`
	DefaultTemperature float64       `env:"LLM_DEFAULT_TEMPERATURE" envDefault:"0.7"`
	DefaultMaxTokens   int           `env:"LLM_DEFAULT_MAX_TOKENS" envDefault:"4096"`
	RequestTimeout     time.Duration `env:"LLM_REQUEST_TIMEOUT" envDefault:"120s"`
}

// VendorConfig holds market data vendor configuration.
type VendorConfig struct {
	FinnhubAPIKey  string        `env:"FINNHUB_API_KEY"`
	FinnhubBaseURL string        `env:"FINNHUB_BASE_URL" envDefault:"https://finnhub.io/api/v1"`
	NewsBaseURL    string        `env:"NEWS_RSS_BASE_URL" envDefault:"https://news.google.com/rss"`
	HTTPTimeout    time.Duration `env:"VENDOR_HTTP_TIMEOUT" envDefault:"30s"`
}

// EngineConfig bounds the deliberation pipeline.
type EngineConfig struct {
	// MaxResearchDepth caps the per-request research depth parameter.
	MaxResearchDepth int `env:"ENGINE_MAX_RESEARCH_DEPTH" envDefault:"5"`
	// MaxRiskRounds bounds the risk debate independently of research depth.
	MaxRiskRounds int `env:"ENGINE_MAX_RISK_ROUNDS" envDefault:"3"`
	// MaxLookbackDays caps the per-request data lookback window.
	MaxLookbackDays int `env:"ENGINE_MAX_LOOKBACK_DAYS" envDefault:"365"`

	SessionTimeout time.Duration `env:"ENGINE_SESSION_TIMEOUT" envDefault:"30m"`
	ToolTimeout    time.Duration `env:"ENGINE_TOOL_TIMEOUT" envDefault:"150s"`

	ToolMaxAttempts int           `env:"ENGINE_TOOL_MAX_ATTEMPTS" envDefault:"3"`
	ToolBackoffBase time.Duration `env:"ENGINE_TOOL_BACKOFF_BASE" envDefault:"500ms"`
	ToolBackoffMax  time.Duration `env:"ENGINE_TOOL_BACKOFF_MAX" envDefault:"10s"`

	// AnalystParallelism bounds the analyst fan-out dispatch pool.
	AnalystParallelism int `env:"ENGINE_ANALYST_PARALLELISM" envDefault:"4"`
	// EventBufferSize is the per-subscriber event buffer.
	EventBufferSize int `env:"ENGINE_EVENT_BUFFER_SIZE" envDefault:"256"`

	ShutdownTimeout time.Duration `env:"TIMEOUT_SHUTDOWN" envDefault:"30s"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.GRPCPort < 1 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPCPort)
	}

	if c.LLM.Provider != "anthropic" && c.LLM.Provider != "scripted" {
		return fmt.Errorf("unsupported LLM provider: %s", c.LLM.Provider)
	}
	if c.LLM.Provider == "anthropic" && c.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key is required")
	}

	if c.Engine.MaxResearchDepth < 1 {
		return fmt.Errorf("max research depth must be at least 1")
	}
	if c.Engine.MaxRiskRounds < 1 {
		return fmt.Errorf("max risk rounds must be at least 1")
	}
	if c.Engine.ToolMaxAttempts < 1 {
		return fmt.Errorf("tool max attempts must be at least 1")
	}
	if c.Engine.AnalystParallelism < 1 {
		return fmt.Errorf("analyst parallelism must be at least 1")
	}
	if c.Engine.ToolTimeout >= c.Engine.SessionTimeout {
		return fmt.Errorf("tool timeout must be shorter than the session timeout")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// GetHTTPAddr returns the HTTP server address.
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// GetGRPCAddr returns the gRPC server address.
func (c *Config) GetGRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}
