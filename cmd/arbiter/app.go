package main

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/arbiterhq/arbiter/internal/application/agents"
	"github.com/arbiterhq/arbiter/internal/application/engine"
	apptools "github.com/arbiterhq/arbiter/internal/application/tools"
	"github.com/arbiterhq/arbiter/internal/application/workers"
	"github.com/arbiterhq/arbiter/internal/config"
	"github.com/arbiterhq/arbiter/internal/ports"
	"github.com/arbiterhq/arbiter/pkg/adapters/events"
	eventsmemory "github.com/arbiterhq/arbiter/pkg/adapters/events/memory"
	eventsredis "github.com/arbiterhq/arbiter/pkg/adapters/events/redis"
	"github.com/arbiterhq/arbiter/pkg/adapters/llm"
	"github.com/arbiterhq/arbiter/pkg/adapters/marketdata"
	"github.com/arbiterhq/arbiter/pkg/adapters/news"
	storagememory "github.com/arbiterhq/arbiter/pkg/adapters/storage/memory"
	storageredis "github.com/arbiterhq/arbiter/pkg/adapters/storage/redis"
	toolrouter "github.com/arbiterhq/arbiter/pkg/adapters/tools"
)

const healthCheckInterval = 30 * time.Second

// app bundles the wired components of one process.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics ports.MetricsCollector

	redis    *goredis.Client
	eventBus ports.EventBus
	archive  ports.SessionArchive
	pool     *workers.Pool
	engine   *engine.Manager
}

// buildApp wires adapters and the engine from configuration. With no Redis
// address configured the in-memory archive, cache and event bus are used;
// otherwise Redis backs all three and events are mirrored to streams.
func buildApp(ctx context.Context, cfg *config.Config, metrics ports.MetricsCollector, logger *zap.Logger) (*app, error) {
	var (
		redisClient *goredis.Client
		cache       ports.Cache
		archive     ports.SessionArchive
		eventBus    ports.EventBus
	)

	primary := eventsmemory.NewBus(cfg.Engine.EventBufferSize, metrics, logger)

	if cfg.Redis.Addr != "" {
		client, err := storageredis.NewClient(ctx, &goredis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   cfg.Redis.MaxRetries,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))

		redisClient = client
		cache = storageredis.NewCache(client, cfg.Redis.CacheTTL)
		archive = storageredis.NewArchive(client, cfg.Redis.ArchiveTTL, logger)
		eventBus = events.NewTee(primary, eventsredis.NewStreamsBus(client, logger), logger)
	} else {
		logger.Info("no Redis address configured, using in-memory adapters")
		cache = storagememory.NewCache(cfg.Redis.CacheTTL)
		archive = storagememory.NewArchive()
		eventBus = primary
	}

	llmClient, err := llm.NewClient(&llm.Config{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create LLM client: %w", err)
	}

	var market toolrouter.MarketProvider
	if cfg.Vendors.FinnhubAPIKey != "" {
		market = marketdata.NewFinnhubClient(
			cfg.Vendors.FinnhubBaseURL,
			cfg.Vendors.FinnhubAPIKey,
			cfg.Vendors.HTTPTimeout,
			logger,
		)
	} else {
		logger.Info("no Finnhub API key configured, using Yahoo Finance")
		market = marketdata.NewYahooClient()
	}

	newsClient := news.NewClient(cfg.Vendors.NewsBaseURL, cfg.Vendors.HTTPTimeout, logger)
	router := toolrouter.NewRouter(llmClient, market, newsClient, metrics, logger)

	invoker := apptools.NewInvoker(cache, router, metrics, logger, apptools.Options{
		MaxAttempts: cfg.Engine.ToolMaxAttempts,
		BackoffBase: cfg.Engine.ToolBackoffBase,
		BackoffMax:  cfg.Engine.ToolBackoffMax,
		CallTimeout: cfg.Engine.ToolTimeout,
	})

	registry := agents.NewRegistry(invoker, agents.Models{
		Quick:       cfg.LLM.QuickModel,
		Deep:        cfg.LLM.DeepModel,
		Temperature: cfg.LLM.DefaultTemperature,
		MaxTokens:   cfg.LLM.DefaultMaxTokens,
	}, logger)

	pool := workers.NewPool(cfg.Engine.AnalystParallelism, metrics, logger, healthCheckInterval)

	mgr := engine.NewManager(cfg.Engine, registry, pool, eventBus, archive, metrics, logger)

	return &app{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		redis:    redisClient,
		eventBus: eventBus,
		archive:  archive,
		pool:     pool,
		engine:   mgr,
	}, nil
}

// close tears the wired components down in reverse dependency order.
func (a *app) close(ctx context.Context) {
	if err := a.engine.Shutdown(ctx); err != nil {
		a.logger.Error("engine shutdown error", zap.Error(err))
	}
	if err := a.pool.Shutdown(ctx); err != nil {
		a.logger.Error("dispatch pool shutdown error", zap.Error(err))
	}
	if err := a.eventBus.Close(); err != nil {
		a.logger.Error("event bus close error", zap.Error(err))
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("Redis close error", zap.Error(err))
		}
	}
}
