package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/arbiterhq/arbiter/internal/domain"
)

const (
	archiveKeyPrefix = "arbiter:session:"
	cacheKeyPrefix   = "arbiter:cache:"
)

// Archive persists session snapshots in Redis with a TTL. Terminal
// sessions stay queryable until the TTL expires.
type Archive struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewArchive creates a Redis session archive over an existing client.
func NewArchive(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Archive {
	return &Archive{client: client, logger: logger, ttl: ttl}
}

// Save stores the snapshot as JSON, replacing any previous one and
// resetting the TTL.
func (a *Archive) Save(ctx context.Context, snap *domain.SessionSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := a.client.Set(ctx, archiveKey(snap.Session.ID), data, a.ttl).Err(); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	a.logger.Debug("session snapshot saved",
		zap.String("session_id", snap.Session.ID),
		zap.String("status", string(snap.Session.Status)),
		zap.Int("artifacts", len(snap.Artifacts)))
	return nil
}

// Load retrieves a snapshot by session ID.
func (a *Archive) Load(ctx context.Context, sessionID string) (*domain.SessionSnapshot, error) {
	data, err := a.client.Get(ctx, archiveKey(sessionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap domain.SessionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// List scans for all archived session IDs.
func (a *Archive) List(ctx context.Context) ([]string, error) {
	var (
		cursor uint64
		ids    []string
	)
	for {
		batch, next, err := a.client.Scan(ctx, cursor, archiveKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scan sessions: %w", err)
		}
		for _, key := range batch {
			if len(key) > len(archiveKeyPrefix) {
				ids = append(ids, key[len(archiveKeyPrefix):])
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return ids, nil
}

func archiveKey(sessionID string) string {
	return archiveKeyPrefix + sessionID
}

// Cache is the Redis-backed tool cache.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache creates a Redis tool cache over an existing client.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Get returns the cached value for key. A Redis error is returned as an
// error, not a miss; the caller decides how to degrade.
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := c.client.Get(ctx, cacheKeyPrefix+key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", false, nil
		}
		return "", false, fmt.Errorf("cache get: %w", err)
	}
	return value, true, nil
}

// Put stores value under key with the cache TTL.
func (c *Cache) Put(ctx context.Context, key, value string) error {
	if err := c.client.Set(ctx, cacheKeyPrefix+key, value, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// NewClient builds a Redis client from connection settings and verifies
// connectivity.
func NewClient(ctx context.Context, opts *redis.Options) (*redis.Client, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}
