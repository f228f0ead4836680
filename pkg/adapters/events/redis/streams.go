package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/arbiterhq/arbiter/internal/domain"
	"github.com/arbiterhq/arbiter/internal/ports"
)

const (
	streamKeyPrefix = "arbiter:events:"
	streamMaxLen    = 4096
)

// StreamsBus mirrors session events into per-session Redis Streams so
// external consumers can tail an analysis or replay it after the fact.
// Subscribe tails a stream from its current tip; like the in-process bus
// it does not replay history to late joiners.
type StreamsBus struct {
	client *redis.Client
	logger *zap.Logger

	mu     sync.Mutex
	cancel []context.CancelFunc
	closed bool
}

// NewStreamsBus creates a Redis Streams event bus over an existing client.
func NewStreamsBus(client *redis.Client, logger *zap.Logger) *StreamsBus {
	return &StreamsBus{client: client, logger: logger}
}

// Publish appends the event to its session's stream. Streams are capped so
// an abandoned session cannot grow without bound.
func (b *StreamsBus) Publish(ctx context.Context, ev domain.ProgressEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey(ev.SessionID),
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]interface{}{"data": string(data)},
	}).Err()
	if err != nil {
		return fmt.Errorf("append to stream: %w", err)
	}
	return nil
}

// Subscribe tails the session's stream starting at its current tip.
func (b *StreamsBus) Subscribe(sessionID string) (ports.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("event bus is closed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = append(b.cancel, cancel)

	s := &streamSubscription{
		ch:     make(chan domain.ProgressEvent, 64),
		cancel: cancel,
	}
	go b.tail(ctx, sessionID, s)
	return s, nil
}

// Close stops every tailing goroutine. The Redis client is owned by the
// caller and stays open.
func (b *StreamsBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for _, cancel := range b.cancel {
		cancel()
	}
	b.cancel = nil
	return nil
}

func (b *StreamsBus) tail(ctx context.Context, sessionID string, s *streamSubscription) {
	defer close(s.ch)

	key := streamKey(sessionID)
	lastID := "$"

	for {
		if ctx.Err() != nil {
			return
		}

		streams, err := b.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{key, lastID},
			Count:   32,
			Block:   0,
		}).Result()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if err == redis.Nil {
				continue
			}
			b.logger.Warn("failed to read event stream",
				zap.String("stream", key), zap.Error(err))
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				lastID = msg.ID
				data, ok := msg.Values["data"].(string)
				if !ok {
					b.logger.Warn("malformed stream entry",
						zap.String("stream", key), zap.String("entry_id", msg.ID))
					continue
				}
				var ev domain.ProgressEvent
				if err := json.Unmarshal([]byte(data), &ev); err != nil {
					b.logger.Warn("failed to unmarshal stream entry",
						zap.String("stream", key), zap.String("entry_id", msg.ID), zap.Error(err))
					continue
				}
				select {
				case s.ch <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

type streamSubscription struct {
	ch     chan domain.ProgressEvent
	cancel context.CancelFunc
	once   sync.Once
}

func (s *streamSubscription) Events() <-chan domain.ProgressEvent { return s.ch }

func (s *streamSubscription) Close() {
	s.once.Do(s.cancel)
}

func streamKey(sessionID string) string {
	return streamKeyPrefix + strings.TrimSpace(sessionID)
}
