package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/arbiterhq/arbiter/internal/domain"
	"github.com/arbiterhq/arbiter/internal/ports"
)

// Tee publishes to a primary bus and mirrors to a secondary one.
// Subscriptions come from the primary; a mirror failure is logged and
// never fails the publish, so a Redis outage degrades external tailing
// without touching in-process delivery.
type Tee struct {
	primary ports.EventBus
	mirror  ports.EventBus
	logger  *zap.Logger
}

// NewTee wraps primary with a best-effort mirror.
func NewTee(primary, mirror ports.EventBus, logger *zap.Logger) *Tee {
	return &Tee{primary: primary, mirror: mirror, logger: logger}
}

func (t *Tee) Publish(ctx context.Context, ev domain.ProgressEvent) error {
	if err := t.mirror.Publish(ctx, ev); err != nil {
		t.logger.Warn("event mirror publish failed",
			zap.String("session_id", ev.SessionID),
			zap.String("kind", string(ev.Kind)),
			zap.Error(err))
	}
	return t.primary.Publish(ctx, ev)
}

func (t *Tee) Subscribe(sessionID string) (ports.Subscription, error) {
	return t.primary.Subscribe(sessionID)
}

func (t *Tee) Close() error {
	merr := t.mirror.Close()
	perr := t.primary.Close()
	if perr != nil {
		return perr
	}
	return merr
}
