package tools

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/arbiterhq/arbiter/internal/domain"
	"github.com/arbiterhq/arbiter/internal/ports"
)

// CallKey uniquely identifies a cacheable, idempotent external call. It is
// derived from the requesting role, the pipeline stage and a digest of the
// request input.
type CallKey struct {
	Role   domain.Role
	Stage  domain.Stage
	Digest string
}

// String renders the cache key form of the call key.
func (k CallKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.Stage, k.Role, k.Digest)
}

// KeyFor computes the call key for a request. The digest is a SHA-256 over
// the tool name and the canonically ordered request fields, so identical
// (role, stage, input) tuples collide on reruns and hit the cache.
func KeyFor(role domain.Role, stage domain.Stage, req *ports.ToolRequest) CallKey {
	h := sha256.New()
	h.Write([]byte(req.Tool))
	h.Write([]byte{0})
	h.Write([]byte(req.Model))
	h.Write([]byte{0})
	h.Write([]byte(req.System))
	h.Write([]byte{0})
	h.Write([]byte(req.Prompt))
	h.Write([]byte{0})

	keys := make([]string, 0, len(req.Input))
	for k := range req.Input {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{'='})
		h.Write([]byte(req.Input[k]))
		h.Write([]byte{0})
	}

	return CallKey{
		Role:   role,
		Stage:  stage,
		Digest: hex.EncodeToString(h.Sum(nil))[:16],
	}
}

// Options bounds the invoker's retry and timeout behavior.
type Options struct {
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
	CallTimeout time.Duration
}

// Invoker is the uniform, retryable interface to external data and LLM
// calls. It consults the cache collaborator before going live, retries
// transiently-classified failures with exponential backoff and jitter, and
// writes every successful response back to the cache. It emits no progress
// events itself; callers decide what is user-visible.
type Invoker struct {
	cache   ports.Cache
	backend ports.ToolBackend
	metrics ports.MetricsCollector
	logger  *zap.Logger
	opts    Options
}

// NewInvoker creates a tool invoker around a cache and a live backend.
func NewInvoker(cache ports.Cache, backend ports.ToolBackend, metrics ports.MetricsCollector, logger *zap.Logger, opts Options) *Invoker {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 500 * time.Millisecond
	}
	if opts.BackoffMax <= 0 {
		opts.BackoffMax = 10 * time.Second
	}
	return &Invoker{
		cache:   cache,
		backend: backend,
		metrics: metrics,
		logger:  logger,
		opts:    opts,
	}
}

// Invoke performs the call identified by key. A cache hit returns
// immediately with no side effects. On a miss the live call is issued with
// the bounded retry policy; permanent failures fail immediately.
func (i *Invoker) Invoke(ctx context.Context, key CallKey, req *ports.ToolRequest) (*ports.ToolResponse, error) {
	cacheKey := key.String()

	if cached, ok, err := i.cache.Get(ctx, cacheKey); err != nil {
		// A broken cache must not take the pipeline down.
		i.logger.Warn("tool cache get failed",
			zap.String("key", cacheKey),
			zap.Error(err))
	} else if ok {
		resp := &ports.ToolResponse{}
		if err := json.Unmarshal([]byte(cached), resp); err == nil {
			resp.FromCache = true
			i.metrics.RecordCacheHit(req.Tool)
			return resp, nil
		}
		i.logger.Warn("tool cache entry unreadable, ignoring",
			zap.String("key", cacheKey))
	}

	var lastErr error
	for attempt := 1; attempt <= i.opts.MaxAttempts; attempt++ {
		start := time.Now()
		resp, err := i.callOnce(ctx, req)
		if err == nil {
			i.metrics.RecordToolCall(req.Tool, "ok", time.Since(start))
			i.store(ctx, cacheKey, resp)
			return resp, nil
		}
		i.metrics.RecordToolCall(req.Tool, "error", time.Since(start))
		lastErr = err

		// The session context going away is not a tool failure to retry.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		// A per-call timeout is retried like any other transient failure;
		// only the reported kind differs once attempts run out.
		if !errors.Is(err, context.DeadlineExceeded) && !domain.IsTransient(err) {
			return nil, &domain.ToolInvocationError{
				Kind:     domain.ToolErrPermanent,
				Tool:     req.Tool,
				Attempts: attempt,
				Err:      err,
			}
		}
		if attempt == i.opts.MaxAttempts {
			break
		}

		delay := i.backoff(attempt)
		i.logger.Debug("retrying tool call",
			zap.String("tool", req.Tool),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	kind := domain.ToolErrTransientExhausted
	if errors.Is(lastErr, context.DeadlineExceeded) {
		kind = domain.ToolErrTimeout
	}
	return nil, &domain.ToolInvocationError{
		Kind:     kind,
		Tool:     req.Tool,
		Attempts: i.opts.MaxAttempts,
		Err:      lastErr,
	}
}

// callOnce issues one live call under the per-call timeout.
func (i *Invoker) callOnce(ctx context.Context, req *ports.ToolRequest) (*ports.ToolResponse, error) {
	callCtx := ctx
	if i.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, i.opts.CallTimeout)
		defer cancel()
	}
	return i.backend.Call(callCtx, req)
}

// store writes a successful response back to the cache.
func (i *Invoker) store(ctx context.Context, key string, resp *ports.ToolResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := i.cache.Put(ctx, key, string(data)); err != nil {
		i.logger.Warn("tool cache put failed",
			zap.String("key", key),
			zap.Error(err))
	}
}

// backoff computes the exponential delay with jitter for an attempt.
func (i *Invoker) backoff(attempt int) time.Duration {
	d := i.opts.BackoffBase << uint(attempt-1)
	if d > i.opts.BackoffMax {
		d = i.opts.BackoffMax
	}
	// Full jitter keeps concurrent retries from herding.
	return time.Duration(rand.Int63n(int64(d)) + int64(d)/2)
}
