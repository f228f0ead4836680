package ports

import (
	"context"
	"time"

	"github.com/arbiterhq/arbiter/internal/domain"
)

// Subscription is one observer's ordered view of a session's progress
// events. The channel is closed when the subscription is closed or the bus
// shuts down.
type Subscription interface {
	Events() <-chan domain.ProgressEvent
	Close()
}

// EventBus publishes ordered progress events per session. Publishing never
// blocks on slow subscribers: each subscriber has a bounded buffer with a
// drop-oldest overflow policy, surfaced to that subscriber only as a
// subscriber_overflow event. Subscribers joining late receive only
// subsequently published events.
type EventBus interface {
	Publish(ctx context.Context, event domain.ProgressEvent) error
	Subscribe(sessionID string) (Subscription, error)
	Close() error
}

// Cache is the key-value collaborator consulted by the tool invoker. It may
// return a miss for any previously stored key.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string) error
}

// SessionArchive persists session snapshots for status queries, result
// retrieval and post-hoc artifact replay.
type SessionArchive interface {
	Save(ctx context.Context, snap *domain.SessionSnapshot) error
	Load(ctx context.Context, sessionID string) (*domain.SessionSnapshot, error)
	List(ctx context.Context) ([]string, error)
}

// CompletionRequest is a single prompt → completion call.
type CompletionRequest struct {
	Model       string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// CompletionResponse carries the generated text and usage accounting.
type CompletionResponse struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
}

// LLMClient is the text-generation collaborator.
type LLMClient interface {
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
}

// ToolRequest is a structured request addressed to a named tool. Input
// carries vendor parameters; Prompt/System are set for generative tools.
type ToolRequest struct {
	Tool        string
	Input       map[string]string
	System      string
	Prompt      string
	Model       string
	MaxTokens   int
	Temperature float64
}

// ToolResponse is the structured or free-text output of a tool call.
type ToolResponse struct {
	Output    string `json:"output"`
	Model     string `json:"model,omitempty"`
	FromCache bool   `json:"-"`
}

// ToolBackend performs a live tool call. Implementations classify failures
// with domain.ToolInvocationError kinds where they can; unclassified errors
// are treated as permanent by the invoker.
type ToolBackend interface {
	Call(ctx context.Context, req *ToolRequest) (*ToolResponse, error)
}

// MetricsCollector records operational metrics.
type MetricsCollector interface {
	RecordSessionStarted()
	RecordSessionCompleted(status string, duration time.Duration)
	RecordStageDuration(stage string, duration time.Duration)
	RecordAgentRun(role, status string, duration time.Duration)
	RecordToolCall(tool, status string, duration time.Duration)
	RecordCacheHit(tool string)
	RecordLLMTokens(model string, input, output int)
	RecordDebateRounds(stage string, rounds int)
	RecordWorkerPoolStatus(idle, busy, stopped int)
	SetActiveSessions(n int)
	SetSubscribers(n int)
}
