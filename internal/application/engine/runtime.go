package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arbiterhq/arbiter/internal/application/state"
	"github.com/arbiterhq/arbiter/internal/domain"
	"github.com/arbiterhq/arbiter/internal/ports"
)

// sessionRuntime holds the live execution of one analysis session: the
// session record, its append-only state, the per-session event sequence
// and the cancellation plumbing. It implements debate.Recorder.
type sessionRuntime struct {
	sess *domain.AnalysisSession
	st   *state.SessionState

	bus     ports.EventBus
	logger  *zap.Logger
	metrics ports.MetricsCollector

	// cancelBase tears down the session context ahead of the deadline on
	// an external cancel request.
	cancelBase      context.CancelFunc
	cancelRequested bool

	// mu orders event emission; seq is the strictly increasing per-session
	// event sequence. Once muted, nothing but the terminal event goes out
	// and late artifact results from drained in-flight calls are discarded.
	mu    sync.Mutex
	seq   int64
	muted bool

	startedAt time.Time
}

func (rt *sessionRuntime) nextEvent(kind domain.EventKind) domain.ProgressEvent {
	rt.seq++
	return domain.ProgressEvent{
		SessionID: rt.sess.ID,
		Seq:       rt.seq,
		Kind:      kind,
		Stage:     rt.sess.Stage,
		Timestamp: time.Now().UTC(),
	}
}

func (rt *sessionRuntime) publish(ev domain.ProgressEvent) {
	if err := rt.bus.Publish(context.Background(), ev); err != nil {
		rt.logger.Warn("failed to publish progress event",
			zap.String("session_id", ev.SessionID),
			zap.String("kind", string(ev.Kind)),
			zap.Error(err))
	}
}

// emit publishes one event unless the runtime is muted. Publishing happens
// under the event lock so the bus sees events in sequence order.
func (rt *sessionRuntime) emit(kind domain.EventKind, mutate func(*domain.ProgressEvent)) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.muted {
		return
	}
	ev := rt.nextEvent(kind)
	if mutate != nil {
		mutate(&ev)
	}
	rt.publish(ev)
}

// emitTerminal mutes the runtime and publishes the final event. Anything
// still draining after this point is dropped.
func (rt *sessionRuntime) emitTerminal(kind domain.EventKind, mutate func(*domain.ProgressEvent)) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.muted {
		return
	}
	rt.muted = true
	ev := rt.nextEvent(kind)
	if mutate != nil {
		mutate(&ev)
	}
	rt.publish(ev)
}

// RecordArtifact appends an artifact to session state and announces it.
// After a terminal transition the result of a drained in-flight call is
// discarded rather than appended.
func (rt *sessionRuntime) RecordArtifact(a domain.Artifact) domain.Artifact {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.muted {
		return a
	}
	stored := rt.st.Append(a)
	ev := rt.nextEvent(domain.EventArtifactProduced)
	ev.Artifact = &stored
	rt.publish(ev)
	return stored
}

// AgentStatus announces an agent's status change.
func (rt *sessionRuntime) AgentStatus(role domain.Role, status string) {
	rt.emit(domain.EventAgentStatus, func(ev *domain.ProgressEvent) {
		ev.Agent = &domain.AgentStatusPayload{Role: role, Status: status}
	})
}

// requestCancel flags the session as externally cancelled and tears down
// its context. In-flight tool calls drain; their results are discarded.
func (rt *sessionRuntime) requestCancel() {
	rt.mu.Lock()
	rt.cancelRequested = true
	rt.mu.Unlock()
	rt.cancelBase()
}

func (rt *sessionRuntime) wasCancelRequested() bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.cancelRequested
}

// stage reads the current pipeline stage under the lock; the run goroutine
// writes it at every transition.
func (rt *sessionRuntime) stage() domain.Stage {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.sess.Stage
}

// snapshot builds the archival form of the session under the event lock so
// record and artifacts stay consistent.
func (rt *sessionRuntime) snapshot() *domain.SessionSnapshot {
	rt.mu.Lock()
	sess := *rt.sess
	rt.mu.Unlock()

	return &domain.SessionSnapshot{
		Session:   sess,
		Artifacts: rt.st.Artifacts(),
	}
}
