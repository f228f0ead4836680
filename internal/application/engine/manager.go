package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arbiterhq/arbiter/internal/application/agents"
	"github.com/arbiterhq/arbiter/internal/application/debate"
	"github.com/arbiterhq/arbiter/internal/application/state"
	"github.com/arbiterhq/arbiter/internal/application/workers"
	"github.com/arbiterhq/arbiter/internal/config"
	"github.com/arbiterhq/arbiter/internal/domain"
	"github.com/arbiterhq/arbiter/internal/ports"
)

// Manager drives analysis sessions through the deliberation pipeline. It
// owns the session lifecycle: validation, asynchronous execution, progress
// events, cancellation, timeout and archival. API handlers only ever talk
// to the manager.
type Manager struct {
	cfg      config.EngineConfig
	registry *agents.Registry
	debates  *debate.Coordinator
	pool     *workers.Pool

	eventBus ports.EventBus
	archive  ports.SessionArchive
	metrics  ports.MetricsCollector

	validator *Validator
	logger    *zap.Logger

	executions sync.Map // session ID -> *sessionRuntime
	active     int
	activeMu   sync.Mutex
}

// NewManager creates the orchestration engine.
func NewManager(
	cfg config.EngineConfig,
	registry *agents.Registry,
	pool *workers.Pool,
	eventBus ports.EventBus,
	archive ports.SessionArchive,
	metrics ports.MetricsCollector,
	logger *zap.Logger,
) *Manager {
	return &Manager{
		cfg:       cfg,
		registry:  registry,
		debates:   debate.NewCoordinator(registry, logger),
		pool:      pool,
		eventBus:  eventBus,
		archive:   archive,
		metrics:   metrics,
		validator: NewValidator(cfg),
		logger:    logger,
	}
}

// StartAnalysis validates the request, creates the session and launches
// its pipeline asynchronously. It returns the session ID immediately.
func (m *Manager) StartAnalysis(ctx context.Context, req *domain.AnalyzeRequest) (string, error) {
	if err := m.validator.Validate(req); err != nil {
		return "", err
	}

	sess := &domain.AnalysisSession{
		ID:            uuid.New().String(),
		Symbol:        req.Symbol,
		AsOfDate:      req.AsOfDate,
		AnalystRoster: append([]domain.Role(nil), req.AnalystRoster...),
		ResearchDepth: req.ResearchDepth,
		LookbackDays:  req.LookbackDays,
		Stage:         domain.StageInitializing,
		Status:        domain.SessionStatusPending,
		CreatedAt:     time.Now().UTC(),
	}

	baseCtx, cancelBase := context.WithCancel(context.Background())
	runCtx, cancelRun := context.WithTimeout(baseCtx, m.cfg.SessionTimeout)

	rt := &sessionRuntime{
		sess:       sess,
		st:         state.New(sess.ID),
		bus:        m.eventBus,
		logger:     m.logger,
		metrics:    m.metrics,
		cancelBase: cancelBase,
		startedAt:  time.Now(),
	}

	m.executions.Store(sess.ID, rt)
	m.trackActive(1)
	m.metrics.RecordSessionStarted()

	if err := m.archive.Save(ctx, rt.snapshot()); err != nil {
		m.logger.Warn("failed to archive new session",
			zap.String("session_id", sess.ID), zap.Error(err))
	}

	m.logger.Info("analysis session started",
		zap.String("session_id", sess.ID),
		zap.String("symbol", sess.Symbol),
		zap.String("as_of_date", sess.AsOfDate),
		zap.Int("research_depth", sess.ResearchDepth),
		zap.Int("analysts", len(sess.AnalystRoster)))

	go m.run(runCtx, cancelRun, rt)

	return sess.ID, nil
}

// run drives one session through every stage in order. It always leaves
// the session in a terminal state and archived.
func (m *Manager) run(ctx context.Context, cancel context.CancelFunc, rt *sessionRuntime) {
	defer cancel()
	defer func() {
		m.executions.Delete(rt.sess.ID)
		m.trackActive(-1)
	}()

	rt.mu.Lock()
	rt.sess.Status = domain.SessionStatusRunning
	rt.mu.Unlock()

	lastCompleted := domain.StageInitializing

	steps := []struct {
		stage domain.Stage
		run   func(ctx context.Context, rt *sessionRuntime) error
	}{
		{domain.StageAnalysts, m.runAnalystStage},
		{domain.StageResearchDebate, m.runResearchDebate},
		{domain.StageManagerSynthesis, m.runManagerSynthesis},
		{domain.StageTrader, m.runTrader},
		{domain.StageRiskDebate, m.runRiskDebate},
		{domain.StagePortfolioDecision, m.runPortfolioDecision},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			m.finishInterrupted(rt, lastCompleted)
			return
		}

		rt.mu.Lock()
		rt.sess.Stage = step.stage
		rt.mu.Unlock()
		rt.emit(domain.EventStageStarted, nil)

		start := time.Now()
		err := step.run(ctx, rt)
		m.metrics.RecordStageDuration(string(step.stage), time.Since(start))

		if err != nil {
			if ctx.Err() != nil {
				m.finishInterrupted(rt, lastCompleted)
				return
			}
			m.finishFailed(rt, lastCompleted, err)
			return
		}

		rt.emit(domain.EventStageCompleted, nil)
		lastCompleted = step.stage
		m.checkpoint(rt)
	}

	m.finishCompleted(rt)
}

// finishCompleted marks the session completed and publishes the terminal
// event. The portfolio stage guarantees a structurally valid decision is
// already in state.
func (m *Manager) finishCompleted(rt *sessionRuntime) {
	now := time.Now().UTC()
	rt.mu.Lock()
	rt.sess.Stage = domain.StageCompleted
	rt.sess.Status = domain.SessionStatusCompleted
	rt.sess.CompletedAt = &now
	rt.mu.Unlock()

	rt.emitTerminal(domain.EventSessionCompleted, func(ev *domain.ProgressEvent) {
		if decision, ok := rt.st.Decision(); ok {
			ev.Artifact = &decision
		}
	})
	m.checkpoint(rt)
	m.metrics.RecordSessionCompleted(string(domain.SessionStatusCompleted), time.Since(rt.startedAt))

	m.logger.Info("analysis session completed",
		zap.String("session_id", rt.sess.ID),
		zap.String("symbol", rt.sess.Symbol),
		zap.Duration("duration", time.Since(rt.startedAt)))
}

// finishInterrupted resolves a dead session context into cancelled or
// timed out. An external cancel wins over the deadline.
func (m *Manager) finishInterrupted(rt *sessionRuntime, lastCompleted domain.Stage) {
	if rt.wasCancelRequested() {
		m.finishCancelled(rt)
		return
	}
	m.finishFailed(rt, lastCompleted, domain.ErrSessionTimeout)
}

func (m *Manager) finishCancelled(rt *sessionRuntime) {
	now := time.Now().UTC()
	rt.mu.Lock()
	rt.sess.Status = domain.SessionStatusCancelled
	rt.sess.CompletedAt = &now
	rt.mu.Unlock()

	rt.emitTerminal(domain.EventSessionCancelled, nil)
	m.checkpoint(rt)
	m.metrics.RecordSessionCompleted(string(domain.SessionStatusCancelled), time.Since(rt.startedAt))

	m.logger.Info("analysis session cancelled",
		zap.String("session_id", rt.sess.ID),
		zap.String("stage", string(rt.sess.Stage)))
}

func (m *Manager) finishFailed(rt *sessionRuntime, lastCompleted domain.Stage, err error) {
	kind := domain.FailureKind(err)

	now := time.Now().UTC()
	rt.mu.Lock()
	rt.sess.Status = domain.SessionStatusFailed
	rt.sess.Error = err.Error()
	rt.sess.FailedKind = kind
	rt.sess.CompletedAt = &now
	rt.mu.Unlock()

	rt.emitTerminal(domain.EventSessionFailed, func(ev *domain.ProgressEvent) {
		ev.Failure = &domain.FailurePayload{
			Kind:      kind,
			Message:   err.Error(),
			LastStage: lastCompleted,
		}
	})
	m.checkpoint(rt)
	m.metrics.RecordSessionCompleted(string(domain.SessionStatusFailed), time.Since(rt.startedAt))

	m.logger.Error("analysis session failed",
		zap.String("session_id", rt.sess.ID),
		zap.String("kind", kind),
		zap.String("last_completed_stage", string(lastCompleted)),
		zap.Error(err))
}

// checkpoint archives the current snapshot. Archival failures degrade
// queryability, never the run itself.
func (m *Manager) checkpoint(rt *sessionRuntime) {
	if err := m.archive.Save(context.Background(), rt.snapshot()); err != nil {
		m.logger.Warn("failed to archive session snapshot",
			zap.String("session_id", rt.sess.ID), zap.Error(err))
	}
}

// Cancel requests cancellation of a running session. In-flight tool calls
// drain and their results are discarded; no further stage starts.
func (m *Manager) Cancel(ctx context.Context, sessionID string) error {
	v, ok := m.executions.Load(sessionID)
	if !ok {
		if snap, err := m.archive.Load(ctx, sessionID); err == nil && snap != nil {
			return domain.ErrSessionTerminal
		}
		return domain.ErrSessionNotFound
	}

	rt := v.(*sessionRuntime)
	rt.requestCancel()

	m.logger.Info("cancellation requested",
		zap.String("session_id", sessionID),
		zap.String("stage", string(rt.stage())))
	return nil
}

// GetSnapshot returns the current snapshot of a live session, or the
// archived one for a terminal session.
func (m *Manager) GetSnapshot(ctx context.Context, sessionID string) (*domain.SessionSnapshot, error) {
	if v, ok := m.executions.Load(sessionID); ok {
		return v.(*sessionRuntime).snapshot(), nil
	}

	snap, err := m.archive.Load(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, err
	}
	if snap == nil {
		return nil, domain.ErrSessionNotFound
	}
	return snap, nil
}

// ListSessions returns the IDs of all archived sessions.
func (m *Manager) ListSessions(ctx context.Context) ([]string, error) {
	return m.archive.List(ctx)
}

// Shutdown cancels every live session and waits for their runs to reach a
// terminal state or for ctx to expire.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("shutting down engine")

	m.executions.Range(func(_, v any) bool {
		v.(*sessionRuntime).requestCancel()
		return true
	})

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		remaining := 0
		m.executions.Range(func(_, _ any) bool {
			remaining++
			return true
		})
		if remaining == 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			m.logger.Warn("engine shutdown timed out",
				zap.Int("sessions_remaining", remaining))
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (m *Manager) trackActive(delta int) {
	m.activeMu.Lock()
	m.active += delta
	n := m.active
	m.activeMu.Unlock()
	m.metrics.SetActiveSessions(n)
}
