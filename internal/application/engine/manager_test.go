package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/arbiterhq/arbiter/internal/application/agents"
	"github.com/arbiterhq/arbiter/internal/application/tools"
	"github.com/arbiterhq/arbiter/internal/application/workers"
	"github.com/arbiterhq/arbiter/internal/config"
	"github.com/arbiterhq/arbiter/internal/domain"
	"github.com/arbiterhq/arbiter/internal/ports"
	eventsmemory "github.com/arbiterhq/arbiter/pkg/adapters/events/memory"
	"github.com/arbiterhq/arbiter/pkg/adapters/metrics/noop"
	storagememory "github.com/arbiterhq/arbiter/pkg/adapters/storage/memory"
)

// pipelineBackend answers every tool call the pipeline issues, keyed off the
// system prompt, so a full session runs without a live model or vendor.
type pipelineBackend struct {
	mu sync.Mutex

	// gate, when set, holds every call until closed.
	gate chan struct{}
	// blockAll parks every call on the context, for cancel and timeout tests.
	blockAll bool

	failAnalystGenerate bool
	failAnalystKind     string
	portfolioOutputs    []string

	portfolioCalls int
}

const validPortfolioOutput = "The strategy holds up against the risk verdict.\n\nFINAL TRANSACTION PROPOSAL: **BUY**\nConfidence: 0.7"

func (b *pipelineBackend) Call(ctx context.Context, req *ports.ToolRequest) (*ports.ToolResponse, error) {
	if b.blockAll {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if b.gate != nil {
		select {
		case <-b.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if req.Tool != "llm.generate" {
		return &ports.ToolResponse{Output: "vendor data for " + req.Input["symbol"]}, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	sys := req.System
	switch {
	case strings.Contains(sys, "equity research desk"):
		if b.failAnalystGenerate {
			return nil, errors.New("model rejected the request")
		}
		if b.failAnalystKind != "" && strings.Contains(sys, "You are the "+b.failAnalystKind+" analyst") {
			return nil, errors.New("model rejected the request")
		}
		return &ports.ToolResponse{Output: "Trend improving.\n\nRSI: 61.2\nSMA50: 187.4"}, nil
	case strings.Contains(sys, "bullish"):
		return &ports.ToolResponse{Output: "Growth supports further upside."}, nil
	case strings.Contains(sys, "bearish"):
		return &ports.ToolResponse{Output: "Valuation already prices in perfection."}, nil
	case strings.Contains(sys, "risk analyst"):
		return &ports.ToolResponse{Output: "Size the position for a drawdown."}, nil
	case strings.Contains(sys, "judging"):
		return &ports.ToolResponse{Output: "DECISION: RESOLVE\n\nThe debate has converged."}, nil
	case strings.Contains(sys, "debate is closed"):
		return &ports.ToolResponse{Output: "The final verdict favors caution."}, nil
	case strings.Contains(sys, "investment plan"):
		return &ports.ToolResponse{Output: "Accumulate on weakness with a defined stop."}, nil
	case strings.Contains(sys, "You are the trader"):
		return &ports.ToolResponse{Output: "Scale in over three tranches."}, nil
	case strings.Contains(sys, "portfolio manager"):
		b.portfolioCalls++
		out := validPortfolioOutput
		if len(b.portfolioOutputs) > 0 {
			idx := b.portfolioCalls - 1
			if idx >= len(b.portfolioOutputs) {
				idx = len(b.portfolioOutputs) - 1
			}
			out = b.portfolioOutputs[idx]
		}
		return &ports.ToolResponse{Output: out}, nil
	default:
		return &ports.ToolResponse{Output: "noted"}, nil
	}
}

func (b *pipelineBackend) portfolioCallCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.portfolioCalls
}

func testEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		MaxResearchDepth:   5,
		MaxRiskRounds:      2,
		MaxLookbackDays:    365,
		SessionTimeout:     30 * time.Second,
		ToolTimeout:        5 * time.Second,
		ToolMaxAttempts:    1,
		ToolBackoffBase:    time.Millisecond,
		ToolBackoffMax:     time.Millisecond,
		AnalystParallelism: 4,
		EventBufferSize:    256,
		ShutdownTimeout:    time.Second,
	}
}

func newTestManager(t *testing.T, cfg config.EngineConfig, backend ports.ToolBackend) (*Manager, *eventsmemory.Bus) {
	t.Helper()

	logger := zap.NewNop()
	metrics := noop.NewCollector()
	bus := eventsmemory.NewBus(cfg.EventBufferSize, metrics, logger)
	archive := storagememory.NewArchive()

	inv := tools.NewInvoker(storagememory.NewCache(0), backend, metrics, logger, tools.Options{
		MaxAttempts: cfg.ToolMaxAttempts,
		BackoffBase: cfg.ToolBackoffBase,
		BackoffMax:  cfg.ToolBackoffMax,
		CallTimeout: cfg.ToolTimeout,
	})
	registry := agents.NewRegistry(inv, agents.Models{Quick: "quick", Deep: "deep", MaxTokens: 512}, logger)

	pool := workers.NewPool(cfg.AnalystParallelism, metrics, logger, time.Minute)
	if err := pool.Start(); err != nil {
		t.Fatalf("pool start: %v", err)
	}

	mgr := NewManager(cfg, registry, pool, bus, archive, metrics, logger)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = mgr.Shutdown(ctx)
		_ = pool.Shutdown(ctx)
		_ = bus.Close()
	})

	return mgr, bus
}

func testAnalyzeRequest() *domain.AnalyzeRequest {
	return &domain.AnalyzeRequest{
		Symbol:        "AAPL",
		AsOfDate:      "2024-03-15",
		AnalystRoster: domain.AnalystRoles,
		ResearchDepth: 1,
		LookbackDays:  30,
	}
}

func waitTerminal(t *testing.T, mgr *Manager, sessionID string) *domain.SessionSnapshot {
	t.Helper()

	deadline := time.After(10 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("session %s did not reach a terminal state", sessionID)
		case <-time.After(5 * time.Millisecond):
		}

		snap, err := mgr.GetSnapshot(context.Background(), sessionID)
		if err != nil {
			t.Fatalf("GetSnapshot: %v", err)
		}
		if snap.Session.Status.Terminal() {
			return snap
		}
	}
}

func TestFullPipelineCompletes(t *testing.T) {
	gate := make(chan struct{})
	backend := &pipelineBackend{gate: gate}
	mgr, bus := newTestManager(t, testEngineConfig(), backend)

	id, err := mgr.StartAnalysis(context.Background(), testAnalyzeRequest())
	if err != nil {
		t.Fatalf("StartAnalysis: %v", err)
	}

	sub, err := bus.Subscribe(id)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()
	close(gate)

	var (
		events   []domain.ProgressEvent
		terminal *domain.ProgressEvent
	)
	timeout := time.After(10 * time.Second)
collect:
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				break collect
			}
			events = append(events, ev)
			if ev.Kind == domain.EventSessionCompleted || ev.Kind == domain.EventSessionFailed || ev.Kind == domain.EventSessionCancelled {
				terminal = &events[len(events)-1]
				break collect
			}
		case <-timeout:
			t.Fatalf("did not observe a terminal event")
		}
	}

	if terminal == nil || terminal.Kind != domain.EventSessionCompleted {
		t.Fatalf("expected session_completed, got %+v", terminal)
	}
	if terminal.Artifact == nil || terminal.Artifact.Decision == nil {
		t.Fatalf("expected the terminal event to carry the decision artifact")
	}
	if terminal.Artifact.Decision.Action != domain.ActionBuy {
		t.Fatalf("expected a buy decision, got %s", terminal.Artifact.Decision.Action)
	}

	var lastSeq int64
	for _, ev := range events {
		if ev.Seq <= lastSeq {
			t.Fatalf("event sequence not strictly increasing: %d after %d", ev.Seq, lastSeq)
		}
		lastSeq = ev.Seq
	}

	snap := waitTerminal(t, mgr, id)
	if snap.Session.Status != domain.SessionStatusCompleted {
		t.Fatalf("expected completed status, got %s", snap.Session.Status)
	}
	if snap.Session.Stage != domain.StageCompleted {
		t.Fatalf("expected completed stage, got %s", snap.Session.Stage)
	}
	if snap.Session.CompletedAt == nil {
		t.Fatalf("expected CompletedAt to be set")
	}

	// 4 analyst reports, 2 research turns + verdict, plan, strategy,
	// 3 risk stances + verdict, final decision.
	if len(snap.Artifacts) != 14 {
		t.Fatalf("expected 14 artifacts, got %d", len(snap.Artifacts))
	}

	ids, err := mgr.ListSessions(context.Background())
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	found := false
	for _, sid := range ids {
		if sid == id {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected session %s in the archive listing", id)
	}
}

func TestSingleAnalystFailureIsIsolated(t *testing.T) {
	backend := &pipelineBackend{failAnalystKind: "news"}
	mgr, _ := newTestManager(t, testEngineConfig(), backend)

	id, err := mgr.StartAnalysis(context.Background(), testAnalyzeRequest())
	if err != nil {
		t.Fatalf("StartAnalysis: %v", err)
	}

	snap := waitTerminal(t, mgr, id)
	if snap.Session.Status != domain.SessionStatusCompleted {
		t.Fatalf("expected completion despite one failing analyst, got %s (%s)", snap.Session.Status, snap.Session.Error)
	}

	for _, a := range snap.Artifacts {
		if a.Kind == domain.ArtifactAnalystReport && a.Role == domain.RoleNewsAnalyst {
			t.Fatalf("expected no report from the failed news analyst")
		}
	}
}

func TestAllAnalystsFailingFailsSession(t *testing.T) {
	gate := make(chan struct{})
	backend := &pipelineBackend{gate: gate, failAnalystGenerate: true}
	mgr, bus := newTestManager(t, testEngineConfig(), backend)

	id, err := mgr.StartAnalysis(context.Background(), testAnalyzeRequest())
	if err != nil {
		t.Fatalf("StartAnalysis: %v", err)
	}
	sub, err := bus.Subscribe(id)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()
	close(gate)

	snap := waitTerminal(t, mgr, id)
	if snap.Session.Status != domain.SessionStatusFailed {
		t.Fatalf("expected failed status, got %s", snap.Session.Status)
	}
	if snap.Session.FailedKind != "stage_failure" {
		t.Fatalf("expected stage_failure kind, got %s", snap.Session.FailedKind)
	}

	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				t.Fatalf("subscription closed before session_failed arrived")
			}
			if ev.Kind != domain.EventSessionFailed {
				continue
			}
			if ev.Failure == nil {
				t.Fatalf("expected a failure payload")
			}
			if ev.Failure.LastStage != domain.StageInitializing {
				t.Fatalf("expected no completed stage, got %s", ev.Failure.LastStage)
			}
			return
		case <-timeout:
			t.Fatalf("did not observe session_failed")
		}
	}
}

func TestCancelStopsRunningSession(t *testing.T) {
	backend := &pipelineBackend{blockAll: true}
	mgr, _ := newTestManager(t, testEngineConfig(), backend)

	id, err := mgr.StartAnalysis(context.Background(), testAnalyzeRequest())
	if err != nil {
		t.Fatalf("StartAnalysis: %v", err)
	}

	if err := mgr.Cancel(context.Background(), id); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	snap := waitTerminal(t, mgr, id)
	if snap.Session.Status != domain.SessionStatusCancelled {
		t.Fatalf("expected cancelled status, got %s", snap.Session.Status)
	}
	for _, a := range snap.Artifacts {
		if a.Kind == domain.ArtifactFinalDecision {
			t.Fatalf("cancelled session must not carry a decision")
		}
	}

	if err := mgr.Cancel(context.Background(), id); !errors.Is(err, domain.ErrSessionTerminal) {
		t.Fatalf("expected ErrSessionTerminal on a finished session, got %v", err)
	}
	if err := mgr.Cancel(context.Background(), "no-such-session"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestCancelDuringStageTransitions(t *testing.T) {
	backend := &pipelineBackend{}
	mgr, _ := newTestManager(t, testEngineConfig(), backend)

	id, err := mgr.StartAnalysis(context.Background(), testAnalyzeRequest())
	if err != nil {
		t.Fatalf("StartAnalysis: %v", err)
	}

	// Cancel reads the stage while the run goroutine is writing it at each
	// transition; either the cancel lands or the session finishes first.
	if err := mgr.Cancel(context.Background(), id); err != nil && !errors.Is(err, domain.ErrSessionTerminal) {
		t.Fatalf("Cancel: %v", err)
	}

	snap := waitTerminal(t, mgr, id)
	if st := snap.Session.Status; st != domain.SessionStatusCancelled && st != domain.SessionStatusCompleted {
		t.Fatalf("expected cancelled or completed, got %s", st)
	}
}

func TestSessionTimeoutFailsSession(t *testing.T) {
	cfg := testEngineConfig()
	cfg.SessionTimeout = 50 * time.Millisecond
	backend := &pipelineBackend{blockAll: true}
	mgr, _ := newTestManager(t, cfg, backend)

	id, err := mgr.StartAnalysis(context.Background(), testAnalyzeRequest())
	if err != nil {
		t.Fatalf("StartAnalysis: %v", err)
	}

	snap := waitTerminal(t, mgr, id)
	if snap.Session.Status != domain.SessionStatusFailed {
		t.Fatalf("expected failed status, got %s", snap.Session.Status)
	}
	if snap.Session.FailedKind != "session_timeout" {
		t.Fatalf("expected session_timeout kind, got %s", snap.Session.FailedKind)
	}
}

func TestInvalidDecisionRegeneratedOnce(t *testing.T) {
	backend := &pipelineBackend{portfolioOutputs: []string{
		"I am unable to commit to a position at this time.",
		validPortfolioOutput,
	}}
	mgr, _ := newTestManager(t, testEngineConfig(), backend)

	id, err := mgr.StartAnalysis(context.Background(), testAnalyzeRequest())
	if err != nil {
		t.Fatalf("StartAnalysis: %v", err)
	}

	snap := waitTerminal(t, mgr, id)
	if snap.Session.Status != domain.SessionStatusCompleted {
		t.Fatalf("expected completion after regeneration, got %s (%s)", snap.Session.Status, snap.Session.Error)
	}
	if backend.portfolioCallCount() != 2 {
		t.Fatalf("expected 2 portfolio attempts, got %d", backend.portfolioCallCount())
	}
}

func TestInvalidDecisionTwiceFailsSession(t *testing.T) {
	backend := &pipelineBackend{portfolioOutputs: []string{
		"I am unable to commit to a position at this time.",
	}}
	mgr, _ := newTestManager(t, testEngineConfig(), backend)

	id, err := mgr.StartAnalysis(context.Background(), testAnalyzeRequest())
	if err != nil {
		t.Fatalf("StartAnalysis: %v", err)
	}

	snap := waitTerminal(t, mgr, id)
	if snap.Session.Status != domain.SessionStatusFailed {
		t.Fatalf("expected failed status, got %s", snap.Session.Status)
	}
	if snap.Session.FailedKind != "stage_failure" {
		t.Fatalf("expected stage_failure kind, got %s", snap.Session.FailedKind)
	}
	if backend.portfolioCallCount() != 2 {
		t.Fatalf("expected exactly 2 portfolio attempts, got %d", backend.portfolioCallCount())
	}
}

func TestOutOfRangeConfidenceRejected(t *testing.T) {
	backend := &pipelineBackend{portfolioOutputs: []string{
		"FINAL TRANSACTION PROPOSAL: **BUY**\nConfidence: 1.4",
	}}
	mgr, _ := newTestManager(t, testEngineConfig(), backend)

	id, err := mgr.StartAnalysis(context.Background(), testAnalyzeRequest())
	if err != nil {
		t.Fatalf("StartAnalysis: %v", err)
	}

	snap := waitTerminal(t, mgr, id)
	if snap.Session.Status != domain.SessionStatusFailed {
		t.Fatalf("expected failed status for an out-of-range confidence, got %s", snap.Session.Status)
	}
}

func TestGetSnapshotUnknownSession(t *testing.T) {
	mgr, _ := newTestManager(t, testEngineConfig(), &pipelineBackend{})
	if _, err := mgr.GetSnapshot(context.Background(), "missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestShutdownCancelsLiveSessions(t *testing.T) {
	backend := &pipelineBackend{blockAll: true}
	mgr, _ := newTestManager(t, testEngineConfig(), backend)

	id, err := mgr.StartAnalysis(context.Background(), testAnalyzeRequest())
	if err != nil {
		t.Fatalf("StartAnalysis: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := mgr.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	snap, err := mgr.GetSnapshot(context.Background(), id)
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if snap.Session.Status != domain.SessionStatusCancelled {
		t.Fatalf("expected the shut-down session to be cancelled, got %s", snap.Session.Status)
	}
}
