package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/arbiterhq/arbiter/internal/application/agents"
	"github.com/arbiterhq/arbiter/internal/application/debate"
	"github.com/arbiterhq/arbiter/internal/application/workers"
	"github.com/arbiterhq/arbiter/internal/domain"
)

// runAnalystStage fans the roster out over the dispatch pool. Analysts are
// independent: one failing is isolated, the stage fails only when every
// analyst fails.
func (m *Manager) runAnalystStage(ctx context.Context, rt *sessionRuntime) error {
	units := make([]agents.Unit, 0, len(rt.sess.AnalystRoster))
	for _, role := range rt.sess.AnalystRoster {
		u, ok := m.registry.Unit(role)
		if !ok {
			return &domain.ConfigurationError{Field: "analysts", Msg: fmt.Sprintf("unknown analyst role %q", role)}
		}
		units = append(units, u)
	}

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int64
	)

	for _, u := range units {
		u := u
		wg.Add(1)
		task := workers.Task{
			Label: fmt.Sprintf("%s/%s", rt.sess.ID, u.Role()),
			Run: func(context.Context) {
				defer wg.Done()
				if m.runAnalyst(ctx, rt, u) {
					succeeded.Add(1)
				}
			},
		}
		if err := m.pool.Submit(ctx, task); err != nil {
			wg.Done()
			if ctx.Err() != nil {
				break
			}
			m.logger.Warn("failed to dispatch analyst",
				zap.String("session_id", rt.sess.ID),
				zap.String("role", string(u.Role())),
				zap.Error(err))
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	if succeeded.Load() == 0 {
		return &domain.StageFailure{Stage: domain.StageAnalysts, Msg: "all analysts failed"}
	}
	return nil
}

// runAnalyst executes one analyst and records its report. Results arriving
// after a terminal transition are discarded by the runtime.
func (m *Manager) runAnalyst(ctx context.Context, rt *sessionRuntime, u agents.Unit) bool {
	rt.AgentStatus(u.Role(), "running")
	start := time.Now()

	report, err := u.Run(ctx, rt.st, &agents.Request{
		Session: rt.sess,
		Stage:   domain.StageAnalysts,
		Attempt: 1,
	})
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		m.metrics.RecordAgentRun(string(u.Role()), "failed", time.Since(start))
		rt.AgentStatus(u.Role(), "failed")
		m.logger.Warn("analyst failed",
			zap.String("session_id", rt.sess.ID),
			zap.String("role", string(u.Role())),
			zap.Error(err))
		return false
	}

	rt.RecordArtifact(report)
	status := "completed"
	if report.Degraded {
		status = "degraded"
	}
	m.metrics.RecordAgentRun(string(u.Role()), status, time.Since(start))
	rt.AgentStatus(u.Role(), status)
	return true
}

func (m *Manager) runResearchDebate(ctx context.Context, rt *sessionRuntime) error {
	return m.runDebate(ctx, rt, debate.Debate{
		Stage:        domain.StageResearchDebate,
		Participants: domain.ResearchDebateOrder,
		Synthesizer:  domain.RoleResearchManager,
		MaxRounds:    rt.sess.ResearchDepth,
	})
}

func (m *Manager) runRiskDebate(ctx context.Context, rt *sessionRuntime) error {
	rounds := rt.sess.ResearchDepth
	if rounds > m.cfg.MaxRiskRounds {
		rounds = m.cfg.MaxRiskRounds
	}
	return m.runDebate(ctx, rt, debate.Debate{
		Stage:        domain.StageRiskDebate,
		Participants: domain.RiskDebateOrder,
		Synthesizer:  domain.RoleRiskManager,
		MaxRounds:    rounds,
	})
}

func (m *Manager) runDebate(ctx context.Context, rt *sessionRuntime, deb debate.Debate) error {
	verdict, err := m.debates.Run(ctx, rt.st, rt.sess, deb, rt)
	if err != nil {
		return err
	}
	if verdict.Verdict != nil {
		m.metrics.RecordDebateRounds(string(deb.Stage), verdict.Verdict.Rounds)
	}
	return nil
}

func (m *Manager) runManagerSynthesis(ctx context.Context, rt *sessionRuntime) error {
	return m.runSingleUnit(ctx, rt, domain.RoleResearchManager, domain.StageManagerSynthesis, nil)
}

func (m *Manager) runTrader(ctx context.Context, rt *sessionRuntime) error {
	return m.runSingleUnit(ctx, rt, domain.RoleTrader, domain.StageTrader, nil)
}

// runPortfolioDecision requires a structurally valid final decision: a
// known action and a confidence within [0,1]. An invalid output gets
// exactly one regeneration before the stage fails.
func (m *Manager) runPortfolioDecision(ctx context.Context, rt *sessionRuntime) error {
	return m.runSingleUnit(ctx, rt, domain.RolePortfolioManager, domain.StagePortfolioDecision,
		func(a domain.Artifact) error {
			if a.Decision == nil {
				return errors.New("output carries no parseable decision")
			}
			if !a.Decision.Valid() {
				return fmt.Errorf("decision is structurally invalid: action %q confidence %v",
					a.Decision.Action, a.Decision.Confidence)
			}
			return nil
		})
}

// runSingleUnit executes one deliberation role, retrying once when the run
// fails transiently or produces output the check rejects.
func (m *Manager) runSingleUnit(ctx context.Context, rt *sessionRuntime, role domain.Role, stage domain.Stage, check func(domain.Artifact) error) error {
	u, ok := m.registry.Unit(role)
	if !ok {
		return &domain.ConfigurationError{Field: "role", Msg: fmt.Sprintf("role %q has no unit", role)}
	}

	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		rt.AgentStatus(role, "running")
		start := time.Now()

		artifact, err := u.Run(ctx, rt.st, &agents.Request{
			Session: rt.sess,
			Stage:   stage,
			Attempt: attempt,
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var tie *domain.ToolInvocationError
			if !errors.As(err, &tie) {
				m.metrics.RecordAgentRun(string(role), "failed", time.Since(start))
				rt.AgentStatus(role, "failed")
				return err
			}
			m.metrics.RecordAgentRun(string(role), "failed", time.Since(start))
			rt.AgentStatus(role, "failed")
			m.logger.Warn("unit run failed",
				zap.String("session_id", rt.sess.ID),
				zap.String("role", string(role)),
				zap.Int("attempt", attempt),
				zap.Error(err))
			lastErr = err
			continue
		}

		if check != nil {
			if verr := check(artifact); verr != nil {
				m.metrics.RecordAgentRun(string(role), "failed", time.Since(start))
				rt.AgentStatus(role, "failed")
				m.logger.Warn("unit output rejected",
					zap.String("session_id", rt.sess.ID),
					zap.String("role", string(role)),
					zap.Int("attempt", attempt),
					zap.Error(verr))
				lastErr = verr
				continue
			}
		}

		rt.RecordArtifact(artifact)
		status := "completed"
		if artifact.Degraded {
			status = "degraded"
		}
		m.metrics.RecordAgentRun(string(role), status, time.Since(start))
		rt.AgentStatus(role, status)
		return nil
	}

	return &domain.StageFailure{
		Stage: stage,
		Msg:   fmt.Sprintf("%s produced no usable output after regeneration", role),
		Err:   lastErr,
	}
}
