package debate

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/arbiterhq/arbiter/internal/application/agents"
	"github.com/arbiterhq/arbiter/internal/application/state"
	"github.com/arbiterhq/arbiter/internal/domain"
)

// Recorder is the coordinator's view of the session runtime: it appends
// artifacts to session state and surfaces progress to observers.
type Recorder interface {
	RecordArtifact(a domain.Artifact) domain.Artifact
	AgentStatus(role domain.Role, status string)
}

// Debate describes one bounded adversarial exchange.
type Debate struct {
	Stage        domain.Stage
	Participants []domain.Role
	Synthesizer  domain.Role
	MaxRounds    int
}

// Coordinator runs bounded multi-round debates: a fixed turn rotation, a
// convergence check after every complete rotation, and a forced synthesis
// at the round limit. Debates always terminate within MaxRounds rotations
// plus one synthesis call.
type Coordinator struct {
	registry *agents.Registry
	logger   *zap.Logger
}

// NewCoordinator creates a debate coordinator over the role registry.
func NewCoordinator(registry *agents.Registry, logger *zap.Logger) *Coordinator {
	return &Coordinator{registry: registry, logger: logger}
}

// Run executes the debate and returns the recorded verdict artifact.
// Turns are strictly sequential: each turn's context includes the full
// prior turn history of this debate.
func (c *Coordinator) Run(ctx context.Context, st *state.SessionState, sess *domain.AnalysisSession, deb Debate, rec Recorder) (domain.Artifact, error) {
	if len(deb.Participants) < 2 {
		return domain.Artifact{}, &domain.ConfigurationError{Field: "participants", Msg: "debate needs at least two participants"}
	}
	if deb.MaxRounds < 1 {
		return domain.Artifact{}, &domain.ConfigurationError{Field: "max_rounds", Msg: "debate needs at least one round"}
	}

	units := make([]agents.Unit, 0, len(deb.Participants))
	for _, role := range deb.Participants {
		u, ok := c.registry.Unit(role)
		if !ok {
			return domain.Artifact{}, &domain.ConfigurationError{Field: "participants", Msg: fmt.Sprintf("unknown role %q", role)}
		}
		units = append(units, u)
	}
	syn, ok := c.registry.Synthesizer(deb.Synthesizer)
	if !ok {
		return domain.Artifact{}, &domain.ConfigurationError{Field: "synthesizer", Msg: fmt.Sprintf("role %q cannot synthesize", deb.Synthesizer)}
	}

	var transcript []domain.Artifact

	for round := 1; round <= deb.MaxRounds; round++ {
		for _, u := range units {
			// Safe point: no new turn is dispatched once the session
			// context is gone.
			if err := ctx.Err(); err != nil {
				return domain.Artifact{}, err
			}

			turn, err := c.takeTurn(ctx, st, u, &agents.Request{
				Session:    sess,
				Stage:      deb.Stage,
				Round:      round,
				Transcript: transcript,
			}, rec)
			if err != nil {
				return domain.Artifact{}, err
			}
			stored := rec.RecordArtifact(turn)
			transcript = append(transcript, stored)
		}

		synth, err := syn.Converge(ctx, st, &agents.Request{
			Session:    sess,
			Stage:      deb.Stage,
			Round:      round,
			Transcript: transcript,
		}, false)
		if err != nil {
			if ctx.Err() != nil {
				return domain.Artifact{}, ctx.Err()
			}
			var tie *domain.ToolInvocationError
			if !errors.As(err, &tie) {
				return domain.Artifact{}, err
			}
			// A failed convergence check keeps the debate going; the
			// round limit still bounds it.
			c.logger.Warn("convergence check failed, continuing debate",
				zap.String("stage", string(deb.Stage)),
				zap.Int("round", round),
				zap.Error(err))
			continue
		}

		if synth.Resolve {
			verdict := rec.RecordArtifact(domain.Artifact{
				Stage:    deb.Stage,
				Role:     deb.Synthesizer,
				Kind:     domain.ArtifactDebateVerdict,
				Degraded: synth.Degraded,
				Content:  synth.Content,
				Verdict: &domain.DebateVerdict{
					ResolvedBy: domain.ResolvedByConvergence,
					Rounds:     round,
				},
			})
			return verdict, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return domain.Artifact{}, err
	}

	// Round limit reached: force the synthesis on the full transcript.
	synth, err := syn.Converge(ctx, st, &agents.Request{
		Session:    sess,
		Stage:      deb.Stage,
		Round:      deb.MaxRounds,
		Transcript: transcript,
	}, true)
	if err != nil {
		if ctx.Err() != nil {
			return domain.Artifact{}, ctx.Err()
		}
		return domain.Artifact{}, &domain.StageFailure{
			Stage: deb.Stage,
			Msg:   "forced synthesis failed",
			Err:   err,
		}
	}

	verdict := rec.RecordArtifact(domain.Artifact{
		Stage:    deb.Stage,
		Role:     deb.Synthesizer,
		Kind:     domain.ArtifactDebateVerdict,
		Degraded: synth.Degraded,
		Content:  synth.Content,
		Verdict: &domain.DebateVerdict{
			ResolvedBy: domain.ResolvedByRoundLimit,
			Rounds:     deb.MaxRounds,
		},
	})
	return verdict, nil
}

// takeTurn runs one participant turn. A turn that raises a tool invocation
// error is retried once; a second failure is recorded as a degraded no-op
// turn so a single agent's transient failure never aborts the session.
func (c *Coordinator) takeTurn(ctx context.Context, st *state.SessionState, u agents.Unit, req *agents.Request, rec Recorder) (domain.Artifact, error) {
	rec.AgentStatus(u.Role(), "running")

	turn, err := u.Run(ctx, st, req)
	if err != nil {
		if ctx.Err() != nil {
			return domain.Artifact{}, ctx.Err()
		}
		var tie *domain.ToolInvocationError
		if !errors.As(err, &tie) {
			rec.AgentStatus(u.Role(), "failed")
			return domain.Artifact{}, err
		}

		turn, err = u.Run(ctx, st, req)
		if err != nil {
			if ctx.Err() != nil {
				return domain.Artifact{}, ctx.Err()
			}
			if !errors.As(err, &tie) {
				rec.AgentStatus(u.Role(), "failed")
				return domain.Artifact{}, err
			}
			c.logger.Warn("debate turn failed twice, recording no-op turn",
				zap.String("role", string(u.Role())),
				zap.Int("round", req.Round),
				zap.Error(err))
			rec.AgentStatus(u.Role(), "degraded")
			return noopTurn(u.Role(), req), nil
		}
	}

	status := "completed"
	if turn.Degraded {
		status = "degraded"
	}
	rec.AgentStatus(u.Role(), status)
	return turn, nil
}

// noopTurn is the degraded placeholder recorded for a participant whose
// turn could not be produced.
func noopTurn(role domain.Role, req *agents.Request) domain.Artifact {
	a := domain.Artifact{
		Stage:    req.Stage,
		Role:     role,
		Kind:     domain.ArtifactDebateTurn,
		Degraded: true,
		Content:  "no new analysis",
		Turn:     &domain.DebateTurn{Round: req.Round},
	}
	if persona := domain.RiskPersona(role); persona != "" {
		a.Kind = domain.ArtifactRiskStance
		a.Stance = &domain.RiskStance{Persona: persona}
	}
	return a
}
