package agents

import (
	"context"
	"fmt"

	"github.com/arbiterhq/arbiter/internal/application/state"
	"github.com/arbiterhq/arbiter/internal/domain"
)

// riskPersonaUnit implements the three risk debate participants. Their
// declared inputs are the trader strategy, the research plan and the risk
// debate transcript.
type riskPersonaUnit struct {
	deps
	role domain.Role
}

func newRiskPersona(d deps, role domain.Role) *riskPersonaUnit {
	return &riskPersonaUnit{deps: d, role: role}
}

func (u *riskPersonaUnit) Role() domain.Role { return u.role }

func (u *riskPersonaUnit) Run(ctx context.Context, st *state.SessionState, req *Request) (domain.Artifact, error) {
	persona := domain.RiskPersona(u.role)

	strategy := "(no trader strategy available)"
	if a, ok := st.LatestByKindRole(domain.ArtifactAnalystReport, domain.RoleTrader); ok {
		strategy = a.Content
	}

	system := fmt.Sprintf(riskPersonaSystemTemplate, persona)
	prompt := fmt.Sprintf("%s\n\n# Proposed strategy\n%s\n\n# Risk debate so far\n%s\n\nRound %d. State your %s position.",
		subjectLine(req.Session), strategy, FormatTranscript(req.Transcript), req.Round, persona)

	text, err := u.generate(ctx, u.role, req.Stage, system, prompt, true)
	if err != nil {
		return domain.Artifact{}, err
	}

	return domain.Artifact{
		Stage:   req.Stage,
		Role:    u.role,
		Kind:    domain.ArtifactRiskStance,
		Content: text,
		Stance:  &domain.RiskStance{Persona: persona},
		Turn:    &domain.DebateTurn{Round: req.Round},
	}, nil
}
