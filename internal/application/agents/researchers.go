package agents

import (
	"context"
	"fmt"

	"github.com/arbiterhq/arbiter/internal/application/state"
	"github.com/arbiterhq/arbiter/internal/domain"
)

// researcherUnit implements the bull and bear debate participants. Their
// declared inputs are the analyst reports plus the full prior transcript of
// the current debate.
type researcherUnit struct {
	deps
	role     domain.Role
	stance   string
	opponent domain.Role
}

func newResearcher(d deps, role domain.Role, stance string, opponent domain.Role) *researcherUnit {
	return &researcherUnit{deps: d, role: role, stance: stance, opponent: opponent}
}

func (u *researcherUnit) Role() domain.Role { return u.role }

func (u *researcherUnit) Run(ctx context.Context, st *state.SessionState, req *Request) (domain.Artifact, error) {
	system := fmt.Sprintf(researcherSystemTemplate, u.stance)
	prompt := fmt.Sprintf("%s\n\n# Analyst reports\n%s\n\n# Debate so far\n%s\n\nRound %d. Make your strongest %s argument now.",
		subjectLine(req.Session), reportBlock(st), FormatTranscript(req.Transcript), req.Round, u.stance)

	text, err := u.generate(ctx, u.role, req.Stage, system, prompt, true)
	if err != nil {
		return domain.Artifact{}, err
	}

	turn := &domain.DebateTurn{Round: req.Round}
	if hasSpoken(req.Transcript, u.opponent) {
		turn.RebuttalOf = u.opponent
	}

	return domain.Artifact{
		Stage:   req.Stage,
		Role:    u.role,
		Kind:    domain.ArtifactDebateTurn,
		Content: text,
		Turn:    turn,
	}, nil
}

func hasSpoken(transcript []domain.Artifact, role domain.Role) bool {
	for _, t := range transcript {
		if t.Role == role {
			return true
		}
	}
	return false
}
