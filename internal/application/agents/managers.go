package agents

import (
	"context"
	"fmt"

	"github.com/arbiterhq/arbiter/internal/application/state"
	"github.com/arbiterhq/arbiter/internal/domain"
)

// researchManagerUnit both synthesizes the bull/bear debate (Synthesizer)
// and produces the investment plan in the manager synthesis stage (Unit).
type researchManagerUnit struct {
	deps
}

func (u *researchManagerUnit) Role() domain.Role { return domain.RoleResearchManager }

// Run produces the synthesized research recommendation from the debate
// verdict plus all analyst reports.
func (u *researchManagerUnit) Run(ctx context.Context, st *state.SessionState, req *Request) (domain.Artifact, error) {
	verdict := "(no debate verdict available)"
	if a, ok := st.Verdict(domain.StageResearchDebate); ok {
		verdict = a.Content
	}

	prompt := fmt.Sprintf("%s\n\n# Debate verdict\n%s\n\n# Analyst reports\n%s\n\nProduce the investment plan.%s",
		subjectLine(req.Session), verdict, reportBlock(st), retryNote(req.Attempt))

	text, err := u.generate(ctx, domain.RoleResearchManager, req.Stage, managerPlanSystem, prompt, true)
	if err != nil {
		return domain.Artifact{}, err
	}

	return domain.Artifact{
		Stage:   req.Stage,
		Role:    domain.RoleResearchManager,
		Kind:    domain.ArtifactAnalystReport,
		Content: text,
		Report:  &domain.AnalystReport{},
	}, nil
}

// Converge judges the research debate after a round, or delivers the final
// verdict when forced at the round limit.
func (u *researchManagerUnit) Converge(ctx context.Context, st *state.SessionState, req *Request, final bool) (*Synthesis, error) {
	return converge(ctx, &u.deps, domain.RoleResearchManager, req,
		researchJudgeSystem, researchFinalSystem, final)
}

// riskManagerUnit synthesizes the risk debate.
type riskManagerUnit struct {
	deps
}

func (u *riskManagerUnit) Role() domain.Role { return domain.RoleRiskManager }

func (u *riskManagerUnit) Converge(ctx context.Context, st *state.SessionState, req *Request, final bool) (*Synthesis, error) {
	return converge(ctx, &u.deps, domain.RoleRiskManager, req,
		riskJudgeSystem, riskFinalSystem, final)
}

// converge runs the shared continue/resolve protocol for both debates.
func converge(ctx context.Context, d *deps, role domain.Role, req *Request, judgeSystem, finalSystem string, final bool) (*Synthesis, error) {
	transcript := FormatTranscript(req.Transcript)

	if final {
		prompt := fmt.Sprintf("%s\n\n# Full debate transcript\n%s\n\nDeliver the final verdict.",
			subjectLine(req.Session), transcript)
		text, err := d.generate(ctx, role, req.Stage, finalSystem, prompt, true)
		if err != nil {
			return nil, err
		}
		return &Synthesis{Resolve: true, Content: text}, nil
	}

	prompt := fmt.Sprintf("%s\n\n# Debate transcript after round %d\n%s\n\nHas the debate converged?",
		subjectLine(req.Session), req.Round, transcript)
	text, err := d.generate(ctx, role, req.Stage, judgeSystem, prompt, true)
	if err != nil {
		return nil, err
	}

	resolve, ok := ParseConvergence(text)
	if !ok {
		// An unparseable judgment continues the debate; the round limit
		// still bounds it.
		return &Synthesis{Resolve: false, Content: text, Degraded: true}, nil
	}
	return &Synthesis{Resolve: resolve, Content: text}, nil
}

// traderUnit turns the investment plan into a concrete strategy.
type traderUnit struct {
	deps
}

func (u *traderUnit) Role() domain.Role { return domain.RoleTrader }

func (u *traderUnit) Run(ctx context.Context, st *state.SessionState, req *Request) (domain.Artifact, error) {
	plan := "(no investment plan available)"
	if a, ok := st.LatestByKindRole(domain.ArtifactAnalystReport, domain.RoleResearchManager); ok {
		plan = a.Content
	}

	prompt := fmt.Sprintf("%s\n\n# Investment plan\n%s\n\nProduce the trading strategy.%s",
		subjectLine(req.Session), plan, retryNote(req.Attempt))

	text, err := u.generate(ctx, domain.RoleTrader, req.Stage, traderSystem, prompt, true)
	if err != nil {
		return domain.Artifact{}, err
	}

	return domain.Artifact{
		Stage:   req.Stage,
		Role:    domain.RoleTrader,
		Kind:    domain.ArtifactAnalystReport,
		Content: text,
		Report:  &domain.AnalystReport{},
	}, nil
}

// portfolioManagerUnit emits the final decision. Structural validity is the
// engine's concern; the unit reports parse failure through Degraded.
type portfolioManagerUnit struct {
	deps
}

func (u *portfolioManagerUnit) Role() domain.Role { return domain.RolePortfolioManager }

func (u *portfolioManagerUnit) Run(ctx context.Context, st *state.SessionState, req *Request) (domain.Artifact, error) {
	strategy := "(no trader strategy available)"
	if a, ok := st.LatestByKindRole(domain.ArtifactAnalystReport, domain.RoleTrader); ok {
		strategy = a.Content
	}
	riskVerdict := "(no risk verdict available)"
	if a, ok := st.Verdict(domain.StageRiskDebate); ok {
		riskVerdict = a.Content
	}

	prompt := fmt.Sprintf("%s\n\n# Trader strategy\n%s\n\n# Risk verdict\n%s\n\nMake the final call.%s",
		subjectLine(req.Session), strategy, riskVerdict, retryNote(req.Attempt))

	text, err := u.generate(ctx, domain.RolePortfolioManager, req.Stage, portfolioSystem, prompt, true)
	if err != nil {
		return domain.Artifact{}, err
	}

	artifact := domain.Artifact{
		Stage:   req.Stage,
		Role:    domain.RolePortfolioManager,
		Kind:    domain.ArtifactFinalDecision,
		Content: text,
	}

	decision, ok := ParseDecision(text)
	if !ok {
		artifact.Degraded = true
		return artifact, nil
	}
	artifact.Decision = decision
	return artifact, nil
}
