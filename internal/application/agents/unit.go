package agents

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/arbiterhq/arbiter/internal/application/state"
	"github.com/arbiterhq/arbiter/internal/application/tools"
	"github.com/arbiterhq/arbiter/internal/domain"
	"github.com/arbiterhq/arbiter/internal/ports"
)

// Request carries the per-invocation context handed to a unit by the engine
// or the debate coordinator. Units are stateless across invocations; all
// produced state lives in the session state.
type Request struct {
	Session *domain.AnalysisSession
	Stage   domain.Stage

	// Attempt is 1 on the first run and 2 on a regeneration after a
	// structurally invalid output. It feeds into the prompt so the
	// regeneration is a fresh call rather than a cache replay.
	Attempt int

	// Debate-only fields: the current round (1-based) and the full prior
	// turn history of this debate. The full history, not a window, is
	// visible to every participant.
	Round      int
	Transcript []domain.Artifact
}

// Unit wraps one agent role: it builds its context from session state,
// invokes the LLM through the tool invoker, and parses the output into a
// typed artifact.
type Unit interface {
	Role() domain.Role
	Run(ctx context.Context, st *state.SessionState, req *Request) (domain.Artifact, error)
}

// Synthesis is a synthesizer's structured convergence decision. Resolve is
// a first-class field parsed from an explicit marker in the output, never
// inferred from sentiment.
type Synthesis struct {
	Resolve  bool
	Content  string
	Degraded bool
}

// Synthesizer judges a debate: after each round it decides continue or
// resolve; with final set it must produce the verdict regardless.
type Synthesizer interface {
	Role() domain.Role
	Converge(ctx context.Context, st *state.SessionState, req *Request, final bool) (*Synthesis, error)
}

// Models selects the generative models for the two thinking depths.
type Models struct {
	Quick       string
	Deep        string
	Temperature float64
	MaxTokens   int
}

// deps bundles what every unit needs.
type deps struct {
	invoker *tools.Invoker
	models  Models
	logger  *zap.Logger
}

// generate runs one llm.generate call through the invoker.
func (d *deps) generate(ctx context.Context, role domain.Role, stage domain.Stage, system, prompt string, deep bool) (string, error) {
	model := d.models.Quick
	if deep {
		model = d.models.Deep
	}
	req := &ports.ToolRequest{
		Tool:        "llm.generate",
		System:      system,
		Prompt:      prompt,
		Model:       model,
		MaxTokens:   d.models.MaxTokens,
		Temperature: d.models.Temperature,
	}
	resp, err := d.invoker.Invoke(ctx, tools.KeyFor(role, stage, req), req)
	if err != nil {
		return "", err
	}
	return resp.Output, nil
}

// fetch runs one vendor data call through the invoker.
func (d *deps) fetch(ctx context.Context, role domain.Role, stage domain.Stage, tool string, input map[string]string) (string, error) {
	req := &ports.ToolRequest{Tool: tool, Input: input}
	resp, err := d.invoker.Invoke(ctx, tools.KeyFor(role, stage, req), req)
	if err != nil {
		return "", err
	}
	return resp.Output, nil
}

// FormatTranscript renders debate turns as a labeled history block.
func FormatTranscript(turns []domain.Artifact) string {
	if len(turns) == 0 {
		return "(no prior turns)"
	}
	var b strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&b, "%s (round %d): %s\n\n", speakerLabel(t.Role), turnRound(t), t.Content)
	}
	return strings.TrimSpace(b.String())
}

func turnRound(a domain.Artifact) int {
	if a.Turn != nil {
		return a.Turn.Round
	}
	return 0
}

func speakerLabel(r domain.Role) string {
	switch r {
	case domain.RoleBullResearcher:
		return "Bull Researcher"
	case domain.RoleBearResearcher:
		return "Bear Researcher"
	case domain.RoleAggressiveRisk:
		return "Aggressive Analyst"
	case domain.RoleNeutralRisk:
		return "Neutral Analyst"
	case domain.RoleConservativeRisk:
		return "Conservative Analyst"
	case domain.RoleResearchManager:
		return "Research Manager"
	case domain.RoleRiskManager:
		return "Risk Manager"
	default:
		return string(r)
	}
}

// retryNote returns a corrective instruction for regeneration attempts.
// Folding the attempt into the prompt keeps the second call out of the
// tool cache.
func retryNote(attempt int) string {
	if attempt <= 1 {
		return ""
	}
	return "\n\nYour previous answer did not follow the required output format. Answer again and follow the output format exactly."
}

// reportBlock renders the latest analyst reports as prompt context.
func reportBlock(st *state.SessionState) string {
	reports := st.Reports()
	if len(reports) == 0 {
		return "(no analyst reports available)"
	}
	var b strings.Builder
	for _, r := range reports {
		fmt.Fprintf(&b, "## %s report\n%s\n\n", r.Role, r.Content)
	}
	return strings.TrimSpace(b.String())
}
