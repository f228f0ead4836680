package state

import (
	"sync"
	"testing"

	"github.com/arbiterhq/arbiter/internal/domain"
)

func TestAppendAssignsSequence(t *testing.T) {
	st := New("sess-1")

	a := st.Append(domain.Artifact{
		Stage:   domain.StageAnalysts,
		Role:    domain.RoleMarketAnalyst,
		Kind:    domain.ArtifactAnalystReport,
		Content: "first",
	})
	b := st.Append(domain.Artifact{
		Stage:   domain.StageAnalysts,
		Role:    domain.RoleNewsAnalyst,
		Kind:    domain.ArtifactAnalystReport,
		Content: "second",
	})

	if a.Seq != 1 || b.Seq != 2 {
		t.Fatalf("expected seq 1 and 2, got %d and %d", a.Seq, b.Seq)
	}
	if a.CreatedAt.IsZero() || b.CreatedAt.IsZero() {
		t.Fatalf("expected CreatedAt to be populated")
	}
	if st.Len() != 2 {
		t.Fatalf("expected 2 artifacts, got %d", st.Len())
	}
}

func TestLatestReportTracksNewest(t *testing.T) {
	st := New("sess-1")

	st.Append(domain.Artifact{
		Stage:   domain.StageAnalysts,
		Role:    domain.RoleMarketAnalyst,
		Kind:    domain.ArtifactAnalystReport,
		Content: "old",
	})
	st.Append(domain.Artifact{
		Stage:   domain.StageAnalysts,
		Role:    domain.RoleMarketAnalyst,
		Kind:    domain.ArtifactAnalystReport,
		Content: "new",
	})

	got, ok := st.LatestReport(domain.RoleMarketAnalyst)
	if !ok {
		t.Fatalf("expected a report for the market analyst")
	}
	if got.Content != "new" {
		t.Fatalf("expected latest report, got %q", got.Content)
	}
	if _, ok := st.LatestReport(domain.RoleSocialAnalyst); ok {
		t.Fatalf("expected no report for the social analyst")
	}
}

func TestReportsFollowCanonicalOrder(t *testing.T) {
	st := New("sess-1")

	// Appended out of canonical order on purpose.
	st.Append(domain.Artifact{Stage: domain.StageAnalysts, Role: domain.RoleNewsAnalyst, Kind: domain.ArtifactAnalystReport, Content: "news"})
	st.Append(domain.Artifact{Stage: domain.StageAnalysts, Role: domain.RoleMarketAnalyst, Kind: domain.ArtifactAnalystReport, Content: "market"})

	reports := st.Reports()
	if len(reports) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(reports))
	}
	if reports[0].Role != domain.RoleMarketAnalyst || reports[1].Role != domain.RoleNewsAnalyst {
		t.Fatalf("expected canonical roster order, got %s then %s", reports[0].Role, reports[1].Role)
	}
}

func TestVerdictAndDecisionIndices(t *testing.T) {
	st := New("sess-1")

	st.Append(domain.Artifact{
		Stage:   domain.StageResearchDebate,
		Role:    domain.RoleResearchManager,
		Kind:    domain.ArtifactDebateVerdict,
		Content: "verdict",
		Verdict: &domain.DebateVerdict{ResolvedBy: domain.ResolvedByConvergence, Rounds: 2},
	})
	st.Append(domain.Artifact{
		Stage:    domain.StagePortfolioDecision,
		Role:     domain.RolePortfolioManager,
		Kind:     domain.ArtifactFinalDecision,
		Content:  "hold it",
		Decision: &domain.FinalDecision{Action: domain.ActionHold, Confidence: 0.6},
	})

	v, ok := st.Verdict(domain.StageResearchDebate)
	if !ok || v.Verdict == nil || v.Verdict.Rounds != 2 {
		t.Fatalf("expected research debate verdict with 2 rounds, got %+v ok=%v", v, ok)
	}
	if _, ok := st.Verdict(domain.StageRiskDebate); ok {
		t.Fatalf("expected no risk debate verdict")
	}

	d, ok := st.Decision()
	if !ok || d.Decision == nil || d.Decision.Action != domain.ActionHold {
		t.Fatalf("expected hold decision, got %+v ok=%v", d, ok)
	}
}

func TestTurnsForStageIncludesRiskStances(t *testing.T) {
	st := New("sess-1")

	st.Append(domain.Artifact{
		Stage:   domain.StageRiskDebate,
		Role:    domain.RoleAggressiveRisk,
		Kind:    domain.ArtifactRiskStance,
		Content: "push harder",
		Turn:    &domain.DebateTurn{Round: 1},
		Stance:  &domain.RiskStance{Persona: "aggressive"},
	})
	st.Append(domain.Artifact{
		Stage:   domain.StageRiskDebate,
		Role:    domain.RoleRiskManager,
		Kind:    domain.ArtifactDebateVerdict,
		Content: "verdict",
		Verdict: &domain.DebateVerdict{ResolvedBy: domain.ResolvedByRoundLimit, Rounds: 1},
	})
	st.Append(domain.Artifact{
		Stage:   domain.StageResearchDebate,
		Role:    domain.RoleBullResearcher,
		Kind:    domain.ArtifactDebateTurn,
		Content: "bull case",
		Turn:    &domain.DebateTurn{Round: 1},
	})

	turns := st.TurnsForStage(domain.StageRiskDebate)
	if len(turns) != 1 {
		t.Fatalf("expected 1 risk debate turn, got %d", len(turns))
	}
	if turns[0].Role != domain.RoleAggressiveRisk {
		t.Fatalf("expected the aggressive stance, got %s", turns[0].Role)
	}
}

func TestArtifactsReturnsCopy(t *testing.T) {
	st := New("sess-1")
	st.Append(domain.Artifact{Stage: domain.StageAnalysts, Role: domain.RoleMarketAnalyst, Kind: domain.ArtifactAnalystReport, Content: "original"})

	out := st.Artifacts()
	out[0].Content = "mutated"

	again := st.Artifacts()
	if again[0].Content != "original" {
		t.Fatalf("expected stored artifact to be unaffected, got %q", again[0].Content)
	}
}

func TestConcurrentAppendsKeepDenseSequence(t *testing.T) {
	st := New("sess-1")

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st.Append(domain.Artifact{
				Stage: domain.StageAnalysts,
				Role:  domain.RoleMarketAnalyst,
				Kind:  domain.ArtifactAnalystReport,
			})
		}()
	}
	wg.Wait()

	arts := st.Artifacts()
	if len(arts) != n {
		t.Fatalf("expected %d artifacts, got %d", n, len(arts))
	}
	for i, a := range arts {
		if a.Seq != int64(i+1) {
			t.Fatalf("expected dense sequence, artifact %d has seq %d", i, a.Seq)
		}
	}
}
