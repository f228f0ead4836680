package domain

import "time"

// SessionStatus is the lifecycle status of an analysis session.
type SessionStatus string

const (
	SessionStatusPending   SessionStatus = "pending"
	SessionStatusRunning   SessionStatus = "running"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusFailed    SessionStatus = "failed"
	SessionStatusCancelled SessionStatus = "cancelled"
)

// Terminal reports whether the status is a terminal state.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusFailed || s == SessionStatusCancelled
}

// Stage identifies one step of the deliberation state machine.
type Stage string

const (
	StageInitializing      Stage = "initializing"
	StageAnalysts          Stage = "analyst_stage"
	StageResearchDebate    Stage = "research_debate"
	StageManagerSynthesis  Stage = "manager_synthesis"
	StageTrader            Stage = "trader_stage"
	StageRiskDebate        Stage = "risk_debate"
	StagePortfolioDecision Stage = "portfolio_decision"
	StageCompleted         Stage = "completed"
)

// Stages lists the working stages in execution order.
var Stages = []Stage{
	StageAnalysts,
	StageResearchDebate,
	StageManagerSynthesis,
	StageTrader,
	StageRiskDebate,
	StagePortfolioDecision,
}

// AnalyzeRequest is the inbound request that creates a session. Malformed
// rosters and non-positive depth/lookback are rejected synchronously.
type AnalyzeRequest struct {
	Symbol        string `json:"symbol"`
	AsOfDate      string `json:"as_of_date"` // YYYY-MM-DD
	AnalystRoster []Role `json:"analysts"`
	ResearchDepth int    `json:"research_depth"`
	LookbackDays  int    `json:"lookback_days"`
}

// AnalysisSession identifies one end-to-end run for one symbol/date.
// It is owned exclusively by the orchestration engine and mutated only
// through stage transitions.
type AnalysisSession struct {
	ID            string        `json:"id"`
	Symbol        string        `json:"symbol"`
	AsOfDate      string        `json:"as_of_date"`
	AnalystRoster []Role        `json:"analysts"`
	ResearchDepth int           `json:"research_depth"`
	LookbackDays  int           `json:"lookback_days"`
	Stage         Stage         `json:"stage"`
	Status        SessionStatus `json:"status"`
	Error         string        `json:"error,omitempty"`
	FailedKind    string        `json:"failed_kind,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
}

// SessionSnapshot is the archived form of a session: the record plus its
// full append-only artifact history.
type SessionSnapshot struct {
	Session   AnalysisSession `json:"session"`
	Artifacts []Artifact      `json:"artifacts"`
}
