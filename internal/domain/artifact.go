package domain

import "time"

// ArtifactKind discriminates the typed artifact payloads.
type ArtifactKind string

const (
	ArtifactAnalystReport ArtifactKind = "analyst_report"
	ArtifactDebateTurn    ArtifactKind = "debate_turn"
	ArtifactDebateVerdict ArtifactKind = "debate_verdict"
	ArtifactRiskStance    ArtifactKind = "risk_stance"
	ArtifactFinalDecision ArtifactKind = "final_decision"
)

// ResolvedBy records how a debate verdict was reached.
type ResolvedBy string

const (
	ResolvedByConvergence ResolvedBy = "convergence"
	ResolvedByRoundLimit  ResolvedBy = "round_limit"
)

// DecisionAction is the final recommendation enum.
type DecisionAction string

const (
	ActionBuy  DecisionAction = "buy"
	ActionSell DecisionAction = "sell"
	ActionHold DecisionAction = "hold"
)

// ValidAction reports whether a is a known decision action.
func ValidAction(a DecisionAction) bool {
	return a == ActionBuy || a == ActionSell || a == ActionHold
}

// AnalystReport carries the structured part of an analyst artifact.
type AnalystReport struct {
	// Indicators is a small table extracted from the narrative, for example
	// RSI or P/E readings. Extraction is tolerant; an empty map with
	// Degraded set on the artifact means the text could not be parsed.
	Indicators map[string]string `json:"indicators,omitempty"`
}

// DebateTurn records one participant turn in an adversarial exchange.
type DebateTurn struct {
	Round      int  `json:"round"`
	RebuttalOf Role `json:"rebuttal_of,omitempty"`
}

// DebateVerdict is the synthesizer's resolution of a debate.
type DebateVerdict struct {
	ResolvedBy ResolvedBy `json:"resolved_by"`
	Rounds     int        `json:"rounds"`
}

// RiskStance is one risk persona's position.
type RiskStance struct {
	Persona string `json:"persona"` // aggressive|neutral|conservative
}

// FinalDecision is the terminal recommendation artifact.
type FinalDecision struct {
	Action     DecisionAction `json:"action"`
	Confidence float64        `json:"confidence"` // in [0, 1]
	Rationale  string         `json:"rationale"`
}

// Valid reports whether the decision is structurally sound: known action
// enum and confidence inside [0, 1].
func (d *FinalDecision) Valid() bool {
	if d == nil {
		return false
	}
	return ValidAction(d.Action) && d.Confidence >= 0 && d.Confidence <= 1
}

// Artifact is one immutable unit of produced output, identified by
// (stage, role, sequence number) within a session. The typed payload
// pointer matching Kind is set; risk-stance artifacts additionally carry
// Turn so debate round bookkeeping stays uniform across both debates.
// Content always carries the full narrative text.
type Artifact struct {
	Seq       int64        `json:"seq"`
	Stage     Stage        `json:"stage"`
	Role      Role         `json:"role"`
	Kind      ArtifactKind `json:"kind"`
	Degraded  bool         `json:"degraded,omitempty"`
	Content   string       `json:"content"`
	CreatedAt time.Time    `json:"created_at"`

	Report   *AnalystReport `json:"report,omitempty"`
	Turn     *DebateTurn    `json:"turn,omitempty"`
	Verdict  *DebateVerdict `json:"verdict,omitempty"`
	Stance   *RiskStance    `json:"stance,omitempty"`
	Decision *FinalDecision `json:"decision,omitempty"`
}
