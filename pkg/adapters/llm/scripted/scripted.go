// Package scripted provides a deterministic LLM client for local runs and
// tests. Outputs follow the structured markers the engine's parsers expect,
// so a full pipeline can run without network access or an API key.
package scripted

import (
	"context"
	"strings"

	"github.com/arbiterhq/arbiter/internal/ports"
)

// Client generates canned completions keyed off the structural markers in
// the system prompt.
type Client struct{}

// NewClient creates a scripted client.
func NewClient() *Client {
	return &Client{}
}

// Complete returns a deterministic completion matching the output contract
// the system prompt asks for.
func (c *Client) Complete(_ context.Context, req *ports.CompletionRequest) (*ports.CompletionResponse, error) {
	text := narrative
	switch {
	case strings.Contains(req.System, "Indicators"):
		text = analystReport
	case strings.Contains(req.System, "DECISION: RESOLVE"):
		text = judgeResolve
	case strings.Contains(req.System, "FINAL TRANSACTION PROPOSAL"):
		text = finalDecision
	}

	return &ports.CompletionResponse{
		Text:         text,
		Model:        req.Model,
		InputTokens:  len(req.Prompt) / 4,
		OutputTokens: len(text) / 4,
	}, nil
}

const analystReport = `The symbol shows a constructive setup over the lookback window with
stable volume and no outsized drawdowns. Momentum is mildly positive and
sentiment is neutral.

## Indicators
trend: mildly positive
momentum: 0.6
volatility: moderate
sentiment: neutral`

const judgeResolve = `DECISION: RESOLVE

Both sides have fully aired their cases and the remaining disagreement is
about sizing, not direction. The balance of evidence supports a cautious
constructive stance.`

const finalDecision = `The strategy is consistent with the risk verdict and the downside is
bounded by the stated invalidation level. Committing to a measured position.

FINAL TRANSACTION PROPOSAL: **HOLD**
Confidence: 0.6`

const narrative = `The available evidence supports a cautious, well-hedged view. Position
the argument around the strongest analyst readings and the most recent
opposing points.`
