package agents

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/arbiterhq/arbiter/internal/domain"
)

// Tolerant parsers for generated text. Extraction failure never fails a
// stage on its own: units fall back to raw narrative and mark the artifact
// degraded.

var (
	indicatorLine  = regexp.MustCompile(`(?m)^[\s\-\*\|]*([A-Za-z][A-Za-z0-9 /_().%-]{1,28}?)\s*[:|]\s*([^\s|].{0,60}?)\s*\|?\s*$`)
	actionMarker   = regexp.MustCompile(`(?i)FINAL\s+(?:TRANSACTION\s+PROPOSAL|DECISION|RECOMMENDATION)\s*[:\-]?\s*\**\s*(BUY|SELL|HOLD)`)
	actionToken    = regexp.MustCompile(`(?i)\b(BUY|SELL|HOLD)\b`)
	confidenceExpr = regexp.MustCompile(`(?i)confidence\s*[:=]?\s*\**\s*(-?\d+(?:\.\d+)?)\s*%?`)
	convergeLine   = regexp.MustCompile(`(?i)\bDECISION\s*[:\-]\s*\**\s*(RESOLVE|CONTINUE)\b`)
)

const maxIndicators = 12

// ParseIndicators extracts a small key/value indicator table from analyst
// narrative. It accepts "RSI: 61.2" style lines and markdown table rows;
// anything else is ignored.
func ParseIndicators(text string) map[string]string {
	matches := indicatorLine.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make(map[string]string, len(matches))
	for _, m := range matches {
		key := strings.TrimSpace(m[1])
		val := strings.TrimSpace(m[2])
		if key == "" || val == "" {
			continue
		}
		out[key] = val
		if len(out) >= maxIndicators {
			break
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// ParseDecision extracts the final decision from generated text. The action
// comes from an explicit FINAL TRANSACTION PROPOSAL marker when present,
// otherwise from the last standalone BUY/SELL/HOLD token. Confidence
// defaults to 0.5 when the text names none; a named confidence outside
// [0, 1] is preserved so structural validation can reject it.
func ParseDecision(text string) (*domain.FinalDecision, bool) {
	var action string
	if m := actionMarker.FindStringSubmatch(text); m != nil {
		action = m[1]
	} else {
		all := actionToken.FindAllStringSubmatch(text, -1)
		if len(all) > 0 {
			action = all[len(all)-1][1]
		}
	}
	if action == "" {
		return nil, false
	}

	confidence := 0.5
	if m := confidenceExpr.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			if strings.HasSuffix(strings.TrimSpace(m[0]), "%") {
				v /= 100
			}
			confidence = v
		}
	}

	return &domain.FinalDecision{
		Action:     domain.DecisionAction(strings.ToLower(action)),
		Confidence: confidence,
		Rationale:  strings.TrimSpace(text),
	}, true
}

// convergencePayload is the structured form a synthesizer may answer with.
type convergencePayload struct {
	Decision string `json:"decision"`
	Verdict  string `json:"verdict"`
}

// ParseConvergence extracts the synthesizer's resolve/continue decision.
// It tries a JSON object first, then an explicit DECISION: RESOLVE|CONTINUE
// line. ok is false when neither form is present; callers treat that as
// continue, bounded by the round limit.
func ParseConvergence(text string) (resolve bool, ok bool) {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") {
		var p convergencePayload
		if err := json.Unmarshal([]byte(trimmed), &p); err == nil && p.Decision != "" {
			return strings.EqualFold(p.Decision, "resolve"), true
		}
	}
	if m := convergeLine.FindStringSubmatch(text); m != nil {
		return strings.EqualFold(m[1], "RESOLVE"), true
	}
	return false, false
}
