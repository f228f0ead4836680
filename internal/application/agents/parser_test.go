package agents

import (
	"testing"

	"github.com/arbiterhq/arbiter/internal/domain"
)

func TestParseIndicators(t *testing.T) {
	tests := []struct {
		name string
		text string
		want map[string]string
	}{
		{
			name: "plain key value lines",
			text: "Momentum looks strong.\n\nIndicators\nRSI: 61.2\nSMA50: 187.40\n",
			want: map[string]string{"RSI": "61.2", "SMA50": "187.40"},
		},
		{
			name: "markdown list entries",
			text: "- P/E: 24.1\n- Dividend Yield: 0.5%\n",
			want: map[string]string{"P/E": "24.1", "Dividend Yield": "0.5%"},
		},
		{
			name: "no extractable table",
			text: "The company faces regulatory headwinds and a weakening consumer.",
			want: nil,
		},
		{
			name: "empty input",
			text: "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseIndicators(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d indicators, got %d: %v", len(tt.want), len(got), got)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Fatalf("indicator %q: expected %q, got %q", k, v, got[k])
				}
			}
		})
	}
}

func TestParseIndicatorsCapped(t *testing.T) {
	text := ""
	for i := 0; i < 30; i++ {
		text += "Metric" + string(rune('A'+i)) + ": 1.0\n"
	}
	got := ParseIndicators(text)
	if len(got) != maxIndicators {
		t.Fatalf("expected cap of %d indicators, got %d", maxIndicators, len(got))
	}
}

func TestParseDecision(t *testing.T) {
	tests := []struct {
		name           string
		text           string
		wantOK         bool
		wantAction     domain.DecisionAction
		wantConfidence float64
	}{
		{
			name:           "explicit marker with confidence",
			text:           "Risk is contained.\n\nFINAL TRANSACTION PROPOSAL: **BUY**\nConfidence: 0.8",
			wantOK:         true,
			wantAction:     domain.ActionBuy,
			wantConfidence: 0.8,
		},
		{
			name:           "marker wins over earlier tokens",
			text:           "I considered SELL but the data argues otherwise.\nFINAL TRANSACTION PROPOSAL: HOLD",
			wantOK:         true,
			wantAction:     domain.ActionHold,
			wantConfidence: 0.5,
		},
		{
			name:           "no marker falls back to last token",
			text:           "Arguments for BUY exist, but on balance I recommend SELL.",
			wantOK:         true,
			wantAction:     domain.ActionSell,
			wantConfidence: 0.5,
		},
		{
			name:           "percent confidence normalized",
			text:           "FINAL DECISION: SELL\nConfidence: 70%",
			wantOK:         true,
			wantAction:     domain.ActionSell,
			wantConfidence: 0.7,
		},
		{
			name:           "out of range confidence preserved",
			text:           "FINAL TRANSACTION PROPOSAL: **BUY**\nConfidence: 1.4",
			wantOK:         true,
			wantAction:     domain.ActionBuy,
			wantConfidence: 1.4,
		},
		{
			name:   "no action at all",
			text:   "The outlook is uncertain and I cannot commit to a position.",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDecision(tt.text)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if !ok {
				return
			}
			if got.Action != tt.wantAction {
				t.Fatalf("expected action %s, got %s", tt.wantAction, got.Action)
			}
			if got.Confidence != tt.wantConfidence {
				t.Fatalf("expected confidence %v, got %v", tt.wantConfidence, got.Confidence)
			}
		})
	}
}

func TestParseConvergence(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		wantResolve bool
		wantOK      bool
	}{
		{
			name:        "resolve line",
			text:        "DECISION: RESOLVE\n\nThe bull case holds up.",
			wantResolve: true,
			wantOK:      true,
		},
		{
			name:        "continue line",
			text:        "DECISION: CONTINUE\n\nThe bear has not addressed valuation.",
			wantResolve: false,
			wantOK:      true,
		},
		{
			name:        "json payload",
			text:        `{"decision": "resolve", "verdict": "converged"}`,
			wantResolve: true,
			wantOK:      true,
		},
		{
			name:        "markdown emphasis around the marker",
			text:        "DECISION: **RESOLVE**\nConverged.",
			wantResolve: true,
			wantOK:      true,
		},
		{
			name:   "no marker",
			text:   "Both sides made reasonable points.",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolve, ok := ParseConvergence(tt.text)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if ok && resolve != tt.wantResolve {
				t.Fatalf("expected resolve=%v, got %v", tt.wantResolve, resolve)
			}
		})
	}
}

func TestRetryNoteChangesPrompt(t *testing.T) {
	if retryNote(1) != "" {
		t.Fatalf("expected empty note on the first attempt")
	}
	if retryNote(2) == "" {
		t.Fatalf("expected a corrective note on regeneration")
	}
}
