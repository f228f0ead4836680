package tools

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/arbiterhq/arbiter/internal/ports"
	"github.com/arbiterhq/arbiter/pkg/adapters/metrics/noop"
)

type fakeMarket struct {
	lastCall     string
	lastSymbol   string
	lastLookback int
	err          error
}

func (m *fakeMarket) Quote(_ context.Context, symbol string) (string, error) {
	m.lastCall, m.lastSymbol = "quote", symbol
	return "quote data", m.err
}

func (m *fakeMarket) Candles(_ context.Context, symbol, _ string, lookbackDays int) (string, error) {
	m.lastCall, m.lastSymbol, m.lastLookback = "candles", symbol, lookbackDays
	return "candle data", m.err
}

func (m *fakeMarket) Profile(_ context.Context, symbol string) (string, error) {
	m.lastCall, m.lastSymbol = "profile", symbol
	return "profile data", m.err
}

func (m *fakeMarket) Sentiment(_ context.Context, symbol string) (string, error) {
	m.lastCall, m.lastSymbol = "sentiment", symbol
	return "sentiment data", m.err
}

type fakeNews struct {
	lastSymbol   string
	lastLookback int
}

func (n *fakeNews) Headlines(_ context.Context, symbol string, lookbackDays int) (string, error) {
	n.lastSymbol, n.lastLookback = symbol, lookbackDays
	return "headlines", nil
}

type fakeLLM struct {
	lastReq *ports.CompletionRequest
}

func (l *fakeLLM) Complete(_ context.Context, req *ports.CompletionRequest) (*ports.CompletionResponse, error) {
	l.lastReq = req
	return &ports.CompletionResponse{Text: "generated", Model: req.Model, InputTokens: 10, OutputTokens: 20}, nil
}

func TestRouterDispatchesVendorTools(t *testing.T) {
	tests := []struct {
		tool       string
		wantCall   string
		wantOutput string
	}{
		{tool: "market.quote", wantCall: "quote", wantOutput: "quote data"},
		{tool: "market.candles", wantCall: "candles", wantOutput: "candle data"},
		{tool: "fundamentals.profile", wantCall: "profile", wantOutput: "profile data"},
		{tool: "social.sentiment", wantCall: "sentiment", wantOutput: "sentiment data"},
	}

	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			market := &fakeMarket{}
			r := NewRouter(&fakeLLM{}, market, &fakeNews{}, noop.NewCollector(), zap.NewNop())

			resp, err := r.Call(context.Background(), &ports.ToolRequest{
				Tool:  tt.tool,
				Input: map[string]string{"symbol": "AAPL", "date": "2024-03-15", "lookback": "60"},
			})
			if err != nil {
				t.Fatalf("Call: %v", err)
			}
			if resp.Output != tt.wantOutput {
				t.Fatalf("expected %q, got %q", tt.wantOutput, resp.Output)
			}
			if market.lastCall != tt.wantCall || market.lastSymbol != "AAPL" {
				t.Fatalf("expected %s(AAPL), got %s(%s)", tt.wantCall, market.lastCall, market.lastSymbol)
			}
		})
	}
}

func TestRouterDispatchesNews(t *testing.T) {
	news := &fakeNews{}
	r := NewRouter(&fakeLLM{}, &fakeMarket{}, news, noop.NewCollector(), zap.NewNop())

	resp, err := r.Call(context.Background(), &ports.ToolRequest{
		Tool:  "news.headlines",
		Input: map[string]string{"symbol": "AAPL", "lookback": "7"},
	})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if resp.Output != "headlines" {
		t.Fatalf("expected headlines, got %q", resp.Output)
	}
	if news.lastSymbol != "AAPL" || news.lastLookback != 7 {
		t.Fatalf("expected Headlines(AAPL, 7), got (%s, %d)", news.lastSymbol, news.lastLookback)
	}
}

func TestRouterGenerate(t *testing.T) {
	llm := &fakeLLM{}
	r := NewRouter(llm, &fakeMarket{}, &fakeNews{}, noop.NewCollector(), zap.NewNop())

	resp, err := r.Call(context.Background(), &ports.ToolRequest{
		Tool:        "llm.generate",
		System:      "system prompt",
		Prompt:      "user prompt",
		Model:       "deep",
		MaxTokens:   256,
		Temperature: 0.7,
	})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if resp.Output != "generated" || resp.Model != "deep" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if llm.lastReq == nil || llm.lastReq.System != "system prompt" || llm.lastReq.MaxTokens != 256 {
		t.Fatalf("completion request not forwarded: %+v", llm.lastReq)
	}
}

func TestRouterDefaultsLookback(t *testing.T) {
	market := &fakeMarket{}
	r := NewRouter(&fakeLLM{}, market, &fakeNews{}, noop.NewCollector(), zap.NewNop())

	if _, err := r.Call(context.Background(), &ports.ToolRequest{
		Tool:  "market.candles",
		Input: map[string]string{"symbol": "AAPL"},
	}); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if market.lastLookback != 30 {
		t.Fatalf("expected the 30 day default, got %d", market.lastLookback)
	}
}

func TestRouterRejectsMissingSymbol(t *testing.T) {
	r := NewRouter(&fakeLLM{}, &fakeMarket{}, &fakeNews{}, noop.NewCollector(), zap.NewNop())
	if _, err := r.Call(context.Background(), &ports.ToolRequest{Tool: "market.quote"}); err == nil {
		t.Fatalf("expected an error for a missing symbol")
	}
}

func TestRouterUnknownTool(t *testing.T) {
	r := NewRouter(&fakeLLM{}, &fakeMarket{}, &fakeNews{}, noop.NewCollector(), zap.NewNop())
	if _, err := r.Call(context.Background(), &ports.ToolRequest{
		Tool:  "weather.forecast",
		Input: map[string]string{"symbol": "AAPL"},
	}); err == nil {
		t.Fatalf("expected an error for an unknown tool")
	}
}

func TestRouterPropagatesVendorError(t *testing.T) {
	vendorErr := errors.New("upstream unavailable")
	r := NewRouter(&fakeLLM{}, &fakeMarket{err: vendorErr}, &fakeNews{}, noop.NewCollector(), zap.NewNop())

	_, err := r.Call(context.Background(), &ports.ToolRequest{
		Tool:  "market.quote",
		Input: map[string]string{"symbol": "AAPL"},
	})
	if !errors.Is(err, vendorErr) {
		t.Fatalf("expected the vendor error, got %v", err)
	}
}
