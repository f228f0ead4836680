// Package tools routes named tool requests to concrete vendor backends.
package tools

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/arbiterhq/arbiter/internal/ports"
)

// MarketProvider serves price data and fundamentals.
type MarketProvider interface {
	Quote(ctx context.Context, symbol string) (string, error)
	Candles(ctx context.Context, symbol, asOf string, lookbackDays int) (string, error)
	Profile(ctx context.Context, symbol string) (string, error)
	Sentiment(ctx context.Context, symbol string) (string, error)
}

// NewsProvider serves recent headlines.
type NewsProvider interface {
	Headlines(ctx context.Context, symbol string, lookbackDays int) (string, error)
}

// Router is the single ToolBackend the engine talks to. It dispatches by
// tool name:
//
//	llm.generate         -> the configured LLM client
//	market.quote         -> market data vendor
//	market.candles       -> market data vendor
//	fundamentals.profile -> market data vendor
//	social.sentiment     -> market data vendor
//	news.headlines       -> news feed
type Router struct {
	llm     ports.LLMClient
	market  MarketProvider
	news    NewsProvider
	metrics ports.MetricsCollector
	logger  *zap.Logger
}

// NewRouter creates the tool router.
func NewRouter(llm ports.LLMClient, market MarketProvider, news NewsProvider, metrics ports.MetricsCollector, logger *zap.Logger) *Router {
	return &Router{llm: llm, market: market, news: news, metrics: metrics, logger: logger}
}

// Call performs one live tool call. Call-level metrics are recorded by
// the invoker; the router only accounts for token usage.
func (r *Router) Call(ctx context.Context, req *ports.ToolRequest) (*ports.ToolResponse, error) {
	if req.Tool == "llm.generate" {
		return r.generate(ctx, req)
	}

	symbol := req.Input["symbol"]
	if symbol == "" {
		return nil, fmt.Errorf("tool %s: missing symbol", req.Tool)
	}
	asOf := req.Input["date"]
	lookback, _ := strconv.Atoi(req.Input["lookback"])
	if lookback < 1 {
		lookback = 30
	}

	var (
		out string
		err error
	)
	switch req.Tool {
	case "market.quote":
		out, err = r.market.Quote(ctx, symbol)
	case "market.candles":
		out, err = r.market.Candles(ctx, symbol, asOf, lookback)
	case "fundamentals.profile":
		out, err = r.market.Profile(ctx, symbol)
	case "social.sentiment":
		out, err = r.market.Sentiment(ctx, symbol)
	case "news.headlines":
		out, err = r.news.Headlines(ctx, symbol, lookback)
	default:
		return nil, fmt.Errorf("unknown tool %q", req.Tool)
	}
	if err != nil {
		return nil, err
	}
	return &ports.ToolResponse{Output: out}, nil
}

func (r *Router) generate(ctx context.Context, req *ports.ToolRequest) (*ports.ToolResponse, error) {
	resp, err := r.llm.Complete(ctx, &ports.CompletionRequest{
		Model:       req.Model,
		System:      req.System,
		Prompt:      req.Prompt,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, err
	}

	r.metrics.RecordLLMTokens(resp.Model, resp.InputTokens, resp.OutputTokens)
	return &ports.ToolResponse{Output: resp.Text, Model: resp.Model}, nil
}
