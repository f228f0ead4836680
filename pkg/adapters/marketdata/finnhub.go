package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/arbiterhq/arbiter/internal/domain"
)

// FinnhubClient serves quotes, daily candles, company profiles and social
// sentiment from the Finnhub REST API. HTTP failures and rate limits are
// marked transient so the tool invoker retries them.
type FinnhubClient struct {
	client *resty.Client
	apiKey string
	logger *zap.Logger
}

// NewFinnhubClient creates a Finnhub client.
func NewFinnhubClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *FinnhubClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout)

	return &FinnhubClient{client: client, apiKey: apiKey, logger: logger}
}

type finnhubQuote struct {
	Current  float64 `json:"c"`
	High     float64 `json:"h"`
	Low      float64 `json:"l"`
	Open     float64 `json:"o"`
	PrevDay  float64 `json:"pc"`
	UnixTime int64   `json:"t"`
}

// Quote returns the latest quote as a text block.
func (f *FinnhubClient) Quote(ctx context.Context, symbol string) (string, error) {
	var q finnhubQuote
	if err := f.get(ctx, "/quote", map[string]string{"symbol": symbol}, &q); err != nil {
		return "", err
	}
	if q.UnixTime == 0 && q.Current == 0 {
		return "", fmt.Errorf("no quote data for %s", symbol)
	}

	price := decimal.NewFromFloat(q.Current)
	prev := decimal.NewFromFloat(q.PrevDay)
	change := decimal.Zero
	if !prev.IsZero() {
		change = price.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100))
	}

	return fmt.Sprintf(
		"price: %s\nopen: %s\nhigh: %s\nlow: %s\nprev close: %s\nday change: %s%%",
		price.StringFixed(2),
		decimal.NewFromFloat(q.Open).StringFixed(2),
		decimal.NewFromFloat(q.High).StringFixed(2),
		decimal.NewFromFloat(q.Low).StringFixed(2),
		prev.StringFixed(2),
		change.StringFixed(2),
	), nil
}

type finnhubCandles struct {
	Close  []float64 `json:"c"`
	High   []float64 `json:"h"`
	Low    []float64 `json:"l"`
	Open   []float64 `json:"o"`
	Volume []float64 `json:"v"`
	Status string    `json:"s"`
}

// Candles returns a daily price history summary over the lookback window
// ending at asOf.
func (f *FinnhubClient) Candles(ctx context.Context, symbol, asOf string, lookbackDays int) (string, error) {
	end, err := time.Parse("2006-01-02", asOf)
	if err != nil {
		end = time.Now().UTC()
	}
	start := end.AddDate(0, 0, -lookbackDays)

	var c finnhubCandles
	err = f.get(ctx, "/stock/candle", map[string]string{
		"symbol":     symbol,
		"resolution": "D",
		"from":       fmt.Sprintf("%d", start.Unix()),
		"to":         fmt.Sprintf("%d", end.Unix()),
	}, &c)
	if err != nil {
		return "", err
	}
	if c.Status != "ok" || len(c.Close) == 0 {
		return "", fmt.Errorf("no candle data for %s", symbol)
	}

	return summarizeCandles(c.Open, c.High, c.Low, c.Close, lookbackDays), nil
}

type finnhubProfile struct {
	Name      string  `json:"name"`
	Exchange  string  `json:"exchange"`
	Industry  string  `json:"finnhubIndustry"`
	MarketCap float64 `json:"marketCapitalization"`
	SharesOut float64 `json:"shareOutstanding"`
	IPO       string  `json:"ipo"`
	Currency  string  `json:"currency"`
	Country   string  `json:"country"`
}

// Profile returns the company profile as a text block.
func (f *FinnhubClient) Profile(ctx context.Context, symbol string) (string, error) {
	var p finnhubProfile
	if err := f.get(ctx, "/stock/profile2", map[string]string{"symbol": symbol}, &p); err != nil {
		return "", err
	}
	if p.Name == "" {
		return "", fmt.Errorf("no profile data for %s", symbol)
	}

	return fmt.Sprintf(
		"name: %s\nexchange: %s\nindustry: %s\ncountry: %s\nmarket cap (M): %s\nshares outstanding (M): %s\nIPO: %s\ncurrency: %s",
		p.Name, p.Exchange, p.Industry, p.Country,
		decimal.NewFromFloat(p.MarketCap).StringFixed(1),
		decimal.NewFromFloat(p.SharesOut).StringFixed(1),
		p.IPO, p.Currency,
	), nil
}

type finnhubSentiment struct {
	Data []struct {
		AtTime          string  `json:"atTime"`
		Mention         int     `json:"mention"`
		PositiveMention int     `json:"positiveMention"`
		NegativeMention int     `json:"negativeMention"`
		Score           float64 `json:"score"`
	} `json:"data"`
	Symbol string `json:"symbol"`
}

// Sentiment returns aggregated social sentiment for the symbol.
func (f *FinnhubClient) Sentiment(ctx context.Context, symbol string) (string, error) {
	var s finnhubSentiment
	if err := f.get(ctx, "/stock/social-sentiment", map[string]string{"symbol": symbol}, &s); err != nil {
		return "", err
	}
	if len(s.Data) == 0 {
		return fmt.Sprintf("no social sentiment data available for %s", symbol), nil
	}

	var mentions, positive, negative int
	var score float64
	for _, d := range s.Data {
		mentions += d.Mention
		positive += d.PositiveMention
		negative += d.NegativeMention
		score += d.Score
	}
	score /= float64(len(s.Data))

	return fmt.Sprintf(
		"mentions: %d\npositive mentions: %d\nnegative mentions: %d\nmean sentiment score: %.3f",
		mentions, positive, negative, score,
	), nil
}

func (f *FinnhubClient) get(ctx context.Context, path string, params map[string]string, out interface{}) error {
	if f.apiKey == "" {
		return fmt.Errorf("finnhub API key not configured")
	}

	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetQueryParam("token", f.apiKey).
		Get(path)
	if err != nil {
		return domain.Transient(fmt.Errorf("finnhub %s: %w", path, err))
	}

	switch {
	case resp.StatusCode() == 429 || resp.StatusCode() >= 500:
		return domain.Transient(fmt.Errorf("finnhub %s: status %d", path, resp.StatusCode()))
	case resp.StatusCode() != 200:
		return fmt.Errorf("finnhub %s: status %d: %s", path, resp.StatusCode(), strings.TrimSpace(resp.String()))
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("finnhub %s: parse response: %w", path, err)
	}
	return nil
}

// summarizeCandles reduces a daily OHLC series to the readings analysts
// actually cite: period return, range, simple moving averages and realized
// volatility proxy.
func summarizeCandles(open, high, low, close []float64, lookbackDays int) string {
	n := len(close)
	first := decimal.NewFromFloat(close[0])
	last := decimal.NewFromFloat(close[n-1])

	ret := decimal.Zero
	if !first.IsZero() {
		ret = last.Sub(first).Div(first).Mul(decimal.NewFromInt(100))
	}

	maxHigh := decimal.NewFromFloat(high[0])
	minLow := decimal.NewFromFloat(low[0])
	for i := 1; i < n; i++ {
		if h := decimal.NewFromFloat(high[i]); h.GreaterThan(maxHigh) {
			maxHigh = h
		}
		if l := decimal.NewFromFloat(low[i]); l.LessThan(minLow) {
			minLow = l
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "sessions: %d (lookback %d days)\n", n, lookbackDays)
	fmt.Fprintf(&b, "period return: %s%%\n", ret.StringFixed(2))
	fmt.Fprintf(&b, "period high: %s\n", maxHigh.StringFixed(2))
	fmt.Fprintf(&b, "period low: %s\n", minLow.StringFixed(2))
	fmt.Fprintf(&b, "last close: %s\n", last.StringFixed(2))
	for _, window := range []int{20, 50} {
		if n >= window {
			fmt.Fprintf(&b, "SMA%d: %s\n", window, sma(close, window).StringFixed(2))
		}
	}
	return strings.TrimSpace(b.String())
}

func sma(close []float64, window int) decimal.Decimal {
	sum := decimal.Zero
	for _, v := range close[len(close)-window:] {
		sum = sum.Add(decimal.NewFromFloat(v))
	}
	return sum.Div(decimal.NewFromInt(int64(window)))
}
