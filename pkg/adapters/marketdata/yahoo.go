package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/quote"
	"github.com/shopspring/decimal"

	"github.com/arbiterhq/arbiter/internal/domain"
)

// YahooClient serves quotes and candles from Yahoo Finance. It needs no
// API key, which makes it the default vendor when Finnhub is not
// configured. Yahoo has no profile or social sentiment coverage here.
type YahooClient struct{}

// NewYahooClient creates a Yahoo Finance client.
func NewYahooClient() *YahooClient {
	return &YahooClient{}
}

// Quote returns the latest quote as a text block.
func (y *YahooClient) Quote(_ context.Context, symbol string) (string, error) {
	q, err := quote.Get(symbol)
	if err != nil {
		return "", domain.Transient(fmt.Errorf("yahoo quote %s: %w", symbol, err))
	}
	if q == nil {
		return "", fmt.Errorf("no quote data for %s", symbol)
	}

	price := decimal.NewFromFloat(q.RegularMarketPrice)
	prev := decimal.NewFromFloat(q.RegularMarketPreviousClose)
	change := decimal.Zero
	if !prev.IsZero() {
		change = price.Sub(prev).Div(prev).Mul(decimal.NewFromInt(100))
	}

	return fmt.Sprintf(
		"price: %s\nopen: %s\nhigh: %s\nlow: %s\nprev close: %s\nday change: %s%%\nvolume: %d",
		price.StringFixed(2),
		decimal.NewFromFloat(q.RegularMarketOpen).StringFixed(2),
		decimal.NewFromFloat(q.RegularMarketDayHigh).StringFixed(2),
		decimal.NewFromFloat(q.RegularMarketDayLow).StringFixed(2),
		prev.StringFixed(2),
		change.StringFixed(2),
		q.RegularMarketVolume,
	), nil
}

// Candles returns a daily price history summary over the lookback window
// ending at asOf.
func (y *YahooClient) Candles(_ context.Context, symbol, asOf string, lookbackDays int) (string, error) {
	end, err := time.Parse("2006-01-02", asOf)
	if err != nil {
		end = time.Now().UTC()
	}
	start := end.AddDate(0, 0, -lookbackDays)

	iter := chart.Get(&chart.Params{
		Symbol:   symbol,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: datetime.OneDay,
	})

	var open, high, low, close []float64
	for iter.Next() {
		bar := iter.Bar()
		o, _ := bar.Open.Float64()
		h, _ := bar.High.Float64()
		l, _ := bar.Low.Float64()
		c, _ := bar.Close.Float64()
		open = append(open, o)
		high = append(high, h)
		low = append(low, l)
		close = append(close, c)
	}
	if err := iter.Err(); err != nil {
		return "", domain.Transient(fmt.Errorf("yahoo candles %s: %w", symbol, err))
	}
	if len(close) == 0 {
		return "", fmt.Errorf("no candle data for %s", symbol)
	}

	return summarizeCandles(open, high, low, close, lookbackDays), nil
}

// Profile reports no coverage; the tool router degrades the fundamentals
// analyst rather than failing it.
func (y *YahooClient) Profile(_ context.Context, symbol string) (string, error) {
	return "", fmt.Errorf("no fundamentals coverage for %s without a Finnhub API key", symbol)
}

// Sentiment reports no coverage.
func (y *YahooClient) Sentiment(_ context.Context, symbol string) (string, error) {
	return "", fmt.Errorf("no social sentiment coverage for %s without a Finnhub API key", symbol)
}
