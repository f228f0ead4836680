// Package news provides headline retrieval from the Google News RSS feed.
package news

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/arbiterhq/arbiter/internal/domain"
)

const maxHeadlines = 15

type rssFeed struct {
	XMLName xml.Name   `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title string    `xml:"title"`
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title   string    `xml:"title"`
	Link    string    `xml:"link"`
	PubDate string    `xml:"pubDate"`
	Source  rssSource `xml:"source"`
}

type rssSource struct {
	URL  string `xml:"url,attr"`
	Text string `xml:",chardata"`
}

// Client fetches recent headlines for a symbol from the Google News RSS
// search feed. No API key is required.
type Client struct {
	client  *resty.Client
	baseURL string
	logger  *zap.Logger
}

// NewClient creates a news client.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")

	return &Client{client: client, baseURL: baseURL, logger: logger}
}

// Headlines returns recent headlines mentioning the symbol within the
// lookback window, newest first, as a prompt-ready text block.
func (c *Client) Headlines(ctx context.Context, symbol string, lookbackDays int) (string, error) {
	query := fmt.Sprintf("%s stock when:%dd", symbol, lookbackDays)
	feedURL := fmt.Sprintf("%s/search?q=%s&hl=en-US&gl=US&ceid=US:en",
		strings.TrimSuffix(c.baseURL, "/"), url.QueryEscape(query))

	resp, err := c.client.R().SetContext(ctx).Get(feedURL)
	if err != nil {
		return "", domain.Transient(fmt.Errorf("news feed: %w", err))
	}
	if resp.StatusCode() == 429 || resp.StatusCode() >= 500 {
		return "", domain.Transient(fmt.Errorf("news feed: status %d", resp.StatusCode()))
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("news feed: status %d", resp.StatusCode())
	}

	var feed rssFeed
	if err := xml.Unmarshal(resp.Body(), &feed); err != nil {
		return "", fmt.Errorf("news feed: parse rss: %w", err)
	}
	if len(feed.Channel.Items) == 0 {
		return fmt.Sprintf("no recent headlines found for %s", symbol), nil
	}

	var b strings.Builder
	for i, item := range feed.Channel.Items {
		if i >= maxHeadlines {
			break
		}
		source := item.Source.Text
		if source == "" {
			source = "unknown"
		}
		fmt.Fprintf(&b, "- %s (%s, %s)\n", strings.TrimSpace(item.Title), source, item.PubDate)
	}
	return strings.TrimSpace(b.String()), nil
}
