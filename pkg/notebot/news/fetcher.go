// Package news fetches headline feeds and composes the scheduled broadcasts
// the bot posts, plus the keyword-triggered replay of the latest one.
package news

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"github.com/jholhewres/notebot/pkg/notebot/metrics"
)

// ErrFetchFailed wraps every transport, status and parse failure.
var ErrFetchFailed = errors.New("news fetch failed")

const (
	DefaultFetchTimeout = 10 * time.Second
	DefaultMaxItems     = 3
	defaultMaxBodySize  = 5 << 20
	untitled            = "(untitled)"
)

// Headline is one feed entry.
type Headline struct {
	Title string
	Link  string
}

// FetcherConfig configures a Fetcher.
type FetcherConfig struct {
	Timeout     time.Duration
	MaxItems    int
	MaxBodySize int64
	UserAgent   string
}

// Fetcher retrieves and parses RSS/Atom feeds.
type Fetcher struct {
	client  *http.Client
	cfg     FetcherConfig
	policy  *bluemonday.Policy
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewSafeClient returns an HTTP client that refuses private, loopback and
// link-local destinations, including after DNS resolution.
func NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()
	return safeurl.Client(config).Client
}

// NewFetcher creates a Fetcher. A nil client gets NewSafeClient; a nil
// recorder discards metrics.
func NewFetcher(cfg FetcherConfig, client *http.Client, rec metrics.Recorder, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultFetchTimeout
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = DefaultMaxItems
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = defaultMaxBodySize
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "notebot/1.0 (+feed reader)"
	}
	if client == nil {
		client = NewSafeClient(cfg.Timeout)
	}
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Fetcher{
		client:  client,
		cfg:     cfg,
		policy:  bluemonday.StrictPolicy(),
		metrics: rec,
		logger:  logger.With("component", "news"),
	}
}

// Fetch returns up to MaxItems headlines from url. name labels logs and
// metrics. The request is bounded by the configured timeout.
func (f *Fetcher) Fetch(ctx context.Context, name, url string) ([]Headline, error) {
	start := time.Now()
	items, err := f.fetch(ctx, url)
	latency := time.Since(start)

	if err != nil {
		f.metrics.FeedFetched(name, metrics.ResultError, latency)
		f.logger.Warn("feed fetch failed", "feed", name, "url", url, "error", err)
		return nil, fmt.Errorf("%w: %s: %v", ErrFetchFailed, name, err)
	}
	f.metrics.FeedFetched(name, metrics.ResultOK, latency)
	f.logger.Debug("feed fetched", "feed", name, "items", len(items), "duration_ms", latency.Milliseconds())
	return items, nil
}

func (f *Fetcher) fetch(ctx context.Context, url string) ([]Headline, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parsing feed: %w", err)
	}

	n := min(len(feed.Items), f.cfg.MaxItems)
	items := make([]Headline, 0, n)
	for _, item := range feed.Items[:n] {
		items = append(items, Headline{
			Title: f.cleanTitle(item.Title),
			Link:  strings.TrimSpace(item.Link),
		})
	}
	return items, nil
}

// cleanTitle strips markup and collapses whitespace.
func (f *Fetcher) cleanTitle(title string) string {
	title = html.UnescapeString(f.policy.Sanitize(title))
	title = strings.Join(strings.Fields(title), " ")
	if title == "" {
		return untitled
	}
	return title
}
