// Package fetcher handles feed downloading and parsing.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/sethvargo/go-retry"

	"newswire_bot/internal/model"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher downloads feed documents and parses them into items.
type Fetcher struct {
	client     HTTPClient
	timeout    time.Duration
	maxRetries uint64
	retryBase  time.Duration
}

// New creates a Fetcher with the given HTTP client.
func New(client HTTPClient) *Fetcher {
	return &Fetcher{
		client:     client,
		timeout:    30 * time.Second,
		maxRetries: 2,
		retryBase:  500 * time.Millisecond,
	}
}

// SetRetryPolicy overrides the default retry budget and backoff base.
func (f *Fetcher) SetRetryPolicy(maxRetries uint64, base time.Duration) {
	f.maxRetries = maxRetries
	f.retryBase = base
}

// Fetch downloads and parses the feed at url. Items come back in
// oldest-first order (providers list newest first) with HTML line
// breaks in descriptions normalized to plain newlines. An empty feed
// is an error; the caller skips the feed for the pass.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]model.Item, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	var body []byte
	backoff := retry.WithMaxRetries(f.maxRetries, retry.NewExponential(f.retryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		data, err := f.download(ctx, url)
		if err != nil {
			return err
		}
		body = data
		return nil
	})
	if err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	if len(feed.Items) == 0 {
		return nil, fmt.Errorf("feed %q has no entries", url)
	}

	items := make([]model.Item, 0, len(feed.Items))
	for i := len(feed.Items) - 1; i >= 0; i-- {
		entry := feed.Items[i]
		items = append(items, model.Item{
			Link:        entry.Link,
			Description: normalizeBreaks(entry.Description),
		})
	}
	return items, nil
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "NewswireBot/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, retry.RetryableError(fmt.Errorf("http get: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, retry.RetryableError(fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5*1024*1024))
	if err != nil {
		return nil, retry.RetryableError(fmt.Errorf("read body: %w", err))
	}
	return body, nil
}

var breakReplacer = strings.NewReplacer(
	"<br />", "\n",
	"<br/>", "\n",
	"<br>", "\n",
)

func normalizeBreaks(s string) string {
	return breakReplacer.Replace(s)
}
