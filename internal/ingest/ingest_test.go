package ingest

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"newswire_bot/internal/fetcher"
	"newswire_bot/internal/model"
	"newswire_bot/internal/storage"
)

// routedHTTP serves a canned body per request URL; unknown URLs fail.
type routedHTTP struct {
	bodies map[string]string
}

func (m *routedHTTP) Do(req *http.Request) (*http.Response, error) {
	body, ok := m.bodies[req.URL.String()]
	if !ok {
		return nil, io.ErrUnexpectedEOF
	}
	return &http.Response{
		StatusCode: 200,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}, nil
}

func newTestStore(t *testing.T) *storage.SQLite {
	t.Helper()
	s, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestPoller(store storage.Storage, client fetcher.HTTPClient) *Poller {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := fetcher.New(client)
	f.SetRetryPolicy(0, time.Millisecond)
	return New(store, f, log, time.Minute)
}

func loadFixture(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile("../../testdata/sample.xml")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return string(data)
}

func subscribe(t *testing.T, store storage.Storage, userID int64, feedURL string) {
	t.Helper()
	ctx := context.Background()
	if err := store.EnsureUser(ctx, userID); err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	if err := store.AddSubscription(ctx, userID, feedURL, model.RuleDefault); err != nil {
		t.Fatalf("add subscription: %v", err)
	}
}

func unsentLinks(t *testing.T, store storage.Storage, userID int64) []string {
	t.Helper()
	items, err := store.ListUnsent(context.Background(), userID)
	if err != nil {
		t.Fatalf("list unsent: %v", err)
	}
	var links []string
	for _, it := range items {
		links = append(links, it.Link)
	}
	return links
}

func TestPassRecordsNewItemsOldestFirst(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	subscribe(t, store, 1, "https://example.com/rss")

	client := &routedHTTP{bodies: map[string]string{
		"https://example.com/rss": loadFixture(t),
	}}
	p := newTestPoller(store, client)

	p.pass(ctx)

	// The fixture lists posts newest-first; recording order must be
	// oldest-first so delivery goes out oldest-first too.
	want := []string{
		"http://example.com/posts/1",
		"http://example.com/posts/2",
		"http://example.com/posts/3",
	}
	if diff := cmp.Diff(want, unsentLinks(t, store, 1)); diff != "" {
		t.Errorf("recorded order mismatch (-want +got):\n%s", diff)
	}
}

func TestPassIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	subscribe(t, store, 1, "https://example.com/rss")

	client := &routedHTTP{bodies: map[string]string{
		"https://example.com/rss": loadFixture(t),
	}}
	p := newTestPoller(store, client)

	p.pass(ctx)
	first := unsentLinks(t, store, 1)

	p.pass(ctx)
	second := unsentLinks(t, store, 1)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second pass changed recorded items (-first +second):\n%s", diff)
	}
}

func TestPassContainsPerFeedFailures(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	// User 1 has a broken feed and a healthy one; user 2 only the
	// healthy one. The broken feed must not stop either of them.
	subscribe(t, store, 1, "https://broken.example.com/rss")
	subscribe(t, store, 1, "https://example.com/rss")
	subscribe(t, store, 2, "https://example.com/rss")

	client := &routedHTTP{bodies: map[string]string{
		"https://example.com/rss": loadFixture(t),
	}}
	p := newTestPoller(store, client)

	p.pass(ctx)

	if got := unsentLinks(t, store, 1); len(got) != 3 {
		t.Errorf("expected 3 items for user 1, got %d: %v", len(got), got)
	}
	if got := unsentLinks(t, store, 2); len(got) != 3 {
		t.Errorf("expected 3 items for user 2, got %d: %v", len(got), got)
	}
}

func TestPassSharedFeedRecordsOnce(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	subscribe(t, store, 1, "https://example.com/rss")
	subscribe(t, store, 2, "https://example.com/rss")

	client := &routedHTTP{bodies: map[string]string{
		"https://example.com/rss": loadFixture(t),
	}}
	p := newTestPoller(store, client)

	p.pass(ctx)

	stats, err := store.FeedLinkStats(ctx)
	if err != nil {
		t.Fatalf("feed stats: %v", err)
	}
	want := []model.FeedStat{{FeedURL: "https://example.com/rss", Links: 3}}
	if diff := cmp.Diff(want, stats); diff != "" {
		t.Errorf("link rows mismatch (-want +got):\n%s", diff)
	}

	// Both users still see every item as unsent.
	if got := unsentLinks(t, store, 1); len(got) != 3 {
		t.Errorf("expected 3 unsent for user 1, got %d", len(got))
	}
	if got := unsentLinks(t, store, 2); len(got) != 3 {
		t.Errorf("expected 3 unsent for user 2, got %d", len(got))
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	store := newTestStore(t)
	client := &routedHTTP{bodies: map[string]string{}}
	p := newTestPoller(store, client)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}
