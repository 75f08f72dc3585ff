// Package ingest implements the periodic feed polling loop.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"newswire_bot/internal/fetcher"
	"newswire_bot/internal/storage"
)

// Poller periodically sweeps every user's subscriptions, fetches the
// feeds and records items that have not been seen before. It shares
// nothing with the delivery loop except storage.
type Poller struct {
	store    storage.Storage
	fetcher  *fetcher.Fetcher
	log      *slog.Logger
	interval time.Duration
}

// New creates a Poller polling at the given interval.
func New(store storage.Storage, f *fetcher.Fetcher, log *slog.Logger, interval time.Duration) *Poller {
	return &Poller{
		store:    store,
		fetcher:  f,
		log:      log,
		interval: interval,
	}
}

// Run starts the polling loop, blocking until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	p.pass(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pass(ctx)
		}
	}
}

// pass performs one full ingestion sweep. Failures are contained per
// feed and per user; one bad feed never stops the rest of the pass.
func (p *Poller) pass(ctx context.Context) {
	users, err := p.store.ListUsers(ctx)
	if err != nil {
		p.log.Error("list users", "error", err)
		return
	}

	for _, userID := range users {
		if ctx.Err() != nil {
			return
		}
		p.processUser(ctx, userID)
	}
}

func (p *Poller) processUser(ctx context.Context, userID int64) {
	// One known-link set per user, reused across all of the user's
	// feeds. A link belongs to exactly one feed, so "known to the
	// user" and "known to the feed" coincide.
	known, err := p.store.KnownLinks(ctx, userID)
	if err != nil {
		p.log.Error("known links", "user_id", userID, "error", err)
		return
	}

	subs, err := p.store.ListSubscriptions(ctx, userID)
	if err != nil {
		p.log.Error("list subscriptions", "user_id", userID, "error", err)
		return
	}

	for _, sub := range subs {
		if ctx.Err() != nil {
			return
		}
		p.processFeed(ctx, userID, sub.FeedURL, known)
	}
}

func (p *Poller) processFeed(ctx context.Context, userID int64, feedURL string, known map[string]struct{}) {
	p.log.Debug("polling feed", "user_id", userID, "url", feedURL)

	items, err := p.fetcher.Fetch(ctx, feedURL)
	if err != nil {
		p.log.Error("fetch feed", "user_id", userID, "url", feedURL, "error", err)
		return
	}

	recorded := 0
	for _, item := range items {
		if _, ok := known[item.Link]; ok {
			continue
		}
		err := p.store.RecordItem(ctx, feedURL, item.Link, item.Description)
		if errors.Is(err, storage.ErrDuplicateLink) {
			known[item.Link] = struct{}{}
			continue
		}
		if err != nil {
			p.log.Error("record item", "url", feedURL, "link", item.Link, "error", err)
			continue
		}
		known[item.Link] = struct{}{}
		recorded++
	}

	if recorded > 0 {
		p.log.Info("recorded items", "user_id", userID, "url", feedURL, "count", recorded)
	}
}
