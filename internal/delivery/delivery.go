// Package delivery implements the periodic outbound delivery loop.
package delivery

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"newswire_bot/internal/model"
	"newswire_bot/internal/storage"
)

// Sender delivers one item to a user through the outbound channel.
type Sender interface {
	Send(userID int64, item model.Item) error
}

// Courier periodically sweeps every user's unsent items and delivers
// them oldest-first, marking each one sent right after a successful
// send. Between sends to the same user it pauses for a random delay
// within the configured bounds.
type Courier struct {
	store    storage.Storage
	sender   Sender
	log      *slog.Logger
	interval time.Duration
	delayMin time.Duration
	delayMax time.Duration
}

// New creates a Courier delivering at the given interval with the
// given inter-send delay bounds.
func New(store storage.Storage, sender Sender, log *slog.Logger, interval, delayMin, delayMax time.Duration) *Courier {
	return &Courier{
		store:    store,
		sender:   sender,
		log:      log,
		interval: interval,
		delayMin: delayMin,
		delayMax: delayMax,
	}
}

// Run starts the delivery loop, blocking until ctx is cancelled.
func (c *Courier) Run(ctx context.Context) {
	c.pass(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.pass(ctx)
		}
	}
}

// pass performs one full delivery sweep over all users.
func (c *Courier) pass(ctx context.Context) {
	users, err := c.store.ListUsers(ctx)
	if err != nil {
		c.log.Error("list users", "error", err)
		return
	}

	for _, userID := range users {
		if ctx.Err() != nil {
			return
		}
		c.deliverTo(ctx, userID)
	}
}

func (c *Courier) deliverTo(ctx context.Context, userID int64) {
	items, err := c.store.ListUnsent(ctx, userID)
	if err != nil {
		c.log.Error("list unsent", "user_id", userID, "error", err)
		return
	}

	for i, item := range items {
		if ctx.Err() != nil {
			return
		}

		if err := c.sender.Send(userID, item); err != nil {
			// Abandon the rest of this user's queue so retries on the
			// next pass still go out oldest-first.
			c.log.Error("send item", "user_id", userID, "link", item.Link, "error", err)
			return
		}

		if err := c.store.MarkSent(ctx, userID, item.Link); err != nil {
			c.log.Error("mark sent", "user_id", userID, "link", item.Link, "error", err)
			return
		}

		if i < len(items)-1 {
			if !c.sleep(ctx, c.sendDelay()) {
				return
			}
		}
	}

	if len(items) > 0 {
		c.log.Info("delivered items", "user_id", userID, "count", len(items))
	}
}

func (c *Courier) sendDelay() time.Duration {
	if c.delayMax <= c.delayMin {
		return c.delayMin
	}
	return c.delayMin + rand.N(c.delayMax-c.delayMin)
}

// sleep waits for d, returning false if ctx is cancelled first.
func (c *Courier) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
