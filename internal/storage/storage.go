// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"errors"

	"newswire_bot/internal/model"
)

// ErrDuplicateSubscription is returned when a (user, feed) pair already
// exists. Subscribing twice is harmless; callers swallow this.
var ErrDuplicateSubscription = errors.New("subscription already exists")

// ErrDuplicateLink is returned when a link URL has already been
// recorded. The ingestion loop treats it as "item already known".
var ErrDuplicateLink = errors.New("link already recorded")

// ErrSubscriptionNotFound is returned when removing a subscription
// that does not exist.
var ErrSubscriptionNotFound = errors.New("subscription not found")

// Storage is the interface for all persistence operations. Each
// operation is atomic on its own; the two pipeline loops rendezvous
// only through this state.
type Storage interface {
	// EnsureUser registers a user; a no-op if the user already exists.
	EnsureUser(ctx context.Context, userID int64) error

	// AddSubscription creates the feed row if absent and subscribes the
	// user to it under the given rule. Returns ErrDuplicateSubscription
	// if the pair already exists.
	AddSubscription(ctx context.Context, userID int64, feedURL string, rule model.Rule) error

	// RemoveSubscription deletes a (user, feed) subscription. A backup
	// trigger archives the pair before removal.
	RemoveSubscription(ctx context.Context, userID int64, feedURL string) error

	// ListUsers returns all known user ids.
	ListUsers(ctx context.Context) ([]int64, error)

	// ListSubscriptions returns the user's subscriptions.
	ListSubscriptions(ctx context.Context, userID int64) ([]model.Subscription, error)

	// KnownLinks returns every link URL reachable through the user's
	// subscriptions, regardless of send status.
	KnownLinks(ctx context.Context, userID int64) (map[string]struct{}, error)

	// RecordItem stores a link and its description as one unit.
	// Returns ErrDuplicateLink if the link URL is already recorded.
	RecordItem(ctx context.Context, feedURL, linkURL, description string) error

	// ListUnsent returns the user's recorded-but-unsent items,
	// oldest-recorded-first.
	ListUnsent(ctx context.Context, userID int64) ([]model.Item, error)

	// MarkSent records that a link was delivered to a user. Calling it
	// again for the same pair is a no-op.
	MarkSent(ctx context.Context, userID int64, linkURL string) error

	// SetLiked and SetMarked record user feedback on a delivered item.
	// Both are idempotent.
	SetLiked(ctx context.Context, userID, linkID int64) error
	SetMarked(ctx context.Context, userID, linkID int64) error

	// LikedRatio returns the fraction of the user's delivered items
	// that were liked, 0 if nothing has been delivered.
	LikedRatio(ctx context.Context, userID int64) (float64, error)

	// SubscriptionStats counts subscribed feeds per user.
	SubscriptionStats(ctx context.Context) ([]model.UserStat, error)

	// FeedLinkStats counts recorded links per feed.
	FeedLinkStats(ctx context.Context) ([]model.FeedStat, error)

	Close() error
}
