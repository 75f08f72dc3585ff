// Package model defines the domain types used across the application.
package model

import "time"

// Rule names a processing policy attached to a subscription. The
// pipeline stores it but does not interpret it yet; new rules can be
// added without a schema change.
type Rule string

// Seeded processing rules.
const (
	RuleDefault        Rule = "default"
	RuleParse          Rule = "parse"
	RuleSplitTranslate Rule = "split and translate"
)

// Subscription associates a user with a feed under a processing rule.
type Subscription struct {
	UserID    int64
	FeedURL   string
	Rule      Rule
	CreatedAt time.Time
}

// Item is a single feed entry: its link and the item body text.
// ID is the link's row id once recorded; zero for freshly fetched items.
type Item struct {
	ID          int64
	Link        string
	Description string
}

// UserStat counts how many feeds a user is subscribed to.
type UserStat struct {
	UserID int64
	Feeds  int
}

// FeedStat counts how many links have been recorded for a feed.
type FeedStat struct {
	FeedURL string
	Links   int
}
