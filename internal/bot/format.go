package bot

import (
	"fmt"
	"html"
	"strings"

	"newswire_bot/internal/model"
)

// FormatPost formats a recorded item as an outbound message: the
// description followed by an anchor to the source link.
func FormatPost(item model.Item) string {
	var b strings.Builder
	b.WriteString(html.EscapeString(item.Description))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, `<a href="%s">Source</a>`, html.EscapeString(item.Link))
	return b.String()
}

// FormatSubscriptionList formats a user's subscriptions for display.
func FormatSubscriptionList(subs []model.Subscription) string {
	if len(subs) == 0 {
		return "You have no subscriptions yet. Use /add <url> to add one."
	}
	var b strings.Builder
	b.WriteString("Your subscriptions:\n")
	for i, s := range subs {
		fmt.Fprintf(&b, "\n%d. %s", i+1, s.FeedURL)
		if s.Rule != "" && s.Rule != model.RuleDefault {
			fmt.Fprintf(&b, " [%s]", s.Rule)
		}
	}
	return b.String()
}

// FormatUserStats formats a user's subscription count and liked ratio.
func FormatUserStats(feeds int, likedRatio float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Subscriptions: %d\n", feeds)
	fmt.Fprintf(&b, "Liked posts: %.0f%%", likedRatio*100)
	return b.String()
}
