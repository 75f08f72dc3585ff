package bot

import (
	"context"
	"errors"
	"fmt"

	"newswire_bot/internal/model"
	"newswire_bot/internal/storage"
)

func (b *Bot) handleStart(ctx context.Context, chatID int64) {
	if err := b.store.EnsureUser(ctx, chatID); err != nil {
		b.log.Error("ensure user", "chat_id", chatID, "error", err)
		b.reply(chatID, "Something went wrong, please try again.")
		return
	}

	b.reply(chatID, `Welcome to Newswire Bot!

Subscribe to feeds and get every new post delivered here.

Quick start:
1. /add <url> — subscribe to a feed
2. /list — show your subscriptions

New posts arrive automatically. Use /help for the full command reference.`)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Commands:
/add <url> — subscribe to a feed
/list — show your subscriptions
/remove <url> — unsubscribe from a feed
/stats — your subscription and like stats

New posts are delivered automatically. Use the buttons under a post to
like it or save it for later.`)
}

func (b *Bot) handleAdd(ctx context.Context, chatID int64, args string) {
	if args == "" {
		b.reply(chatID, "Usage: /add <url>")
		return
	}

	if _, err := b.fetcher.Fetch(ctx, args); err != nil {
		b.reply(chatID, fmt.Sprintf("Failed to fetch feed: %v", err))
		return
	}

	if err := b.store.EnsureUser(ctx, chatID); err != nil {
		b.log.Error("ensure user", "chat_id", chatID, "error", err)
		b.reply(chatID, "Something went wrong, please try again.")
		return
	}

	err := b.store.AddSubscription(ctx, chatID, args, model.RuleDefault)
	if errors.Is(err, storage.ErrDuplicateSubscription) {
		b.reply(chatID, "You are already subscribed to that feed.")
		return
	}
	if err != nil {
		b.log.Error("add subscription", "chat_id", chatID, "url", args, "error", err)
		b.reply(chatID, "Failed to save the subscription, please try again.")
		return
	}

	b.reply(chatID, fmt.Sprintf("Subscribed!\n%s\nNew posts will arrive with the next delivery round.", args))
}

func (b *Bot) handleList(ctx context.Context, chatID int64) {
	subs, err := b.store.ListSubscriptions(ctx, chatID)
	if err != nil {
		b.log.Error("list subscriptions", "chat_id", chatID, "error", err)
		b.reply(chatID, "Failed to load your subscriptions.")
		return
	}
	b.reply(chatID, FormatSubscriptionList(subs))
}

func (b *Bot) handleRemove(ctx context.Context, chatID int64, args string) {
	if args == "" {
		b.reply(chatID, "Usage: /remove <url>")
		return
	}

	err := b.store.RemoveSubscription(ctx, chatID, args)
	if errors.Is(err, storage.ErrSubscriptionNotFound) {
		b.reply(chatID, "You are not subscribed to that feed.")
		return
	}
	if err != nil {
		b.log.Error("remove subscription", "chat_id", chatID, "url", args, "error", err)
		b.reply(chatID, "Failed to remove the subscription, please try again.")
		return
	}

	b.reply(chatID, fmt.Sprintf("Unsubscribed from %s.", args))
}

func (b *Bot) handleStats(ctx context.Context, chatID int64) {
	subs, err := b.store.ListSubscriptions(ctx, chatID)
	if err != nil {
		b.log.Error("list subscriptions", "chat_id", chatID, "error", err)
		b.reply(chatID, "Failed to load your stats.")
		return
	}

	ratio, err := b.store.LikedRatio(ctx, chatID)
	if err != nil {
		b.log.Error("liked ratio", "chat_id", chatID, "error", err)
		b.reply(chatID, "Failed to load your stats.")
		return
	}

	b.reply(chatID, FormatUserStats(len(subs), ratio))
}
