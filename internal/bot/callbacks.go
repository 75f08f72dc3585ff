package bot

import (
	"context"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	parts := strings.SplitN(cb.Data, ":", 2)
	if len(parts) != 2 {
		b.ackCallback(cb.ID, "")
		return
	}

	action := parts[0]
	linkID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		b.ackCallback(cb.ID, "")
		return
	}

	userID := cb.From.ID
	b.log.Info("callback", "action", action, "link_id", linkID, "user_id", userID)

	switch action {
	case "like":
		if err := b.store.SetLiked(ctx, userID, linkID); err != nil {
			b.log.Error("set liked", "user_id", userID, "link_id", linkID, "error", err)
			b.ackCallback(cb.ID, "Something went wrong.")
			return
		}
		b.ackCallback(cb.ID, "Liked 👍")
	case "save":
		if err := b.store.SetMarked(ctx, userID, linkID); err != nil {
			b.log.Error("set marked", "user_id", userID, "link_id", linkID, "error", err)
			b.ackCallback(cb.ID, "Something went wrong.")
			return
		}
		b.ackCallback(cb.ID, "Saved 🔖")
	default:
		b.ackCallback(cb.ID, "")
	}
}

func (b *Bot) ackCallback(id, text string) {
	callback := tgbotapi.NewCallback(id, text)
	if _, err := b.api.Send(callback); err != nil {
		b.log.Error("send callback ack", "error", err)
	}
}
