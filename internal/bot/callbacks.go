package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"propfeed/internal/feed"
	"propfeed/internal/partition"
)

const (
	cmdMore    = "more"
	cmdRefresh = "refresh"
)

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	callback := tgbotapi.NewCallback(cb.ID, "")
	if _, err := b.api.Send(callback); err != nil {
		b.log.Error("send callback ack", "error", err)
	}

	action, arg, ok := strings.Cut(cb.Data, ":")
	if !ok {
		return
	}
	name, err := partition.Parse(arg)
	if err != nil {
		return
	}

	b.log.Info("callback",
		"action", action,
		"bucket", name,
		"chat_id", chatID,
		"user_id", cb.From.ID,
		"username", cb.From.UserName,
	)

	switch action {
	case cmdMore:
		b.handleMore(ctx, chatID, string(name))
	case cmdRefresh:
		b.handleRefresh(ctx, chatID, string(name))
	}
}

// bucketKeyboard offers the actions that are currently possible on bk.
func bucketKeyboard(name partition.Name, bk feed.Bucket) tgbotapi.InlineKeyboardMarkup {
	var row []tgbotapi.InlineKeyboardButton
	if !bk.Exhausted && !bk.InFlight {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("More", cmdMore+":"+string(name)))
	}
	row = append(row, tgbotapi.NewInlineKeyboardButtonData("Refresh", cmdRefresh+":"+string(name)))
	return tgbotapi.NewInlineKeyboardMarkup(row)
}
