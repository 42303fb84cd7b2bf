package handler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	tg "github.com/ajibnet/ajibot/internal/telegram"
)

// handleBroadcast sends "/broadcast <text>" to every known user. Admin only.
func (h *Handler) handleBroadcast(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	chatID := update.Message.Chat.ID
	if !h.cfg.IsAdmin(update.Message.From.ID) {
		return
	}

	text := strings.TrimSpace(strings.TrimPrefix(update.Message.Text, "/broadcast"))
	if text == "" {
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   "Usage: /broadcast <message>",
		})
		return
	}

	ids, err := h.users.ListTelegramIDs(ctx)
	if err != nil {
		slog.Error("list broadcast recipients", "error", err)
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   "Could not load the recipient list.",
		})
		return
	}

	var sent, failed int
	for _, id := range ids {
		if err := tg.SendMarkdown(ctx, b, id, text, nil); err != nil {
			failed++
			slog.Warn("broadcast delivery failed", "user_id", id, "error", err)
			continue
		}
		sent++
	}

	if err := h.users.RecordBroadcast(ctx, text, sent, failed); err != nil {
		slog.Error("record broadcast", "error", err)
	}

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   fmt.Sprintf("Broadcast done: %d delivered, %d failed.", sent, failed),
	})
}
