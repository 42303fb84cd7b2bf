package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/ajibnet/ajibot/internal/domain"
	"github.com/ajibnet/ajibot/internal/i18n"
	"github.com/ajibnet/ajibot/internal/middleware"
	tg "github.com/ajibnet/ajibot/internal/telegram"
)

func (h *Handler) handleConfigs(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.sendConfigs(ctx, b, update.Message.Chat.ID)
}

func (h *Handler) handleConfigsCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	if chatID, ok := h.answerCallback(ctx, b, update); ok {
		h.sendConfigs(ctx, b, chatID)
	}
}

func (h *Handler) sendConfigs(ctx context.Context, b *bot.Bot, chatID int64) {
	lang := h.userLang(ctx)

	user := middleware.GetUser(ctx)
	if user == nil {
		return
	}

	configs, err := h.provisioner.GetUserConfigs(ctx, user.TelegramID)
	if err != nil {
		slog.Error("list user configs", "user_id", user.TelegramID, "error", err)
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   i18n.T(lang, "service_trouble"),
		})
		return
	}
	if len(configs) == 0 {
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:      chatID,
			Text:        i18n.T(lang, "configs_empty"),
			ReplyMarkup: h.mainMenu(lang),
		})
		return
	}

	var sb strings.Builder
	sb.WriteString(i18n.T(lang, "configs_title"))
	for _, cfg := range configs {
		sb.WriteString("\n")
		sb.WriteString(i18n.Tf(lang, "config_line", cfg.Label, formatBytes(cfg.BytesUsed), formatBytes(cfg.BytesTotal)))
		sb.WriteString("\n`")
		sb.WriteString(cfg.Payload)
		sb.WriteString("`")
	}

	if err := tg.SendMarkdown(ctx, b, chatID, sb.String(), h.mainMenu(lang)); err != nil {
		slog.Error("send configs", "user_id", user.TelegramID, "error", err)
	}
}

func (h *Handler) handleTrial(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.sendTrial(ctx, b, update.Message.Chat.ID)
}

func (h *Handler) handleTrialCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	if chatID, ok := h.answerCallback(ctx, b, update); ok {
		h.sendTrial(ctx, b, chatID)
	}
}

func (h *Handler) sendTrial(ctx context.Context, b *bot.Bot, chatID int64) {
	lang := h.userLang(ctx)

	user := middleware.GetUser(ctx)
	if user == nil {
		return
	}
	if user.TrialUsed {
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   i18n.T(lang, "trial_used"),
		})
		return
	}

	cfg, err := h.provisioner.RequestTrial(ctx, user.TelegramID)
	if err != nil {
		if errors.Is(err, domain.ErrTrialAlreadyGranted) {
			// Backend knows better than our local flag; record it.
			if markErr := h.users.MarkTrialUsed(ctx, user.TelegramID); markErr != nil {
				slog.Error("mark trial used", "user_id", user.TelegramID, "error", markErr)
			}
			b.SendMessage(ctx, &bot.SendMessageParams{
				ChatID: chatID,
				Text:   i18n.T(lang, "trial_used"),
			})
			return
		}
		slog.Error("request trial", "user_id", user.TelegramID, "error", err)
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   i18n.T(lang, "service_trouble"),
		})
		return
	}

	if err := h.users.MarkTrialUsed(ctx, user.TelegramID); err != nil {
		slog.Error("mark trial used", "user_id", user.TelegramID, "error", err)
	}

	if err := tg.SendMarkdown(ctx, b, chatID, i18n.Tf(lang, "trial_granted", cfg.Payload), h.mainMenu(lang)); err != nil {
		slog.Error("send trial config", "user_id", user.TelegramID, "error", err)
	}
}

func formatBytes(n int64) string {
	const gb = 1 << 30
	if n >= gb {
		return fmt.Sprintf("%.1f GB", float64(n)/gb)
	}
	return fmt.Sprintf("%.0f MB", float64(n)/(1<<20))
}
