package handler

import (
	"context"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/ajibnet/ajibot/internal/i18n"
	"github.com/ajibnet/ajibot/internal/middleware"
	tg "github.com/ajibnet/ajibot/internal/telegram"
)

func (h *Handler) handleLanguage(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.sendLanguagePicker(ctx, b, update.Message.Chat.ID)
}

func (h *Handler) handleLanguageCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	if chatID, ok := h.answerCallback(ctx, b, update); ok {
		h.sendLanguagePicker(ctx, b, chatID)
	}
}

func (h *Handler) sendLanguagePicker(ctx context.Context, b *bot.Bot, chatID int64) {
	lang := h.userLang(ctx)

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   i18n.T(lang, "lang_title"),
		ReplyMarkup: tg.InlineKeyboard(
			tg.ButtonRow(
				tg.InlineButton("English", "lang_"+i18n.LangEN),
				tg.InlineButton("فارسی", "lang_"+i18n.LangFA),
			),
		),
	})
}

func (h *Handler) handleLanguageSelect(ctx context.Context, b *bot.Bot, update *models.Update) {
	chatID, ok := h.answerCallback(ctx, b, update)
	if !ok {
		return
	}

	user := middleware.GetUser(ctx)
	if user == nil {
		return
	}

	lang := strings.TrimPrefix(update.CallbackQuery.Data, "lang_")
	if !i18n.Supported(lang) {
		return
	}

	if err := h.users.SetLanguage(ctx, user.TelegramID, lang); err != nil {
		slog.Error("set language", "user_id", user.TelegramID, "lang", lang, "error", err)
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   i18n.T(h.userLang(ctx), "service_trouble"),
		})
		return
	}

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        i18n.T(lang, "lang_switched"),
		ReplyMarkup: h.mainMenu(lang),
	})
}
