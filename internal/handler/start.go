package handler

import (
	"context"
	"sort"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/ajibnet/ajibot/internal/i18n"
	"github.com/ajibnet/ajibot/internal/middleware"
	tg "github.com/ajibnet/ajibot/internal/telegram"
)

// userLang resolves the display language for the current update.
func (h *Handler) userLang(ctx context.Context) string {
	if user := middleware.GetUser(ctx); user != nil && i18n.Supported(user.Language) {
		return user.Language
	}
	return h.cfg.DefaultLocale
}

func (h *Handler) mainMenu(lang string) *models.InlineKeyboardMarkup {
	return tg.InlineKeyboard(
		tg.ButtonRow(
			tg.InlineButton(i18n.T(lang, "btn_plans"), "plans"),
			tg.InlineButton(i18n.T(lang, "btn_configs"), "configs"),
		),
		tg.ButtonRow(
			tg.InlineButton(i18n.T(lang, "btn_trial"), "trial"),
			tg.InlineButton(i18n.T(lang, "btn_downloads"), "downloads"),
		),
		tg.ButtonRow(
			tg.InlineButton(i18n.T(lang, "btn_support"), "support"),
			tg.InlineButton(i18n.T(lang, "btn_language"), "lang"),
		),
	)
}

func (h *Handler) sendMenu(ctx context.Context, b *bot.Bot, chatID int64) {
	lang := h.userLang(ctx)
	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        i18n.T(lang, "welcome"),
		ReplyMarkup: h.mainMenu(lang),
	})
}

func (h *Handler) handleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.sendMenu(ctx, b, update.Message.Chat.ID)
}

func (h *Handler) handleMenu(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.sendMenu(ctx, b, update.Message.Chat.ID)
}

func (h *Handler) handleMenuCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	if chatID, ok := h.answerCallback(ctx, b, update); ok {
		h.sendMenu(ctx, b, chatID)
	}
}

func (h *Handler) handleDownloads(ctx context.Context, b *bot.Bot, update *models.Update) {
	chatID, ok := h.answerCallback(ctx, b, update)
	if !ok {
		return
	}
	lang := h.userLang(ctx)

	if len(h.cfg.ClientDLURLs) == 0 {
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:      chatID,
			Text:        i18n.T(lang, "downloads_empty"),
			ReplyMarkup: h.mainMenu(lang),
		})
		return
	}

	names := make([]string, 0, len(h.cfg.ClientDLURLs))
	for name := range h.cfg.ClientDLURLs {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := []string{i18n.T(lang, "downloads_title")}
	for _, name := range names {
		lines = append(lines, i18n.Tf(lang, "downloads_item", capitalize(name), h.cfg.ClientDLURLs[name]))
	}

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        strings.Join(lines, "\n"),
		ReplyMarkup: h.mainMenu(lang),
	})
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (h *Handler) handleSupport(ctx context.Context, b *bot.Bot, update *models.Update) {
	chatID, ok := h.answerCallback(ctx, b, update)
	if !ok {
		return
	}
	lang := h.userLang(ctx)

	text := i18n.T(lang, "support_unset")
	if h.cfg.SupportContact != "" {
		text = i18n.Tf(lang, "support_contact", h.cfg.SupportContact)
	}
	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: h.mainMenu(lang),
	})
}
