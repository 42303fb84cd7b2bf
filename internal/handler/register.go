package handler

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Register registers all command and callback handlers on the bot instance.
func (h *Handler) Register() {
	// Commands
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypePrefix, h.handleStart)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/menu", bot.MatchTypePrefix, h.handleMenu)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/plans", bot.MatchTypePrefix, h.handlePlans)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/configs", bot.MatchTypePrefix, h.handleConfigs)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/test", bot.MatchTypePrefix, h.handleTrial)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/language", bot.MatchTypePrefix, h.handleLanguage)
	h.bot.RegisterHandler(bot.HandlerTypeMessageText, "/broadcast", bot.MatchTypePrefix, h.handleBroadcast)

	// Menu callbacks
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "menu", bot.MatchTypeExact, h.handleMenuCallback)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "plans", bot.MatchTypeExact, h.handlePlansCallback)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "plan_", bot.MatchTypePrefix, h.handlePlanSelect)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "configs", bot.MatchTypeExact, h.handleConfigsCallback)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "trial", bot.MatchTypeExact, h.handleTrialCallback)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "downloads", bot.MatchTypeExact, h.handleDownloads)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "support", bot.MatchTypeExact, h.handleSupport)

	// Language callbacks
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "lang", bot.MatchTypeExact, h.handleLanguageCallback)
	h.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "lang_", bot.MatchTypePrefix, h.handleLanguageSelect)
}

// answerCallback acknowledges a callback query so the client stops showing
// the progress spinner.
func (h *Handler) answerCallback(ctx context.Context, b *bot.Bot, update *models.Update) (chatID int64, ok bool) {
	if update.CallbackQuery == nil {
		return 0, false
	}
	b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: update.CallbackQuery.ID})
	if msg := update.CallbackQuery.Message.Message; msg != nil {
		return msg.Chat.ID, true
	}
	return 0, false
}
