package handler

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/ajibnet/ajibot/internal/domain"
	"github.com/ajibnet/ajibot/internal/i18n"
	"github.com/ajibnet/ajibot/internal/middleware"
	"github.com/ajibnet/ajibot/internal/service"
	tg "github.com/ajibnet/ajibot/internal/telegram"
)

func (h *Handler) handlePlans(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.sendPlans(ctx, b, update.Message.Chat.ID)
}

func (h *Handler) handlePlansCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	if chatID, ok := h.answerCallback(ctx, b, update); ok {
		h.sendPlans(ctx, b, chatID)
	}
}

func (h *Handler) sendPlans(ctx context.Context, b *bot.Bot, chatID int64) {
	lang := h.userLang(ctx)

	plans, err := h.catalog.Plans(ctx)
	if err != nil {
		slog.Error("list plans", "error", err)
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   i18n.T(lang, "service_trouble"),
		})
		return
	}

	var rows [][]models.InlineKeyboardButton
	for _, plan := range plans {
		if plan.Retired {
			continue
		}
		label := i18n.Tf(lang, "plan_line", plan.Name, plan.Price.StringFixed(2), plan.Currency, plan.DurationDays, plan.DataGB)
		rows = append(rows, tg.ButtonRow(tg.InlineButton(label, "plan_"+plan.ID)))
	}
	if len(rows) == 0 {
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:      chatID,
			Text:        i18n.T(lang, "plans_empty"),
			ReplyMarkup: h.mainMenu(lang),
		})
		return
	}
	rows = append(rows, tg.ButtonRow(tg.InlineButton(i18n.T(lang, "btn_back"), "menu")))

	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        i18n.T(lang, "plans_title"),
		ReplyMarkup: tg.InlineKeyboard(rows...),
	})
}

// handlePlanSelect opens an order for the chosen plan and requests its
// invoice. The pay link itself is delivered by the lifecycle event
// renderer once the order reaches invoiced.
func (h *Handler) handlePlanSelect(ctx context.Context, b *bot.Bot, update *models.Update) {
	chatID, ok := h.answerCallback(ctx, b, update)
	if !ok {
		return
	}
	lang := h.userLang(ctx)

	user := middleware.GetUser(ctx)
	if user == nil {
		return
	}

	planID := strings.TrimPrefix(update.CallbackQuery.Data, "plan_")

	// A repeated tap on the same plan resends the open invoice instead of
	// opening a second order.
	if open := h.openOrderForPlan(ctx, user.TelegramID, planID); open != nil {
		text := i18n.Tf(lang, "order_invoiced", open.Amount.StringFixed(2), open.Currency, h.cfg.InvoiceTTL.String())
		markup := tg.InlineKeyboard(tg.ButtonRow(tg.URLButton(i18n.T(lang, "btn_pay"), open.PayURL)))
		if err := tg.SendMarkdown(ctx, b, chatID, text, markup); err != nil {
			slog.Error("resend pay link", "order_id", open.ID, "error", err)
		}
		return
	}

	order, err := h.orders.CreateOrder(ctx, user.TelegramID, planID)
	if err != nil {
		if errors.Is(err, domain.ErrPlanNotFound) {
			b.SendMessage(ctx, &bot.SendMessageParams{
				ChatID: chatID,
				Text:   i18n.T(lang, "plan_unknown"),
			})
			return
		}
		slog.Error("create order", "plan_id", planID, "user_id", user.TelegramID, "error", err)
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   i18n.T(lang, "service_trouble"),
		})
		return
	}

	if _, err := h.orders.RequestInvoice(ctx, order.ID); err != nil {
		slog.Error("request invoice", "order_id", order.ID, "error", err)
		text := i18n.T(lang, "service_trouble")
		if errors.Is(err, service.ErrGatewayUnavailable) {
			text = i18n.T(lang, "order_wait")
		}
		b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: chatID,
			Text:   text,
		})
	}
}

// openOrderForPlan returns the user's newest invoiced, unexpired order for
// the plan, if any.
func (h *Handler) openOrderForPlan(ctx context.Context, userID int64, planID string) *domain.Order {
	orders, err := h.orders.UserOrders(ctx, userID, 10)
	if err != nil {
		slog.Error("list user orders", "user_id", userID, "error", err)
		return nil
	}
	now := time.Now()
	for i := range orders {
		o := &orders[i]
		if o.PlanID == planID && o.State == domain.OrderStateInvoiced && o.ExpiresAt.After(now) && o.PayURL != "" {
			return o
		}
	}
	return nil
}
