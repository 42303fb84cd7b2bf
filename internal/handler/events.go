package handler

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot/models"

	"github.com/ajibnet/ajibot/internal/domain"
	"github.com/ajibnet/ajibot/internal/i18n"
	tg "github.com/ajibnet/ajibot/internal/telegram"
)

// RunEvents renders order lifecycle events to each order's owner in
// their language until ctx is cancelled. Run it as a goroutine.
func (h *Handler) RunEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-h.orders.Events():
			h.renderEvent(ctx, event)
		}
	}
}

func (h *Handler) renderEvent(ctx context.Context, event domain.OrderEvent) {
	lang := h.cfg.DefaultLocale
	if user, err := h.users.GetByTelegramID(ctx, event.UserID); err == nil && i18n.Supported(user.Language) {
		lang = user.Language
	}

	var text string
	var markup models.ReplyMarkup

	switch event.State {
	case domain.OrderStateInvoiced:
		amount, currency := "?", ""
		if order, err := h.orders.GetOrder(ctx, event.OrderID); err == nil {
			amount, currency = order.Amount.StringFixed(2), order.Currency
		}
		text = i18n.Tf(lang, "order_invoiced", amount, currency, h.cfg.InvoiceTTL.String())
		if event.PayURL != "" {
			markup = tg.InlineKeyboard(tg.ButtonRow(tg.URLButton(i18n.T(lang, "btn_pay"), event.PayURL)))
		}
	case domain.OrderStatePaid:
		text = i18n.T(lang, "order_paid")
	case domain.OrderStateProvisioned:
		text = i18n.Tf(lang, "order_done", event.ConfigPayload)
	case domain.OrderStateFailed:
		text = i18n.T(lang, "order_failed")
	case domain.OrderStateExpired:
		text = i18n.T(lang, "order_expired")
	default:
		return
	}

	if err := tg.SendMarkdown(ctx, h.bot, event.UserID, text, markup); err != nil {
		slog.Error("render lifecycle event", "order_id", event.OrderID, "state", event.State, "error", err)
	}
}
