// Package i18n holds the bot's message catalog. English is the fallback for
// any key missing from another locale.
package i18n

import "fmt"

const (
	LangEN = "en"
	LangFA = "fa"
)

var catalog = map[string]map[string]string{
	LangEN: {
		"welcome":          "Choose an option from the menu below.",
		"btn_plans":        "🛒 Purchase",
		"btn_configs":      "🧾 My Configs",
		"btn_trial":        "🎁 1GB Test",
		"btn_downloads":    "💻 Client Downloads",
		"btn_support":      "🆘 Support",
		"btn_language":     "🌐 Language",
		"btn_back":         "⬅️ Back",
		"btn_pay":          "💳 Pay",
		"plans_title":      "Available plans:",
		"plans_empty":      "No plans are available right now.",
		"plan_line":        "%s — %s %s, %d days, %d GB",
		"plan_unknown":     "That plan is no longer available.",
		"order_invoiced":   "🧾 Invoice created for *%s %s*.\nPay within %s, then your config arrives automatically.",
		"order_paid":       "✅ Payment received. Setting up your config...",
		"order_done":       "🎉 Your VPN config is ready!\n\n`%s`",
		"order_failed":     "❌ We could not set up your config. Support has been notified, your payment is safe.",
		"order_expired":    "⌛ Your order expired before payment arrived. Start a new purchase from the menu.",
		"order_wait":       "The payment service is busy, please try again in a minute.",
		"configs_empty":    "You have no active configs yet.",
		"configs_title":    "Your active configs:",
		"config_line":      "• %s — %s used of %s",
		"trial_granted":    "🎁 Your 1GB test config:\n\n`%s`",
		"trial_used":       "You have already received your test config.",
		"downloads_title":  "Client download links:",
		"downloads_item":   "• %s: %s",
		"downloads_empty":  "No client download links have been configured yet.",
		"support_contact":  "Contact support: %s",
		"support_unset":    "Support contact has not been configured.",
		"lang_title":       "Select your language",
		"lang_switched":    "Language set to English.",
		"service_trouble":  "Something went wrong, please try again later.",
	},
	LangFA: {
		"welcome":          "یکی از گزینه‌های زیر را انتخاب کنید.",
		"btn_plans":        "🛒 خرید",
		"btn_configs":      "🧾 کانفیگ‌های من",
		"btn_trial":        "🎁 تست ۱ گیگ",
		"btn_downloads":    "💻 دانلود کلاینت",
		"btn_support":      "🆘 پشتیبانی",
		"btn_language":     "🌐 زبان",
		"btn_back":         "⬅️ بازگشت",
		"btn_pay":          "💳 پرداخت",
		"plans_title":      "پلن‌های موجود:",
		"plans_empty":      "در حال حاضر پلنی موجود نیست.",
		"plan_line":        "%s — %s %s، %d روز، %d گیگ",
		"plan_unknown":     "این پلن دیگر در دسترس نیست.",
		"order_invoiced":   "🧾 فاکتور به مبلغ *%s %s* صادر شد.\nظرف %s پرداخت کنید؛ کانفیگ شما به صورت خودکار ارسال می‌شود.",
		"order_paid":       "✅ پرداخت دریافت شد. در حال آماده‌سازی کانفیگ شما...",
		"order_done":       "🎉 کانفیگ VPN شما آماده است!\n\n`%s`",
		"order_failed":     "❌ آماده‌سازی کانفیگ ممکن نشد. پشتیبانی مطلع شد و پرداخت شما محفوظ است.",
		"order_expired":    "⌛ سفارش شما پیش از پرداخت منقضی شد. از منو خرید جدیدی شروع کنید.",
		"order_wait":       "سرویس پرداخت شلوغ است، لطفاً یک دقیقه دیگر دوباره تلاش کنید.",
		"configs_empty":    "شما در حال حاضر کانفیگ فعالی ندارید.",
		"configs_title":    "کانفیگ‌های فعال شما:",
		"config_line":      "• %s — %s از %s مصرف شده",
		"trial_granted":    "🎁 کانفیگ تست ۱ گیگ شما:\n\n`%s`",
		"trial_used":       "شما قبلاً کانفیگ تست خود را دریافت کرده‌اید.",
		"downloads_title":  "لینک‌های دانلود کلاینت:",
		"downloads_empty":  "لینک‌های دانلود کلاینت پیکربندی نشده‌اند.",
		"support_contact":  "ارتباط با پشتیبانی: %s",
		"support_unset":    "راه ارتباط با پشتیبانی تنظیم نشده است.",
		"lang_title":       "زبان خود را انتخاب کنید",
		"lang_switched":    "زبان به فارسی تغییر کرد.",
		"service_trouble":  "مشکلی پیش آمد، لطفاً بعداً دوباره تلاش کنید.",
	},
}

// Supported reports whether lang has a catalog of its own.
func Supported(lang string) bool {
	_, ok := catalog[lang]
	return ok
}

// T returns the message for key in lang, falling back to English and then
// to the key itself.
func T(lang, key string) string {
	if msgs, ok := catalog[lang]; ok {
		if text, ok := msgs[key]; ok {
			return text
		}
	}
	if text, ok := catalog[LangEN][key]; ok {
		return text
	}
	return key
}

// Tf formats the message for key in lang with args.
func Tf(lang, key string, args ...any) string {
	return fmt.Sprintf(T(lang, key), args...)
}
