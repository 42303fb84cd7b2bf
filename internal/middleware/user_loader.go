package middleware

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/ajibnet/ajibot/internal/domain"
)

type ctxKey string

const UserKey ctxKey = "user"

// UserFinder is the slice of the user store the loader needs.
type UserFinder interface {
	FindOrCreate(ctx context.Context, telegramID int64, firstName, username, language string, isAdmin bool) (*domain.User, bool, error)
}

// GetUser extracts the loaded user from context.
func GetUser(ctx context.Context) *domain.User {
	u, ok := ctx.Value(UserKey).(*domain.User)
	if !ok {
		return nil
	}
	return u
}

// UserLoader returns middleware that loads (or registers) the sending user
// and attaches it to the handler context.
func UserLoader(users UserFinder, defaultLocale string, cfg interface{ IsAdmin(int64) bool }) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			var from *models.User
			if update.Message != nil {
				from = update.Message.From
			} else if update.CallbackQuery != nil {
				from = &update.CallbackQuery.From
			}

			if from == nil {
				next(ctx, b, update)
				return
			}

			user, created, err := users.FindOrCreate(ctx, from.ID, from.FirstName, from.Username, defaultLocale, cfg.IsAdmin(from.ID))
			if err != nil {
				slog.Error("load user", "telegram_id", from.ID, "error", err)
				next(ctx, b, update)
				return
			}
			if created {
				slog.Info("user registered", "telegram_id", from.ID, "username", from.Username)
			}

			next(context.WithValue(ctx, UserKey, user), b, update)
		}
	}
}
