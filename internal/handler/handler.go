package handler

import (
	"context"

	"github.com/go-telegram/bot"

	"github.com/ajibnet/ajibot/internal/config"
	"github.com/ajibnet/ajibot/internal/domain"
	"github.com/ajibnet/ajibot/internal/service"
)

// UserDirectory is the slice of the user store the chat layer needs.
type UserDirectory interface {
	GetByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error)
	SetLanguage(ctx context.Context, telegramID int64, language string) error
	MarkTrialUsed(ctx context.Context, telegramID int64) error
	ListTelegramIDs(ctx context.Context) ([]int64, error)
	RecordBroadcast(ctx context.Context, messageText string, sent, failed int) error
}

// Handler holds all dependencies needed by command and callback handlers.
type Handler struct {
	bot         *bot.Bot
	cfg         *config.Config
	users       UserDirectory
	orders      *service.OrderService
	catalog     service.PlanSource
	provisioner service.ProvisioningProvider
}

// Deps contains all dependencies required to construct a Handler.
type Deps struct {
	Bot         *bot.Bot
	Cfg         *config.Config
	Users       UserDirectory
	Orders      *service.OrderService
	Catalog     service.PlanSource
	Provisioner service.ProvisioningProvider
}

// New creates a new Handler from the provided dependencies.
func New(deps Deps) *Handler {
	return &Handler{
		bot:         deps.Bot,
		cfg:         deps.Cfg,
		users:       deps.Users,
		orders:      deps.Orders,
		catalog:     deps.Catalog,
		provisioner: deps.Provisioner,
	}
}
