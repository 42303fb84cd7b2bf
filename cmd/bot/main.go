package main

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-telegram/bot"

	ajibot "github.com/ajibnet/ajibot"
	"github.com/ajibnet/ajibot/internal/config"
	"github.com/ajibnet/ajibot/internal/handler"
	"github.com/ajibnet/ajibot/internal/middleware"
	"github.com/ajibnet/ajibot/internal/repository"
	"github.com/ajibnet/ajibot/internal/server"
	"github.com/ajibnet/ajibot/internal/service"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Run migrations
	migrationsFS, err := fs.Sub(ajibot.MigrationsFS, "migrations")
	if err != nil {
		slog.Error("failed to load embedded migrations", "error", err)
		os.Exit(1)
	}
	if err := repository.RunMigrations(cfg.DatabaseURL, migrationsFS); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Stores
	orderStore := repository.NewOrderStore(pool)
	userStore := repository.NewUserStore(pool)

	// External services
	heleket := service.NewHeleketClient(cfg, nil)
	blitz := service.NewBlitzClient(cfg, nil)
	catalog := service.NewPlanCatalog(blitz, config.PlanCacheDuration)

	// Order lifecycle
	orders := service.NewOrderService(orderStore, catalog, heleket, blitz, cfg.InvoiceTTL)

	poller := service.NewPoller(orders, cfg.PollInterval)
	poller.Start(ctx)
	defer poller.Stop()

	// Payment webhook listener
	webhookSrv := server.New(cfg, orders, heleket)
	webhookSrv.Start()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := webhookSrv.Shutdown(shutdownCtx); err != nil {
			slog.Error("webhook server shutdown", "error", err)
		}
	}()

	// Create bot
	opts := []bot.Option{
		bot.WithMiddlewares(
			middleware.Recover(),
			middleware.Logging(),
			middleware.UserLoader(userStore, cfg.DefaultLocale, cfg),
		),
	}

	b, err := bot.New(cfg.BotToken, opts...)
	if err != nil {
		slog.Error("failed to create bot", "error", err)
		os.Exit(1)
	}

	if cfg.DropPendingUpdates {
		if _, err := b.DeleteWebhook(ctx, &bot.DeleteWebhookParams{DropPendingUpdates: true}); err != nil {
			slog.Warn("drop pending updates", "error", err)
		}
	}

	// Get bot info
	me, err := b.GetMe(ctx)
	if err != nil {
		slog.Error("failed to get bot info", "error", err)
		os.Exit(1)
	}

	// Initialize handler
	h := handler.New(handler.Deps{
		Bot:         b,
		Cfg:         cfg,
		Users:       userStore,
		Orders:      orders,
		Catalog:     catalog,
		Provisioner: blitz,
	})

	// Register all handlers
	h.Register()

	// Deliver order lifecycle notifications
	go h.RunEvents(ctx)

	// Start bot
	slog.Info("starting bot", "username", me.Username, "id", me.ID)
	b.Start(ctx)

	// Graceful shutdown
	slog.Info("bot stopped gracefully")
}
