package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Core
	BotToken    string `env:"BOT_TOKEN,required"`
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Heleket payment gateway
	HeleketAPIBase       string `env:"HELEKET_API_BASE,required"`
	HeleketAPIKey        string `env:"HELEKET_API_KEY"`
	HeleketNetwork       string `env:"HELEKET_NETWORK" envDefault:"mainnet"`
	HeleketWebhookSecret string `env:"HELEKET_WEBHOOK_SECRET,required"`
	HeleketCallbackURL   string `env:"HELEKET_CALLBACK_URL"`

	// Blitz provisioning backend
	BlitzAPIBase string `env:"BLITZ_API_BASE,required"`
	BlitzAPIKey  string `env:"BLITZ_API_KEY"`

	// Order lifecycle
	InvoiceTTL   time.Duration `env:"INVOICE_TTL" envDefault:"30m"`
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"15s"`

	// Webhook HTTP server
	WebhookListenAddr string `env:"WEBHOOK_LISTEN_ADDR" envDefault:":8080"`

	// Admin
	AdminIDs []int64 `env:"ADMIN_IDS" envSeparator:","`

	// Storefront
	DefaultLocale  string            `env:"DEFAULT_LOCALE" envDefault:"en"`
	SupportContact string            `env:"SUPPORT_CONTACT"`
	ClientDLURLs   map[string]string `env:"CLIENT_DL_URLS" envSeparator:"," envKeyValSeparator:"="`

	// Bot behavior
	DropPendingUpdates bool `env:"BOT_DROP_PENDING_UPDATES" envDefault:"false"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func (c *Config) IsAdmin(telegramID int64) bool {
	for _, id := range c.AdminIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}

func (c *Config) AdminIDsString() string {
	parts := make([]string, len(c.AdminIDs))
	for i, id := range c.AdminIDs {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ",")
}
