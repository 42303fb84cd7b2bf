package domain

import "github.com/shopspring/decimal"

// Plan is a catalog entry owned by the backend; the bot only reads it.
type Plan struct {
	ID            string
	Name          string
	Price         decimal.Decimal
	Currency      string
	DurationDays  int
	DataGB        int
	BackendPlanID string
	Retired       bool
}
