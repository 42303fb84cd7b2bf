package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderState string

const (
	OrderStateCreated      OrderState = "created"
	OrderStateInvoiced     OrderState = "invoiced"
	OrderStatePaid         OrderState = "paid"
	OrderStateProvisioning OrderState = "provisioning"
	OrderStateProvisioned  OrderState = "provisioned"
	OrderStateFailed       OrderState = "failed"
	OrderStateExpired      OrderState = "expired"
)

// transitions is the order lifecycle graph. Anything not listed here is
// forbidden; terminal states have no outgoing edges.
var transitions = map[OrderState][]OrderState{
	OrderStateCreated:      {OrderStateInvoiced, OrderStateExpired},
	OrderStateInvoiced:     {OrderStatePaid, OrderStateExpired},
	OrderStatePaid:         {OrderStateProvisioning},
	OrderStateProvisioning: {OrderStateProvisioned, OrderStateFailed},
}

// CanTransition reports whether moving from s to next is allowed.
func (s OrderState) CanTransition(next OrderState) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the state has no outgoing transitions.
func (s OrderState) Terminal() bool {
	return len(transitions[s]) == 0
}

type ConfirmationSource string

const (
	SourcePoll    ConfirmationSource = "poll"
	SourceWebhook ConfirmationSource = "webhook"
)

// Evidence is what a confirmation channel reports about a paid invoice.
type Evidence struct {
	Source     ConfirmationSource
	InvoiceRef string
	Amount     decimal.Decimal
	Currency   string
}

// Order is one purchase attempt for a plan by a user. It is created and
// mutated only by the order service and never deleted.
type Order struct {
	ID                 string
	UserID             int64
	PlanID             string
	Amount             decimal.Decimal
	Currency           string
	State              OrderState
	InvoiceRef         string
	PayURL             string
	ProvisionRef       string
	FailReason         string
	ConfirmationSource ConfirmationSource
	CreatedAt          time.Time
	UpdatedAt          time.Time
	ExpiresAt          time.Time
}

// OrderEvent is emitted on every lifecycle transition for the chat layer to
// render to the order's owner.
type OrderEvent struct {
	OrderID       string
	UserID        int64
	PlanID        string
	State         OrderState
	PayURL        string
	ProvisionRef  string
	ConfigPayload string
	Reason        string
}
