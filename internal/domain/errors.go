package domain

import "errors"

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrOrderNotFound       = errors.New("order not found")
	ErrPlanNotFound        = errors.New("plan not found or retired")
	ErrInvalidState        = errors.New("order is not in a valid state for this operation")
	ErrAmountMismatch      = errors.New("gateway-reported amount does not match order")
	ErrSignatureInvalid    = errors.New("webhook signature invalid")
	ErrTrialAlreadyGranted = errors.New("trial config already granted")
	ErrDuplicateOrder      = errors.New("order id already exists")
)
