package config

import "time"

const (
	// Database pool. The workload is a handful of handler goroutines plus
	// one poller tick at a time, so the pool stays small.
	DBMaxConns     = 10
	DBMinConns     = 2
	DBConnIdleTime = 5 * time.Minute

	// HTTP client timeouts
	GatewayRequestTimeout = 20 * time.Second
	BackendRequestTimeout = 20 * time.Second

	// Bounded backoff for transient gateway/backend failures
	RetryBaseDelay   = 500 * time.Millisecond
	RetryMaxAttempts = 3

	// Poller
	SweepBatchSize = 100
	PollBatchSize  = 50

	// Webhook server
	WebhookReadTimeout  = 10 * time.Second
	WebhookWriteTimeout = 10 * time.Second
	WebhookMaxBodyBytes = 64 * 1024

	// Plan catalog cache duration
	PlanCacheDuration = 5 * time.Minute

	// Lifecycle event buffer; senders drop (and log) on overflow
	EventBufferSize = 256
)
