package domain

import "time"

// VPNConfig is a provisioned access configuration on the backend.
type VPNConfig struct {
	ID         string
	Label      string
	Payload    string
	BytesTotal int64
	BytesUsed  int64
	CreatedAt  time.Time
	ExpiresAt  *time.Time
}
