package models

import "time"

// WebhookLog is the idempotency and audit record for one inbound provider
// event. The unique idempotency key serializes concurrent deliveries.
type WebhookLog struct {
	ID             string
	TenantID       string
	Provider       string
	EventType      string
	IdempotencyKey string
	Payload        []byte
	Processed      bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
