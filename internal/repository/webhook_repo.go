package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/tavanofede-png/clases-de-frances/internal/models"
)

type WebhookRepository struct {
	db DBTX
}

func NewWebhookRepository(db DBTX) *WebhookRepository {
	return &WebhookRepository{db: db}
}

// GetByKey returns the log row for an idempotency key, or nil when unseen.
func (r *WebhookRepository) GetByKey(ctx context.Context, idempotencyKey string) (*models.WebhookLog, error) {
	query := `
		SELECT id, tenant_id, provider, event_type, idempotency_key, payload, processed, created_at, updated_at
		FROM webhook_logs
		WHERE idempotency_key = $1
	`
	var wl models.WebhookLog
	err := r.db.QueryRow(ctx, query, idempotencyKey).Scan(
		&wl.ID,
		&wl.TenantID,
		&wl.Provider,
		&wl.EventType,
		&wl.IdempotencyKey,
		&wl.Payload,
		&wl.Processed,
		&wl.CreatedAt,
		&wl.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &wl, nil
}

// UpsertUnprocessed records the delivery before any business state is
// touched. Re-deliveries of an in-flight event refresh the payload. The
// unique constraint on idempotency_key makes concurrent deliveries serialize
// here.
func (r *WebhookRepository) UpsertUnprocessed(ctx context.Context, wl *models.WebhookLog) error {
	query := `
		INSERT INTO webhook_logs (tenant_id, provider, event_type, idempotency_key, payload, processed)
		VALUES ($1, $2, $3, $4, $5, false)
		ON CONFLICT (idempotency_key)
		DO UPDATE SET payload = EXCLUDED.payload, processed = false, updated_at = now()
		RETURNING id, created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		wl.TenantID, wl.Provider, wl.EventType, wl.IdempotencyKey, wl.Payload,
	).Scan(&wl.ID, &wl.CreatedAt, &wl.UpdatedAt)
}

// MarkProcessed flips the gate once every business-state write has succeeded.
func (r *WebhookRepository) MarkProcessed(ctx context.Context, idempotencyKey string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE webhook_logs SET processed = true, updated_at = now() WHERE idempotency_key = $1`,
		idempotencyKey)
	return err
}
