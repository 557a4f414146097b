package repository

import (
	"context"
	"time"

	"github.com/tavanofede-png/clases-de-frances/internal/models"
)

type PaymentRepository struct {
	db DBTX
}

func NewPaymentRepository(db DBTX) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `id, tenant_id, lesson_id, pack_id, amount, currency, provider,
		provider_reference, provider_payment_id, status, raw_payload, checkout_url,
		paid_at, created_at, updated_at`

func scanPayment(row interface{ Scan(...any) error }) (*models.Payment, error) {
	var p models.Payment
	err := row.Scan(
		&p.ID,
		&p.TenantID,
		&p.LessonID,
		&p.PackID,
		&p.Amount,
		&p.Currency,
		&p.Provider,
		&p.ProviderReference,
		&p.ProviderPaymentID,
		&p.Status,
		&p.RawPayload,
		&p.CheckoutURL,
		&p.PaidAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments (tenant_id, lesson_id, pack_id, amount, currency, provider, provider_reference, status, checkout_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending', $8)
		RETURNING id, status, created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		payment.TenantID,
		payment.LessonID,
		payment.PackID,
		payment.Amount,
		payment.Currency,
		payment.Provider,
		payment.ProviderReference,
		payment.CheckoutURL,
	).Scan(&payment.ID, &payment.Status, &payment.CreatedAt, &payment.UpdatedAt)
}

// GetPendingByLesson returns the single reusable pending payment for a
// lesson, if any.
func (r *PaymentRepository) GetPendingByLesson(ctx context.Context, lessonID, tenantID string) (*models.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE lesson_id = $1 AND tenant_id = $2 AND status = 'pending'
		ORDER BY created_at DESC
		LIMIT 1
	`
	return scanPayment(r.db.QueryRow(ctx, query, lessonID, tenantID))
}

func (r *PaymentRepository) GetByReference(ctx context.Context, reference, tenantID string) (*models.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE provider_reference = $1 AND tenant_id = $2
	`
	return scanPayment(r.db.QueryRow(ctx, query, reference, tenantID))
}

// ApplyProviderResult records the provider's verdict for a payment.
func (r *PaymentRepository) ApplyProviderResult(ctx context.Context, id, status, providerPaymentID string, rawPayload []byte, paidAt *time.Time) error {
	query := `
		UPDATE payments
		SET status = $2, provider_payment_id = $3, raw_payload = $4,
		    paid_at = COALESCE($5, paid_at), updated_at = now()
		WHERE id = $1
	`
	_, err := r.db.Exec(ctx, query, id, status, providerPaymentID, rawPayload, paidAt)
	return err
}

func (r *PaymentRepository) SetCheckoutURL(ctx context.Context, id, checkoutURL string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE payments SET checkout_url = $2, updated_at = now() WHERE id = $1`, id, checkoutURL)
	return err
}

// FailPendingByLesson marks every still-pending payment for a lesson as
// failed. Used when the payment chase gives up.
func (r *PaymentRepository) FailPendingByLesson(ctx context.Context, lessonID string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE payments SET status = 'failed', updated_at = now() WHERE lesson_id = $1 AND status = 'pending'`,
		lessonID)
	return err
}
