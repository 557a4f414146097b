package services

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/tavanofede-png/clases-de-frances/internal/models"
	"github.com/tavanofede-png/clases-de-frances/internal/queue"
	"github.com/tavanofede-png/clases-de-frances/pkg/apperr"
)

type WebhookService struct {
	db           txBeginner
	stores       stores
	txStores     storeFactory
	enqueuer     queue.Enqueuer
	eventsSecret string
	logger       *zap.Logger
	now          func() time.Time
}

func NewWebhookService(
	db *pgxpool.Pool,
	enqueuer queue.Enqueuer,
	eventsSecret string,
	logger *zap.Logger,
) *WebhookService {
	return &WebhookService{
		db:           db,
		stores:       pgStores(db),
		txStores:     pgStores,
		enqueuer:     enqueuer,
		eventsSecret: eventsSecret,
		logger:       logger,
		now:          time.Now,
	}
}

type WebhookOutcome struct {
	Message string
}

// mapProviderStatus translates the provider's transaction status. The second
// return is the lesson status an approval implies; empty means the lesson is
// left alone.
func mapProviderStatus(providerStatus string) (paymentStatus, lessonStatus string) {
	switch providerStatus {
	case "APPROVED":
		return models.PaymentStatusApproved, models.LessonStatusConfirmed
	case "DECLINED":
		return models.PaymentStatusRejected, ""
	case "ERROR":
		return models.PaymentStatusFailed, ""
	case "VOIDED":
		return models.PaymentStatusRefunded, ""
	default:
		return models.PaymentStatusPending, ""
	}
}

// verifyChecksum recomputes the provider checksum: sha256 over the
// concatenation of the values at the signature's property paths, the event
// timestamp, and the shared secret.
func verifyChecksum(payload map[string]any, secret string) bool {
	sig, ok := payload["signature"].(map[string]any)
	if !ok {
		return false
	}
	checksum, _ := sig["checksum"].(string)
	props, _ := sig["properties"].([]any)

	var b strings.Builder
	for _, prop := range props {
		path, _ := prop.(string)
		b.WriteString(stringifyValue(resolvePath(payload, path)))
	}
	b.WriteString(stringifyValue(payload["timestamp"]))
	b.WriteString(secret)

	sum := sha256.Sum256([]byte(b.String()))
	computed := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(computed), []byte(strings.ToLower(checksum))) == 1
}

// resolvePath walks a dotted property path ("data.transaction.id") from the
// payload root.
func resolvePath(payload map[string]any, path string) any {
	var current any = payload
	for _, key := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[key]
	}
	return current
}

// stringifyValue renders a JSON value the way the provider concatenates it:
// numbers keep their literal form (the payload is decoded with UseNumber).
func stringifyValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", val)
	}
}

// ProcessWompi applies one provider event to internal state, at most once.
// Expected oddities (unknown reference, missing transaction) are acknowledged
// as success so the provider does not retry-storm; only a bad signature is
// rejected.
func (s *WebhookService) ProcessWompi(ctx context.Context, tenant *models.Tenant, body []byte, requestID string) (*WebhookOutcome, error) {
	decoder := json.NewDecoder(strings.NewReader(string(body)))
	decoder.UseNumber()
	var payload map[string]any
	if err := decoder.Decode(&payload); err != nil {
		return nil, apperr.Validation("malformed webhook payload")
	}

	secret := s.eventsSecret
	if tenant.Settings.WompiEventsSecret != nil && *tenant.Settings.WompiEventsSecret != "" {
		secret = *tenant.Settings.WompiEventsSecret
	}
	if secret != "" {
		if _, hasSig := payload["signature"]; hasSig {
			if !verifyChecksum(payload, secret) {
				s.logger.Warn("webhook signature mismatch",
					zap.String("tenant", tenant.Slug),
					zap.String("request_id", requestID))
				return nil, apperr.New("INVALID_SIGNATURE", 401, "invalid webhook signature")
			}
		}
	}

	txID := stringifyValue(resolvePath(payload, "data.transaction.id"))
	eventID := stringifyValue(payload["id"])
	key := idempotencyKey("wompi", txID, eventID, requestID)

	existing, err := s.stores.webhooks.GetByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Processed {
		return &WebhookOutcome{Message: "event already processed"}, nil
	}

	eventType := stringifyValue(payload["event"])
	if eventType == "" {
		eventType = "transaction.updated"
	}
	if err := s.stores.webhooks.UpsertUnprocessed(ctx, &models.WebhookLog{
		TenantID:       tenant.ID,
		Provider:       "wompi",
		EventType:      eventType,
		IdempotencyKey: key,
		Payload:        body,
	}); err != nil {
		return nil, err
	}

	transaction, ok := resolvePath(payload, "data.transaction").(map[string]any)
	if !ok {
		// Some provider events carry no transaction at all.
		if err := s.stores.webhooks.MarkProcessed(ctx, key); err != nil {
			return nil, err
		}
		return &WebhookOutcome{Message: "no transaction data"}, nil
	}

	reference := stringifyValue(transaction["reference"])
	providerStatus := stringifyValue(transaction["status"])

	payment, err := s.stores.payments.GetByReference(ctx, reference, tenant.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn("webhook for unknown payment reference",
				zap.String("tenant", tenant.Slug),
				zap.String("reference", reference),
				zap.String("request_id", requestID))
			if err := s.stores.webhooks.MarkProcessed(ctx, key); err != nil {
				return nil, err
			}
			return &WebhookOutcome{Message: "payment not found"}, nil
		}
		return nil, err
	}

	paymentStatus, lessonStatus := mapProviderStatus(providerStatus)
	rawTransaction, err := json.Marshal(transaction)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	st := s.txStores(tx)

	var paidAt *time.Time
	if paymentStatus == models.PaymentStatusApproved {
		t := s.now()
		paidAt = &t
	}
	if err := st.payments.ApplyProviderResult(ctx, payment.ID, paymentStatus, txID, rawTransaction, paidAt); err != nil {
		return nil, err
	}

	if payment.LessonID != nil && lessonStatus != "" {
		if err := st.lessons.SetStatus(ctx, *payment.LessonID, lessonStatus, paymentStatus); err != nil {
			return nil, err
		}
	}

	if payment.PackID != nil && paymentStatus == models.PaymentStatusApproved {
		if err := s.activatePack(ctx, st, tenant.ID, *payment.PackID); err != nil {
			return nil, err
		}
	}

	// Processed flips inside the same transaction: either every business
	// write landed and the gate closes, or none did and a redelivery retries.
	if err := st.webhooks.MarkProcessed(ctx, key); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	if paymentStatus == models.PaymentStatusApproved {
		if payment.LessonID != nil {
			s.enqueueJobs(ctx,
				queue.CalendarCreate(tenant.ID, *payment.LessonID),
				queue.EmailConfirmation(tenant.ID, *payment.LessonID),
				queue.ScheduleReminders(tenant.ID, *payment.LessonID),
			)
		}
		if payment.PackID != nil {
			s.enqueueJobs(ctx, queue.EmailPackReceipt(tenant.ID, *payment.PackID))
		}
	}

	return &WebhookOutcome{Message: "webhook processed"}, nil
}

// activatePack turns the purchased pack on and stamps its expiry from the
// lesson type's validity window.
func (s *WebhookService) activatePack(ctx context.Context, st stores, tenantID, packID string) error {
	pack, err := st.packs.GetByID(ctx, packID, tenantID)
	if err != nil {
		return err
	}
	var expiresAt *time.Time
	lessonType, err := st.lessonTypes.GetByID(ctx, pack.LessonTypeID)
	if err == nil && lessonType.PackValidityDays != nil {
		t := s.now().AddDate(0, 0, *lessonType.PackValidityDays)
		expiresAt = &t
	} else if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	return st.packs.Activate(ctx, packID, expiresAt)
}

// idempotencyKey prefers the provider transaction id, then the event id,
// then the request correlation id.
func idempotencyKey(provider, txID, eventID, requestID string) string {
	id := txID
	if id == "" {
		id = eventID
	}
	if id == "" {
		id = requestID
	}
	return provider + "-" + id
}

func (s *WebhookService) enqueueJobs(ctx context.Context, jobs ...queue.Job) {
	for _, job := range jobs {
		if err := s.enqueuer.Enqueue(ctx, job); err != nil {
			s.logger.Error("failed to enqueue job",
				zap.String("queue", job.Queue),
				zap.String("job", job.Name),
				zap.Error(err))
		}
	}
}
