package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/tavanofede-png/clases-de-frances/internal/models"
	"github.com/tavanofede-png/clases-de-frances/internal/queue"
	"github.com/tavanofede-png/clases-de-frances/internal/repository"
)

func decodePayload(t *testing.T, raw string) map[string]any {
	t.Helper()
	decoder := json.NewDecoder(strings.NewReader(raw))
	decoder.UseNumber()
	var payload map[string]any
	if err := decoder.Decode(&payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	return payload
}

func TestVerifyChecksum(t *testing.T) {
	secret := "test_events_secret"
	// Checksum input: transaction.id + transaction.status +
	// transaction.amount_in_cents + timestamp + secret.
	concat := "txn-123" + "APPROVED" + "8000000" + "1717171717" + secret
	sum := sha256.Sum256([]byte(concat))
	checksum := hex.EncodeToString(sum[:])

	raw := `{
		"event": "transaction.updated",
		"timestamp": 1717171717,
		"signature": {
			"checksum": "` + checksum + `",
			"properties": ["data.transaction.id", "data.transaction.status", "data.transaction.amount_in_cents"]
		},
		"data": {
			"transaction": {
				"id": "txn-123",
				"status": "APPROVED",
				"amount_in_cents": 8000000,
				"reference": "TP-ABC12345"
			}
		}
	}`

	payload := decodePayload(t, raw)
	if !verifyChecksum(payload, secret) {
		t.Fatal("expected valid checksum to verify")
	}
	if verifyChecksum(payload, "wrong_secret") {
		t.Fatal("expected wrong secret to fail verification")
	}

	tampered := decodePayload(t, strings.Replace(raw, "8000000", "1", 1))
	if verifyChecksum(tampered, secret) {
		t.Fatal("expected tampered payload to fail verification")
	}
}

func TestVerifyChecksumUppercase(t *testing.T) {
	secret := "s3cret"
	concat := "tx-1" + "1700000000" + secret
	sum := sha256.Sum256([]byte(concat))
	checksum := strings.ToUpper(hex.EncodeToString(sum[:]))

	payload := decodePayload(t, `{
		"timestamp": 1700000000,
		"signature": {"checksum": "`+checksum+`", "properties": ["data.transaction.id"]},
		"data": {"transaction": {"id": "tx-1"}}
	}`)
	if !verifyChecksum(payload, secret) {
		t.Fatal("expected uppercase checksum to verify")
	}
}

func TestVerifyChecksumMissingSignature(t *testing.T) {
	payload := decodePayload(t, `{"timestamp": 1, "data": {}}`)
	if verifyChecksum(payload, "secret") {
		t.Fatal("expected payload without signature block to fail")
	}
}

func TestResolvePath(t *testing.T) {
	payload := decodePayload(t, `{"data": {"transaction": {"id": "tx-9", "nested": {"deep": true}}}}`)

	if got := stringifyValue(resolvePath(payload, "data.transaction.id")); got != "tx-9" {
		t.Errorf("expected tx-9, got %q", got)
	}
	if got := resolvePath(payload, "data.transaction.missing"); got != nil {
		t.Errorf("expected nil for missing key, got %v", got)
	}
	if got := resolvePath(payload, "data.transaction.id.further"); got != nil {
		t.Errorf("expected nil when path descends through a scalar, got %v", got)
	}
	if got := stringifyValue(resolvePath(payload, "data.transaction.nested.deep")); got != "true" {
		t.Errorf("expected true, got %q", got)
	}
}

func TestStringifyValueNumbers(t *testing.T) {
	payload := decodePayload(t, `{"int": 8000000, "float": 99.5, "big": 12345678901234}`)

	cases := map[string]string{"int": "8000000", "float": "99.5", "big": "12345678901234"}
	for key, want := range cases {
		if got := stringifyValue(payload[key]); got != want {
			t.Errorf("%s: expected %q, got %q", key, want, got)
		}
	}
	if got := stringifyValue(nil); got != "" {
		t.Errorf("expected empty string for nil, got %q", got)
	}
}

func TestMapProviderStatus(t *testing.T) {
	tests := []struct {
		provider      string
		wantPayment   string
		wantLesson    string
	}{
		{"APPROVED", models.PaymentStatusApproved, models.LessonStatusConfirmed},
		{"DECLINED", models.PaymentStatusRejected, ""},
		{"ERROR", models.PaymentStatusFailed, ""},
		{"VOIDED", models.PaymentStatusRefunded, ""},
		{"PENDING", models.PaymentStatusPending, ""},
		{"SOMETHING_ELSE", models.PaymentStatusPending, ""},
	}
	for _, tt := range tests {
		gotPayment, gotLesson := mapProviderStatus(tt.provider)
		if gotPayment != tt.wantPayment || gotLesson != tt.wantLesson {
			t.Errorf("mapProviderStatus(%q) = (%q, %q), want (%q, %q)",
				tt.provider, gotPayment, gotLesson, tt.wantPayment, tt.wantLesson)
		}
	}
}

func TestIdempotencyKey(t *testing.T) {
	if got := idempotencyKey("wompi", "tx-1", "evt-1", "req-1"); got != "wompi-tx-1" {
		t.Errorf("expected transaction id to win, got %q", got)
	}
	if got := idempotencyKey("wompi", "", "evt-1", "req-1"); got != "wompi-evt-1" {
		t.Errorf("expected event id fallback, got %q", got)
	}
	if got := idempotencyKey("wompi", "", "", "req-1"); got != "wompi-req-1" {
		t.Errorf("expected request id fallback, got %q", got)
	}
}

// Delivering the same approved-transaction event twice must apply the
// payment, lesson, and job side effects exactly once; the second delivery is
// acknowledged through the idempotency gate without touching anything.
func TestProcessWompiDoubleDelivery(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	lessonID := "l1"
	payments := &stubPayments{byReference: map[string]*models.Payment{
		"TP-ABC12345": {ID: "pay1", TenantID: "t1", LessonID: &lessonID, Status: models.PaymentStatusPending},
	}}
	lessons := &stubLessons{lessons: map[string]*models.Lesson{}}
	webhooks := &stubWebhooks{logs: map[string]*models.WebhookLog{}}
	st := stores{
		lessonTypes: &stubLessonTypes{types: map[string]*models.LessonType{}},
		lessons:     lessons,
		payments:    payments,
		packs:       &stubPacks{packs: map[string]*models.Pack{}},
		webhooks:    webhooks,
	}
	enq := &stubEnqueuer{}
	tx := &stubTx{}
	svc := &WebhookService{
		db:       &stubBeginner{tx: tx},
		stores:   st,
		txStores: func(repository.DBTX) stores { return st },
		enqueuer: enq,
		logger:   zap.NewNop(),
		now:      func() time.Time { return now },
	}

	body := []byte(`{
		"event": "transaction.updated",
		"id": "evt-1",
		"timestamp": 1717171717,
		"data": {"transaction": {"id": "tx-1", "reference": "TP-ABC12345", "status": "APPROVED"}}
	}`)
	tenant := testTenant()

	first, err := svc.ProcessWompi(context.Background(), tenant, body, "req-1")
	if err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if first.Message != "webhook processed" {
		t.Fatalf("first delivery message = %q", first.Message)
	}
	if !tx.committed {
		t.Fatal("first delivery never committed")
	}
	if len(payments.applied) != 1 || payments.applied[0] != "pay1/"+models.PaymentStatusApproved {
		t.Fatalf("payments applied = %v, want one approval of pay1", payments.applied)
	}
	if len(lessons.statusSets) != 1 || lessons.statusSets[0] != "l1/confirmed/approved" {
		t.Fatalf("lesson status writes = %v, want l1 confirmed", lessons.statusSets)
	}
	log := webhooks.logs["wompi-tx-1"]
	if log == nil || !log.Processed {
		t.Fatal("event log not marked processed under the transaction id key")
	}
	wantJobs := []string{queue.JobCreateEvent, queue.JobSendConfirmation, queue.JobScheduleRemind}
	if len(enq.jobs) != len(wantJobs) {
		t.Fatalf("jobs after first delivery = %d, want %d", len(enq.jobs), len(wantJobs))
	}
	for i, name := range wantJobs {
		if enq.jobs[i].Name != name {
			t.Errorf("job[%d] = %s, want %s", i, enq.jobs[i].Name, name)
		}
	}

	second, err := svc.ProcessWompi(context.Background(), tenant, body, "req-2")
	if err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	if second.Message != "event already processed" {
		t.Fatalf("second delivery message = %q", second.Message)
	}
	if len(payments.applied) != 1 {
		t.Errorf("payments applied after redelivery = %d, want still 1", len(payments.applied))
	}
	if len(lessons.statusSets) != 1 {
		t.Errorf("lesson status writes after redelivery = %d, want still 1", len(lessons.statusSets))
	}
	if len(enq.jobs) != len(wantJobs) {
		t.Errorf("jobs after redelivery = %d, want still %d", len(enq.jobs), len(wantJobs))
	}
}

// An approved pack purchase activates the pack with the expiry taken from
// the lesson type's validity window.
func TestProcessWompiActivatesPack(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	packID := "p1"
	validity := 90
	payments := &stubPayments{byReference: map[string]*models.Payment{
		"PK-XYZ98765": {ID: "pay2", TenantID: "t1", PackID: &packID, Status: models.PaymentStatusPending},
	}}
	packs := &stubPacks{packs: map[string]*models.Pack{
		"p1": {ID: "p1", TenantID: "t1", LessonTypeID: "lt1", TotalCredits: 5},
	}}
	st := stores{
		lessonTypes: &stubLessonTypes{types: map[string]*models.LessonType{
			"lt1": {ID: "lt1", TenantID: "t1", IsPackType: true, PackValidityDays: &validity},
		}},
		lessons:  &stubLessons{lessons: map[string]*models.Lesson{}},
		payments: payments,
		packs:    packs,
		webhooks: &stubWebhooks{logs: map[string]*models.WebhookLog{}},
	}
	enq := &stubEnqueuer{}
	svc := &WebhookService{
		db:       &stubBeginner{tx: &stubTx{}},
		stores:   st,
		txStores: func(repository.DBTX) stores { return st },
		enqueuer: enq,
		logger:   zap.NewNop(),
		now:      func() time.Time { return now },
	}

	body := []byte(`{
		"event": "transaction.updated",
		"id": "evt-2",
		"timestamp": 1717171717,
		"data": {"transaction": {"id": "tx-2", "reference": "PK-XYZ98765", "status": "APPROVED"}}
	}`)

	if _, err := svc.ProcessWompi(context.Background(), testTenant(), body, "req-1"); err != nil {
		t.Fatalf("ProcessWompi: %v", err)
	}
	if len(packs.activated) != 1 || packs.activated[0] != "p1" {
		t.Fatalf("packs activated = %v, want [p1]", packs.activated)
	}
	if len(enq.jobs) != 1 || enq.jobs[0].Name != queue.JobSendPackReceipt {
		t.Fatalf("jobs = %+v, want one pack receipt", enq.jobs)
	}
}
