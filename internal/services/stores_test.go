package services

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tavanofede-png/clases-de-frances/internal/models"
	"github.com/tavanofede-png/clases-de-frances/internal/queue"
	"github.com/tavanofede-png/clases-de-frances/internal/repository"
)

// stubTx satisfies pgx.Tx for the transactional service paths. Only Exec,
// Commit and Rollback do anything; repositories are replaced by stubs so the
// query methods are never reached.
type stubTx struct {
	execSQL    []string
	committed  bool
	rolledBack bool
}

func (t *stubTx) Begin(_ context.Context) (pgx.Tx, error) { return t, nil }

func (t *stubTx) Commit(_ context.Context) error {
	t.committed = true
	return nil
}

func (t *stubTx) Rollback(_ context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

func (t *stubTx) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	t.execSQL = append(t.execSQL, sql)
	return pgconn.CommandTag{}, nil
}

func (t *stubTx) CopyFrom(_ context.Context, _ pgx.Identifier, _ []string, _ pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *stubTx) SendBatch(_ context.Context, _ *pgx.Batch) pgx.BatchResults { return nil }
func (t *stubTx) LargeObjects() pgx.LargeObjects                             { return pgx.LargeObjects{} }
func (t *stubTx) Prepare(_ context.Context, _, _ string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *stubTx) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) { return nil, nil }
func (t *stubTx) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row       { return nil }
func (t *stubTx) Conn() *pgx.Conn                                              { return nil }

type stubBeginner struct {
	tx *stubTx
}

func (b *stubBeginner) Begin(_ context.Context) (pgx.Tx, error) { return b.tx, nil }

type stubStudents struct {
	student *models.Student
}

func (s *stubStudents) GetByUserAndTenant(_ context.Context, _, _ string) (*models.Student, error) {
	if s.student == nil {
		return nil, pgx.ErrNoRows
	}
	return s.student, nil
}

type stubLessonTypes struct {
	types map[string]*models.LessonType
}

func (s *stubLessonTypes) GetByID(_ context.Context, id string) (*models.LessonType, error) {
	lt, ok := s.types[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return lt, nil
}

func (s *stubLessonTypes) GetActive(ctx context.Context, id, _ string) (*models.LessonType, error) {
	return s.GetByID(ctx, id)
}

type stubLessons struct {
	hasActive  bool
	created    []repository.CreateLessonInput
	lessons    map[string]*models.Lesson
	statusSets []string // "id/status/paymentStatus"
}

func (s *stubLessons) Create(_ context.Context, input repository.CreateLessonInput) (*models.Lesson, error) {
	s.created = append(s.created, input)
	return &models.Lesson{
		ID:            "lesson-new",
		TenantID:      input.TenantID,
		StudentID:     input.StudentID,
		LessonTypeID:  input.LessonTypeID,
		PackID:        input.PackID,
		StartsAt:      input.StartsAt,
		EndsAt:        input.EndsAt,
		Status:        input.Status,
		PaymentStatus: input.PaymentStatus,
	}, nil
}

func (s *stubLessons) GetByID(_ context.Context, id, _ string) (*models.Lesson, error) {
	lesson, ok := s.lessons[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return lesson, nil
}

func (s *stubLessons) GetForStudent(ctx context.Context, id, tenantID, _ string) (*models.Lesson, error) {
	return s.GetByID(ctx, id, tenantID)
}

func (s *stubLessons) HasActiveAt(_ context.Context, _ string, _ time.Time, _ string) (bool, error) {
	return s.hasActive, nil
}

func (s *stubLessons) ListByStudent(_ context.Context, _, _ string) ([]models.Lesson, error) {
	return nil, nil
}

func (s *stubLessons) Move(_ context.Context, id string, startsAt, endsAt time.Time) (*models.Lesson, error) {
	lesson := *s.lessons[id]
	lesson.StartsAt = startsAt
	lesson.EndsAt = endsAt
	return &lesson, nil
}

func (s *stubLessons) Cancel(_ context.Context, id, reason string) (*models.Lesson, error) {
	lesson := *s.lessons[id]
	lesson.Status = models.LessonStatusCancelled
	lesson.CancellationReason = &reason
	return &lesson, nil
}

func (s *stubLessons) AdminUpdate(_ context.Context, id string, _ repository.AdminLessonUpdate) (*models.Lesson, error) {
	return s.lessons[id], nil
}

func (s *stubLessons) SetStatus(_ context.Context, id, status, paymentStatus string) error {
	s.statusSets = append(s.statusSets, id+"/"+status+"/"+paymentStatus)
	return nil
}

type stubPayments struct {
	created     []*models.Payment
	byReference map[string]*models.Payment
	applied     []string // "id/status"
}

func (s *stubPayments) Create(_ context.Context, payment *models.Payment) error {
	payment.ID = "payment-new"
	s.created = append(s.created, payment)
	return nil
}

func (s *stubPayments) GetPendingByLesson(_ context.Context, _, _ string) (*models.Payment, error) {
	return nil, pgx.ErrNoRows
}

func (s *stubPayments) GetByReference(_ context.Context, reference, _ string) (*models.Payment, error) {
	payment, ok := s.byReference[reference]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return payment, nil
}

func (s *stubPayments) ApplyProviderResult(_ context.Context, id, status, _ string, _ []byte, _ *time.Time) error {
	s.applied = append(s.applied, id+"/"+status)
	return nil
}

func (s *stubPayments) SetCheckoutURL(_ context.Context, _, _ string) error { return nil }

type stubPacks struct {
	packs     map[string]*models.Pack
	usable    *models.Pack
	ledger    []models.PackLedgerEntry
	activated []string
}

func (s *stubPacks) Create(_ context.Context, pack *models.Pack) error {
	pack.ID = "pack-new"
	return nil
}

func (s *stubPacks) GetByID(_ context.Context, id, _ string) (*models.Pack, error) {
	pack, ok := s.packs[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return pack, nil
}

func (s *stubPacks) OldestUsableForUpdate(_ context.Context, _, _ string, _ time.Time) (*models.Pack, error) {
	if s.usable == nil {
		return nil, pgx.ErrNoRows
	}
	return s.usable, nil
}

func (s *stubPacks) ListByStudent(_ context.Context, _, _ string) ([]models.Pack, error) {
	return nil, nil
}

func (s *stubPacks) Activate(_ context.Context, id string, _ *time.Time) error {
	s.activated = append(s.activated, id)
	if pack, ok := s.packs[id]; ok {
		pack.IsActive = true
	}
	return nil
}

func (s *stubPacks) AdjustUsed(_ context.Context, id string, delta int) error {
	if pack, ok := s.packs[id]; ok {
		pack.UsedCredits += delta
	} else if s.usable != nil && s.usable.ID == id {
		s.usable.UsedCredits += delta
	}
	return nil
}

func (s *stubPacks) AppendLedger(_ context.Context, entry *models.PackLedgerEntry) error {
	s.ledger = append(s.ledger, *entry)
	return nil
}

func (s *stubPacks) LedgerSum(_ context.Context, packID string) (int, error) {
	sum := 0
	for _, entry := range s.ledger {
		if entry.PackID == packID {
			sum += entry.Delta
		}
	}
	return sum, nil
}

type stubWebhooks struct {
	logs map[string]*models.WebhookLog
}

func (s *stubWebhooks) GetByKey(_ context.Context, key string) (*models.WebhookLog, error) {
	return s.logs[key], nil
}

func (s *stubWebhooks) UpsertUnprocessed(_ context.Context, wl *models.WebhookLog) error {
	if existing, ok := s.logs[wl.IdempotencyKey]; ok {
		existing.Payload = wl.Payload
		return nil
	}
	s.logs[wl.IdempotencyKey] = wl
	return nil
}

func (s *stubWebhooks) MarkProcessed(_ context.Context, key string) error {
	if wl, ok := s.logs[key]; ok {
		wl.Processed = true
	}
	return nil
}

type stubEnqueuer struct {
	jobs []queue.Job
}

func (s *stubEnqueuer) Enqueue(_ context.Context, job queue.Job) error {
	s.jobs = append(s.jobs, job)
	return nil
}
