package services

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tavanofede-png/clases-de-frances/internal/models"
	"github.com/tavanofede-png/clases-de-frances/internal/repository"
)

// Narrow store views over the repositories. Services reach the database only
// through these, bound either to the pool or to a transaction by the same
// factory, so tests can swap in fakes at one seam.

type studentStore interface {
	GetByUserAndTenant(ctx context.Context, userID, tenantID string) (*models.Student, error)
}

type lessonTypeStore interface {
	GetByID(ctx context.Context, id string) (*models.LessonType, error)
	GetActive(ctx context.Context, id, tenantID string) (*models.LessonType, error)
}

type lessonStore interface {
	Create(ctx context.Context, input repository.CreateLessonInput) (*models.Lesson, error)
	GetByID(ctx context.Context, id, tenantID string) (*models.Lesson, error)
	GetForStudent(ctx context.Context, id, tenantID, studentID string) (*models.Lesson, error)
	HasActiveAt(ctx context.Context, tenantID string, startsAt time.Time, excludeID string) (bool, error)
	ListByStudent(ctx context.Context, tenantID, studentID string) ([]models.Lesson, error)
	Move(ctx context.Context, id string, startsAt, endsAt time.Time) (*models.Lesson, error)
	Cancel(ctx context.Context, id, reason string) (*models.Lesson, error)
	AdminUpdate(ctx context.Context, id string, update repository.AdminLessonUpdate) (*models.Lesson, error)
	SetStatus(ctx context.Context, id, status, paymentStatus string) error
}

type paymentStore interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetPendingByLesson(ctx context.Context, lessonID, tenantID string) (*models.Payment, error)
	GetByReference(ctx context.Context, reference, tenantID string) (*models.Payment, error)
	ApplyProviderResult(ctx context.Context, id, status, providerPaymentID string, rawPayload []byte, paidAt *time.Time) error
	SetCheckoutURL(ctx context.Context, id, checkoutURL string) error
}

type packStore interface {
	Create(ctx context.Context, pack *models.Pack) error
	GetByID(ctx context.Context, id, tenantID string) (*models.Pack, error)
	OldestUsableForUpdate(ctx context.Context, tenantID, studentID string, now time.Time) (*models.Pack, error)
	ListByStudent(ctx context.Context, tenantID, studentID string) ([]models.Pack, error)
	Activate(ctx context.Context, id string, expiresAt *time.Time) error
	AdjustUsed(ctx context.Context, id string, delta int) error
	AppendLedger(ctx context.Context, entry *models.PackLedgerEntry) error
	LedgerSum(ctx context.Context, packID string) (int, error)
}

type webhookStore interface {
	GetByKey(ctx context.Context, idempotencyKey string) (*models.WebhookLog, error)
	UpsertUnprocessed(ctx context.Context, wl *models.WebhookLog) error
	MarkProcessed(ctx context.Context, idempotencyKey string) error
}

type stores struct {
	students    studentStore
	lessonTypes lessonTypeStore
	lessons     lessonStore
	payments    paymentStore
	packs       packStore
	webhooks    webhookStore
}

type storeFactory func(repository.DBTX) stores

func pgStores(db repository.DBTX) stores {
	return stores{
		students:    repository.NewStudentRepository(db),
		lessonTypes: repository.NewLessonTypeRepository(db),
		lessons:     repository.NewLessonRepository(db),
		payments:    repository.NewPaymentRepository(db),
		packs:       repository.NewPackRepository(db),
		webhooks:    repository.NewWebhookRepository(db),
	}
}

type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
