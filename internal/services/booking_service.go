package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/tavanofede-png/clases-de-frances/internal/models"
	"github.com/tavanofede-png/clases-de-frances/internal/queue"
	"github.com/tavanofede-png/clases-de-frances/internal/repository"
	"github.com/tavanofede-png/clases-de-frances/pkg/apperr"
	"github.com/tavanofede-png/clases-de-frances/pkg/utils"
)

const uniqueViolation = "23505"

type BookingService struct {
	db             txBeginner
	stores         stores
	txStores       storeFactory
	credits        *CreditService
	enqueuer       queue.Enqueuer
	webBaseURL     string
	wompiPublicKey string
	logger         *zap.Logger
	now            func() time.Time
}

func NewBookingService(
	db *pgxpool.Pool,
	credits *CreditService,
	enqueuer queue.Enqueuer,
	webBaseURL string,
	wompiPublicKey string,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		db:             db,
		stores:         pgStores(db),
		txStores:       pgStores,
		credits:        credits,
		enqueuer:       enqueuer,
		webBaseURL:     webBaseURL,
		wompiPublicKey: wompiPublicKey,
		logger:         logger,
		now:            time.Now,
	}
}

type CreateBookingInput struct {
	LessonTypeID string
	StartsAt     time.Time
}

type BookingResult struct {
	Lesson          *models.Lesson
	Payment         *models.Payment
	CoveredByPack   bool
	RequiresPayment bool
	Message         string
}

// bookingDecision is the create-booking decision table: a usable pack always
// wins, otherwise the tenant's payment gate decides between a reserved
// lesson awaiting payment and an immediately confirmed one.
func bookingDecision(hasPack, requirePayment bool) (status, paymentStatus string) {
	switch {
	case hasPack:
		return models.LessonStatusConfirmed, models.PaymentStatusCoveredByPack
	case requirePayment:
		return models.LessonStatusReserved, models.PaymentStatusPending
	default:
		return models.LessonStatusConfirmed, models.PaymentStatusPending
	}
}

// noticeOK enforces the minimum-notice policy. The boundary is inclusive:
// exactly minHours before the lesson is still allowed.
func noticeOK(startsAt, now time.Time, minHours int) bool {
	return startsAt.Sub(now) >= time.Duration(minHours)*time.Hour
}

// Create books a lesson for the authenticated student. The conflict check,
// the insert, and any credit consumption share one transaction serialized by
// a per-tenant advisory lock; the partial unique index on active lessons
// backstops the race at the storage layer.
func (s *BookingService) Create(ctx context.Context, tenant *models.Tenant, userID string, input CreateBookingInput) (*BookingResult, error) {
	student, err := s.stores.students.GetByUserAndTenant(ctx, userID, tenant.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("student not found")
		}
		return nil, err
	}

	lessonType, err := s.stores.lessonTypes.GetActive(ctx, input.LessonTypeID, tenant.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("lesson type not found")
		}
		return nil, err
	}

	startsAt := input.StartsAt.UTC()
	endsAt := startsAt.Add(time.Duration(lessonType.DurationMin) * time.Minute)
	if !startsAt.After(s.now()) {
		return nil, apperr.Validation("lesson start must be in the future")
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	st := s.txStores(tx)

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", tenant.ID); err != nil {
		return nil, err
	}

	occupied, err := st.lessons.HasActiveAt(ctx, tenant.ID, startsAt, "")
	if err != nil {
		return nil, err
	}
	if occupied {
		return nil, apperr.Conflict("this time slot is already booked")
	}

	pack, err := st.packs.OldestUsableForUpdate(ctx, tenant.ID, student.ID, s.now())
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	hasPack := pack != nil && pack.Usable(s.now())

	status, paymentStatus := bookingDecision(hasPack, tenant.Settings.PaymentRequired())

	createInput := repository.CreateLessonInput{
		TenantID:      tenant.ID,
		StudentID:     student.ID,
		LessonTypeID:  lessonType.ID,
		StartsAt:      startsAt,
		EndsAt:        endsAt,
		Status:        status,
		PaymentStatus: paymentStatus,
	}
	if hasPack {
		createInput.PackID = &pack.ID
	}

	lesson, err := st.lessons.Create(ctx, createInput)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, apperr.Conflict("this time slot is already booked")
		}
		return nil, err
	}

	result := &BookingResult{Lesson: lesson}

	switch {
	case hasPack:
		if err := s.credits.Consume(ctx, tx, tenant.ID, pack.ID, lesson.ID); err != nil {
			return nil, err
		}
		result.CoveredByPack = true
		result.Message = "Lesson confirmed! One credit was deducted from your pack."

	case tenant.Settings.PaymentRequired():
		payment := &models.Payment{
			TenantID:          tenant.ID,
			LessonID:          &lesson.ID,
			Amount:            lessonType.PriceAmount,
			Currency:          lessonType.Currency,
			Provider:          "wompi",
			ProviderReference: utils.PaymentReference("TP"),
		}
		if err := st.payments.Create(ctx, payment); err != nil {
			return nil, err
		}
		result.Payment = payment
		result.RequiresPayment = true
		result.Message = "Booking created. Complete the payment to confirm."

	default:
		result.Message = "Lesson confirmed!"
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	// Side effects only after the authoritative state is committed. An
	// enqueue failure is logged, never unwound into the booking.
	if lesson.Status == models.LessonStatusConfirmed {
		s.enqueue(ctx,
			queue.CalendarCreate(tenant.ID, lesson.ID),
			queue.EmailConfirmation(tenant.ID, lesson.ID),
		)
		if result.CoveredByPack {
			s.enqueue(ctx, queue.ScheduleReminders(tenant.ID, lesson.ID))
		}
	}

	return result, nil
}

// Reschedule moves a reserved/confirmed lesson owned by the student to a new
// start, subject to the tenant's minimum-notice policy.
func (s *BookingService) Reschedule(ctx context.Context, tenant *models.Tenant, userID, lessonID string, newStartsAt time.Time) (*models.Lesson, error) {
	lesson, err := s.ownedLesson(ctx, tenant, userID, lessonID)
	if err != nil {
		return nil, err
	}

	minHours := tenant.Settings.RescheduleNotice()
	if !noticeOK(lesson.StartsAt, s.now(), minHours) {
		return nil, apperr.Policy(fmt.Sprintf("rescheduling requires at least %d hours notice", minHours))
	}
	if !lesson.Occupying() {
		return nil, apperr.Policy("this lesson can no longer be rescheduled")
	}

	lessonType, err := s.stores.lessonTypes.GetByID(ctx, lesson.LessonTypeID)
	if err != nil {
		return nil, err
	}
	startsAt := newStartsAt.UTC()
	endsAt := startsAt.Add(time.Duration(lessonType.DurationMin) * time.Minute)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	st := s.txStores(tx)

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", tenant.ID); err != nil {
		return nil, err
	}
	occupied, err := st.lessons.HasActiveAt(ctx, tenant.ID, startsAt, lesson.ID)
	if err != nil {
		return nil, err
	}
	if occupied {
		return nil, apperr.Conflict("the new time is not available")
	}

	updated, err := st.lessons.Move(ctx, lesson.ID, startsAt, endsAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, apperr.Conflict("the new time is not available")
		}
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	if lesson.CalendarEventID != nil {
		s.enqueue(ctx, queue.CalendarUpdate(tenant.ID, lesson.ID))
	}
	return updated, nil
}

// Cancel cancels a reserved/confirmed lesson owned by the student, refunding
// the pack credit when the lesson was covered by one.
func (s *BookingService) Cancel(ctx context.Context, tenant *models.Tenant, userID, lessonID, reason string) error {
	lesson, err := s.ownedLesson(ctx, tenant, userID, lessonID)
	if err != nil {
		return err
	}

	minHours := tenant.Settings.CancelNotice()
	if !noticeOK(lesson.StartsAt, s.now(), minHours) {
		return apperr.Policy(fmt.Sprintf("cancelling requires at least %d hours notice", minHours))
	}
	if !lesson.Occupying() {
		return apperr.Policy("this lesson can no longer be cancelled")
	}
	if reason == "" {
		reason = "Cancelled by the student"
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	st := s.txStores(tx)

	if _, err := st.lessons.Cancel(ctx, lesson.ID, reason); err != nil {
		return err
	}
	if lesson.PackID != nil && lesson.PaymentStatus == models.PaymentStatusCoveredByPack {
		if err := s.credits.Refund(ctx, tx, tenant.ID, *lesson.PackID, lesson.ID); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	if lesson.CalendarEventID != nil {
		s.enqueue(ctx, queue.CalendarDelete(tenant.ID, lesson.ID, *lesson.CalendarEventID))
	}
	return nil
}

// AdminUpdate lets a tenant admin override status, payment status, and
// teacher notes. A no_show transition never refunds the consumed credit; for
// pack-covered lessons it appends a delta-0 forfeit row for the audit trail.
func (s *BookingService) AdminUpdate(ctx context.Context, tenant *models.Tenant, lessonID string, update repository.AdminLessonUpdate) (*models.Lesson, error) {
	lesson, err := s.stores.lessons.GetByID(ctx, lessonID, tenant.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("lesson not found")
		}
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

	updated, err := st.lessons.AdminUpdate(ctx, lesson.ID, update)
	if err != nil {
		return nil, err
	}

	turnedNoShow := update.Status != nil && *update.Status == models.LessonStatusNoShow &&
		lesson.Status != models.LessonStatusNoShow
	if turnedNoShow && lesson.PackID != nil && lesson.PaymentStatus == models.PaymentStatusCoveredByPack {
		if err := s.credits.ForfeitNoShow(ctx, tx, tenant.ID, *lesson.PackID, lesson.ID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return updated, nil
}

type CheckoutResult struct {
	CheckoutURL string
	Reference   string
	Amount      int64
}

// Checkout returns the provider checkout link for a lesson, reusing the
// single pending payment when one exists.
func (s *BookingService) Checkout(ctx context.Context, tenant *models.Tenant, lessonID string) (*CheckoutResult, error) {
	lesson, err := s.stores.lessons.GetByID(ctx, lessonID, tenant.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("lesson not found")
		}
		return nil, err
	}
	lessonType, err := s.stores.lessonTypes.GetByID(ctx, lesson.LessonTypeID)
	if err != nil {
		return nil, err
	}

	payment, err := s.stores.payments.GetPendingByLesson(ctx, lesson.ID, tenant.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		payment = &models.Payment{
			TenantID:          tenant.ID,
			LessonID:          &lesson.ID,
			Amount:            lessonType.PriceAmount,
			Currency:          lessonType.Currency,
			Provider:          "wompi",
			ProviderReference: utils.PaymentReference("TP"),
		}
		if err := s.stores.payments.Create(ctx, payment); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	checkoutURL := s.checkoutURL(tenant, payment.ProviderReference, payment.Amount, payment.Currency)
	if err := s.stores.payments.SetCheckoutURL(ctx, payment.ID, checkoutURL); err != nil {
		return nil, err
	}

	return &CheckoutResult{
		CheckoutURL: checkoutURL,
		Reference:   payment.ProviderReference,
		Amount:      payment.Amount,
	}, nil
}

type PackPurchaseResult struct {
	Pack        *models.Pack
	CheckoutURL string
	Reference   string
	Amount      int64
}

// PurchasePack creates an inactive pack plus its pending payment. The pack
// is activated only by the payment webhook.
func (s *BookingService) PurchasePack(ctx context.Context, tenant *models.Tenant, userID, lessonTypeID string) (*PackPurchaseResult, error) {
	student, err := s.stores.students.GetByUserAndTenant(ctx, userID, tenant.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("student not found")
		}
		return nil, err
	}

	lessonType, err := s.stores.lessonTypes.GetActive(ctx, lessonTypeID, tenant.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("pack type not found")
		}
		return nil, err
	}
	if !lessonType.IsPackType || lessonType.PackSize == nil || *lessonType.PackSize <= 0 {
		return nil, apperr.Policy("this lesson type is not sold as a pack")
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	st := s.txStores(tx)

	pack := &models.Pack{
		TenantID:     tenant.ID,
		StudentID:    student.ID,
		LessonTypeID: lessonType.ID,
		TotalCredits: *lessonType.PackSize,
		IsActive:     false, // activated by the webhook after payment
	}
	if err := st.packs.Create(ctx, pack); err != nil {
		return nil, err
	}

	reference := utils.PaymentReference("PK")
	checkoutURL := s.checkoutURL(tenant, reference, lessonType.PriceAmount, lessonType.Currency)
	payment := &models.Payment{
		TenantID:          tenant.ID,
		PackID:            &pack.ID,
		Amount:            lessonType.PriceAmount,
		Currency:          lessonType.Currency,
		Provider:          "wompi",
		ProviderReference: reference,
		CheckoutURL:       &checkoutURL,
	}
	if err := st.payments.Create(ctx, payment); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &PackPurchaseResult{
		Pack:        pack,
		CheckoutURL: checkoutURL,
		Reference:   reference,
		Amount:      lessonType.PriceAmount,
	}, nil
}

// StudentLessons lists the student's lesson history, newest first.
func (s *BookingService) StudentLessons(ctx context.Context, tenant *models.Tenant, userID string) ([]models.Lesson, error) {
	student, err := s.stores.students.GetByUserAndTenant(ctx, userID, tenant.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("student not found")
		}
		return nil, err
	}
	return s.stores.lessons.ListByStudent(ctx, tenant.ID, student.ID)
}

// StudentPacks lists the student's packs, newest first.
func (s *BookingService) StudentPacks(ctx context.Context, tenant *models.Tenant, userID string) ([]models.Pack, error) {
	student, err := s.stores.students.GetByUserAndTenant(ctx, userID, tenant.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("student not found")
		}
		return nil, err
	}
	return s.stores.packs.ListByStudent(ctx, tenant.ID, student.ID)
}

func (s *BookingService) ownedLesson(ctx context.Context, tenant *models.Tenant, userID, lessonID string) (*models.Lesson, error) {
	student, err := s.stores.students.GetByUserAndTenant(ctx, userID, tenant.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("student not found")
		}
		return nil, err
	}
	lesson, err := s.stores.lessons.GetForStudent(ctx, lessonID, tenant.ID, student.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("lesson not found")
		}
		return nil, err
	}
	return lesson, nil
}

func (s *BookingService) checkoutURL(tenant *models.Tenant, reference string, amount int64, currency string) string {
	publicKey := s.wompiPublicKey
	if tenant.Settings.WompiPublicKey != nil && *tenant.Settings.WompiPublicKey != "" {
		publicKey = *tenant.Settings.WompiPublicKey
	}
	redirect := fmt.Sprintf("%s/t/%s/payment/result", s.webBaseURL, tenant.Slug)

	q := url.Values{}
	q.Set("public-key", publicKey)
	q.Set("currency", currency)
	q.Set("amount-in-cents", fmt.Sprintf("%d", amount*100))
	q.Set("reference", reference)
	q.Set("redirect-url", redirect)
	return "https://checkout.wompi.co/p/?" + q.Encode()
}

func (s *BookingService) enqueue(ctx context.Context, jobs ...queue.Job) {
	for _, job := range jobs {
		if err := s.enqueuer.Enqueue(ctx, job); err != nil {
			s.logger.Error("failed to enqueue job",
				zap.String("queue", job.Queue),
				zap.String("job", job.Name),
				zap.Error(err))
		}
	}
}
