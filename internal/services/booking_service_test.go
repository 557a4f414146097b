package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/tavanofede-png/clases-de-frances/internal/models"
	"github.com/tavanofede-png/clases-de-frances/internal/queue"
	"github.com/tavanofede-png/clases-de-frances/internal/repository"
	"github.com/tavanofede-png/clases-de-frances/pkg/apperr"
)

func TestBookingDecision(t *testing.T) {
	tests := []struct {
		name           string
		hasPack        bool
		requirePayment bool
		wantStatus     string
		wantPayment    string
	}{
		{"pack wins regardless of gate", true, true, models.LessonStatusConfirmed, models.PaymentStatusCoveredByPack},
		{"pack wins with gate off", true, false, models.LessonStatusConfirmed, models.PaymentStatusCoveredByPack},
		{"payment gate holds the slot", false, true, models.LessonStatusReserved, models.PaymentStatusPending},
		{"no gate confirms immediately", false, false, models.LessonStatusConfirmed, models.PaymentStatusPending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, paymentStatus := bookingDecision(tt.hasPack, tt.requirePayment)
			if status != tt.wantStatus || paymentStatus != tt.wantPayment {
				t.Errorf("bookingDecision(%v, %v) = (%q, %q), want (%q, %q)",
					tt.hasPack, tt.requirePayment, status, paymentStatus, tt.wantStatus, tt.wantPayment)
			}
		})
	}
}

func TestNoticeOK(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		startsAt time.Time
		minHours int
		want     bool
	}{
		{"well outside the window", now.Add(48 * time.Hour), 24, true},
		{"exactly at the boundary", now.Add(24 * time.Hour), 24, true},
		{"one second inside", now.Add(24*time.Hour - time.Second), 24, false},
		{"lesson already started", now.Add(-time.Hour), 24, false},
		{"zero notice always passes for future lessons", now.Add(time.Minute), 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := noticeOK(tt.startsAt, now, tt.minHours); got != tt.want {
				t.Errorf("noticeOK(%v, now, %d) = %v, want %v", tt.startsAt, tt.minHours, got, tt.want)
			}
		})
	}
}

func newBookingServiceForTest(st stores, tx *stubTx, packs *stubPacks, now time.Time) (*BookingService, *stubEnqueuer) {
	enq := &stubEnqueuer{}
	svc := &BookingService{
		db:       &stubBeginner{tx: tx},
		stores:   st,
		txStores: func(repository.DBTX) stores { return st },
		credits:  creditServiceWith(packs),
		enqueuer: enq,
		logger:   zap.NewNop(),
		now:      func() time.Time { return now },
	}
	return svc, enq
}

func bookingFixture(occupied bool) (stores, *stubLessons, *stubPacks) {
	lessons := &stubLessons{hasActive: occupied}
	packs := &stubPacks{packs: map[string]*models.Pack{}}
	st := stores{
		students: &stubStudents{student: &models.Student{ID: "s1", TenantID: "t1", UserID: "u1"}},
		lessonTypes: &stubLessonTypes{types: map[string]*models.LessonType{
			"lt1": {ID: "lt1", TenantID: "t1", Name: "Clase individual", DurationMin: 60, PriceAmount: 80000, Currency: "COP", IsActive: true},
		}},
		lessons:  lessons,
		payments: &stubPayments{},
		packs:    packs,
	}
	return st, lessons, packs
}

// An occupied slot must come back as a conflict with nothing committed and
// nothing enqueued.
func TestCreateRejectsOccupiedSlot(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	st, lessons, packs := bookingFixture(true)
	tx := &stubTx{}
	svc, enq := newBookingServiceForTest(st, tx, packs, now)

	_, err := svc.Create(context.Background(), testTenant(), "u1", CreateBookingInput{
		LessonTypeID: "lt1",
		StartsAt:     now.Add(48 * time.Hour),
	})

	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Code != "CONFLICT" {
		t.Fatalf("Create on an occupied slot = %v, want CONFLICT", err)
	}
	if tx.committed {
		t.Error("conflicting booking must not commit")
	}
	if !tx.rolledBack {
		t.Error("conflicting booking must roll the transaction back")
	}
	if len(lessons.created) != 0 {
		t.Errorf("lessons created = %d, want 0", len(lessons.created))
	}
	if len(enq.jobs) != 0 {
		t.Errorf("jobs enqueued = %d, want 0", len(enq.jobs))
	}
}

// With a usable pack the lesson confirms immediately, one credit moves
// through the ledger, and the post-commit jobs go out.
func TestCreateCoveredByPack(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	st, lessons, packs := bookingFixture(false)
	packs.usable = &models.Pack{ID: "p1", TenantID: "t1", StudentID: "s1", TotalCredits: 5, IsActive: true}
	packs.packs["p1"] = packs.usable
	tx := &stubTx{}
	svc, enq := newBookingServiceForTest(st, tx, packs, now)

	result, err := svc.Create(context.Background(), testTenant(), "u1", CreateBookingInput{
		LessonTypeID: "lt1",
		StartsAt:     now.Add(48 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if !result.CoveredByPack || result.RequiresPayment {
		t.Fatalf("result = covered=%v requiresPayment=%v, want covered only", result.CoveredByPack, result.RequiresPayment)
	}
	if result.Lesson.Status != models.LessonStatusConfirmed || result.Lesson.PaymentStatus != models.PaymentStatusCoveredByPack {
		t.Errorf("lesson = (%s, %s), want (confirmed, covered_by_pack)", result.Lesson.Status, result.Lesson.PaymentStatus)
	}
	if len(lessons.created) != 1 || lessons.created[0].PackID == nil || *lessons.created[0].PackID != "p1" {
		t.Error("created lesson must carry the covering pack id")
	}

	if !tx.committed {
		t.Fatal("booking transaction never committed")
	}
	if len(tx.execSQL) != 1 {
		t.Fatalf("tx exec calls = %d, want the tenant advisory lock only", len(tx.execSQL))
	}

	if packs.packs["p1"].UsedCredits != 1 {
		t.Errorf("used credits = %d, want 1", packs.packs["p1"].UsedCredits)
	}
	if len(packs.ledger) != 1 || packs.ledger[0].Delta != -1 || packs.ledger[0].Reason != models.LedgerReasonBooking {
		t.Errorf("ledger = %+v, want a single -1 booking row", packs.ledger)
	}

	wantJobs := []string{queue.JobCreateEvent, queue.JobSendConfirmation, queue.JobScheduleRemind}
	if len(enq.jobs) != len(wantJobs) {
		t.Fatalf("jobs enqueued = %d, want %d", len(enq.jobs), len(wantJobs))
	}
	for i, name := range wantJobs {
		if enq.jobs[i].Name != name {
			t.Errorf("job[%d] = %s, want %s", i, enq.jobs[i].Name, name)
		}
	}
}

// With no pack and the payment gate on, the slot is reserved behind a pending
// payment and nothing is enqueued until the webhook confirms.
func TestCreateReservedBehindPaymentGate(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	st, _, packs := bookingFixture(false)
	payments := st.payments.(*stubPayments)
	tx := &stubTx{}
	svc, enq := newBookingServiceForTest(st, tx, packs, now)

	result, err := svc.Create(context.Background(), testTenant(), "u1", CreateBookingInput{
		LessonTypeID: "lt1",
		StartsAt:     now.Add(48 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if !result.RequiresPayment || result.CoveredByPack {
		t.Fatalf("result = covered=%v requiresPayment=%v, want payment required", result.CoveredByPack, result.RequiresPayment)
	}
	if result.Lesson.Status != models.LessonStatusReserved {
		t.Errorf("lesson status = %s, want reserved", result.Lesson.Status)
	}
	if len(payments.created) != 1 || payments.created[0].Amount != 80000 {
		t.Fatalf("payments created = %+v, want one for 80000", payments.created)
	}
	if !tx.committed {
		t.Fatal("booking transaction never committed")
	}
	if len(enq.jobs) != 0 {
		t.Errorf("jobs enqueued = %d, want 0 for a reserved lesson", len(enq.jobs))
	}
}
