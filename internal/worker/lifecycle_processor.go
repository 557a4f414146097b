package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/tavanofede-png/clases-de-frances/internal/models"
	"github.com/tavanofede-png/clases-de-frances/internal/queue"
)

const maxChaseAttempts = 3

type lifecycleLessonStore interface {
	GetByID(ctx context.Context, id, tenantID string) (*models.Lesson, error)
	Cancel(ctx context.Context, id, reason string) (*models.Lesson, error)
	MarkFollowUpSent(ctx context.Context, id string) error
}

type paymentFailer interface {
	FailPendingByLesson(ctx context.Context, lessonID string) error
}

// ChaseProcessor escalates unpaid reservations: up to three chase emails,
// then cancellation.
type ChaseProcessor struct {
	lessons  lifecycleLessonStore
	payments paymentFailer
	enqueuer queue.Enqueuer
	logger   *zap.Logger
}

func NewChaseProcessor(lessons lifecycleLessonStore, payments paymentFailer, enqueuer queue.Enqueuer, logger *zap.Logger) *ChaseProcessor {
	return &ChaseProcessor{lessons: lessons, payments: payments, enqueuer: enqueuer, logger: logger}
}

func (p *ChaseProcessor) Handle(ctx context.Context, _ string, body []byte) (any, error) {
	var payload queue.ChasePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	lesson, err := p.lessons.GetByID(ctx, payload.LessonID, payload.TenantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return map[string]any{"skipped": true, "reason": "lesson not found"}, nil
		}
		return nil, fmt.Errorf("load lesson: %w", err)
	}
	if lesson.PaymentStatus != models.PaymentStatusPending {
		return map[string]any{"skipped": true, "reason": "not pending"}, nil
	}

	if payload.Attempt >= maxChaseAttempts {
		if _, err := p.lessons.Cancel(ctx, lesson.ID, "Payment not received after 3 reminders"); err != nil {
			return nil, fmt.Errorf("cancel lesson: %w", err)
		}
		if err := p.payments.FailPendingByLesson(ctx, lesson.ID); err != nil {
			return nil, fmt.Errorf("fail pending payments: %w", err)
		}
		p.logger.Info("lesson cancelled after chase attempts exhausted",
			zap.String("lesson_id", lesson.ID))
		return map[string]any{"cancelled": true, "reason": "max_attempts_reached"}, nil
	}

	if err := p.enqueuer.Enqueue(ctx, queue.EmailPaymentChase(payload.TenantID, payload.LessonID)); err != nil {
		return nil, fmt.Errorf("enqueue chase email: %w", err)
	}
	return map[string]any{"emailSent": true, "attempt": payload.Attempt}, nil
}

// FollowUpProcessor sends the post-class follow-up once per lesson.
type FollowUpProcessor struct {
	lessons  lifecycleLessonStore
	enqueuer queue.Enqueuer
}

func NewFollowUpProcessor(lessons lifecycleLessonStore, enqueuer queue.Enqueuer) *FollowUpProcessor {
	return &FollowUpProcessor{lessons: lessons, enqueuer: enqueuer}
}

func (p *FollowUpProcessor) Handle(ctx context.Context, _ string, body []byte) (any, error) {
	var payload queue.LessonPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	lesson, err := p.lessons.GetByID(ctx, payload.LessonID, payload.TenantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return map[string]any{"skipped": true, "reason": "lesson not found"}, nil
		}
		return nil, fmt.Errorf("load lesson: %w", err)
	}
	if lesson.FollowUpSent {
		return map[string]any{"skipped": true, "reason": "already sent"}, nil
	}

	if err := p.enqueuer.Enqueue(ctx, queue.EmailFollowUp(payload.TenantID, payload.LessonID)); err != nil {
		return nil, fmt.Errorf("enqueue follow-up email: %w", err)
	}
	if err := p.lessons.MarkFollowUpSent(ctx, lesson.ID); err != nil {
		return nil, fmt.Errorf("mark follow-up sent: %w", err)
	}
	return map[string]any{"sent": true}, nil
}

// ReminderProcessor exists for the audit trail. The reminder sweeps enqueue
// the actual emails; this records that scheduling was requested.
type ReminderProcessor struct{}

func NewReminderProcessor() *ReminderProcessor {
	return &ReminderProcessor{}
}

func (p *ReminderProcessor) Handle(_ context.Context, _ string, body []byte) (any, error) {
	var payload queue.LessonPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return map[string]any{"scheduled": true, "note": "reminders are sent by the periodic sweeps"}, nil
}
