package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tavanofede-png/clases-de-frances/internal/models"
	"github.com/tavanofede-png/clases-de-frances/internal/queue"
)

const (
	reminderSweepWindow = 15 * time.Minute
	chaseGracePeriod    = 24 * time.Hour
)

type lessonStore interface {
	ListReminderDue(ctx context.Context, window string, windowStart, target time.Time) ([]models.Lesson, error)
	MarkReminderSent(ctx context.Context, id, window string) error
	ListPaymentPending(ctx context.Context, createdBefore, now time.Time) ([]models.Lesson, error)
	ListFollowUpDue(ctx context.Context, dayStart, dayEnd time.Time) ([]models.Lesson, error)
	MarkCompleted(ctx context.Context, id string) error
}

type chaseCounter interface {
	CountCompletedForLesson(ctx context.Context, tenantID, jobName, lessonID string) (int, error)
}

// Scheduler runs the periodic sweeps: lesson reminders every tick, payment
// chasing and post-class follow-ups once a day.
type Scheduler struct {
	lessons   lessonStore
	jobRuns   chaseCounter
	enqueuer  queue.Enqueuer
	logger    *zap.Logger
	tickEvery time.Duration
	dailyHour int
	now       func() time.Time
	stopChan  chan struct{}
}

func New(lessons lessonStore, jobRuns chaseCounter, enqueuer queue.Enqueuer, logger *zap.Logger, tickEvery time.Duration, dailyHour int) *Scheduler {
	return &Scheduler{
		lessons:   lessons,
		jobRuns:   jobRuns,
		enqueuer:  enqueuer,
		logger:    logger,
		tickEvery: tickEvery,
		dailyHour: dailyHour,
		now:       time.Now,
		stopChan:  make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("starting background scheduler",
		zap.Duration("tick", s.tickEvery),
		zap.Int("daily_hour_utc", s.dailyHour))

	go s.runReminderTask(ctx)
	go s.runDailyTask(ctx)
}

func (s *Scheduler) Stop() {
	s.logger.Info("stopping background scheduler")
	close(s.stopChan)
}

func (s *Scheduler) runReminderTask(ctx context.Context) {
	s.SweepReminders(ctx)

	ticker := time.NewTicker(s.tickEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.SweepReminders(ctx)
		case <-s.stopChan:
			s.logger.Info("reminder task stopped")
			return
		case <-ctx.Done():
			s.logger.Info("reminder task cancelled")
			return
		}
	}
}

func (s *Scheduler) runDailyTask(ctx context.Context) {
	for {
		next := nextDailyRun(s.now(), s.dailyHour)
		timer := time.NewTimer(next.Sub(s.now()))

		select {
		case <-timer.C:
			s.SweepPaymentChase(ctx)
			s.SweepFollowUps(ctx)
		case <-s.stopChan:
			timer.Stop()
			s.logger.Info("daily task stopped")
			return
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("daily task cancelled")
			return
		}
	}
}

// nextDailyRun returns the next occurrence of hour (UTC) strictly after now.
func nextDailyRun(now time.Time, hour int) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// SweepReminders enqueues 24h and 1h reminder emails for confirmed lessons
// entering either window. The sent flag flips before the enqueue so an
// enqueue failure drops the reminder rather than duplicating it.
func (s *Scheduler) SweepReminders(ctx context.Context) {
	s.sweepReminderWindow(ctx, "24h", 24*time.Hour)
	s.sweepReminderWindow(ctx, "1h", time.Hour)
}

func (s *Scheduler) sweepReminderWindow(ctx context.Context, window string, lead time.Duration) {
	target := s.now().Add(lead)
	windowStart := target.Add(-reminderSweepWindow)

	lessons, err := s.lessons.ListReminderDue(ctx, window, windowStart, target)
	if err != nil {
		s.logger.Error("reminder sweep query failed", zap.String("window", window), zap.Error(err))
		return
	}

	for _, lesson := range lessons {
		if err := s.lessons.MarkReminderSent(ctx, lesson.ID, window); err != nil {
			s.logger.Error("failed to mark reminder sent",
				zap.String("lesson_id", lesson.ID), zap.String("window", window), zap.Error(err))
			continue
		}
		job := queue.EmailReminder24h(lesson.TenantID, lesson.ID)
		if window == "1h" {
			job = queue.EmailReminder1h(lesson.TenantID, lesson.ID)
		}
		if err := s.enqueuer.Enqueue(ctx, job); err != nil {
			s.logger.Error("failed to enqueue reminder",
				zap.String("lesson_id", lesson.ID), zap.String("window", window), zap.Error(err))
		}
	}

	if len(lessons) > 0 {
		s.logger.Info("reminder sweep done",
			zap.String("window", window), zap.Int("count", len(lessons)))
	}
}

// SweepPaymentChase enqueues a chase job for every reserved lesson whose
// payment has been pending for more than a day. The attempt number counts
// completed chase runs so the processor can escalate to cancellation.
func (s *Scheduler) SweepPaymentChase(ctx context.Context) {
	now := s.now()
	lessons, err := s.lessons.ListPaymentPending(ctx, now.Add(-chaseGracePeriod), now)
	if err != nil {
		s.logger.Error("payment chase sweep query failed", zap.Error(err))
		return
	}

	for _, lesson := range lessons {
		attempts, err := s.jobRuns.CountCompletedForLesson(ctx, lesson.TenantID, queue.JobChasePayment, lesson.ID)
		if err != nil {
			s.logger.Error("failed to count chase attempts",
				zap.String("lesson_id", lesson.ID), zap.Error(err))
			continue
		}
		job := queue.ChasePayment(lesson.TenantID, lesson.ID, attempts+1)
		if err := s.enqueuer.Enqueue(ctx, job); err != nil {
			s.logger.Error("failed to enqueue payment chase",
				zap.String("lesson_id", lesson.ID), zap.Error(err))
		}
	}

	if len(lessons) > 0 {
		s.logger.Info("payment chase sweep done", zap.Int("count", len(lessons)))
	}
}

// SweepFollowUps promotes yesterday's confirmed lessons to completed and
// enqueues a follow-up job per lesson. The sweep runs once across all
// tenants, so "yesterday" uses a single UTC day boundary rather than each
// tenant's local midnight; a lesson near a tenant's midnight is picked up
// one run later at worst, and lessons are matched by ends_at so none are
// skipped.
func (s *Scheduler) SweepFollowUps(ctx context.Context) {
	now := s.now().UTC()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	yesterdayStart := todayStart.AddDate(0, 0, -1)

	lessons, err := s.lessons.ListFollowUpDue(ctx, yesterdayStart, todayStart)
	if err != nil {
		s.logger.Error("follow-up sweep query failed", zap.Error(err))
		return
	}

	for _, lesson := range lessons {
		if lesson.Status == models.LessonStatusConfirmed {
			if err := s.lessons.MarkCompleted(ctx, lesson.ID); err != nil {
				s.logger.Error("failed to complete lesson",
					zap.String("lesson_id", lesson.ID), zap.Error(err))
				continue
			}
		}
		if err := s.enqueuer.Enqueue(ctx, queue.FollowUp(lesson.TenantID, lesson.ID)); err != nil {
			s.logger.Error("failed to enqueue follow-up",
				zap.String("lesson_id", lesson.ID), zap.Error(err))
		}
	}

	if len(lessons) > 0 {
		s.logger.Info("follow-up sweep done", zap.Int("count", len(lessons)))
	}
}
