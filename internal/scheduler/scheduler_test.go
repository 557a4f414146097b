package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/tavanofede-png/clases-de-frances/internal/models"
	"github.com/tavanofede-png/clases-de-frances/internal/queue"
)

type fakeLessonStore struct {
	reminderDue   map[string][]models.Lesson
	reminderSent  []string
	markSentErr   error
	paymentDue    []models.Lesson
	followUpDue   []models.Lesson
	completed     []string
	gotWindow     [2]time.Time
	gotDayBounds  [2]time.Time
	gotChaseLimit time.Time
}

func (f *fakeLessonStore) ListReminderDue(_ context.Context, window string, windowStart, target time.Time) ([]models.Lesson, error) {
	f.gotWindow = [2]time.Time{windowStart, target}
	return f.reminderDue[window], nil
}

func (f *fakeLessonStore) MarkReminderSent(_ context.Context, id, window string) error {
	if f.markSentErr != nil {
		return f.markSentErr
	}
	f.reminderSent = append(f.reminderSent, window+":"+id)
	return nil
}

func (f *fakeLessonStore) ListPaymentPending(_ context.Context, createdBefore, _ time.Time) ([]models.Lesson, error) {
	f.gotChaseLimit = createdBefore
	return f.paymentDue, nil
}

func (f *fakeLessonStore) ListFollowUpDue(_ context.Context, dayStart, dayEnd time.Time) ([]models.Lesson, error) {
	f.gotDayBounds = [2]time.Time{dayStart, dayEnd}
	return f.followUpDue, nil
}

func (f *fakeLessonStore) MarkCompleted(_ context.Context, id string) error {
	f.completed = append(f.completed, id)
	return nil
}

// fakeCounter keys on the job name so a sweep querying a name nothing
// records under comes back with zero attempts.
type fakeCounter struct {
	counts map[string]int
}

func (f *fakeCounter) CountCompletedForLesson(_ context.Context, _, jobName, lessonID string) (int, error) {
	return f.counts[jobName+"/"+lessonID], nil
}

type fakeEnqueuer struct {
	jobs []queue.Job
	err  error
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, job queue.Job) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func newTestScheduler(store *fakeLessonStore, counter *fakeCounter, enq *fakeEnqueuer, now time.Time) *Scheduler {
	s := New(store, counter, enq, zap.NewNop(), 15*time.Minute, 14)
	s.now = func() time.Time { return now }
	return s
}

func TestSweepRemindersMarksThenEnqueues(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	store := &fakeLessonStore{
		reminderDue: map[string][]models.Lesson{
			"24h": {{ID: "l1", TenantID: "t1", Status: models.LessonStatusConfirmed}},
			"1h":  {{ID: "l2", TenantID: "t1", Status: models.LessonStatusConfirmed}},
		},
	}
	enq := &fakeEnqueuer{}
	s := newTestScheduler(store, &fakeCounter{}, enq, now)

	s.SweepReminders(context.Background())

	if len(store.reminderSent) != 2 {
		t.Fatalf("expected 2 flag writes, got %v", store.reminderSent)
	}
	if store.reminderSent[0] != "24h:l1" || store.reminderSent[1] != "1h:l2" {
		t.Errorf("unexpected flag writes: %v", store.reminderSent)
	}
	if len(enq.jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(enq.jobs))
	}
	if enq.jobs[0].Key != "reminder-24h-l1" {
		t.Errorf("expected keyed 24h reminder, got %q", enq.jobs[0].Key)
	}
	if enq.jobs[1].Key != "reminder-1h-l2" {
		t.Errorf("expected keyed 1h reminder, got %q", enq.jobs[1].Key)
	}
	// The 1h sweep ran last: window is [now+45m, now+1h].
	if !store.gotWindow[1].Equal(now.Add(time.Hour)) {
		t.Errorf("expected target now+1h, got %v", store.gotWindow[1])
	}
	if !store.gotWindow[0].Equal(now.Add(45 * time.Minute)) {
		t.Errorf("expected window start now+45m, got %v", store.gotWindow[0])
	}
}

func TestSweepRemindersFlagFailureSkipsEnqueue(t *testing.T) {
	store := &fakeLessonStore{
		reminderDue: map[string][]models.Lesson{
			"24h": {{ID: "l1", TenantID: "t1"}},
		},
		markSentErr: errors.New("db down"),
	}
	enq := &fakeEnqueuer{}
	s := newTestScheduler(store, &fakeCounter{}, enq, time.Now())

	s.SweepReminders(context.Background())

	if len(enq.jobs) != 0 {
		t.Fatalf("expected no jobs when flag write fails, got %d", len(enq.jobs))
	}
}

func TestSweepPaymentChaseCountsAttempts(t *testing.T) {
	now := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	store := &fakeLessonStore{
		paymentDue: []models.Lesson{
			{ID: "l1", TenantID: "t1"},
			{ID: "l2", TenantID: "t1"},
		},
	}
	// Prior runs are stored under the name the worker records, which is
	// the job's own Name. Counting under any other name would pin every
	// lesson at attempt 1 and the processor's cancel branch at >=3 would
	// never fire.
	recordedName := queue.ChasePayment("t1", "l2", 1).Name
	counter := &fakeCounter{counts: map[string]int{recordedName + "/l2": 2}}
	enq := &fakeEnqueuer{}
	s := newTestScheduler(store, counter, enq, now)

	s.SweepPaymentChase(context.Background())

	if !store.gotChaseLimit.Equal(now.Add(-24 * time.Hour)) {
		t.Errorf("expected one-day grace cutoff, got %v", store.gotChaseLimit)
	}
	if len(enq.jobs) != 2 {
		t.Fatalf("expected 2 chase jobs, got %d", len(enq.jobs))
	}
	if enq.jobs[0].Key != "chase-l1-1" {
		t.Errorf("expected first attempt key, got %q", enq.jobs[0].Key)
	}
	if enq.jobs[1].Key != "chase-l2-3" {
		t.Errorf("expected third attempt key, got %q", enq.jobs[1].Key)
	}
}

func TestSweepPaymentChaseEscalates(t *testing.T) {
	now := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	store := &fakeLessonStore{paymentDue: []models.Lesson{{ID: "l1", TenantID: "t1"}}}
	recordedName := queue.ChasePayment("t1", "l1", 1).Name
	counter := &fakeCounter{counts: map[string]int{recordedName + "/l1": 3}}
	enq := &fakeEnqueuer{}
	s := newTestScheduler(store, counter, enq, now)

	s.SweepPaymentChase(context.Background())

	if len(enq.jobs) != 1 {
		t.Fatalf("expected 1 chase job, got %d", len(enq.jobs))
	}
	var payload queue.ChasePayload
	var ok bool
	if payload, ok = enq.jobs[0].Payload.(queue.ChasePayload); !ok {
		t.Fatalf("unexpected payload type %T", enq.jobs[0].Payload)
	}
	if payload.Attempt != 4 {
		t.Errorf("expected attempt 4 after 3 completed runs, got %d", payload.Attempt)
	}
	if enq.jobs[0].Key != "chase-l1-4" {
		t.Errorf("expected per-attempt key, got %q", enq.jobs[0].Key)
	}
}

func TestSweepFollowUpsPromotesConfirmed(t *testing.T) {
	now := time.Date(2026, 3, 2, 1, 0, 0, 0, time.UTC)
	store := &fakeLessonStore{
		followUpDue: []models.Lesson{
			{ID: "l1", TenantID: "t1", Status: models.LessonStatusConfirmed},
			{ID: "l2", TenantID: "t1", Status: models.LessonStatusCompleted},
		},
	}
	enq := &fakeEnqueuer{}
	s := newTestScheduler(store, &fakeCounter{}, enq, now)

	s.SweepFollowUps(context.Background())

	if len(store.completed) != 1 || store.completed[0] != "l1" {
		t.Errorf("expected only confirmed lesson promoted, got %v", store.completed)
	}
	if len(enq.jobs) != 2 {
		t.Fatalf("expected 2 follow-up jobs, got %d", len(enq.jobs))
	}
	wantStart := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	if !store.gotDayBounds[0].Equal(wantStart) || !store.gotDayBounds[1].Equal(wantEnd) {
		t.Errorf("expected yesterday's UTC day, got %v", store.gotDayBounds)
	}
}

func TestNextDailyRun(t *testing.T) {
	tests := []struct {
		now  time.Time
		hour int
		want time.Time
	}{
		{time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), 14, time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)},
		{time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC), 14, time.Date(2026, 3, 3, 14, 0, 0, 0, time.UTC)},
		{time.Date(2026, 3, 2, 20, 30, 0, 0, time.UTC), 14, time.Date(2026, 3, 3, 14, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		if got := nextDailyRun(tt.now, tt.hour); !got.Equal(tt.want) {
			t.Errorf("nextDailyRun(%v, %d) = %v, want %v", tt.now, tt.hour, got, tt.want)
		}
	}
}
