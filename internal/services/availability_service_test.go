package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tavanofede-png/clases-de-frances/internal/models"
	"github.com/tavanofede-png/clases-de-frances/pkg/apperr"
)

type fakeLessonTypes struct {
	types map[string]*models.LessonType
}

func (f *fakeLessonTypes) GetActive(_ context.Context, id, _ string) (*models.LessonType, error) {
	if lt, ok := f.types[id]; ok {
		return lt, nil
	}
	return nil, pgx.ErrNoRows
}

type fakeAvailability struct {
	rules   []models.AvailabilityRule
	blocked []models.BlockedTime
}

func (f *fakeAvailability) ListActiveRules(_ context.Context, _ string) ([]models.AvailabilityRule, error) {
	return f.rules, nil
}

func (f *fakeAvailability) ListBlockedInRange(_ context.Context, _ string, _, _ time.Time) ([]models.BlockedTime, error) {
	return f.blocked, nil
}

type fakeLessons struct {
	booked []models.Lesson
}

func (f *fakeLessons) ListActiveInRange(_ context.Context, _ string, _, _ time.Time) ([]models.Lesson, error) {
	return f.booked, nil
}

func bogota(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Bogota")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func newSlotService(lts *fakeLessonTypes, av *fakeAvailability, ls *fakeLessons, now time.Time) *AvailabilityService {
	s := NewAvailabilityService(lts, av, ls)
	s.now = func() time.Time { return now }
	return s
}

func testTenant() *models.Tenant {
	return &models.Tenant{
		ID:       "t1",
		Slug:     "profe-frances-co",
		Name:     "Profe Francés",
		Timezone: "America/Bogota",
		Currency: "COP",
		IsActive: true,
	}
}

// Monday 09:00-18:00 with 60-minute slots yields nine one-hour candidates.
// A 12:00-13:00 block removes exactly the 12:00 slot; an existing booking at
// 10:00 removes that one too.
func TestGenerateSlotsExclusions(t *testing.T) {
	loc := bogota(t)
	// 2026-03-02 is a Monday.
	monday := time.Date(2026, 3, 2, 0, 0, 0, 0, loc)

	lts := &fakeLessonTypes{types: map[string]*models.LessonType{
		"lt1": {ID: "lt1", TenantID: "t1", Name: "Clase regular", DurationMin: 60, IsActive: true},
	}}
	av := &fakeAvailability{
		rules: []models.AvailabilityRule{
			{ID: "r1", TenantID: "t1", Weekday: 1, StartTime: "09:00", EndTime: "18:00", SlotMinutes: 60, IsActive: true},
		},
		blocked: []models.BlockedTime{
			{ID: "b1", TenantID: "t1", StartsAt: monday.Add(12 * time.Hour), EndsAt: monday.Add(13 * time.Hour)},
		},
	}
	ls := &fakeLessons{booked: []models.Lesson{
		{ID: "l1", TenantID: "t1", Status: models.LessonStatusConfirmed,
			StartsAt: monday.Add(10 * time.Hour), EndsAt: monday.Add(11 * time.Hour)},
	}}

	// "Now" is the previous evening, so no slot is in the past.
	now := monday.Add(-6 * time.Hour)
	s := newSlotService(lts, av, ls, now)

	slots, err := s.GenerateSlots(context.Background(), testTenant(), "lt1", monday, monday)
	if err != nil {
		t.Fatalf("GenerateSlots: %v", err)
	}

	if len(slots) != 7 {
		t.Fatalf("expected 7 available slots (9 minus blocked minus booked), got %d", len(slots))
	}
	starts := make(map[string]bool)
	for _, slot := range slots {
		if !slot.Available {
			t.Errorf("unavailable slot leaked into response: %+v", slot)
		}
		parsed, err := time.Parse(time.RFC3339, slot.Start)
		if err != nil {
			t.Fatalf("slot start not RFC3339: %v", err)
		}
		starts[parsed.In(loc).Format("15:04")] = true
	}
	for _, want := range []string{"09:00", "11:00", "13:00", "14:00", "15:00", "16:00", "17:00"} {
		if !starts[want] {
			t.Errorf("expected slot at %s, got %v", want, starts)
		}
	}
	if starts["12:00"] {
		t.Error("blocked 12:00 slot should be excluded")
	}
	if starts["10:00"] {
		t.Error("booked 10:00 slot should be excluded")
	}
}

func TestGenerateSlotsDropsPast(t *testing.T) {
	loc := bogota(t)
	monday := time.Date(2026, 3, 2, 0, 0, 0, 0, loc)

	lts := &fakeLessonTypes{types: map[string]*models.LessonType{
		"lt1": {ID: "lt1", TenantID: "t1", Name: "Clase regular", DurationMin: 60, IsActive: true},
	}}
	av := &fakeAvailability{rules: []models.AvailabilityRule{
		{ID: "r1", TenantID: "t1", Weekday: 1, StartTime: "09:00", EndTime: "12:00", SlotMinutes: 60, IsActive: true},
	}}

	// Mid-morning: the 09:00 and 10:00 slots are already gone.
	now := monday.Add(10 * time.Hour)
	s := newSlotService(lts, av, &fakeLessons{}, now)

	slots, err := s.GenerateSlots(context.Background(), testTenant(), "lt1", monday, monday)
	if err != nil {
		t.Fatalf("GenerateSlots: %v", err)
	}
	if len(slots) != 1 {
		t.Fatalf("expected only the 11:00 slot, got %d", len(slots))
	}
	parsed, _ := time.Parse(time.RFC3339, slots[0].Start)
	if got := parsed.In(loc).Format("15:04"); got != "11:00" {
		t.Errorf("expected 11:00, got %s", got)
	}
}

func TestGenerateSlotsShorterDurationThanStep(t *testing.T) {
	loc := bogota(t)
	monday := time.Date(2026, 3, 2, 0, 0, 0, 0, loc)

	// 30-minute trial lessons on a 60-minute grid still step by the grid.
	lts := &fakeLessonTypes{types: map[string]*models.LessonType{
		"trial": {ID: "trial", TenantID: "t1", Name: "Clase de prueba", DurationMin: 30, IsActive: true},
	}}
	av := &fakeAvailability{rules: []models.AvailabilityRule{
		{ID: "r1", TenantID: "t1", Weekday: 1, StartTime: "09:00", EndTime: "11:00", SlotMinutes: 60, IsActive: true},
	}}

	now := monday.Add(-time.Hour)
	s := newSlotService(lts, av, &fakeLessons{}, now)

	slots, err := s.GenerateSlots(context.Background(), testTenant(), "trial", monday, monday)
	if err != nil {
		t.Fatalf("GenerateSlots: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("expected 30-minute slots on the 09:00 and 10:00 grid marks, got %d", len(slots))
	}
}

func TestGenerateSlotsUnknownLessonType(t *testing.T) {
	s := newSlotService(&fakeLessonTypes{}, &fakeAvailability{}, &fakeLessons{}, time.Now())

	_, err := s.GenerateSlots(context.Background(), testTenant(), "missing", time.Now(), time.Now())
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Code != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND error for unknown lesson type, got %v", err)
	}
}
