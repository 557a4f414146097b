package services

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/tavanofede-png/clases-de-frances/internal/models"
	"github.com/tavanofede-png/clases-de-frances/internal/timegrid"
	"github.com/tavanofede-png/clases-de-frances/pkg/apperr"
)

// defaultUTCOffset is the fallback for tenants whose IANA timezone fails to
// load. Matches the platform's home market (Colombia, no DST).
const defaultUTCOffset = -5

type lessonTypeReader interface {
	GetActive(ctx context.Context, id, tenantID string) (*models.LessonType, error)
}

type availabilityReader interface {
	ListActiveRules(ctx context.Context, tenantID string) ([]models.AvailabilityRule, error)
	ListBlockedInRange(ctx context.Context, tenantID string, from, to time.Time) ([]models.BlockedTime, error)
}

type lessonOverlapReader interface {
	ListActiveInRange(ctx context.Context, tenantID string, from, to time.Time) ([]models.Lesson, error)
}

type AvailabilityService struct {
	lessonTypes  lessonTypeReader
	availability availabilityReader
	lessons      lessonOverlapReader
	now          func() time.Time
}

func NewAvailabilityService(
	lessonTypes lessonTypeReader,
	availability availabilityReader,
	lessons lessonOverlapReader,
) *AvailabilityService {
	return &AvailabilityService{
		lessonTypes:  lessonTypes,
		availability: availability,
		lessons:      lessons,
		now:          time.Now,
	}
}

// GenerateSlots tiles candidate slots from the tenant's weekly rules over
// [from, to] (inclusive, tenant-local days) and returns the ones that are
// bookable: in the future, not blocked, and not colliding with a
// reserved/confirmed lesson.
func (s *AvailabilityService) GenerateSlots(
	ctx context.Context,
	tenant *models.Tenant,
	lessonTypeID string,
	from, to time.Time,
) ([]models.Slot, error) {
	lessonType, err := s.lessonTypes.GetActive(ctx, lessonTypeID, tenant.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("lesson type not found")
		}
		return nil, err
	}
	duration := time.Duration(lessonType.DurationMin) * time.Minute

	rules, err := s.availability.ListActiveRules(ctx, tenant.ID)
	if err != nil {
		return nil, err
	}

	loc := timegrid.Location(tenant.Timezone, defaultUTCOffset)
	day := timegrid.DayStart(from, loc)
	lastDay := timegrid.DayStart(to, loc)
	rangeEnd := timegrid.NextDay(lastDay)

	blocked, err := s.availability.ListBlockedInRange(ctx, tenant.ID, day, rangeEnd)
	if err != nil {
		return nil, err
	}
	booked, err := s.lessons.ListActiveInRange(ctx, tenant.ID, day, rangeEnd)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var slots []models.Slot
	for !day.After(lastDay) {
		weekday := int(day.Weekday())
		for _, rule := range rules {
			if rule.Weekday != weekday {
				continue
			}
			daySlots, err := tileRule(day, rule, duration, now, blocked, booked)
			if err != nil {
				return nil, err
			}
			slots = append(slots, daySlots...)
		}
		day = timegrid.NextDay(day)
	}

	// Unavailable slots are computed for completeness but callers only ever
	// see bookable ones.
	available := slots[:0]
	for _, slot := range slots {
		if slot.Available {
			available = append(available, slot)
		}
	}
	return available, nil
}

// tileRule walks one rule across one day, stepping by the rule's granularity
// and dropping trailing slots that would overflow the rule's end time.
func tileRule(
	day time.Time,
	rule models.AvailabilityRule,
	duration time.Duration,
	now time.Time,
	blocked []models.BlockedTime,
	booked []models.Lesson,
) ([]models.Slot, error) {
	startH, startM, err := timegrid.ParseClock(rule.StartTime)
	if err != nil {
		return nil, err
	}
	endH, endM, err := timegrid.ParseClock(rule.EndTime)
	if err != nil {
		return nil, err
	}

	slotStart := timegrid.At(day, startH, startM)
	ruleEnd := timegrid.At(day, endH, endM)
	step := time.Duration(rule.SlotMinutes) * time.Minute

	var slots []models.Slot
	for !slotStart.Add(duration).After(ruleEnd) {
		slotEnd := slotStart.Add(duration)

		// Past slots are dropped outright, not just flagged.
		if !slotStart.After(now) {
			slotStart = slotStart.Add(step)
			continue
		}

		isBlocked := false
		for _, bt := range blocked {
			if timegrid.Overlaps(slotStart, slotEnd, bt.StartsAt, bt.EndsAt) {
				isBlocked = true
				break
			}
		}
		isBooked := false
		for _, lesson := range booked {
			if timegrid.Overlaps(slotStart, slotEnd, lesson.StartsAt, lesson.EndsAt) {
				isBooked = true
				break
			}
		}

		slots = append(slots, models.Slot{
			Start:     slotStart.Format(time.RFC3339),
			End:       slotEnd.Format(time.RFC3339),
			Available: !isBlocked && !isBooked,
		})
		slotStart = slotStart.Add(step)
	}
	return slots, nil
}
