package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/tavanofede-png/clases-de-frances/internal/calendar"
	"github.com/tavanofede-png/clases-de-frances/internal/queue"
	"github.com/tavanofede-png/clases-de-frances/internal/repository"
)

// CalendarProcessor mirrors lesson lifecycle events into the calendar
// provider and stores the resulting event id and meeting link.
type CalendarProcessor struct {
	tenants     *repository.TenantRepository
	lessons     *repository.LessonRepository
	students    *repository.StudentRepository
	lessonTypes *repository.LessonTypeRepository
	client      calendar.Client
	logger      *zap.Logger
}

func NewCalendarProcessor(
	tenants *repository.TenantRepository,
	lessons *repository.LessonRepository,
	students *repository.StudentRepository,
	lessonTypes *repository.LessonTypeRepository,
	client calendar.Client,
	logger *zap.Logger,
) *CalendarProcessor {
	return &CalendarProcessor{
		tenants:     tenants,
		lessons:     lessons,
		students:    students,
		lessonTypes: lessonTypes,
		client:      client,
		logger:      logger,
	}
}

func (p *CalendarProcessor) Handle(ctx context.Context, jobName string, body []byte) (any, error) {
	switch jobName {
	case queue.JobCreateEvent:
		return p.createEvent(ctx, body)
	case queue.JobUpdateEvent:
		return p.updateEvent(ctx, body)
	case queue.JobDeleteEvent:
		return p.deleteEvent(ctx, body)
	default:
		return nil, fmt.Errorf("unknown calendar job %q", jobName)
	}
}

func (p *CalendarProcessor) createEvent(ctx context.Context, body []byte) (any, error) {
	var payload queue.LessonPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	tenant, err := p.tenants.GetByID(ctx, payload.TenantID)
	if err != nil {
		return nil, fmt.Errorf("load tenant: %w", err)
	}
	lesson, err := p.lessons.GetByID(ctx, payload.LessonID, payload.TenantID)
	if err != nil {
		return nil, fmt.Errorf("load lesson: %w", err)
	}
	studentName, studentEmail, err := p.students.ContactByStudentID(ctx, lesson.StudentID)
	if err != nil {
		return nil, fmt.Errorf("load student contact: %w", err)
	}
	lessonType, err := p.lessonTypes.GetByID(ctx, lesson.LessonTypeID)
	if err != nil {
		return nil, fmt.Errorf("load lesson type: %w", err)
	}

	created, err := p.client.CreateEvent(ctx, calendar.Event{
		TenantSlug:    tenant.Slug,
		LessonID:      lesson.ID,
		Summary:       fmt.Sprintf("Clase de francés — %s", studentName),
		Description:   fmt.Sprintf("%s\nAlumno: %s", lessonType.Name, studentName),
		StartsAt:      lesson.StartsAt,
		EndsAt:        lesson.EndsAt,
		Timezone:      tenant.Timezone,
		AttendeeEmail: studentEmail,
	})
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	if err := p.lessons.SetCalendarEvent(ctx, lesson.ID, created.EventID, created.MeetingURL); err != nil {
		return nil, fmt.Errorf("store event id: %w", err)
	}
	return map[string]any{"calendarEventId": created.EventID, "meetUrl": created.MeetingURL}, nil
}

func (p *CalendarProcessor) updateEvent(ctx context.Context, body []byte) (any, error) {
	var payload queue.LessonPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	lesson, err := p.lessons.GetByID(ctx, payload.LessonID, payload.TenantID)
	if err != nil {
		return nil, fmt.Errorf("load lesson: %w", err)
	}
	if lesson.CalendarEventID == nil || *lesson.CalendarEventID == "" {
		return map[string]any{"skipped": true, "reason": "no calendar event"}, nil
	}
	if err := p.client.UpdateEvent(ctx, *lesson.CalendarEventID, lesson.StartsAt, lesson.EndsAt); err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	return map[string]any{"updated": true}, nil
}

func (p *CalendarProcessor) deleteEvent(ctx context.Context, body []byte) (any, error) {
	var payload queue.CalendarDeletePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if payload.CalendarEventID == "" {
		return map[string]any{"skipped": true, "reason": "no calendar event"}, nil
	}
	if err := p.client.DeleteEvent(ctx, payload.CalendarEventID); err != nil {
		return nil, fmt.Errorf("delete event: %w", err)
	}
	return map[string]any{"deleted": true}, nil
}
