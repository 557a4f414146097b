package queue

import (
	"fmt"
	"time"
)

// Queue names double as routing keys on the jobs exchange.
const (
	QueueCalendar     = "calendar"
	QueueEmail        = "email"
	QueueReminder     = "reminder"
	QueuePaymentChase = "payment-chase"
	QueueFollowUp     = "follow-up"
	QueueWelcome      = "welcome"
)

const (
	JobCreateEvent      = "create-event"
	JobUpdateEvent      = "update-event"
	JobDeleteEvent      = "delete-event"
	JobSendConfirmation = "send-confirmation"
	JobSendReminder24h  = "send-reminder-24h"
	JobSendReminder1h   = "send-reminder-1h"
	JobSendPaymentChase = "send-payment-chase"
	JobSendFollowUp     = "send-follow-up"
	JobSendPackReceipt  = "send-pack-receipt"
	JobScheduleRemind   = "schedule-reminders"
	JobChasePayment     = "chase-payment"
	JobSendWelcome      = "send-welcome"
)

// Job is one unit of work handed to the worker process. Instances are built
// only through the constructors below so every job kind carries exactly the
// fields its processor needs.
type Job struct {
	Queue       string
	Name        string
	Key         string // idempotency key; empty means no dedup
	Attempt     int    // delivery attempt, 1-based; zero means first
	MaxAttempts int
	Backoff     time.Duration
	Payload     any
}

type LessonPayload struct {
	TenantID string `json:"tenantId"`
	LessonID string `json:"lessonId"`
}

type CalendarDeletePayload struct {
	TenantID        string `json:"tenantId"`
	LessonID        string `json:"lessonId"`
	CalendarEventID string `json:"calendarEventId"`
}

type ChasePayload struct {
	TenantID string `json:"tenantId"`
	LessonID string `json:"lessonId"`
	Attempt  int    `json:"attempt"`
}

type PackPayload struct {
	TenantID string `json:"tenantId"`
	PackID   string `json:"packId"`
}

type LeadInfo struct {
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	Objective string `json:"objective"`
}

type WelcomePayload struct {
	TenantID string   `json:"tenantId"`
	Lead     LeadInfo `json:"lead"`
}

func lessonJob(queue, name, key, tenantID, lessonID string) Job {
	return Job{
		Queue:       queue,
		Name:        name,
		Key:         key,
		MaxAttempts: 3,
		Backoff:     5 * time.Second,
		Payload:     LessonPayload{TenantID: tenantID, LessonID: lessonID},
	}
}

func CalendarCreate(tenantID, lessonID string) Job {
	return lessonJob(QueueCalendar, JobCreateEvent, "", tenantID, lessonID)
}

func CalendarUpdate(tenantID, lessonID string) Job {
	return lessonJob(QueueCalendar, JobUpdateEvent, "", tenantID, lessonID)
}

func CalendarDelete(tenantID, lessonID, calendarEventID string) Job {
	return Job{
		Queue:       QueueCalendar,
		Name:        JobDeleteEvent,
		MaxAttempts: 3,
		Backoff:     5 * time.Second,
		Payload:     CalendarDeletePayload{TenantID: tenantID, LessonID: lessonID, CalendarEventID: calendarEventID},
	}
}

func EmailConfirmation(tenantID, lessonID string) Job {
	return lessonJob(QueueEmail, JobSendConfirmation, "", tenantID, lessonID)
}

func EmailReminder24h(tenantID, lessonID string) Job {
	return lessonJob(QueueEmail, JobSendReminder24h, fmt.Sprintf("reminder-24h-%s", lessonID), tenantID, lessonID)
}

func EmailReminder1h(tenantID, lessonID string) Job {
	return lessonJob(QueueEmail, JobSendReminder1h, fmt.Sprintf("reminder-1h-%s", lessonID), tenantID, lessonID)
}

func EmailPaymentChase(tenantID, lessonID string) Job {
	return lessonJob(QueueEmail, JobSendPaymentChase, "", tenantID, lessonID)
}

func EmailFollowUp(tenantID, lessonID string) Job {
	return lessonJob(QueueEmail, JobSendFollowUp, "", tenantID, lessonID)
}

func EmailPackReceipt(tenantID, packID string) Job {
	return Job{
		Queue:       QueueEmail,
		Name:        JobSendPackReceipt,
		MaxAttempts: 3,
		Backoff:     5 * time.Second,
		Payload:     PackPayload{TenantID: tenantID, PackID: packID},
	}
}

func ScheduleReminders(tenantID, lessonID string) Job {
	return lessonJob(QueueReminder, JobScheduleRemind, "", tenantID, lessonID)
}

func ChasePayment(tenantID, lessonID string, attempt int) Job {
	return Job{
		Queue:       QueuePaymentChase,
		Name:        JobChasePayment,
		Key:         fmt.Sprintf("chase-%s-%d", lessonID, attempt),
		MaxAttempts: 3,
		Backoff:     5 * time.Second,
		Payload:     ChasePayload{TenantID: tenantID, LessonID: lessonID, Attempt: attempt},
	}
}

func FollowUp(tenantID, lessonID string) Job {
	return lessonJob(QueueFollowUp, JobSendFollowUp, fmt.Sprintf("followup-%s", lessonID), tenantID, lessonID)
}

func Welcome(tenantID string, lead LeadInfo) Job {
	return Job{
		Queue:       QueueWelcome,
		Name:        JobSendWelcome,
		MaxAttempts: 3,
		Backoff:     5 * time.Second,
		Payload:     WelcomePayload{TenantID: tenantID, Lead: lead},
	}
}
