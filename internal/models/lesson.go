package models

import "time"

const (
	LessonStatusReserved  = "reserved"
	LessonStatusConfirmed = "confirmed"
	LessonStatusCompleted = "completed"
	LessonStatusCancelled = "cancelled"
	LessonStatusNoShow    = "no_show"
)

const (
	PaymentStatusPending       = "pending"
	PaymentStatusApproved      = "approved"
	PaymentStatusRejected      = "rejected"
	PaymentStatusFailed        = "failed"
	PaymentStatusRefunded      = "refunded"
	PaymentStatusCoveredByPack = "covered_by_pack"
)

type Lesson struct {
	ID                 string
	TenantID           string
	StudentID          string
	LessonTypeID       string
	PackID             *string
	StartsAt           time.Time
	EndsAt             time.Time
	Status             string
	PaymentStatus      string
	CalendarEventID    *string
	MeetingURL         *string
	Reminder24hSent    bool
	Reminder1hSent     bool
	FollowUpSent       bool
	CancellationReason *string
	TeacherNotes       *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Occupying reports whether the lesson blocks its slot for other bookings.
func (l *Lesson) Occupying() bool {
	return l.Status == LessonStatusReserved || l.Status == LessonStatusConfirmed
}
