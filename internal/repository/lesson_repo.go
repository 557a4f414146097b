package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tavanofede-png/clases-de-frances/internal/models"
)

type CreateLessonInput struct {
	TenantID      string
	StudentID     string
	LessonTypeID  string
	PackID        *string
	StartsAt      time.Time
	EndsAt        time.Time
	Status        string
	PaymentStatus string
}

type LessonRepository struct {
	db DBTX
}

func NewLessonRepository(db DBTX) *LessonRepository {
	return &LessonRepository{db: db}
}

const lessonColumns = `id, tenant_id, student_id, lesson_type_id, pack_id, starts_at, ends_at,
		status, payment_status, calendar_event_id, meeting_url,
		reminder_24h_sent, reminder_1h_sent, follow_up_sent,
		cancellation_reason, teacher_notes, created_at, updated_at`

func scanLesson(row interface{ Scan(...any) error }) (*models.Lesson, error) {
	var l models.Lesson
	err := row.Scan(
		&l.ID,
		&l.TenantID,
		&l.StudentID,
		&l.LessonTypeID,
		&l.PackID,
		&l.StartsAt,
		&l.EndsAt,
		&l.Status,
		&l.PaymentStatus,
		&l.CalendarEventID,
		&l.MeetingURL,
		&l.Reminder24hSent,
		&l.Reminder1hSent,
		&l.FollowUpSent,
		&l.CancellationReason,
		&l.TeacherNotes,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *LessonRepository) Create(ctx context.Context, input CreateLessonInput) (*models.Lesson, error) {
	query := `
		INSERT INTO lessons (tenant_id, student_id, lesson_type_id, pack_id, starts_at, ends_at, status, payment_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + lessonColumns + `
	`
	return scanLesson(r.db.QueryRow(ctx, query,
		input.TenantID,
		input.StudentID,
		input.LessonTypeID,
		input.PackID,
		input.StartsAt,
		input.EndsAt,
		input.Status,
		input.PaymentStatus,
	))
}

func (r *LessonRepository) GetByID(ctx context.Context, id, tenantID string) (*models.Lesson, error) {
	query := `
		SELECT ` + lessonColumns + `
		FROM lessons
		WHERE id = $1 AND tenant_id = $2
	`
	return scanLesson(r.db.QueryRow(ctx, query, id, tenantID))
}

func (r *LessonRepository) GetForStudent(ctx context.Context, id, tenantID, studentID string) (*models.Lesson, error) {
	query := `
		SELECT ` + lessonColumns + `
		FROM lessons
		WHERE id = $1 AND tenant_id = $2 AND student_id = $3
	`
	return scanLesson(r.db.QueryRow(ctx, query, id, tenantID, studentID))
}

// HasActiveAt reports whether another reserved/confirmed lesson occupies the
// exact start instant. excludeID skips the lesson being rescheduled.
func (r *LessonRepository) HasActiveAt(ctx context.Context, tenantID string, startsAt time.Time, excludeID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM lessons
			WHERE tenant_id = $1 AND starts_at = $2
			  AND status IN ('reserved', 'confirmed')
			  AND ($3::text = '' OR id::text <> $3::text)
		)
	`
	var exists bool
	err := r.db.QueryRow(ctx, query, tenantID, startsAt, excludeID).Scan(&exists)
	return exists, err
}

// ListActiveInRange returns reserved/confirmed lessons whose start falls in
// [from, to], for the availability overlap check.
func (r *LessonRepository) ListActiveInRange(ctx context.Context, tenantID string, from, to time.Time) ([]models.Lesson, error) {
	query := `
		SELECT ` + lessonColumns + `
		FROM lessons
		WHERE tenant_id = $1 AND starts_at >= $2 AND starts_at <= $3
		  AND status IN ('reserved', 'confirmed')
		ORDER BY starts_at
	`
	return r.queryLessons(ctx, query, tenantID, from, to)
}

func (r *LessonRepository) ListByStudent(ctx context.Context, tenantID, studentID string) ([]models.Lesson, error) {
	query := `
		SELECT ` + lessonColumns + `
		FROM lessons
		WHERE tenant_id = $1 AND student_id = $2
		ORDER BY starts_at DESC
	`
	return r.queryLessons(ctx, query, tenantID, studentID)
}

type LessonListFilter struct {
	Status        string
	PaymentStatus string
	StudentID     string
	From          *time.Time
	To            *time.Time
}

func (r *LessonRepository) List(ctx context.Context, tenantID string, filter LessonListFilter) ([]models.Lesson, error) {
	conditions := []string{"tenant_id = $1"}
	args := []any{tenantID}

	add := func(cond string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.PaymentStatus != "" {
		add("payment_status = $%d", filter.PaymentStatus)
	}
	if filter.StudentID != "" {
		add("student_id = $%d", filter.StudentID)
	}
	if filter.From != nil {
		add("starts_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("starts_at <= $%d", *filter.To)
	}

	query := `
		SELECT ` + lessonColumns + `
		FROM lessons
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY starts_at DESC
	`
	return r.queryLessons(ctx, query, args...)
}

// Move updates the lesson times and resets both reminder flags so reminders
// re-fire for the new slot.
func (r *LessonRepository) Move(ctx context.Context, id string, startsAt, endsAt time.Time) (*models.Lesson, error) {
	query := `
		UPDATE lessons
		SET starts_at = $2, ends_at = $3,
		    reminder_24h_sent = false, reminder_1h_sent = false,
		    updated_at = now()
		WHERE id = $1
		RETURNING ` + lessonColumns + `
	`
	return scanLesson(r.db.QueryRow(ctx, query, id, startsAt, endsAt))
}

func (r *LessonRepository) Cancel(ctx context.Context, id, reason string) (*models.Lesson, error) {
	query := `
		UPDATE lessons
		SET status = 'cancelled', cancellation_reason = $2, updated_at = now()
		WHERE id = $1
		RETURNING ` + lessonColumns + `
	`
	return scanLesson(r.db.QueryRow(ctx, query, id, reason))
}

type AdminLessonUpdate struct {
	Status        *string
	PaymentStatus *string
	TeacherNotes  *string
}

func (r *LessonRepository) AdminUpdate(ctx context.Context, id string, update AdminLessonUpdate) (*models.Lesson, error) {
	query := `
		UPDATE lessons
		SET status = COALESCE($2, status),
		    payment_status = COALESCE($3, payment_status),
		    teacher_notes = COALESCE($4, teacher_notes),
		    updated_at = now()
		WHERE id = $1
		RETURNING ` + lessonColumns + `
	`
	return scanLesson(r.db.QueryRow(ctx, query, id, update.Status, update.PaymentStatus, update.TeacherNotes))
}

func (r *LessonRepository) SetStatus(ctx context.Context, id, status, paymentStatus string) error {
	query := `
		UPDATE lessons
		SET status = $2, payment_status = $3, updated_at = now()
		WHERE id = $1
	`
	_, err := r.db.Exec(ctx, query, id, status, paymentStatus)
	return err
}

func (r *LessonRepository) SetCalendarEvent(ctx context.Context, id, eventID, meetingURL string) error {
	query := `
		UPDATE lessons
		SET calendar_event_id = $2, meeting_url = $3, updated_at = now()
		WHERE id = $1
	`
	_, err := r.db.Exec(ctx, query, id, eventID, meetingURL)
	return err
}

// ListReminderDue returns confirmed lessons starting within (windowStart,
// target] whose reminder flag for the given window is still unset.
func (r *LessonRepository) ListReminderDue(ctx context.Context, window string, windowStart, target time.Time) ([]models.Lesson, error) {
	flag := "reminder_24h_sent"
	if window == "1h" {
		flag = "reminder_1h_sent"
	}
	query := `
		SELECT ` + lessonColumns + `
		FROM lessons
		WHERE status = 'confirmed' AND ` + flag + ` = false
		  AND starts_at >= $1 AND starts_at <= $2
		ORDER BY starts_at
	`
	return r.queryLessons(ctx, query, windowStart, target)
}

func (r *LessonRepository) MarkReminderSent(ctx context.Context, id, window string) error {
	flag := "reminder_24h_sent"
	if window == "1h" {
		flag = "reminder_1h_sent"
	}
	_, err := r.db.Exec(ctx,
		`UPDATE lessons SET `+flag+` = true, updated_at = now() WHERE id = $1`, id)
	return err
}

// ListPaymentPending returns reserved lessons with pending payment created
// before the cutoff and still in the future.
func (r *LessonRepository) ListPaymentPending(ctx context.Context, createdBefore, now time.Time) ([]models.Lesson, error) {
	query := `
		SELECT ` + lessonColumns + `
		FROM lessons
		WHERE status = 'reserved' AND payment_status = 'pending'
		  AND created_at <= $1 AND starts_at > $2
		ORDER BY created_at
	`
	return r.queryLessons(ctx, query, createdBefore, now)
}

// ListFollowUpDue returns confirmed/completed lessons that ended within
// [dayStart, dayEnd) and have not had the follow-up sent.
func (r *LessonRepository) ListFollowUpDue(ctx context.Context, dayStart, dayEnd time.Time) ([]models.Lesson, error) {
	query := `
		SELECT ` + lessonColumns + `
		FROM lessons
		WHERE status IN ('confirmed', 'completed') AND follow_up_sent = false
		  AND ends_at >= $1 AND ends_at < $2
		ORDER BY ends_at
	`
	return r.queryLessons(ctx, query, dayStart, dayEnd)
}

func (r *LessonRepository) MarkCompleted(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE lessons SET status = 'completed', updated_at = now() WHERE id = $1 AND status = 'confirmed'`, id)
	return err
}

func (r *LessonRepository) MarkFollowUpSent(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE lessons SET follow_up_sent = true, updated_at = now() WHERE id = $1`, id)
	return err
}

func (r *LessonRepository) queryLessons(ctx context.Context, query string, args ...any) ([]models.Lesson, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lessons []models.Lesson
	for rows.Next() {
		lesson, err := scanLesson(rows)
		if err != nil {
			return nil, err
		}
		lessons = append(lessons, *lesson)
	}
	return lessons, rows.Err()
}
