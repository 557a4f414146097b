package models

import "time"

const (
	JobRunQueued    = "queued"
	JobRunRunning   = "running"
	JobRunCompleted = "completed"
	JobRunFailed    = "failed"
)

// JobRun records one background job execution. Besides observability it backs
// idempotency lookups such as counting prior payment-chase attempts.
type JobRun struct {
	ID          string
	TenantID    string
	JobName     string
	JobID       string
	Status      string
	Payload     []byte
	Result      []byte
	Error       *string
	Attempts    int
	StartedAt   *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
}
