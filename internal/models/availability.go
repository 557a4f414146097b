package models

import "time"

// AvailabilityRule is a recurring weekly opening window in the tenant's local
// timezone. Multiple rules per weekday are unioned.
type AvailabilityRule struct {
	ID          string
	TenantID    string
	Weekday     int    // 0=Sunday .. 6=Saturday
	StartTime   string // "HH:MM"
	EndTime     string // "HH:MM"
	SlotMinutes int
	IsActive    bool
}

type BlockedTime struct {
	ID       string
	TenantID string
	StartsAt time.Time
	EndsAt   time.Time
	Reason   *string
}

// Slot is one candidate bookable interval produced by the availability engine.
type Slot struct {
	Start     string `json:"start"` // RFC3339 in the tenant's timezone
	End       string `json:"end"`
	Available bool   `json:"available"`
}
