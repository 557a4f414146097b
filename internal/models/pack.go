package models

import "time"

const (
	LedgerReasonBooking       = "booking"
	LedgerReasonCancelRefund  = "cancel_refund"
	LedgerReasonNoShowForfeit = "no_show_forfeit"
)

// Pack is a purchased bundle of lesson credits. It is created inactive and
// activated by the payment webhook.
type Pack struct {
	ID           string
	TenantID     string
	StudentID    string
	LessonTypeID string
	TotalCredits int
	UsedCredits  int
	ExpiresAt    *time.Time
	IsActive     bool
	CreatedAt    time.Time
}

func (p *Pack) RemainingCredits() int {
	return p.TotalCredits - p.UsedCredits
}

// Usable reports whether the pack can cover a booking right now.
func (p *Pack) Usable(now time.Time) bool {
	if !p.IsActive || p.RemainingCredits() <= 0 {
		return false
	}
	if p.ExpiresAt != nil && !p.ExpiresAt.After(now) {
		return false
	}
	return true
}

// PackLedgerEntry is an immutable audit row. Corrections append new rows;
// existing rows are never updated or deleted.
type PackLedgerEntry struct {
	ID        string
	TenantID  string
	PackID    string
	LessonID  *string
	Delta     int
	Reason    string
	CreatedAt time.Time
}
