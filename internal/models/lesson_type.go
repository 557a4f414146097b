package models

import "time"

// LessonType is a bookable product: either a single lesson or, when
// IsPackType is set, a bundle of PackSize credits.
type LessonType struct {
	ID               string
	TenantID         string
	Name             string
	DurationMin      int
	PriceAmount      int64
	Currency         string
	IsPackType       bool
	PackSize         *int
	PackValidityDays *int
	IsActive         bool
	CreatedAt        time.Time
}
