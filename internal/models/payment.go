package models

import "time"

type Payment struct {
	ID                string
	TenantID          string
	LessonID          *string
	PackID            *string
	Amount            int64
	Currency          string
	Provider          string
	ProviderReference string
	ProviderPaymentID *string
	Status            string
	RawPayload        []byte
	CheckoutURL       *string
	PaidAt            *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
