package models

import "time"

// TenantSettings is the per-tenant policy blob stored as JSONB. All fields are
// optional; accessors apply the documented defaults.
type TenantSettings struct {
	RequirePaymentToConfirm *bool   `json:"requirePaymentToConfirm,omitempty"`
	RescheduleMinHours      *int    `json:"rescheduleMinHours,omitempty"`
	CancelMinHours          *int    `json:"cancelMinHours,omitempty"`
	NoShowConsumeCredit     *bool   `json:"noShowConsumeCredit,omitempty"`
	WompiPublicKey          *string `json:"wompiPublicKey,omitempty"`
	WompiEventsSecret       *string `json:"wompiEventsSecret,omitempty"`
	CalendarCredentialID    *string `json:"calendarCredentialId,omitempty"`

	ConfirmationTemplate   *string `json:"confirmationTemplate,omitempty"`
	Reminder24hTemplate    *string `json:"reminder24hTemplate,omitempty"`
	Reminder1hTemplate     *string `json:"reminder1hTemplate,omitempty"`
	PendingPaymentTemplate *string `json:"pendingPaymentTemplate,omitempty"`
	FollowUpTemplate       *string `json:"followUpTemplate,omitempty"`
	WelcomeTemplate        *string `json:"welcomeTemplate,omitempty"`
}

func (s TenantSettings) PaymentRequired() bool {
	if s.RequirePaymentToConfirm == nil {
		return true
	}
	return *s.RequirePaymentToConfirm
}

func (s TenantSettings) RescheduleNotice() int {
	if s.RescheduleMinHours == nil {
		return 24
	}
	return *s.RescheduleMinHours
}

func (s TenantSettings) CancelNotice() int {
	if s.CancelMinHours == nil {
		return 24
	}
	return *s.CancelMinHours
}

type Tenant struct {
	ID        string
	Slug      string
	Name      string
	Timezone  string
	Currency  string
	IsActive  bool
	Settings  TenantSettings
	CreatedAt time.Time
	UpdatedAt time.Time
}
