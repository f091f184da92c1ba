package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BillingFrequency defines the cadence of a recurring template.
// Monthly is the only supported frequency today; the column exists so
// additional cadences can be added without a schema change.
type BillingFrequency string

const (
	FrequencyMonthly BillingFrequency = "MONTHLY"
)

// RecurringTemplate is a billing schedule owned by one merchant for one
// customer. The engine advances only its schedule/activity fields
// (NextGenerationDate, IsActive, UpdatedAt); business fields such as Amount
// and Description are mutated exclusively through the lifecycle API.
type RecurringTemplate struct {
	ID                  string           `json:"id"`
	MerchantID          string           `json:"merchant_id"`
	CustomerID          string           `json:"customer_id"`
	InvoiceNumberPrefix string           `json:"invoice_number_prefix,omitempty"`
	Description         string           `json:"description,omitempty"`
	Amount              decimal.Decimal  `json:"amount"`
	DayOfMonth          int              `json:"day_of_month"`
	DueDateOffset       int              `json:"due_date_offset"`
	StartDate           time.Time        `json:"start_date"`
	EndDate             *time.Time       `json:"end_date,omitempty"`
	NextGenerationDate  time.Time        `json:"next_generation_date"`
	IsActive            bool             `json:"is_active"`
	Frequency           BillingFrequency `json:"frequency"`
	PauseReminder       bool             `json:"pause_reminder"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// DefaultDueDateOffset is the number of days between generation and due date
// when a template does not configure its own offset.
const DefaultDueDateOffset = 7

// IsDue reports whether the template must produce an invoice as of the given
// date: active, schedule arrived, and still inside the end-date bound.
func (t *RecurringTemplate) IsDue(asOf time.Time) bool {
	if !t.IsActive {
		return false
	}
	if t.NextGenerationDate.After(asOf) {
		return false
	}
	return !t.ScheduleExpired()
}

// ScheduleExpired reports whether the next generation date has passed the
// template's end date. An expired template is due for deactivation, never
// for generation.
func (t *RecurringTemplate) ScheduleExpired() bool {
	return t.EndDate != nil && t.NextGenerationDate.After(*t.EndDate)
}

// ExpiresAfter reports whether advancing the schedule to next would push the
// template past its end date, in which case it must be deactivated together
// with the advance.
func (t *RecurringTemplate) ExpiresAfter(next time.Time) bool {
	return t.EndDate != nil && next.After(*t.EndDate)
}
