package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus represents the payment state of an invoice
type InvoiceStatus string

const (
	InvoiceStatusUnpaid InvoiceStatus = "UNPAID"
	InvoiceStatusPaid   InvoiceStatus = "PAID"
)

// Invoice is the artifact produced by a generation pass. Once created it is
// an independent entity with its own lifecycle; RecurringTemplateID keeps
// traceability back to the template that produced it. The scheduler never
// mutates an invoice after creation.
type Invoice struct {
	ID                  string          `json:"id"`
	MerchantID          string          `json:"merchant_id"`
	CustomerID          string          `json:"customer_id"`
	RecurringTemplateID *string         `json:"recurring_template_id,omitempty"`
	InvoiceNumber       string          `json:"invoice_number,omitempty"`
	Description         string          `json:"description,omitempty"`
	Amount              decimal.Decimal `json:"amount"`
	DueDate             time.Time       `json:"due_date"`
	Status              InvoiceStatus   `json:"status"`
	PaidAt              *time.Time      `json:"paid_at,omitempty"`
	PauseReminder       bool            `json:"pause_reminder"`
	DeletedAt           *time.Time      `json:"deleted_at,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
}
