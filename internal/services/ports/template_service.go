package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/merchantpay/billing-service/internal/domain"
	domainports "github.com/merchantpay/billing-service/internal/domain/ports"
)

// TemplateService defines the business logic for the template lifecycle
type TemplateService interface {
	// CreateTemplate creates a new recurring invoice template
	CreateTemplate(ctx context.Context, req CreateTemplateRequest) (*domain.RecurringTemplate, error)

	// GetTemplate retrieves a template by id within the merchant's scope
	GetTemplate(ctx context.Context, merchantID, templateID string) (*domain.RecurringTemplate, error)

	// ListTemplates lists a merchant's templates with filtering and pagination
	ListTemplates(ctx context.Context, merchantID string, filter domainports.TemplateListFilter) ([]*domain.RecurringTemplate, error)

	// UpdateTemplate applies a partial update, recomputing the schedule when
	// day_of_month or start_date change
	UpdateTemplate(ctx context.Context, req UpdateTemplateRequest) (*domain.RecurringTemplate, error)

	// PauseTemplate suspends generation without touching the schedule
	PauseTemplate(ctx context.Context, merchantID, templateID string) (*domain.RecurringTemplate, error)

	// ResumeTemplate reactivates generation, rescheduling a stale next date
	ResumeTemplate(ctx context.Context, merchantID, templateID string) (*domain.RecurringTemplate, error)

	// CancelTemplate soft-cancels a template; generated invoices are untouched
	CancelTemplate(ctx context.Context, merchantID, templateID string) error
}

// CreateTemplateRequest represents a request to create a template
type CreateTemplateRequest struct {
	MerchantID          string
	CustomerID          string
	InvoiceNumberPrefix string
	Description         string
	Amount              decimal.Decimal
	DayOfMonth          int
	DueDateOffset       *int
	StartDate           time.Time
	EndDate             *time.Time
	PauseReminder       bool
}

// UpdateTemplateRequest represents a partial update; nil fields are untouched
type UpdateTemplateRequest struct {
	MerchantID          string
	TemplateID          string
	InvoiceNumberPrefix *string
	Description         *string
	Amount              *decimal.Decimal
	DayOfMonth          *int
	DueDateOffset       *int
	StartDate           *time.Time
	EndDate             *time.Time
	PauseReminder       *bool
}
