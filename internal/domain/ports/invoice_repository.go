package ports

import (
	"context"

	"github.com/merchantpay/billing-service/internal/domain"
)

// InvoiceRepository defines the interface for invoice persistence
type InvoiceRepository interface {
	// Create creates a new invoice
	Create(ctx context.Context, tx DBTX, invoice *domain.Invoice) error

	// GetByID retrieves an invoice by id, scoped to the owning merchant
	GetByID(ctx context.Context, db DBTX, merchantID, invoiceID string) (*domain.Invoice, error)

	// ListByTemplate lists invoices generated from a template, newest first
	ListByTemplate(ctx context.Context, db DBTX, merchantID, templateID string, offset, limit int) ([]*domain.Invoice, error)
}
