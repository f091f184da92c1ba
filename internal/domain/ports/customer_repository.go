package ports

import (
	"context"

	"github.com/merchantpay/billing-service/internal/domain"
)

// CustomerRepository is the read-only boundary to the customer directory.
// The scheduler resolves customers at template creation and when building
// notification destinations; customer CRUD lives elsewhere.
type CustomerRepository interface {
	// GetByID retrieves a customer by id, scoped to the owning merchant
	GetByID(ctx context.Context, db DBTX, merchantID, customerID string) (*domain.Customer, error)
}
