package ports

import (
	"context"
	"time"

	"github.com/merchantpay/billing-service/internal/domain"
)

// TemplateListFilter narrows a merchant's template listing.
type TemplateListFilter struct {
	IsActive      *bool
	CustomerID    *string
	StartDateFrom *time.Time
	StartDateTo   *time.Time
	Offset        int
	Limit         int
}

// TemplateRepository defines the interface for recurring template persistence
type TemplateRepository interface {
	// Create creates a new recurring template
	Create(ctx context.Context, tx DBTX, template *domain.RecurringTemplate) error

	// GetByID retrieves a template by id, scoped to the owning merchant
	GetByID(ctx context.Context, db DBTX, merchantID, templateID string) (*domain.RecurringTemplate, error)

	// List lists a merchant's templates ordered by created_at descending
	List(ctx context.Context, db DBTX, merchantID string, filter TemplateListFilter) ([]*domain.RecurringTemplate, error)

	// Update persists the template's mutable fields
	Update(ctx context.Context, tx DBTX, template *domain.RecurringTemplate) error

	// ListDueForGeneration loads active templates whose next_generation_date
	// has arrived. The end_date bound is intentionally not part of this query;
	// it changes per-template behavior, not load eligibility.
	ListDueForGeneration(ctx context.Context, db DBTX, asOf time.Time, limit int32) ([]*domain.RecurringTemplate, error)

	// AdvanceSchedule moves next_generation_date from a known prior value to
	// its successor, optionally deactivating the template in the same write.
	// The compare-and-set on the prior value is the engine's idempotency
	// guard: when another pass already advanced the schedule the update
	// matches zero rows and ErrTemplateConflict is returned.
	AdvanceSchedule(ctx context.Context, tx DBTX, templateID string, from, to time.Time, deactivate bool) error

	// Deactivate clears is_active for a template past its end date
	Deactivate(ctx context.Context, tx DBTX, templateID string) error
}
