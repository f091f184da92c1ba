package ports

import (
	"context"
	"time"
)

// GenerationService defines the recurring invoice generation pass
type GenerationService interface {
	// ProcessDueTemplates runs one generation pass as of the given date.
	// Individual template failures are recorded in the result; the pass
	// itself only errors when the due-template set cannot be loaded.
	ProcessDueTemplates(ctx context.Context, asOf time.Time, batchSize int) (*GenerationRunResult, error)
}

// GenerationRunResult summarizes one generation pass
type GenerationRunResult struct {
	ProcessedCount      int
	GeneratedCount      int
	DeactivatedCount    int
	FailedCount         int
	GeneratedInvoiceIDs []string
	Errors              []GenerationError
}

// GenerationError records a single template's failure within a pass
type GenerationError struct {
	TemplateID string
	CustomerID string
	Error      string
	Conflict   bool
}
