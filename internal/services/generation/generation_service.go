package generation

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/merchantpay/billing-service/internal/domain"
	domainports "github.com/merchantpay/billing-service/internal/domain/ports"
	"github.com/merchantpay/billing-service/internal/services/ports"
	"github.com/merchantpay/billing-service/pkg/observability"
	"github.com/merchantpay/billing-service/pkg/timeutil"
)

// DefaultBatchSize caps the templates loaded by one pass
const DefaultBatchSize = 500

// Service implements ports.GenerationService. One invocation is one finite
// pass over the due-template set; the external scheduler owns the cadence.
type Service struct {
	db               domainports.DBPort
	templateRepo     domainports.TemplateRepository
	invoiceRepo      domainports.InvoiceRepository
	notificationRepo domainports.NotificationRepository
	customerRepo     domainports.CustomerRepository
	dispatcher       domainports.NotificationDispatcher
	logger           domainports.Logger
}

// NewService creates a new generation service
func NewService(
	db domainports.DBPort,
	templateRepo domainports.TemplateRepository,
	invoiceRepo domainports.InvoiceRepository,
	notificationRepo domainports.NotificationRepository,
	customerRepo domainports.CustomerRepository,
	dispatcher domainports.NotificationDispatcher,
	logger domainports.Logger,
) *Service {
	return &Service{
		db:               db,
		templateRepo:     templateRepo,
		invoiceRepo:      invoiceRepo,
		notificationRepo: notificationRepo,
		customerRepo:     customerRepo,
		dispatcher:       dispatcher,
		logger:           logger,
	}
}

// ProcessDueTemplates runs one generation pass as of the given date.
//
// Re-running the pass for the same date immediately after a successful pass
// generates nothing: every processed template's next_generation_date has
// already advanced past asOf (or the template was deactivated). The schedule
// field is the single source of truth for "has this cycle been billed".
func (s *Service) ProcessDueTemplates(ctx context.Context, asOf time.Time, batchSize int) (*ports.GenerationRunResult, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	asOf = timeutil.StartOfDay(asOf)
	start := time.Now()

	result := &ports.GenerationRunResult{
		GeneratedInvoiceIDs: make([]string, 0),
		Errors:              make([]ports.GenerationError, 0),
	}

	templates, err := s.templateRepo.ListDueForGeneration(ctx, nil, asOf, int32(batchSize))
	if err != nil {
		return nil, fmt.Errorf("list templates due for generation: %w", err)
	}

	if len(templates) == 0 {
		s.logger.Info("generation pass found no due templates",
			domainports.String("as_of", asOf.Format("2006-01-02")))
		return result, nil
	}

	s.logger.Info("processing generation pass",
		domainports.String("as_of", asOf.Format("2006-01-02")),
		domainports.Int("count", len(templates)))

	for _, template := range templates {
		result.ProcessedCount++

		// The coarse query checked activity and schedule arrival only; the
		// end-date bound decides behavior per template.
		if template.ScheduleExpired() {
			if err := s.deactivateExpired(ctx, template); err != nil {
				s.recordFailure(result, template, err)
				continue
			}
			result.DeactivatedCount++
			continue
		}
		if !template.IsDue(asOf) {
			continue
		}

		invoiceID, job, err := s.generateForTemplate(ctx, template, asOf)
		if err != nil {
			s.recordFailure(result, template, err)
			continue
		}

		result.GeneratedCount++
		result.GeneratedInvoiceIDs = append(result.GeneratedInvoiceIDs, invoiceID)
		observability.InvoicesGenerated.Inc()

		// Fire-and-forget handoff: delivery failures belong to the dispatch
		// subsystem, never to the invoice that was already committed.
		if job != nil {
			if err := s.dispatcher.Enqueue(ctx, job); err != nil {
				s.logger.Warn("notification enqueue failed",
					domainports.String("template_id", template.ID),
					domainports.String("job_id", job.ID),
					domainports.Err(err))
			} else {
				observability.NotificationsEnqueued.WithLabelValues(string(job.MessageType)).Inc()
			}
		}

		if !template.IsActive {
			result.DeactivatedCount++
		}
	}

	observability.GenerationPassDuration.Observe(time.Since(start).Seconds())

	s.logger.Info("generation pass completed",
		domainports.Int("processed", result.ProcessedCount),
		domainports.Int("generated", result.GeneratedCount),
		domainports.Int("deactivated", result.DeactivatedCount),
		domainports.Int("failed", result.FailedCount))

	return result, nil
}

// generateForTemplate materializes one template and commits the invoice, the
// notification job, and the schedule advance in a single transaction. The
// advance's compare-and-set rejects the write when another pass got there
// first, rolling back the invoice with it, so at most one invoice is
// committed per template cycle.
func (s *Service) generateForTemplate(ctx context.Context, template *domain.RecurringTemplate, asOf time.Time) (string, *domain.NotificationJob, error) {
	var customer *domain.Customer
	if !template.PauseReminder {
		var err error
		customer, err = s.customerRepo.GetByID(ctx, nil, template.MerchantID, template.CustomerID)
		if err != nil {
			return "", nil, fmt.Errorf("resolve customer: %w", err)
		}
	}

	invoice, job, nextDate, err := Materialize(template, customer, asOf)
	if err != nil {
		return "", nil, err
	}

	deactivate := template.ExpiresAfter(nextDate)

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.invoiceRepo.Create(ctx, tx, invoice); err != nil {
			return err
		}
		if job != nil {
			if err := s.notificationRepo.Create(ctx, tx, job); err != nil {
				return err
			}
		}
		return s.templateRepo.AdvanceSchedule(ctx, tx, template.ID, template.NextGenerationDate, nextDate, deactivate)
	})
	if err != nil {
		return "", nil, err
	}

	// Keep the in-memory template in step with the committed row so the
	// caller can count deactivations.
	template.NextGenerationDate = nextDate
	if deactivate {
		template.IsActive = false
	}

	s.logger.Info("invoice generated from template",
		domainports.String("template_id", template.ID),
		domainports.String("invoice_id", invoice.ID),
		domainports.String("due_date", invoice.DueDate.Format("2006-01-02")),
		domainports.Bool("deactivated", deactivate))

	return invoice.ID, job, nil
}

// deactivateExpired retires a template whose schedule already passed its end
// date. No invoice is generated for it.
func (s *Service) deactivateExpired(ctx context.Context, template *domain.RecurringTemplate) error {
	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return s.templateRepo.Deactivate(ctx, tx, template.ID)
	})
	if err != nil {
		return fmt.Errorf("deactivate expired template: %w", err)
	}

	observability.TemplatesDeactivated.Inc()
	s.logger.Info("expired template deactivated",
		domainports.String("template_id", template.ID),
		domainports.String("end_date", template.EndDate.Format("2006-01-02")))

	return nil
}

func (s *Service) recordFailure(result *ports.GenerationRunResult, template *domain.RecurringTemplate, err error) {
	result.FailedCount++
	result.Errors = append(result.Errors, ports.GenerationError{
		TemplateID: template.ID,
		CustomerID: template.CustomerID,
		Error:      err.Error(),
		Conflict:   domain.IsConflictError(err),
	})
	observability.GenerationFailures.Inc()

	s.logger.Error("generation failed for template",
		domainports.String("template_id", template.ID),
		domainports.String("customer_id", template.CustomerID),
		domainports.Err(err))
}
