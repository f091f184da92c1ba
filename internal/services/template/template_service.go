package template

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/merchantpay/billing-service/internal/domain"
	domainports "github.com/merchantpay/billing-service/internal/domain/ports"
	"github.com/merchantpay/billing-service/internal/services/ports"
	"github.com/merchantpay/billing-service/pkg/timeutil"
)

// Service implements ports.TemplateService
type Service struct {
	db           domainports.DBPort
	templateRepo domainports.TemplateRepository
	customerRepo domainports.CustomerRepository
	logger       domainports.Logger
}

// NewService creates a new template lifecycle service
func NewService(
	db domainports.DBPort,
	templateRepo domainports.TemplateRepository,
	customerRepo domainports.CustomerRepository,
	logger domainports.Logger,
) *Service {
	return &Service{
		db:           db,
		templateRepo: templateRepo,
		customerRepo: customerRepo,
		logger:       logger,
	}
}

// CreateTemplate validates the request, derives the first generation date and
// persists the template. The customer must already exist under the merchant.
func (s *Service) CreateTemplate(ctx context.Context, req ports.CreateTemplateRequest) (*domain.RecurringTemplate, error) {
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}

	startDate := timeutil.StartOfDay(req.StartDate)
	if startDate.Before(timeutil.Today()) {
		return nil, domain.NewDomainError(domain.ErrorCodeValidationDateRange, "start_date cannot be in the past").
			WithDetail("start_date", startDate.Format("2006-01-02"))
	}

	endDate, err := normalizeEndDate(req.EndDate, startDate)
	if err != nil {
		return nil, err
	}

	dueDateOffset := domain.DefaultDueDateOffset
	if req.DueDateOffset != nil {
		dueDateOffset = *req.DueDateOffset
	}
	if dueDateOffset < 0 {
		return nil, domain.NewDomainError(domain.ErrorCodeValidationFailed, "due_date_offset cannot be negative").
			WithDetail("due_date_offset", dueDateOffset)
	}

	nextGeneration, err := domain.InitialOccurrence(startDate, req.DayOfMonth)
	if err != nil {
		return nil, err
	}

	if _, err := s.customerRepo.GetByID(ctx, nil, req.MerchantID, req.CustomerID); err != nil {
		return nil, err
	}

	now := timeutil.Now()
	template := &domain.RecurringTemplate{
		ID:                  uuid.New().String(),
		MerchantID:          req.MerchantID,
		CustomerID:          req.CustomerID,
		InvoiceNumberPrefix: req.InvoiceNumberPrefix,
		Description:         req.Description,
		Amount:              req.Amount,
		DayOfMonth:          req.DayOfMonth,
		DueDateOffset:       dueDateOffset,
		StartDate:           startDate,
		EndDate:             endDate,
		NextGenerationDate:  nextGeneration,
		IsActive:            true,
		Frequency:           domain.FrequencyMonthly,
		PauseReminder:       req.PauseReminder,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return s.templateRepo.Create(ctx, tx, template)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("recurring template created",
		domainports.String("template_id", template.ID),
		domainports.String("merchant_id", template.MerchantID),
		domainports.String("customer_id", template.CustomerID),
		domainports.String("next_generation_date", nextGeneration.Format("2006-01-02")))

	return template, nil
}

// GetTemplate retrieves a template scoped to the merchant
func (s *Service) GetTemplate(ctx context.Context, merchantID, templateID string) (*domain.RecurringTemplate, error) {
	return s.templateRepo.GetByID(ctx, nil, merchantID, templateID)
}

// ListTemplates lists a merchant's templates with filtering and pagination
func (s *Service) ListTemplates(ctx context.Context, merchantID string, filter domainports.TemplateListFilter) ([]*domain.RecurringTemplate, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 {
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.templateRepo.List(ctx, nil, merchantID, filter)
}

// UpdateTemplate applies a partial update. Changing day_of_month or start_date
// recomputes next_generation_date from the later of the new start date and
// today, so an edit never schedules a generation in the past and never
// re-bills a cycle that already ran.
func (s *Service) UpdateTemplate(ctx context.Context, req ports.UpdateTemplateRequest) (*domain.RecurringTemplate, error) {
	template, err := s.templateRepo.GetByID(ctx, nil, req.MerchantID, req.TemplateID)
	if err != nil {
		return nil, err
	}

	if req.InvoiceNumberPrefix != nil {
		template.InvoiceNumberPrefix = *req.InvoiceNumberPrefix
	}
	if req.Description != nil {
		template.Description = *req.Description
	}
	if req.Amount != nil {
		if err := validateAmount(*req.Amount); err != nil {
			return nil, err
		}
		template.Amount = *req.Amount
	}
	if req.DueDateOffset != nil {
		if *req.DueDateOffset < 0 {
			return nil, domain.NewDomainError(domain.ErrorCodeValidationFailed, "due_date_offset cannot be negative").
				WithDetail("due_date_offset", *req.DueDateOffset)
		}
		template.DueDateOffset = *req.DueDateOffset
	}
	if req.PauseReminder != nil {
		template.PauseReminder = *req.PauseReminder
	}

	scheduleChanged := false
	if req.DayOfMonth != nil && *req.DayOfMonth != template.DayOfMonth {
		template.DayOfMonth = *req.DayOfMonth
		scheduleChanged = true
	}
	if req.StartDate != nil {
		startDate := timeutil.StartOfDay(*req.StartDate)
		if !startDate.Equal(template.StartDate) {
			template.StartDate = startDate
			scheduleChanged = true
		}
	}
	if req.EndDate != nil {
		endDate, err := normalizeEndDate(req.EndDate, template.StartDate)
		if err != nil {
			return nil, err
		}
		template.EndDate = endDate
	}

	if scheduleChanged {
		anchor := timeutil.MaxDate(template.StartDate, timeutil.Today())
		next, err := domain.InitialOccurrence(anchor, template.DayOfMonth)
		if err != nil {
			return nil, err
		}
		template.NextGenerationDate = next
	}

	template.UpdatedAt = timeutil.Now()

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return s.templateRepo.Update(ctx, tx, template)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("recurring template updated",
		domainports.String("template_id", template.ID),
		domainports.Bool("schedule_recomputed", scheduleChanged))

	return template, nil
}

// PauseTemplate suspends generation. The schedule fields are untouched so a
// later resume can pick up exactly where the template left off.
func (s *Service) PauseTemplate(ctx context.Context, merchantID, templateID string) (*domain.RecurringTemplate, error) {
	template, err := s.templateRepo.GetByID(ctx, nil, merchantID, templateID)
	if err != nil {
		return nil, err
	}
	if !template.IsActive {
		return template, nil
	}

	template.IsActive = false
	template.UpdatedAt = timeutil.Now()

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return s.templateRepo.Update(ctx, tx, template)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("recurring template paused",
		domainports.String("template_id", template.ID))

	return template, nil
}

// ResumeTemplate reactivates generation. A next_generation_date that went
// stale while paused is recomputed forward; cycles missed during the pause
// are not backfilled.
func (s *Service) ResumeTemplate(ctx context.Context, merchantID, templateID string) (*domain.RecurringTemplate, error) {
	template, err := s.templateRepo.GetByID(ctx, nil, merchantID, templateID)
	if err != nil {
		return nil, err
	}
	if template.IsActive {
		return template, nil
	}

	today := timeutil.Today()
	if template.NextGenerationDate.Before(today) {
		anchor := timeutil.MaxDate(template.StartDate, today)
		next, err := domain.InitialOccurrence(anchor, template.DayOfMonth)
		if err != nil {
			return nil, err
		}
		template.NextGenerationDate = next
	}

	if template.ScheduleExpired() {
		return nil, domain.NewDomainError(domain.ErrorCodeTemplateInactive, "template schedule has passed its end date").
			WithDetail("end_date", template.EndDate.Format("2006-01-02"))
	}

	template.IsActive = true
	template.UpdatedAt = timeutil.Now()

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return s.templateRepo.Update(ctx, tx, template)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("recurring template resumed",
		domainports.String("template_id", template.ID),
		domainports.String("next_generation_date", template.NextGenerationDate.Format("2006-01-02")))

	return template, nil
}

// CancelTemplate stops future generation permanently. Invoices already
// generated from the template keep their own lifecycle and are untouched.
func (s *Service) CancelTemplate(ctx context.Context, merchantID, templateID string) error {
	template, err := s.templateRepo.GetByID(ctx, nil, merchantID, templateID)
	if err != nil {
		return err
	}

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return s.templateRepo.Deactivate(ctx, tx, template.ID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("recurring template cancelled",
		domainports.String("template_id", template.ID),
		domainports.String("merchant_id", merchantID))

	return nil
}

func validateAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return domain.NewDomainError(domain.ErrorCodeValidationAmountInvalid, "amount must be positive").
			WithDetail("amount", amount.String())
	}
	return nil
}

// normalizeEndDate truncates an optional end date and checks it against the
// start date. A zero end date clears the bound.
func normalizeEndDate(endDate *time.Time, startDate time.Time) (*time.Time, error) {
	if endDate == nil || endDate.IsZero() {
		return nil, nil
	}
	normalized := timeutil.StartOfDay(*endDate)
	if normalized.Before(startDate) {
		return nil, domain.NewDomainError(domain.ErrorCodeValidationDateRange, "end_date cannot be before start_date").
			WithDetail("start_date", startDate.Format("2006-01-02")).
			WithDetail("end_date", normalized.Format("2006-01-02"))
	}
	return &normalized, nil
}
