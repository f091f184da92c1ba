package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/merchantpay/billing-service/internal/domain"
	"github.com/merchantpay/billing-service/internal/domain/ports"
)

// TemplateRepository implements ports.TemplateRepository with hand-written SQL
type TemplateRepository struct {
	db ports.DBPort
}

// NewTemplateRepository creates a new template repository
func NewTemplateRepository(db ports.DBPort) *TemplateRepository {
	return &TemplateRepository{db: db}
}

func (r *TemplateRepository) querier(db ports.DBTX) ports.DBTX {
	if db != nil {
		return db
	}
	return r.db.GetDB()
}

const templateColumns = `id, merchant_id, customer_id, invoice_number_prefix, description,
	amount, day_of_month, due_date_offset, start_date, end_date, next_generation_date,
	is_active, frequency, pause_reminder, created_at, updated_at`

// Create creates a new recurring template
func (r *TemplateRepository) Create(ctx context.Context, tx ports.DBTX, template *domain.RecurringTemplate) error {
	templateID, err := uuid.Parse(template.ID)
	if err != nil {
		return fmt.Errorf("invalid template ID: %w", err)
	}

	amount, err := decimalToNumeric(template.Amount)
	if err != nil {
		return err
	}

	_, err = r.querier(tx).Exec(ctx, `
		INSERT INTO recurring_templates (
			id, merchant_id, customer_id, invoice_number_prefix, description,
			amount, day_of_month, due_date_offset, start_date, end_date,
			next_generation_date, is_active, frequency, pause_reminder
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		templateID,
		template.MerchantID,
		template.CustomerID,
		nullText(template.InvoiceNumberPrefix),
		nullText(template.Description),
		amount,
		template.DayOfMonth,
		template.DueDateOffset,
		dateValue(template.StartDate),
		nullDate(template.EndDate),
		dateValue(template.NextGenerationDate),
		template.IsActive,
		string(template.Frequency),
		template.PauseReminder,
	)
	if err != nil {
		return fmt.Errorf("create recurring template: %w", err)
	}

	return nil
}

// GetByID retrieves a template by id, scoped to the owning merchant
func (r *TemplateRepository) GetByID(ctx context.Context, db ports.DBTX, merchantID, templateID string) (*domain.RecurringTemplate, error) {
	row := r.querier(db).QueryRow(ctx, `
		SELECT `+templateColumns+`
		FROM recurring_templates
		WHERE id = $1 AND merchant_id = $2`,
		templateID, merchantID,
	)

	template, err := scanTemplate(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewDomainError(domain.ErrorCodeTemplateNotFound, "recurring invoice template not found").WithDetail("template_id", templateID)
		}
		return nil, fmt.Errorf("get template by id: %w", err)
	}

	return template, nil
}

// List lists a merchant's templates ordered by created_at descending
func (r *TemplateRepository) List(ctx context.Context, db ports.DBTX, merchantID string, filter ports.TemplateListFilter) ([]*domain.RecurringTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM recurring_templates WHERE merchant_id = $1`
	args := []interface{}{merchantID}

	if filter.IsActive != nil {
		args = append(args, *filter.IsActive)
		query += fmt.Sprintf(" AND is_active = $%d", len(args))
	}
	if filter.CustomerID != nil {
		args = append(args, *filter.CustomerID)
		query += fmt.Sprintf(" AND customer_id = $%d", len(args))
	}
	if filter.StartDateFrom != nil {
		args = append(args, dateValue(*filter.StartDateFrom))
		query += fmt.Sprintf(" AND start_date >= $%d", len(args))
	}
	if filter.StartDateTo != nil {
		args = append(args, dateValue(*filter.StartDateTo))
		query += fmt.Sprintf(" AND start_date <= $%d", len(args))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.querier(db).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	return scanTemplates(rows)
}

// Update persists the template's mutable fields
func (r *TemplateRepository) Update(ctx context.Context, tx ports.DBTX, template *domain.RecurringTemplate) error {
	amount, err := decimalToNumeric(template.Amount)
	if err != nil {
		return err
	}

	tag, err := r.querier(tx).Exec(ctx, `
		UPDATE recurring_templates SET
			invoice_number_prefix = $3,
			description = $4,
			amount = $5,
			day_of_month = $6,
			due_date_offset = $7,
			start_date = $8,
			end_date = $9,
			next_generation_date = $10,
			is_active = $11,
			pause_reminder = $12,
			updated_at = now()
		WHERE id = $1 AND merchant_id = $2`,
		template.ID,
		template.MerchantID,
		nullText(template.InvoiceNumberPrefix),
		nullText(template.Description),
		amount,
		template.DayOfMonth,
		template.DueDateOffset,
		dateValue(template.StartDate),
		nullDate(template.EndDate),
		dateValue(template.NextGenerationDate),
		template.IsActive,
		template.PauseReminder,
	)
	if err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewDomainError(domain.ErrorCodeTemplateNotFound, "recurring invoice template not found").WithDetail("template_id", template.ID)
	}

	return nil
}

// ListDueForGeneration loads active templates whose schedule has arrived
func (r *TemplateRepository) ListDueForGeneration(ctx context.Context, db ports.DBTX, asOf time.Time, limit int32) ([]*domain.RecurringTemplate, error) {
	rows, err := r.querier(db).Query(ctx, `
		SELECT `+templateColumns+`
		FROM recurring_templates
		WHERE is_active = true AND next_generation_date <= $1
		ORDER BY next_generation_date ASC
		LIMIT $2`,
		dateValue(asOf), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list templates due for generation: %w", err)
	}
	defer rows.Close()

	return scanTemplates(rows)
}

// AdvanceSchedule moves next_generation_date forward with a compare-and-set
// on the prior value. Zero rows affected means another writer advanced the
// schedule first; the caller must treat the cycle as already billed.
func (r *TemplateRepository) AdvanceSchedule(ctx context.Context, tx ports.DBTX, templateID string, from, to time.Time, deactivate bool) error {
	tag, err := r.querier(tx).Exec(ctx, `
		UPDATE recurring_templates SET
			next_generation_date = $3,
			is_active = CASE WHEN $4 THEN false ELSE is_active END,
			updated_at = now()
		WHERE id = $1 AND next_generation_date = $2`,
		templateID, dateValue(from), dateValue(to), deactivate,
	)
	if err != nil {
		return fmt.Errorf("advance template schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewDomainError(domain.ErrorCodeTemplateConflict, "template was modified concurrently").WithDetail("template_id", templateID)
	}

	return nil
}

// Deactivate clears is_active for a template past its end date
func (r *TemplateRepository) Deactivate(ctx context.Context, tx ports.DBTX, templateID string) error {
	tag, err := r.querier(tx).Exec(ctx, `
		UPDATE recurring_templates SET is_active = false, updated_at = now()
		WHERE id = $1`,
		templateID,
	)
	if err != nil {
		return fmt.Errorf("deactivate template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewDomainError(domain.ErrorCodeTemplateNotFound, "recurring invoice template not found").WithDetail("template_id", templateID)
	}

	return nil
}

func scanTemplates(rows pgx.Rows) ([]*domain.RecurringTemplate, error) {
	templates := make([]*domain.RecurringTemplate, 0)
	for rows.Next() {
		template, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, template)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}
	return templates, nil
}

func scanTemplate(row pgx.Row) (*domain.RecurringTemplate, error) {
	var (
		id, merchantID, customerID uuid.UUID
		prefix, description        pgtype.Text
		amount                     pgtype.Numeric
		dayOfMonth, dueDateOffset  int32
		startDate, nextGeneration  pgtype.Date
		endDate                    pgtype.Date
		isActive, pauseReminder    bool
		frequency                  string
		createdAt, updatedAt       time.Time
	)

	err := row.Scan(
		&id, &merchantID, &customerID, &prefix, &description,
		&amount, &dayOfMonth, &dueDateOffset, &startDate, &endDate, &nextGeneration,
		&isActive, &frequency, &pauseReminder, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	amountDec, err := pgNumericToDecimal(amount)
	if err != nil {
		return nil, err
	}

	template := &domain.RecurringTemplate{
		ID:                  id.String(),
		MerchantID:          merchantID.String(),
		CustomerID:          customerID.String(),
		InvoiceNumberPrefix: prefix.String,
		Description:         description.String,
		Amount:              amountDec,
		DayOfMonth:          int(dayOfMonth),
		DueDateOffset:       int(dueDateOffset),
		StartDate:           startDate.Time,
		NextGenerationDate:  nextGeneration.Time,
		IsActive:            isActive,
		Frequency:           domain.BillingFrequency(frequency),
		PauseReminder:       pauseReminder,
		CreatedAt:           createdAt,
		UpdatedAt:           updatedAt,
	}
	if endDate.Valid {
		end := endDate.Time
		template.EndDate = &end
	}

	return template, nil
}
