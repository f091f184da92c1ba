package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/merchantpay/billing-service/internal/domain"
	"github.com/merchantpay/billing-service/internal/domain/ports"
)

// InvoiceRepository implements ports.InvoiceRepository with hand-written SQL
type InvoiceRepository struct {
	db ports.DBPort
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db ports.DBPort) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

func (r *InvoiceRepository) querier(db ports.DBTX) ports.DBTX {
	if db != nil {
		return db
	}
	return r.db.GetDB()
}

const invoiceColumns = `id, merchant_id, customer_id, recurring_template_id, invoice_number,
	description, amount, due_date, status, paid_at, pause_reminder, deleted_at, created_at`

// Create creates a new invoice
func (r *InvoiceRepository) Create(ctx context.Context, tx ports.DBTX, invoice *domain.Invoice) error {
	invoiceID, err := uuid.Parse(invoice.ID)
	if err != nil {
		return fmt.Errorf("invalid invoice ID: %w", err)
	}

	amount, err := decimalToNumeric(invoice.Amount)
	if err != nil {
		return err
	}

	var templateID pgtype.UUID
	if invoice.RecurringTemplateID != nil {
		parsed, err := uuid.Parse(*invoice.RecurringTemplateID)
		if err != nil {
			return fmt.Errorf("invalid recurring template ID: %w", err)
		}
		templateID = pgtype.UUID{Bytes: parsed, Valid: true}
	}

	_, err = r.querier(tx).Exec(ctx, `
		INSERT INTO invoices (
			id, merchant_id, customer_id, recurring_template_id, invoice_number,
			description, amount, due_date, status, pause_reminder
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		invoiceID,
		invoice.MerchantID,
		invoice.CustomerID,
		templateID,
		nullText(invoice.InvoiceNumber),
		nullText(invoice.Description),
		amount,
		dateValue(invoice.DueDate),
		string(invoice.Status),
		invoice.PauseReminder,
	)
	if err != nil {
		return fmt.Errorf("create invoice: %w", err)
	}

	return nil
}

// GetByID retrieves an invoice by id, scoped to the owning merchant
func (r *InvoiceRepository) GetByID(ctx context.Context, db ports.DBTX, merchantID, invoiceID string) (*domain.Invoice, error) {
	row := r.querier(db).QueryRow(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE id = $1 AND merchant_id = $2 AND deleted_at IS NULL`,
		invoiceID, merchantID,
	)

	invoice, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewDomainError(domain.ErrorCodeInvoiceNotFound, "invoice not found").WithDetail("invoice_id", invoiceID)
		}
		return nil, fmt.Errorf("get invoice by id: %w", err)
	}

	return invoice, nil
}

// ListByTemplate lists invoices generated from a template, newest first
func (r *InvoiceRepository) ListByTemplate(ctx context.Context, db ports.DBTX, merchantID, templateID string, offset, limit int) ([]*domain.Invoice, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.querier(db).Query(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE merchant_id = $1 AND recurring_template_id = $2 AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`,
		merchantID, templateID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list invoices by template: %w", err)
	}
	defer rows.Close()

	invoices := make([]*domain.Invoice, 0)
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		invoices = append(invoices, invoice)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invoices: %w", err)
	}

	return invoices, nil
}

func scanInvoice(row pgx.Row) (*domain.Invoice, error) {
	var (
		id, merchantID, customerID uuid.UUID
		templateID                 pgtype.UUID
		number, description        pgtype.Text
		amount                     pgtype.Numeric
		dueDate                    pgtype.Date
		status                     string
		paidAt, deletedAt          pgtype.Timestamptz
		pauseReminder              bool
		createdAt                  pgtype.Timestamptz
	)

	err := row.Scan(
		&id, &merchantID, &customerID, &templateID, &number,
		&description, &amount, &dueDate, &status, &paidAt, &pauseReminder, &deletedAt, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	amountDec, err := pgNumericToDecimal(amount)
	if err != nil {
		return nil, err
	}

	invoice := &domain.Invoice{
		ID:            id.String(),
		MerchantID:    merchantID.String(),
		CustomerID:    customerID.String(),
		InvoiceNumber: number.String,
		Description:   description.String,
		Amount:        amountDec,
		DueDate:       dueDate.Time,
		Status:        domain.InvoiceStatus(status),
		PauseReminder: pauseReminder,
		CreatedAt:     createdAt.Time,
	}
	if templateID.Valid {
		tid := uuid.UUID(templateID.Bytes).String()
		invoice.RecurringTemplateID = &tid
	}
	if paidAt.Valid {
		invoice.PaidAt = &paidAt.Time
	}
	if deletedAt.Valid {
		invoice.DeletedAt = &deletedAt.Time
	}

	return invoice, nil
}
