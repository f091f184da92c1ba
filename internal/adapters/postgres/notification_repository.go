package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/merchantpay/billing-service/internal/domain"
	"github.com/merchantpay/billing-service/internal/domain/ports"
)

// NotificationRepository implements ports.NotificationRepository with hand-written SQL
type NotificationRepository struct {
	db ports.DBPort
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db ports.DBPort) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) querier(db ports.DBTX) ports.DBTX {
	if db != nil {
		return db
	}
	return r.db.GetDB()
}

// Create creates a new notification job in PENDING status
func (r *NotificationRepository) Create(ctx context.Context, tx ports.DBTX, job *domain.NotificationJob) error {
	jobID, err := uuid.Parse(job.ID)
	if err != nil {
		return fmt.Errorf("invalid notification job ID: %w", err)
	}

	var invoiceID pgtype.UUID
	if job.InvoiceID != nil {
		parsed, err := uuid.Parse(*job.InvoiceID)
		if err != nil {
			return fmt.Errorf("invalid invoice ID: %w", err)
		}
		invoiceID = pgtype.UUID{Bytes: parsed, Valid: true}
	}

	_, err = r.querier(tx).Exec(ctx, `
		INSERT INTO notification_jobs (
			id, merchant_id, customer_id, invoice_id, direction,
			message_type, status, destination, message_text
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		jobID,
		job.MerchantID,
		job.CustomerID,
		invoiceID,
		string(job.Direction),
		string(job.MessageType),
		string(job.Status),
		job.Destination,
		job.MessageText,
	)
	if err != nil {
		return fmt.Errorf("create notification job: %w", err)
	}

	return nil
}

// UpdateStatus records a delivery status transition for a job
func (r *NotificationRepository) UpdateStatus(ctx context.Context, db ports.DBTX, jobID string, status domain.NotificationStatus) error {
	tag, err := r.querier(db).Exec(ctx, `
		UPDATE notification_jobs SET status = $2, updated_at = now()
		WHERE id = $1`,
		jobID, string(status),
	)
	if err != nil {
		return fmt.Errorf("update notification status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("notification job %s not found", jobID)
	}

	return nil
}
