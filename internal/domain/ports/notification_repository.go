package ports

import (
	"context"

	"github.com/merchantpay/billing-service/internal/domain"
)

// NotificationRepository defines the interface for notification job persistence
type NotificationRepository interface {
	// Create creates a new notification job in PENDING status
	Create(ctx context.Context, tx DBTX, job *domain.NotificationJob) error

	// UpdateStatus records a delivery status transition for a job
	UpdateStatus(ctx context.Context, db DBTX, jobID string, status domain.NotificationStatus) error
}
