package ports

import (
	"context"

	"github.com/merchantpay/billing-service/internal/domain"
)

// NotificationDispatcher hands a persisted notification job to the
// asynchronous delivery pipeline. Enqueue is best-effort: the caller logs
// failures but never fails the surrounding invoice generation, and delivery
// outcomes are owned entirely by the consuming worker.
type NotificationDispatcher interface {
	Enqueue(ctx context.Context, job *domain.NotificationJob) error
}
