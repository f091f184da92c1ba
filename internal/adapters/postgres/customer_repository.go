package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/merchantpay/billing-service/internal/domain"
	"github.com/merchantpay/billing-service/internal/domain/ports"
)

// CustomerRepository implements the read-only customer directory boundary
type CustomerRepository struct {
	db ports.DBPort
}

// NewCustomerRepository creates a new customer repository
func NewCustomerRepository(db ports.DBPort) *CustomerRepository {
	return &CustomerRepository{db: db}
}

func (r *CustomerRepository) querier(db ports.DBTX) ports.DBTX {
	if db != nil {
		return db
	}
	return r.db.GetDB()
}

// GetByID retrieves a customer by id, scoped to the owning merchant
func (r *CustomerRepository) GetByID(ctx context.Context, db ports.DBTX, merchantID, customerID string) (*domain.Customer, error) {
	var (
		id, merchant uuid.UUID
		name, phone  string
		createdAt    time.Time
	)

	err := r.querier(db).QueryRow(ctx, `
		SELECT id, merchant_id, name, phone, created_at
		FROM customers
		WHERE id = $1 AND merchant_id = $2`,
		customerID, merchantID,
	).Scan(&id, &merchant, &name, &phone, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewDomainError(domain.ErrorCodeCustomerNotFound,
				"customer not found or does not belong to merchant").WithDetail("customer_id", customerID)
		}
		return nil, fmt.Errorf("get customer by id: %w", err)
	}

	return &domain.Customer{
		ID:         id.String(),
		MerchantID: merchant.String(),
		Name:       name,
		Phone:      phone,
		CreatedAt:  createdAt,
	}, nil
}
