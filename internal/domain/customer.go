package domain

import "time"

// Customer is the slice of the customer directory the scheduler needs:
// identity, merchant ownership, and the contact the notification targets.
type Customer struct {
	ID         string    `json:"id"`
	MerchantID string    `json:"merchant_id"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone"`
	CreatedAt  time.Time `json:"created_at"`
}
