package domain

import "time"

// NotificationDirection distinguishes messages we send from messages we receive
type NotificationDirection string

const (
	NotificationOutbound NotificationDirection = "OUTBOUND"
	NotificationInbound  NotificationDirection = "INBOUND"
)

// NotificationType classifies the message content
type NotificationType string

const (
	NotificationTypeInvoice  NotificationType = "invoice"
	NotificationTypeFollowup NotificationType = "followup"
)

// NotificationStatus tracks delivery progress. The scheduler only ever writes
// PENDING; the delivery worker owns every later transition.
type NotificationStatus string

const (
	NotificationStatusPending   NotificationStatus = "PENDING"
	NotificationStatusSent      NotificationStatus = "SENT"
	NotificationStatusDelivered NotificationStatus = "DELIVERED"
	NotificationStatusFailed    NotificationStatus = "FAILED"
)

// NotificationJob is a persisted outbound message plus the queue payload the
// delivery worker consumes. Created conditionally by the materializer when the
// owning template has reminders enabled.
type NotificationJob struct {
	ID          string                `json:"id"`
	MerchantID  string                `json:"merchant_id"`
	CustomerID  string                `json:"customer_id"`
	InvoiceID   *string               `json:"invoice_id,omitempty"`
	Direction   NotificationDirection `json:"direction"`
	MessageType NotificationType      `json:"message_type"`
	Status      NotificationStatus    `json:"status"`
	Destination string                `json:"destination"`
	MessageText string                `json:"message_text"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}
