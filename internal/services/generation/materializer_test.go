package generation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/merchantpay/billing-service/internal/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testTemplate() *domain.RecurringTemplate {
	return &domain.RecurringTemplate{
		ID:                  "tpl-1",
		MerchantID:          "MERCH123",
		CustomerID:          "cust-1",
		InvoiceNumberPrefix: "ACME",
		Description:         "Monthly retainer",
		Amount:              decimal.RequireFromString("500.00"),
		DayOfMonth:          10,
		DueDateOffset:       7,
		StartDate:           date(2025, time.May, 10),
		NextGenerationDate:  date(2025, time.June, 10),
		IsActive:            true,
		Frequency:           domain.FrequencyMonthly,
	}
}

func testCustomer() *domain.Customer {
	return &domain.Customer{
		ID:         "cust-1",
		MerchantID: "MERCH123",
		Name:       "Acme Corp",
		Phone:      "919876543210",
	}
}

func TestMaterialize_OnSchedule(t *testing.T) {
	template := testTemplate()

	invoice, job, next, err := Materialize(template, testCustomer(), date(2025, time.June, 10))
	require.NoError(t, err)

	assert.Equal(t, "MERCH123", invoice.MerchantID)
	assert.Equal(t, "cust-1", invoice.CustomerID)
	require.NotNil(t, invoice.RecurringTemplateID)
	assert.Equal(t, "tpl-1", *invoice.RecurringTemplateID)
	assert.Equal(t, "ACME-20250610", invoice.InvoiceNumber)
	assert.Equal(t, "Monthly retainer", invoice.Description)
	assert.True(t, invoice.Amount.Equal(decimal.RequireFromString("500.00")))
	assert.Equal(t, date(2025, time.June, 17), invoice.DueDate)
	assert.Equal(t, domain.InvoiceStatusUnpaid, invoice.Status)
	assert.False(t, invoice.PauseReminder)

	assert.Equal(t, date(2025, time.July, 10), next)

	require.NotNil(t, job)
	assert.Equal(t, domain.NotificationOutbound, job.Direction)
	assert.Equal(t, domain.NotificationTypeInvoice, job.MessageType)
	assert.Equal(t, domain.NotificationStatusPending, job.Status)
	assert.Equal(t, "919876543210", job.Destination)
	require.NotNil(t, job.InvoiceID)
	assert.Equal(t, invoice.ID, *job.InvoiceID)
	assert.Equal(t, "Invoice #ACME-20250610 for 500.00 is due on 2025-06-17", job.MessageText)
}

func TestMaterialize_LaggingPassResyncsCadence(t *testing.T) {
	template := testTemplate()
	template.NextGenerationDate = date(2025, time.March, 10)

	// A pass running weeks late produces one catch-up invoice dated today,
	// not one invoice per missed month.
	invoice, _, next, err := Materialize(template, testCustomer(), date(2025, time.May, 2))
	require.NoError(t, err)

	assert.Equal(t, "ACME-20250502", invoice.InvoiceNumber)
	assert.Equal(t, date(2025, time.May, 9), invoice.DueDate)
	assert.Equal(t, date(2025, time.June, 10), next)
}

func TestMaterialize_PauseReminderSkipsNotification(t *testing.T) {
	template := testTemplate()
	template.PauseReminder = true

	// No customer needed when reminders are off.
	invoice, job, _, err := Materialize(template, nil, date(2025, time.June, 10))
	require.NoError(t, err)

	assert.Nil(t, job)
	assert.True(t, invoice.PauseReminder)
}

func TestMaterialize_NoPrefixFallsBackToInvoiceID(t *testing.T) {
	template := testTemplate()
	template.InvoiceNumberPrefix = ""

	invoice, job, _, err := Materialize(template, testCustomer(), date(2025, time.June, 10))
	require.NoError(t, err)

	assert.Empty(t, invoice.InvoiceNumber)
	require.NotNil(t, job)
	assert.Contains(t, job.MessageText, "Invoice #"+invoice.ID)
}

func TestMaterialize_MissingCustomerWithRemindersOn(t *testing.T) {
	template := testTemplate()

	_, _, _, err := Materialize(template, nil, date(2025, time.June, 10))
	assert.Error(t, err)
}

func TestMaterialize_EndOfMonthClamping(t *testing.T) {
	template := testTemplate()
	template.DayOfMonth = 31
	template.NextGenerationDate = date(2025, time.January, 31)

	invoice, _, next, err := Materialize(template, testCustomer(), date(2025, time.January, 31))
	require.NoError(t, err)

	assert.Equal(t, date(2025, time.February, 7), invoice.DueDate)
	assert.Equal(t, date(2025, time.February, 28), next)
}
