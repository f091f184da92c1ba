package generation

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/merchantpay/billing-service/internal/domain"
	"github.com/merchantpay/billing-service/pkg/timeutil"
)

// invoiceNumberDateLayout is the textual date encoding appended to the
// configured prefix. Numbers are not guaranteed globally unique.
const invoiceNumberDateLayout = "20060102"

// Materialize produces the artifacts for one due template: the invoice, the
// notification job when reminders are enabled, and the date the template's
// schedule must advance to. It is side-effect free; persistence and queuing
// belong to the generation pass.
//
// The generation date is max(next_generation_date, asOf): a pass that lagged
// behind schedule produces a single catch-up invoice and resyncs the cadence
// to today rather than backfilling one invoice per missed cycle.
func Materialize(template *domain.RecurringTemplate, customer *domain.Customer, asOf time.Time) (*domain.Invoice, *domain.NotificationJob, time.Time, error) {
	generationDate := timeutil.MaxDate(template.NextGenerationDate, timeutil.StartOfDay(asOf))

	nextDate, err := domain.NextOccurrence(generationDate, template.DayOfMonth)
	if err != nil {
		return nil, nil, time.Time{}, err
	}

	invoiceNumber := ""
	if template.InvoiceNumberPrefix != "" {
		invoiceNumber = template.InvoiceNumberPrefix + "-" + generationDate.Format(invoiceNumberDateLayout)
	}

	templateID := template.ID
	invoice := &domain.Invoice{
		ID:                  uuid.New().String(),
		MerchantID:          template.MerchantID,
		CustomerID:          template.CustomerID,
		RecurringTemplateID: &templateID,
		InvoiceNumber:       invoiceNumber,
		Description:         template.Description,
		Amount:              template.Amount,
		DueDate:             generationDate.AddDate(0, 0, template.DueDateOffset),
		Status:              domain.InvoiceStatusUnpaid,
		PauseReminder:       template.PauseReminder,
	}

	var job *domain.NotificationJob
	if !template.PauseReminder {
		if customer == nil {
			return nil, nil, time.Time{}, fmt.Errorf("customer required to build notification for template %s", template.ID)
		}

		reference := invoice.InvoiceNumber
		if reference == "" {
			reference = invoice.ID
		}

		invoiceID := invoice.ID
		job = &domain.NotificationJob{
			ID:          uuid.New().String(),
			MerchantID:  template.MerchantID,
			CustomerID:  template.CustomerID,
			InvoiceID:   &invoiceID,
			Direction:   domain.NotificationOutbound,
			MessageType: domain.NotificationTypeInvoice,
			Status:      domain.NotificationStatusPending,
			Destination: customer.Phone,
			MessageText: fmt.Sprintf("Invoice #%s for %s is due on %s",
				reference, template.Amount.StringFixed(2), invoice.DueDate.Format("2006-01-02")),
		}
	}

	return invoice, job, nextDate, nil
}
