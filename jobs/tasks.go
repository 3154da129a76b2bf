package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeBillingEvent is the task type for billing notification events.
	TaskTypeBillingEvent = "billing:event"
	// TaskTypeRecurringSweep is the task type for the recurring invoice sweep.
	TaskTypeRecurringSweep = "billing:recurring_sweep"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// HandleSendEmailTask processes TaskTypeSendEmail tasks.
func HandleSendEmailTask(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	// Placeholder: integrate with SMTP/Mailpit in phase 2.
	fmt.Printf("[jobs] send email to %s subject=%s\n", payload.To, payload.Subject)
	return nil
}

// BillingEventPayload carries a billing notification event. Zero-valued
// amount fields are omitted for events that do not use them.
type BillingEventPayload struct {
	OwnerID       string  `json:"owner_id"`
	Event         string  `json:"event"`
	InvoiceNumber string  `json:"invoice_number"`
	Amount        float64 `json:"amount,omitempty"`
	Remaining     float64 `json:"remaining,omitempty"`
}

// Billing event names carried in BillingEventPayload.Event.
const (
	EventPaymentReceived  = "payment_received"
	EventInvoicePaid      = "invoice_paid"
	EventInvoiceGenerated = "invoice_generated"
)

// NewBillingEventTask constructs an Asynq task.
func NewBillingEventTask(payload BillingEventPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeBillingEvent, data), nil
}

// HandleBillingEventTask processes TaskTypeBillingEvent tasks.
func HandleBillingEventTask(ctx context.Context, t *asynq.Task) error {
	var payload BillingEventPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	// Placeholder: fan out to email/webhook channels in phase 2.
	fmt.Printf("[jobs] billing event %s invoice=%s owner=%s\n", payload.Event, payload.InvoiceNumber, payload.OwnerID)
	return nil
}

// RecurringSweepPayload parameterises one sweep run. Date is YYYY-MM-DD;
// empty means today.
type RecurringSweepPayload struct {
	Date string `json:"date,omitempty"`
}

// NewRecurringSweepTask constructs an Asynq task.
func NewRecurringSweepTask(payload RecurringSweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeRecurringSweep, data), nil
}
