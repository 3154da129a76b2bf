// Package notify bridges billing events to the background queue. Every
// method is fire-and-forget: enqueue failures are logged, never returned,
// so a broken queue cannot fail a committed billing operation.
package notify

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ledgerline/ledgerline/jobs"
)

// Notifier enqueues billing notification tasks after the core transaction
// has committed.
type Notifier struct {
	client *jobs.Client
	logger *slog.Logger
}

// New builds a Notifier.
func New(client *jobs.Client, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{client: client, logger: logger}
}

func (n *Notifier) enqueue(ctx context.Context, payload jobs.BillingEventPayload) {
	if n == nil || n.client == nil {
		return
	}
	if _, err := n.client.EnqueueBillingEvent(ctx, payload); err != nil {
		n.logger.Warn("enqueue billing event",
			"event", payload.Event, "invoice", payload.InvoiceNumber, "error", err)
	}
}

// PaymentReceived announces a recorded payment with the remaining balance.
func (n *Notifier) PaymentReceived(ctx context.Context, ownerID uuid.UUID, invoiceNumber string, amount, remaining float64) {
	n.enqueue(ctx, jobs.BillingEventPayload{
		OwnerID:       ownerID.String(),
		Event:         jobs.EventPaymentReceived,
		InvoiceNumber: invoiceNumber,
		Amount:        amount,
		Remaining:     remaining,
	})
}

// InvoicePaid announces an invoice reaching full payment.
func (n *Notifier) InvoicePaid(ctx context.Context, ownerID uuid.UUID, invoiceNumber string) {
	n.enqueue(ctx, jobs.BillingEventPayload{
		OwnerID:       ownerID.String(),
		Event:         jobs.EventInvoicePaid,
		InvoiceNumber: invoiceNumber,
	})
}

// InvoiceGenerated announces an invoice produced by the recurring engine.
func (n *Notifier) InvoiceGenerated(ctx context.Context, ownerID uuid.UUID, invoiceNumber string, total float64) {
	n.enqueue(ctx, jobs.BillingEventPayload{
		OwnerID:       ownerID.String(),
		Event:         jobs.EventInvoiceGenerated,
		InvoiceNumber: invoiceNumber,
		Amount:        total,
	})
}
