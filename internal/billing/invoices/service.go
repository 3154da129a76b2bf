package invoices

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ledgerline/ledgerline/internal/billing/customers"
	"github.com/ledgerline/ledgerline/internal/billing/money"
	"github.com/ledgerline/ledgerline/internal/platform/httpx"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// Notifier receives best-effort post-commit events. Implementations must
// never return control-flow errors into the billing path.
type Notifier interface {
	PaymentReceived(ctx context.Context, ownerID uuid.UUID, invoiceNumber string, amount, remaining float64)
	InvoicePaid(ctx context.Context, ownerID uuid.UUID, invoiceNumber string)
}

// Service implements invoice lifecycle, aggregation and payment
// reconciliation.
type Service struct {
	repo         Repository
	customerRepo customers.Repository
	activity     *shared.ActivityLogger
	notifier     Notifier
	logger       *slog.Logger
}

// NewService builds a Service. notifier may be nil.
func NewService(repo Repository, customerRepo customers.Repository, activity *shared.ActivityLogger, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:         repo,
		customerRepo: customerRepo,
		activity:     activity,
		notifier:     notifier,
		logger:       logger,
	}
}

func validateItem(req CreateItemRequest) error {
	if req.Quantity < 0 {
		return fmt.Errorf("%w: quantity must not be negative", httpx.ErrValidation)
	}
	if req.UnitPrice < 0 {
		return fmt.Errorf("%w: unit price must not be negative", httpx.ErrValidation)
	}
	if req.TaxRate < 0 || req.TaxRate > 100 {
		return fmt.Errorf("%w: tax rate must be between 0 and 100", httpx.ErrValidation)
	}
	return nil
}

func buildItem(invoiceID uuid.UUID, req CreateItemRequest) InvoiceItem {
	lineTotal, taxAmount := money.LineTotals(req.Quantity, req.UnitPrice, req.TaxRate)
	return InvoiceItem{
		ID:          uuid.New(),
		InvoiceID:   invoiceID,
		ProductID:   req.ProductID,
		Description: req.Description,
		Quantity:    req.Quantity,
		UnitPrice:   req.UnitPrice,
		TaxRate:     req.TaxRate,
		LineTotal:   lineTotal,
		TaxAmount:   taxAmount,
	}
}

// recalcTotals derives the document totals from the full current item set.
// There is intentionally no incremental path: every structural change
// recomputes from scratch so rounding drift cannot accumulate.
func recalcTotals(items []InvoiceItem) (subtotal, taxTotal, total float64) {
	for _, it := range items {
		subtotal += it.LineTotal
		taxTotal += it.TaxAmount
	}
	subtotal = money.Round2(subtotal)
	taxTotal = money.Round2(taxTotal)
	return subtotal, taxTotal, money.Round2(subtotal + taxTotal)
}

// Create persists header, items and computed totals in one transaction.
func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, req CreateInvoiceRequest) (*Invoice, error) {
	customer, err := s.customerRepo.Get(ctx, ownerID, req.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("verify customer: %w", err)
	}

	status := req.Status
	if status == "" {
		status = StatusDraft
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", httpx.ErrValidation, req.Status)
	}
	for _, itemReq := range req.Items {
		if err := validateItem(itemReq); err != nil {
			return nil, err
		}
	}

	invoiceID := uuid.New()
	items := make([]InvoiceItem, 0, len(req.Items))
	for _, itemReq := range req.Items {
		items = append(items, buildItem(invoiceID, itemReq))
	}
	subtotal, taxTotal, total := recalcTotals(items)

	inv := Invoice{
		ID:          invoiceID,
		OwnerID:     ownerID,
		CustomerID:  req.CustomerID,
		InvoiceDate: req.InvoiceDate,
		DueDate:     req.DueDate,
		Status:      status,
		Notes:       req.Notes,
		Subtotal:    subtotal,
		TaxTotal:    taxTotal,
		Total:       total,
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		number, err := repo.NextNumber(ctx, ownerID)
		if err != nil {
			return err
		}
		inv.Number = number
		if err := repo.Create(ctx, inv); err != nil {
			return err
		}
		for _, item := range items {
			if err := repo.InsertItem(ctx, item); err != nil {
				return fmt.Errorf("insert invoice item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.activity.Log(ctx, ownerID, "create", "invoice", inv.ID,
		fmt.Sprintf("Invoice %q created (%s)", inv.Number, customer.CompanyName))
	return s.repo.Get(ctx, ownerID, inv.ID)
}

func (s *Service) Get(ctx context.Context, ownerID, id uuid.UUID) (*Invoice, error) {
	return s.repo.Get(ctx, ownerID, id)
}

func (s *Service) List(ctx context.Context, ownerID uuid.UUID, req ListInvoicesRequest) ([]Invoice, int, error) {
	return s.repo.List(ctx, ownerID, req)
}

// UpdateHeader edits customer, dates and notes. Closed documents (paid or
// cancelled) reject edits as a state conflict, not silently.
func (s *Service) UpdateHeader(ctx context.Context, ownerID, id uuid.UUID, req UpdateInvoiceRequest) (*Invoice, error) {
	if _, err := s.customerRepo.Get(ctx, ownerID, req.CustomerID); err != nil {
		return nil, fmt.Errorf("verify customer: %w", err)
	}
	var number string
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		inv, err := repo.Get(ctx, ownerID, id)
		if err != nil {
			return err
		}
		if !inv.Status.Editable() {
			return fmt.Errorf("%w: only draft and sent invoices can be edited", httpx.ErrStateConflict)
		}
		number = inv.Number
		if err := repo.UpdateHeader(ctx, id, req.CustomerID, req.InvoiceDate, req.DueDate, req.Notes); err != nil {
			return fmt.Errorf("update invoice: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.activity.Log(ctx, ownerID, "update", "invoice", id,
		fmt.Sprintf("Invoice %q updated", number))
	return s.repo.Get(ctx, ownerID, id)
}

// UpdateStatus applies the explicit transition policy. The matrix is
// permissive for all pairs today; TransitionAllowed keeps that a stated
// decision rather than a missing check.
func (s *Service) UpdateStatus(ctx context.Context, ownerID, id uuid.UUID, newStatus InvoiceStatus) (*Invoice, error) {
	if !newStatus.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", httpx.ErrValidation, newStatus)
	}
	var number string
	var oldStatus InvoiceStatus
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		inv, err := repo.Get(ctx, ownerID, id)
		if err != nil {
			return err
		}
		if !TransitionAllowed(inv.Status, newStatus) {
			return fmt.Errorf("%w: cannot change status from %s to %s", httpx.ErrStateConflict, inv.Status, newStatus)
		}
		number, oldStatus = inv.Number, inv.Status
		if err := repo.UpdateStatus(ctx, id, newStatus); err != nil {
			return fmt.Errorf("update invoice status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.activity.Log(ctx, ownerID, "status_change", "invoice", id,
		fmt.Sprintf("Invoice %q status changed %q -> %q", number, oldStatus.Label(), newStatus.Label()))
	return s.repo.Get(ctx, ownerID, id)
}

// AddItem appends a line and recomputes the totals in the same transaction.
func (s *Service) AddItem(ctx context.Context, ownerID, id uuid.UUID, req CreateItemRequest) (*Invoice, error) {
	if err := validateItem(req); err != nil {
		return nil, err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		inv, err := repo.Get(ctx, ownerID, id)
		if err != nil {
			return err
		}
		if err := repo.InsertItem(ctx, buildItem(inv.ID, req)); err != nil {
			return fmt.Errorf("insert invoice item: %w", err)
		}
		return s.refreshTotals(ctx, repo, inv.ID)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, ownerID, id)
}

// RemoveItem deletes a line and recomputes the totals in the same transaction.
func (s *Service) RemoveItem(ctx context.Context, ownerID, id, itemID uuid.UUID) (*Invoice, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		inv, err := repo.Get(ctx, ownerID, id)
		if err != nil {
			return err
		}
		if err := repo.DeleteItem(ctx, inv.ID, itemID); err != nil {
			return fmt.Errorf("delete invoice item: %w", err)
		}
		return s.refreshTotals(ctx, repo, inv.ID)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, ownerID, id)
}

func (s *Service) refreshTotals(ctx context.Context, repo Repository, invoiceID uuid.UUID) error {
	items, err := repo.ListItems(ctx, invoiceID)
	if err != nil {
		return err
	}
	subtotal, taxTotal, total := recalcTotals(items)
	return repo.UpdateTotals(ctx, invoiceID, subtotal, taxTotal, total)
}

// Delete removes the invoice; items and payments cascade.
func (s *Service) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	inv, err := s.repo.Get(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, ownerID, id); err != nil {
		return err
	}
	s.activity.Log(ctx, ownerID, "delete", "invoice", id,
		fmt.Sprintf("Invoice %q deleted", inv.Number))
	return nil
}

// ApplyPayment records a payment and re-evaluates the invoice status in one
// transaction. Overpayment is rejected with the maximum permissible amount.
func (s *Service) ApplyPayment(ctx context.Context, ownerID, invoiceID uuid.UUID, req CreatePaymentRequest) (*Payment, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: payment amount must be positive", httpx.ErrValidation)
	}

	payment := Payment{
		ID:          uuid.New(),
		InvoiceID:   invoiceID,
		Amount:      req.Amount,
		PaymentDate: req.PaymentDate,
		Method:      req.Method,
		Notes:       req.Notes,
	}
	var (
		number     string
		remaining  float64
		paidInFull bool
	)

	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		inv, err := repo.Get(ctx, ownerID, invoiceID)
		if err != nil {
			return err
		}
		if inv.Status == StatusCancelled {
			return fmt.Errorf("%w: cancelled invoices cannot accept payments", httpx.ErrStateConflict)
		}
		newPaid := money.Round2(inv.PaidAmount + req.Amount)
		if newPaid > inv.Total {
			maxAllowed := money.Round2(inv.Total - inv.PaidAmount)
			return fmt.Errorf("%w: payment exceeds remaining balance, maximum allowed %.2f", httpx.ErrStateConflict, maxAllowed)
		}
		if err := repo.InsertPayment(ctx, payment); err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}
		number = inv.Number
		remaining = money.Round2(inv.Total - newPaid)
		if newPaid >= inv.Total && inv.Status != StatusPaid {
			if err := repo.UpdateStatus(ctx, invoiceID, StatusPaid); err != nil {
				return fmt.Errorf("mark invoice paid: %w", err)
			}
			paidInFull = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.activity.Log(ctx, ownerID, "create", "payment", payment.ID,
		fmt.Sprintf("Payment of %.2f recorded for invoice %q", payment.Amount, number))
	if s.notifier != nil {
		s.notifier.PaymentReceived(ctx, ownerID, number, payment.Amount, remaining)
		if paidInFull {
			s.notifier.InvoicePaid(ctx, ownerID, number)
		}
	}
	return &payment, nil
}

// RemovePayment deletes a payment and demotes a fully paid invoice back to
// sent when the balance reopens. Removal never demotes to draft.
func (s *Service) RemovePayment(ctx context.Context, ownerID, invoiceID, paymentID uuid.UUID) error {
	var number string
	var amount float64
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		inv, err := repo.Get(ctx, ownerID, invoiceID)
		if err != nil {
			return err
		}
		p, err := repo.GetPayment(ctx, invoiceID, paymentID)
		if err != nil {
			return err
		}
		if err := repo.DeletePayment(ctx, invoiceID, paymentID); err != nil {
			return err
		}
		number = inv.Number
		amount = p.Amount
		newPaid := money.Round2(inv.PaidAmount - p.Amount)
		if inv.Status == StatusPaid && newPaid < inv.Total {
			if err := repo.UpdateStatus(ctx, invoiceID, StatusSent); err != nil {
				return fmt.Errorf("demote invoice: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.activity.Log(ctx, ownerID, "delete", "payment", paymentID,
		fmt.Sprintf("Payment of %.2f removed from invoice %q", amount, number))
	return nil
}

// ListPayments returns the invoice's payments, newest first.
func (s *Service) ListPayments(ctx context.Context, ownerID, invoiceID uuid.UUID) ([]Payment, error) {
	if _, err := s.repo.Get(ctx, ownerID, invoiceID); err != nil {
		return nil, err
	}
	return s.repo.ListPayments(ctx, invoiceID)
}

// Stats summarises the owner's invoices.
func (s *Service) Stats(ctx context.Context, ownerID uuid.UUID) (*Stats, error) {
	return s.repo.Stats(ctx, ownerID)
}
