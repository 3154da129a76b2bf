package quotations

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/ledgerline/internal/billing/customers"
	"github.com/ledgerline/ledgerline/internal/billing/invoices"
	"github.com/ledgerline/ledgerline/internal/billing/money"
	"github.com/ledgerline/ledgerline/internal/platform/httpx"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// Service implements the quotation lifecycle and the one-way conversion
// into an invoice.
type Service struct {
	repo         Repository
	customerRepo customers.Repository
	activity     *shared.ActivityLogger
	logger       *slog.Logger
	now          func() time.Time
}

// NewService builds a Service.
func NewService(repo Repository, customerRepo customers.Repository, activity *shared.ActivityLogger, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:         repo,
		customerRepo: customerRepo,
		activity:     activity,
		logger:       logger,
		now:          time.Now,
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

func buildItem(quotationID uuid.UUID, req CreateItemRequest) QuotationItem {
	lineTotal, taxAmount := money.LineTotals(req.Quantity, req.UnitPrice, req.TaxRate)
	return QuotationItem{
		ID:          uuid.New(),
		QuotationID: quotationID,
		ProductID:   req.ProductID,
		Description: req.Description,
		Quantity:    req.Quantity,
		UnitPrice:   req.UnitPrice,
		TaxRate:     req.TaxRate,
		LineTotal:   lineTotal,
		TaxAmount:   taxAmount,
	}
}

func recalcTotals(items []QuotationItem) (subtotal, taxTotal, total float64) {
	for _, it := range items {
		subtotal += it.LineTotal
		taxTotal += it.TaxAmount
	}
	subtotal = money.Round2(subtotal)
	taxTotal = money.Round2(taxTotal)
	return subtotal, taxTotal, money.Round2(subtotal + taxTotal)
}

// Create persists header, items and computed totals in one transaction. The
// number is scoped to the owner and the current calendar year.
func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, req CreateQuotationRequest) (*Quotation, error) {
	customer, err := s.customerRepo.Get(ctx, ownerID, req.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("verify customer: %w", err)
	}

	status := req.Status
	if status == "" {
		status = StatusDraft
	}
	if status == StatusConverted {
		return nil, fmt.Errorf("%w: new quotations cannot start converted", httpx.ErrValidation)
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", httpx.ErrValidation, req.Status)
	}
	for _, itemReq := range req.Items {
		if err := validateItem(itemReq); err != nil {
			return nil, err
		}
	}

	quotationID := uuid.New()
	items := make([]QuotationItem, 0, len(req.Items))
	for _, itemReq := range req.Items {
		items = append(items, buildItem(quotationID, itemReq))
	}
	subtotal, taxTotal, total := recalcTotals(items)

	q := Quotation{
		ID:            quotationID,
		OwnerID:       ownerID,
		CustomerID:    req.CustomerID,
		QuotationDate: req.QuotationDate,
		ValidUntil:    req.ValidUntil,
		Status:        status,
		Notes:         req.Notes,
		Subtotal:      subtotal,
		TaxTotal:      taxTotal,
		Total:         total,
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		number, err := repo.NextNumber(ctx, ownerID, s.now().UTC().Year())
		if err != nil {
			return err
		}
		q.Number = number
		if err := repo.Create(ctx, q); err != nil {
			return err
		}
		for _, item := range items {
			if err := repo.InsertItem(ctx, item); err != nil {
				return fmt.Errorf("insert quotation item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.activity.Log(ctx, ownerID, "create", "quotation", q.ID,
		fmt.Sprintf("Quotation %q created (%s)", q.Number, customer.CompanyName))
	return s.repo.Get(ctx, ownerID, q.ID)
}

func (s *Service) Get(ctx context.Context, ownerID, id uuid.UUID) (*Quotation, error) {
	return s.repo.Get(ctx, ownerID, id)
}

func (s *Service) List(ctx context.Context, ownerID uuid.UUID, req ListQuotationsRequest) ([]Quotation, int, error) {
	return s.repo.List(ctx, ownerID, req)
}

// NextNumber previews the number the next quotation would receive without
// consuming it.
func (s *Service) NextNumber(ctx context.Context, ownerID uuid.UUID) (string, error) {
	return s.repo.PeekNumber(ctx, ownerID, s.now().UTC().Year())
}

// UpdateHeader edits customer, dates and notes. Converted quotations are
// frozen.
func (s *Service) UpdateHeader(ctx context.Context, ownerID, id uuid.UUID, req UpdateQuotationRequest) (*Quotation, error) {
	if _, err := s.customerRepo.Get(ctx, ownerID, req.CustomerID); err != nil {
		return nil, fmt.Errorf("verify customer: %w", err)
	}
	var number string
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		q, err := repo.Get(ctx, ownerID, id)
		if err != nil {
			return err
		}
		if q.Converted() {
			return fmt.Errorf("%w: converted quotations cannot be edited", httpx.ErrStateConflict)
		}
		number = q.Number
		if err := repo.UpdateHeader(ctx, id, req.CustomerID, req.QuotationDate, req.ValidUntil, req.Notes); err != nil {
			return fmt.Errorf("update quotation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.activity.Log(ctx, ownerID, "update", "quotation", id,
		fmt.Sprintf("Quotation %q updated", number))
	return s.repo.Get(ctx, ownerID, id)
}

// UpdateStatus changes the quotation status. Converted is never a valid
// target here: only Convert writes that state, so quotation and invoice can
// not drift apart. Converted quotations reject any further change.
func (s *Service) UpdateStatus(ctx context.Context, ownerID, id uuid.UUID, newStatus QuotationStatus) (*Quotation, error) {
	if newStatus == StatusConverted {
		return nil, fmt.Errorf("%w: status converted is set by conversion only", httpx.ErrValidation)
	}
	if !newStatus.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", httpx.ErrValidation, newStatus)
	}
	var number string
	var oldStatus QuotationStatus
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		q, err := repo.Get(ctx, ownerID, id)
		if err != nil {
			return err
		}
		if q.Converted() {
			return fmt.Errorf("%w: converted quotations cannot change status", httpx.ErrStateConflict)
		}
		number, oldStatus = q.Number, q.Status
		if err := repo.UpdateStatus(ctx, id, newStatus); err != nil {
			return fmt.Errorf("update quotation status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.activity.Log(ctx, ownerID, "status_change", "quotation", id,
		fmt.Sprintf("Quotation %q status changed %q -> %q", number, oldStatus.Label(), newStatus.Label()))
	return s.repo.Get(ctx, ownerID, id)
}

// AddItem appends a line and recomputes the totals in the same transaction.
func (s *Service) AddItem(ctx context.Context, ownerID, id uuid.UUID, req CreateItemRequest) (*Quotation, error) {
	if err := validateItem(req); err != nil {
		return nil, err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		q, err := repo.Get(ctx, ownerID, id)
		if err != nil {
			return err
		}
		if q.Converted() {
			return fmt.Errorf("%w: converted quotations cannot be edited", httpx.ErrStateConflict)
		}
		if err := repo.InsertItem(ctx, buildItem(q.ID, req)); err != nil {
			return fmt.Errorf("insert quotation item: %w", err)
		}
		return s.refreshTotals(ctx, repo, q.ID)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, ownerID, id)
}

// RemoveItem deletes a line and recomputes the totals in the same transaction.
func (s *Service) RemoveItem(ctx context.Context, ownerID, id, itemID uuid.UUID) (*Quotation, error) {
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		q, err := repo.Get(ctx, ownerID, id)
		if err != nil {
			return err
		}
		if q.Converted() {
			return fmt.Errorf("%w: converted quotations cannot be edited", httpx.ErrStateConflict)
		}
		if err := repo.DeleteItem(ctx, q.ID, itemID); err != nil {
			return fmt.Errorf("delete quotation item: %w", err)
		}
		return s.refreshTotals(ctx, repo, q.ID)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, ownerID, id)
}

func (s *Service) refreshTotals(ctx context.Context, repo Repository, quotationID uuid.UUID) error {
	items, err := repo.ListItems(ctx, quotationID)
	if err != nil {
		return err
	}
	subtotal, taxTotal, total := recalcTotals(items)
	return repo.UpdateTotals(ctx, quotationID, subtotal, taxTotal, total)
}

// Delete removes the quotation; converted ones are kept as history.
func (s *Service) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	var number string
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		q, err := repo.Get(ctx, ownerID, id)
		if err != nil {
			return err
		}
		if q.Converted() {
			return fmt.Errorf("%w: converted quotations cannot be deleted", httpx.ErrStateConflict)
		}
		number = q.Number
		return repo.Delete(ctx, ownerID, id)
	})
	if err != nil {
		return err
	}
	s.activity.Log(ctx, ownerID, "delete", "quotation", id,
		fmt.Sprintf("Quotation %q deleted", number))
	return nil
}

// Convert makes a draft invoice out of the quotation, once. Line amounts and
// document totals move over verbatim so the invoice shows exactly the
// figures the customer accepted, regardless of later catalog price changes.
func (s *Service) Convert(ctx context.Context, ownerID, id uuid.UUID) (*invoices.Invoice, error) {
	var (
		inv             invoices.Invoice
		quotationNumber string
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		q, err := repo.Get(ctx, ownerID, id)
		if err != nil {
			return err
		}
		if q.Converted() {
			return fmt.Errorf("%w: quotation %s is already converted", httpx.ErrStateConflict, q.Number)
		}
		if len(q.Items) == 0 {
			return fmt.Errorf("%w: quotation has no items to convert", httpx.ErrValidation)
		}
		number, err := repo.NextInvoiceNumber(ctx, ownerID)
		if err != nil {
			return err
		}
		quotationNumber = q.Number
		inv = invoices.Invoice{
			ID:          uuid.New(),
			OwnerID:     ownerID,
			CustomerID:  q.CustomerID,
			Number:      number,
			InvoiceDate: s.now().UTC(),
			Status:      invoices.StatusDraft,
			Notes:       q.Notes,
			Subtotal:    q.Subtotal,
			TaxTotal:    q.TaxTotal,
			Total:       q.Total,
		}
		for _, item := range q.Items {
			inv.Items = append(inv.Items, invoices.InvoiceItem{
				ID:          uuid.New(),
				InvoiceID:   inv.ID,
				ProductID:   item.ProductID,
				Description: item.Description,
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPrice,
				TaxRate:     item.TaxRate,
				LineTotal:   item.LineTotal,
				TaxAmount:   item.TaxAmount,
			})
		}
		return repo.ConvertToInvoice(ctx, q.ID, inv)
	})
	if err != nil {
		return nil, err
	}

	s.activity.Log(ctx, ownerID, "convert", "quotation", id,
		fmt.Sprintf("Quotation %q converted to invoice %q", quotationNumber, inv.Number))
	s.activity.Log(ctx, ownerID, "create", "invoice", inv.ID,
		fmt.Sprintf("Invoice %q created from quotation %q", inv.Number, quotationNumber))
	return &inv, nil
}
