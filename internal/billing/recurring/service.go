package recurring

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

// dueDays is added to the generation date to produce the invoice due date.
const dueDays = 30

// Notifier receives best-effort post-commit events from the generator.
type Notifier interface {
	InvoiceGenerated(ctx context.Context, ownerID uuid.UUID, invoiceNumber string, total float64)
}

// Service manages recurring schedules and turns due ones into invoices.
type Service struct {
	repo         Repository
	customerRepo customers.Repository
	activity     *shared.ActivityLogger
	notifier     Notifier
	logger       *slog.Logger
	now          func() time.Time
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

// Create registers a schedule. The generation cursor starts at StartDate and
// the schedule is born active.
func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, req CreateScheduleRequest) (*Schedule, error) {
	if _, err := s.customerRepo.Get(ctx, ownerID, req.CustomerID); err != nil {
		return nil, fmt.Errorf("verify customer: %w", err)
	}
	if !req.Frequency.Valid() {
		return nil, fmt.Errorf("%w: unknown frequency %q", httpx.ErrValidation, req.Frequency)
	}
	if req.EndDate != nil && req.EndDate.Before(req.StartDate) {
		return nil, fmt.Errorf("%w: end date precedes start date", httpx.ErrValidation)
	}
	for _, itemReq := range req.Items {
		if err := validateItem(itemReq); err != nil {
			return nil, err
		}
	}

	sched := Schedule{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		CustomerID:  req.CustomerID,
		Frequency:   req.Frequency,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		NextRunDate: req.StartDate,
		IsActive:    true,
		Notes:       req.Notes,
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.Create(ctx, sched); err != nil {
			return err
		}
		for _, itemReq := range req.Items {
			item := ScheduleItem{
				ID:          uuid.New(),
				ScheduleID:  sched.ID,
				ProductID:   itemReq.ProductID,
				Description: itemReq.Description,
				Quantity:    itemReq.Quantity,
				UnitPrice:   itemReq.UnitPrice,
				TaxRate:     itemReq.TaxRate,
			}
			if err := repo.InsertItem(ctx, item); err != nil {
				return fmt.Errorf("insert schedule item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.activity.Log(ctx, ownerID, "create", "recurring_schedule", sched.ID,
		fmt.Sprintf("Recurring schedule created (%s, first run %s)", sched.Frequency, sched.NextRunDate.Format("2006-01-02")))
	return s.repo.Get(ctx, ownerID, sched.ID)
}

func (s *Service) Get(ctx context.Context, ownerID, id uuid.UUID) (*Schedule, error) {
	return s.repo.Get(ctx, ownerID, id)
}

func (s *Service) List(ctx context.Context, ownerID uuid.UUID, req ListSchedulesRequest) ([]Schedule, int, error) {
	return s.repo.List(ctx, ownerID, req)
}

// DueCount reports how many of the owner's active schedules have a cursor at
// or before today.
func (s *Service) DueCount(ctx context.Context, ownerID uuid.UUID, today time.Time) (int, error) {
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	return s.repo.CountDue(ctx, ownerID, today)
}

// Update rewrites header fields and replaces the template items. The cursor
// and generation counters are untouched: changing a template only affects
// invoices generated after the change.
func (s *Service) Update(ctx context.Context, ownerID, id uuid.UUID, req UpdateScheduleRequest) (*Schedule, error) {
	if !req.Frequency.Valid() {
		return nil, fmt.Errorf("%w: unknown frequency %q", httpx.ErrValidation, req.Frequency)
	}
	if _, err := s.customerRepo.Get(ctx, ownerID, req.CustomerID); err != nil {
		return nil, fmt.Errorf("verify customer: %w", err)
	}
	for _, itemReq := range req.Items {
		if err := validateItem(itemReq); err != nil {
			return nil, err
		}
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		sched, err := repo.Get(ctx, ownerID, id)
		if err != nil {
			return err
		}
		if err := repo.UpdateHeader(ctx, sched.ID, req.CustomerID, req.Frequency, req.EndDate, req.Notes); err != nil {
			return fmt.Errorf("update schedule: %w", err)
		}
		if err := repo.DeleteItems(ctx, sched.ID); err != nil {
			return fmt.Errorf("clear schedule items: %w", err)
		}
		for _, itemReq := range req.Items {
			item := ScheduleItem{
				ID:          uuid.New(),
				ScheduleID:  sched.ID,
				ProductID:   itemReq.ProductID,
				Description: itemReq.Description,
				Quantity:    itemReq.Quantity,
				UnitPrice:   itemReq.UnitPrice,
				TaxRate:     itemReq.TaxRate,
			}
			if err := repo.InsertItem(ctx, item); err != nil {
				return fmt.Errorf("insert schedule item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.activity.Log(ctx, ownerID, "update", "recurring_schedule", id, "Recurring schedule updated")
	return s.repo.Get(ctx, ownerID, id)
}

// Toggle flips the active flag.
func (s *Service) Toggle(ctx context.Context, ownerID, id uuid.UUID) (*Schedule, error) {
	sched, err := s.repo.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetActive(ctx, id, !sched.IsActive); err != nil {
		return nil, fmt.Errorf("toggle schedule: %w", err)
	}
	state := "activated"
	if sched.IsActive {
		state = "paused"
	}
	s.activity.Log(ctx, ownerID, "update", "recurring_schedule", id,
		fmt.Sprintf("Recurring schedule %s", state))
	return s.repo.Get(ctx, ownerID, id)
}

func (s *Service) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	if _, err := s.repo.Get(ctx, ownerID, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, ownerID, id); err != nil {
		return err
	}
	s.activity.Log(ctx, ownerID, "delete", "recurring_schedule", id, "Recurring schedule deleted")
	return nil
}

// Generate produces one invoice from the schedule template and advances the
// cursor, all in one transaction. When the advanced cursor passes EndDate the
// schedule is deactivated in the same transaction; the invoice just generated
// survives. The boolean reports that deactivation.
func (s *Service) Generate(ctx context.Context, ownerID, id uuid.UUID) (*invoices.Invoice, bool, error) {
	var (
		inv         invoices.Invoice
		deactivated bool
	)
	today := s.now().UTC()
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		sched, err := repo.Get(ctx, ownerID, id)
		if err != nil {
			return err
		}
		if len(sched.Items) == 0 {
			return fmt.Errorf("%w: schedule has no template items", httpx.ErrValidation)
		}
		number, err := repo.NextInvoiceNumber(ctx, sched.OwnerID)
		if err != nil {
			return err
		}

		invoiceID := uuid.New()
		var items []invoices.InvoiceItem
		var subtotal, taxTotal float64
		for _, tmpl := range sched.Items {
			lineTotal, taxAmount := money.LineTotals(tmpl.Quantity, tmpl.UnitPrice, tmpl.TaxRate)
			items = append(items, invoices.InvoiceItem{
				ID:          uuid.New(),
				InvoiceID:   invoiceID,
				ProductID:   tmpl.ProductID,
				Description: tmpl.Description,
				Quantity:    tmpl.Quantity,
				UnitPrice:   tmpl.UnitPrice,
				TaxRate:     tmpl.TaxRate,
				LineTotal:   lineTotal,
				TaxAmount:   taxAmount,
			})
			subtotal += lineTotal
			taxTotal += taxAmount
		}
		subtotal = money.Round2(subtotal)
		taxTotal = money.Round2(taxTotal)

		dueDate := today.AddDate(0, 0, dueDays)
		note := "Auto-generated from recurring schedule"
		inv = invoices.Invoice{
			ID:          invoiceID,
			OwnerID:     sched.OwnerID,
			CustomerID:  sched.CustomerID,
			Number:      number,
			InvoiceDate: today,
			DueDate:     &dueDate,
			Status:      invoices.StatusDraft,
			Notes:       &note,
			Subtotal:    subtotal,
			TaxTotal:    taxTotal,
			Total:       money.Round2(subtotal + taxTotal),
			Items:       items,
		}
		if err := repo.InsertInvoice(ctx, inv); err != nil {
			return err
		}

		next := NextRunDate(sched.NextRunDate, sched.Frequency)
		if err := repo.AdvanceCursor(ctx, sched.ID, next, today); err != nil {
			return fmt.Errorf("advance schedule cursor: %w", err)
		}
		if sched.EndDate != nil && next.After(*sched.EndDate) {
			if err := repo.SetActive(ctx, sched.ID, false); err != nil {
				return fmt.Errorf("deactivate schedule: %w", err)
			}
			deactivated = true
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	s.activity.Log(ctx, ownerID, "generate", "invoice", inv.ID,
		fmt.Sprintf("Invoice %q generated from recurring schedule", inv.Number))
	if s.notifier != nil {
		s.notifier.InvoiceGenerated(ctx, ownerID, inv.Number, inv.Total)
	}
	return &inv, deactivated, nil
}

// ProcessDue sweeps every active schedule whose cursor is due. Each schedule
// is handled independently: a failure is logged and counted, and the sweep
// moves on to the next one. today is truncated to its date: cursors and end
// dates are midnight timestamps, and an end date equal to today has not
// passed yet, so the final generation still happens.
func (s *Service) ProcessDue(ctx context.Context, today time.Time) (*RunReport, error) {
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	due, err := s.repo.ListDue(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("list due schedules: %w", err)
	}

	report := &RunReport{}
	for _, sched := range due {
		report.Processed++
		if sched.EndDate != nil && sched.EndDate.Before(today) {
			if err := s.repo.SetActive(ctx, sched.ID, false); err != nil {
				s.logger.Error("deactivate expired schedule", "schedule_id", sched.ID, "error", err)
				report.Failed++
				continue
			}
			report.Deactivated++
			continue
		}
		_, deactivated, err := s.Generate(ctx, sched.OwnerID, sched.ID)
		if err != nil {
			s.logger.Error("generate recurring invoice", "schedule_id", sched.ID, "error", err)
			report.Failed++
			continue
		}
		report.Generated++
		if deactivated {
			report.Deactivated++
		}
	}
	return report, nil
}
