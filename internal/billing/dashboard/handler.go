package dashboard

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ledgerline/ledgerline/internal/billing/invoices"
	"github.com/ledgerline/ledgerline/internal/billing/quotations"
	"github.com/ledgerline/ledgerline/internal/billing/recurring"
	"github.com/ledgerline/ledgerline/internal/platform/httpx"
	"github.com/ledgerline/ledgerline/internal/shared"
)

const requestTimeout = 2 * time.Second

// InvoiceSource provides aggregate invoice figures for the summary.
type InvoiceSource interface {
	Stats(ctx context.Context, ownerID uuid.UUID) (*invoices.Stats, error)
}

// QuotationSource provides quotation listings for the summary counters.
type QuotationSource interface {
	List(ctx context.Context, ownerID uuid.UUID, req quotations.ListQuotationsRequest) ([]quotations.Quotation, int, error)
}

// ScheduleSource provides recurring schedule counters for the summary.
type ScheduleSource interface {
	List(ctx context.Context, ownerID uuid.UUID, req recurring.ListSchedulesRequest) ([]recurring.Schedule, int, error)
	DueCount(ctx context.Context, ownerID uuid.UUID, today time.Time) (int, error)
}

// Summary is the aggregated back-office overview returned by GET /dashboard.
type Summary struct {
	Invoices         *invoices.Stats `json:"invoices"`
	OpenQuotations   int             `json:"open_quotations"`
	ActiveSchedules  int             `json:"active_schedules"`
	PendingSchedules int             `json:"pending_schedules"`
}

// Handler serves the combined billing overview.
type Handler struct {
	logger     *slog.Logger
	invoices   InvoiceSource
	quotations QuotationSource
	schedules  ScheduleSource
	now        func() time.Time
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, inv InvoiceSource, quo QuotationSource, sched ScheduleSource) *Handler {
	return &Handler{
		logger:     logger,
		invoices:   inv,
		quotations: quo,
		schedules:  sched,
		now:        time.Now,
	}
}

// Summary fans out to the three billing aggregates concurrently. A single
// failing source fails the whole request so the numbers never disagree with
// each other.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	owner, _ := shared.OwnerFromContext(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var summary Summary
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		stats, err := h.invoices.Stats(ctx, owner)
		if err != nil {
			return err
		}
		summary.Invoices = stats
		return nil
	})

	g.Go(func() error {
		sent := quotations.StatusSent
		_, total, err := h.quotations.List(ctx, owner, quotations.ListQuotationsRequest{Status: &sent, PerPage: 1})
		if err != nil {
			return err
		}
		summary.OpenQuotations = total
		return nil
	})

	g.Go(func() error {
		active := true
		_, total, err := h.schedules.List(ctx, owner, recurring.ListSchedulesRequest{Active: &active, PerPage: 1})
		if err != nil {
			return err
		}
		summary.ActiveSchedules = total
		pending, err := h.schedules.DueCount(ctx, owner, h.now().UTC())
		if err != nil {
			return err
		}
		summary.PendingSchedules = pending
		return nil
	})

	if err := g.Wait(); err != nil {
		h.logger.Error("dashboard summary", "error", err)
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, summary)
}
