package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/billing/invoices"
	"github.com/ledgerline/ledgerline/internal/billing/quotations"
	"github.com/ledgerline/ledgerline/internal/billing/recurring"
	"github.com/ledgerline/ledgerline/internal/shared"
)

type fakeInvoices struct {
	stats *invoices.Stats
	err   error
}

func (f *fakeInvoices) Stats(ctx context.Context, ownerID uuid.UUID) (*invoices.Stats, error) {
	return f.stats, f.err
}

type fakeQuotations struct {
	total     int
	gotStatus *quotations.QuotationStatus
	err       error
}

func (f *fakeQuotations) List(ctx context.Context, ownerID uuid.UUID, req quotations.ListQuotationsRequest) ([]quotations.Quotation, int, error) {
	f.gotStatus = req.Status
	return nil, f.total, f.err
}

type fakeSchedules struct {
	schedules []recurring.Schedule
	err       error
}

func (f *fakeSchedules) List(ctx context.Context, ownerID uuid.UUID, req recurring.ListSchedulesRequest) ([]recurring.Schedule, int, error) {
	page := f.schedules
	if req.PerPage > 0 && len(page) > req.PerPage {
		page = page[:req.PerPage]
	}
	return page, len(f.schedules), f.err
}

func (f *fakeSchedules) DueCount(ctx context.Context, ownerID uuid.UUID, today time.Time) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	count := 0
	for _, s := range f.schedules {
		if !s.NextRunDate.After(today) {
			count++
		}
	}
	return count, nil
}

func newSummaryRequest(t *testing.T) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	return req.WithContext(shared.ContextWithOwner(req.Context(), uuid.New()))
}

func TestSummaryAggregatesAllSources(t *testing.T) {
	inv := &fakeInvoices{stats: &invoices.Stats{
		TotalCount:   4,
		TotalRevenue: 1800,
		PaidTotal:    600,
		UnpaidTotal:  1200,
	}}
	quo := &fakeQuotations{total: 2}
	date := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	sched := &fakeSchedules{schedules: []recurring.Schedule{
		{NextRunDate: date(2026, 2, 1)},
		{NextRunDate: date(2026, 3, 1)},
		{NextRunDate: date(2026, 9, 1)},
	}}

	h := NewHandler(slog.Default(), inv, quo, sched)
	h.now = func() time.Time { return date(2026, 3, 1) }

	rec := httptest.NewRecorder()
	h.Summary(rec, newSummaryRequest(t))

	require.Equal(t, http.StatusOK, rec.Code)

	var summary Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.Equal(t, 4, summary.Invoices.TotalCount)
	require.InDelta(t, 1200.0, summary.Invoices.UnpaidTotal, 0.001)
	require.Equal(t, 2, summary.OpenQuotations)
	require.Equal(t, 3, summary.ActiveSchedules)
	require.Equal(t, 2, summary.PendingSchedules)

	require.NotNil(t, quo.gotStatus)
	require.Equal(t, quotations.StatusSent, *quo.gotStatus)
}

func TestSummaryCountsSchedulesBeyondOnePage(t *testing.T) {
	date := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	// More schedules than any listing page returns; the counters must not
	// be bounded by page size.
	sched := &fakeSchedules{}
	for i := 0; i < 250; i++ {
		next := date(2026, 9, 1)
		if i < 130 {
			next = date(2026, 2, 1)
		}
		sched.schedules = append(sched.schedules, recurring.Schedule{NextRunDate: next})
	}

	h := NewHandler(slog.Default(), &fakeInvoices{stats: &invoices.Stats{}}, &fakeQuotations{}, sched)
	h.now = func() time.Time { return date(2026, 3, 1) }

	rec := httptest.NewRecorder()
	h.Summary(rec, newSummaryRequest(t))
	require.Equal(t, http.StatusOK, rec.Code)

	var summary Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.Equal(t, 250, summary.ActiveSchedules)
	require.Equal(t, 130, summary.PendingSchedules)
}

func TestSummaryFailsWhenAnySourceFails(t *testing.T) {
	inv := &fakeInvoices{stats: &invoices.Stats{}}
	quo := &fakeQuotations{err: errors.New("boom")}
	sched := &fakeSchedules{}

	h := NewHandler(slog.Default(), inv, quo, sched)

	rec := httptest.NewRecorder()
	h.Summary(rec, newSummaryRequest(t))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
