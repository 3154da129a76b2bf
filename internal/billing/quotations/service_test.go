package quotations

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/billing/customers"
	"github.com/ledgerline/ledgerline/internal/billing/invoices"
	"github.com/ledgerline/ledgerline/internal/platform/httpx"
	"github.com/ledgerline/ledgerline/internal/shared"
)

type memoryRepo struct {
	quotations map[uuid.UUID]*Quotation
	items      map[uuid.UUID][]QuotationItem
	counters   map[string]int64
	invoices   map[uuid.UUID]*invoices.Invoice

	// beforeTx runs at transaction start, standing in for a concurrent
	// writer that commits between a caller's read and its transaction.
	beforeTx func()
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		quotations: make(map[uuid.UUID]*Quotation),
		items:      make(map[uuid.UUID][]QuotationItem),
		counters:   make(map[string]int64),
		invoices:   make(map[uuid.UUID]*invoices.Invoice),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	if r.beforeTx != nil {
		r.beforeTx()
	}
	return fn(ctx, r)
}

func (r *memoryRepo) NextNumber(_ context.Context, ownerID uuid.UUID, year int) (string, error) {
	key := fmt.Sprintf("%s/quotation:%d", ownerID, year)
	r.counters[key]++
	return fmt.Sprintf("QUO-%d-%04d", year, r.counters[key]), nil
}

func (r *memoryRepo) PeekNumber(_ context.Context, ownerID uuid.UUID, year int) (string, error) {
	key := fmt.Sprintf("%s/quotation:%d", ownerID, year)
	return fmt.Sprintf("QUO-%d-%04d", year, r.counters[key]+1), nil
}

func (r *memoryRepo) Create(_ context.Context, q Quotation) error {
	now := time.Now()
	q.CreatedAt = now
	q.UpdatedAt = now
	r.quotations[q.ID] = &q
	return nil
}

func (r *memoryRepo) Get(_ context.Context, ownerID, id uuid.UUID) (*Quotation, error) {
	q, ok := r.quotations[id]
	if !ok || q.OwnerID != ownerID {
		return nil, httpx.ErrNotFound
	}
	out := *q
	out.Items = append([]QuotationItem(nil), r.items[id]...)
	return &out, nil
}

func (r *memoryRepo) List(_ context.Context, ownerID uuid.UUID, _ ListQuotationsRequest) ([]Quotation, int, error) {
	var result []Quotation
	for id, q := range r.quotations {
		if q.OwnerID != ownerID {
			continue
		}
		out := *q
		out.Items = r.items[id]
		result = append(result, out)
	}
	return result, len(result), nil
}

func (r *memoryRepo) UpdateHeader(_ context.Context, id uuid.UUID, customerID uuid.UUID, quotationDate time.Time, validUntil *time.Time, notes *string) error {
	q := r.quotations[id]
	q.CustomerID = customerID
	q.QuotationDate = quotationDate
	q.ValidUntil = validUntil
	q.Notes = notes
	return nil
}

func (r *memoryRepo) UpdateStatus(_ context.Context, id uuid.UUID, status QuotationStatus) error {
	r.quotations[id].Status = status
	return nil
}

func (r *memoryRepo) UpdateTotals(_ context.Context, id uuid.UUID, subtotal, taxTotal, total float64) error {
	q := r.quotations[id]
	q.Subtotal = subtotal
	q.TaxTotal = taxTotal
	q.Total = total
	return nil
}

func (r *memoryRepo) Delete(_ context.Context, ownerID, id uuid.UUID) error {
	q, ok := r.quotations[id]
	if !ok || q.OwnerID != ownerID {
		return httpx.ErrNotFound
	}
	delete(r.quotations, id)
	delete(r.items, id)
	return nil
}

func (r *memoryRepo) InsertItem(_ context.Context, item QuotationItem) error {
	r.items[item.QuotationID] = append(r.items[item.QuotationID], item)
	return nil
}

func (r *memoryRepo) ListItems(_ context.Context, quotationID uuid.UUID) ([]QuotationItem, error) {
	return r.items[quotationID], nil
}

func (r *memoryRepo) DeleteItem(_ context.Context, quotationID, itemID uuid.UUID) error {
	items := r.items[quotationID]
	for i, it := range items {
		if it.ID == itemID {
			r.items[quotationID] = append(items[:i], items[i+1:]...)
			return nil
		}
	}
	return httpx.ErrNotFound
}

func (r *memoryRepo) NextInvoiceNumber(_ context.Context, ownerID uuid.UUID) (string, error) {
	key := fmt.Sprintf("%s/invoice", ownerID)
	r.counters[key]++
	return fmt.Sprintf("INV-%04d", r.counters[key]), nil
}

func (r *memoryRepo) ConvertToInvoice(_ context.Context, quotationID uuid.UUID, inv invoices.Invoice) error {
	stored := inv
	r.invoices[inv.ID] = &stored
	q := r.quotations[quotationID]
	q.Status = StatusConverted
	invoiceID := inv.ID
	q.ConvertedInvoiceID = &invoiceID
	return nil
}

type memoryCustomers struct {
	customers map[uuid.UUID]*customers.Customer
}

func (r *memoryCustomers) Get(_ context.Context, ownerID, id uuid.UUID) (*customers.Customer, error) {
	c, ok := r.customers[id]
	if !ok || c.OwnerID != ownerID {
		return nil, httpx.ErrNotFound
	}
	return c, nil
}

func newTestService(t *testing.T) (*Service, *memoryRepo, uuid.UUID, uuid.UUID) {
	t.Helper()
	repo := newMemoryRepo()
	owner := uuid.New()
	customerID := uuid.New()
	custRepo := &memoryCustomers{customers: map[uuid.UUID]*customers.Customer{
		customerID: {ID: customerID, OwnerID: owner, CompanyName: "Acme Carpentry"},
	}}
	svc := NewService(repo, custRepo, shared.NewActivityLogger(nil, nil), nil)
	svc.now = func() time.Time { return time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC) }
	return svc, repo, owner, customerID
}

func createQuotation(t *testing.T, svc *Service, owner, customerID uuid.UUID, items ...CreateItemRequest) *Quotation {
	t.Helper()
	q, err := svc.Create(context.Background(), owner, CreateQuotationRequest{
		CustomerID:    customerID,
		QuotationDate: time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC),
		Items:         items,
	})
	require.NoError(t, err)
	return q
}

func TestCreateAssignsYearScopedNumbers(t *testing.T) {
	svc, _, owner, customerID := newTestService(t)

	first := createQuotation(t, svc, owner, customerID,
		CreateItemRequest{Description: "Cabinet", Quantity: 5, UnitPrice: 3000, TaxRate: 20})
	require.Equal(t, "QUO-2026-0001", first.Number)
	require.Equal(t, 15000.0, first.Subtotal)
	require.Equal(t, 3000.0, first.TaxTotal)
	require.Equal(t, 18000.0, first.Total)

	second := createQuotation(t, svc, owner, customerID,
		CreateItemRequest{Description: "Desk", Quantity: 1, UnitPrice: 500, TaxRate: 20})
	require.Equal(t, "QUO-2026-0002", second.Number)
}

func TestNextNumberPreviewDoesNotConsume(t *testing.T) {
	svc, _, owner, customerID := newTestService(t)
	ctx := context.Background()

	preview, err := svc.NextNumber(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, "QUO-2026-0001", preview)

	again, err := svc.NextNumber(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, preview, again)

	q := createQuotation(t, svc, owner, customerID,
		CreateItemRequest{Description: "Desk", Quantity: 1, UnitPrice: 500, TaxRate: 20})
	require.Equal(t, preview, q.Number)
}

func TestConvertCopiesFiguresVerbatim(t *testing.T) {
	svc, repo, owner, customerID := newTestService(t)
	ctx := context.Background()

	q := createQuotation(t, svc, owner, customerID,
		CreateItemRequest{Description: "Cabinet", Quantity: 3, UnitPrice: 33.33, TaxRate: 18})

	// Simulate a later catalog price change: stored line figures stay as the
	// customer saw them and conversion must not recompute from unit price.
	repo.items[q.ID][0].UnitPrice = 50

	inv, err := svc.Convert(ctx, owner, q.ID)
	require.NoError(t, err)
	require.Equal(t, "INV-0001", inv.Number)
	require.Equal(t, invoices.StatusDraft, inv.Status)
	require.Equal(t, q.CustomerID, inv.CustomerID)
	require.Equal(t, q.Subtotal, inv.Subtotal)
	require.Equal(t, q.TaxTotal, inv.TaxTotal)
	require.Equal(t, q.Total, inv.Total)
	require.Len(t, inv.Items, 1)
	require.Equal(t, 99.99, inv.Items[0].LineTotal)
	require.Equal(t, 18.00, inv.Items[0].TaxAmount)

	converted, err := svc.Get(ctx, owner, q.ID)
	require.NoError(t, err)
	require.Equal(t, StatusConverted, converted.Status)
	require.NotNil(t, converted.ConvertedInvoiceID)
	require.Equal(t, inv.ID, *converted.ConvertedInvoiceID)
}

func TestConvertTwiceRejected(t *testing.T) {
	svc, repo, owner, customerID := newTestService(t)
	ctx := context.Background()

	q := createQuotation(t, svc, owner, customerID,
		CreateItemRequest{Description: "Desk", Quantity: 1, UnitPrice: 500, TaxRate: 20})

	_, err := svc.Convert(ctx, owner, q.ID)
	require.NoError(t, err)

	_, err = svc.Convert(ctx, owner, q.ID)
	require.ErrorIs(t, err, httpx.ErrStateConflict)
	require.Len(t, repo.invoices, 1)
}

func TestConvertEmptyQuotationRejected(t *testing.T) {
	svc, _, owner, customerID := newTestService(t)
	ctx := context.Background()

	q := createQuotation(t, svc, owner, customerID,
		CreateItemRequest{Description: "Desk", Quantity: 1, UnitPrice: 500, TaxRate: 20})
	_, err := svc.RemoveItem(ctx, owner, q.ID, q.Items[0].ID)
	require.NoError(t, err)

	_, err = svc.Convert(ctx, owner, q.ID)
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestConvertedStatusNotSettableDirectly(t *testing.T) {
	svc, _, owner, customerID := newTestService(t)

	q := createQuotation(t, svc, owner, customerID,
		CreateItemRequest{Description: "Desk", Quantity: 1, UnitPrice: 500, TaxRate: 20})

	_, err := svc.UpdateStatus(context.Background(), owner, q.ID, StatusConverted)
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestConvertedQuotationIsFrozen(t *testing.T) {
	svc, _, owner, customerID := newTestService(t)
	ctx := context.Background()

	q := createQuotation(t, svc, owner, customerID,
		CreateItemRequest{Description: "Desk", Quantity: 1, UnitPrice: 500, TaxRate: 20})
	_, err := svc.Convert(ctx, owner, q.ID)
	require.NoError(t, err)

	_, err = svc.UpdateHeader(ctx, owner, q.ID, UpdateQuotationRequest{
		CustomerID:    customerID,
		QuotationDate: time.Now(),
	})
	require.ErrorIs(t, err, httpx.ErrStateConflict)

	_, err = svc.UpdateStatus(ctx, owner, q.ID, StatusRejected)
	require.ErrorIs(t, err, httpx.ErrStateConflict)

	_, err = svc.AddItem(ctx, owner, q.ID, CreateItemRequest{Description: "Chair", Quantity: 1, UnitPrice: 100, TaxRate: 20})
	require.ErrorIs(t, err, httpx.ErrStateConflict)

	_, err = svc.RemoveItem(ctx, owner, q.ID, q.Items[0].ID)
	require.ErrorIs(t, err, httpx.ErrStateConflict)

	err = svc.Delete(ctx, owner, q.ID)
	require.ErrorIs(t, err, httpx.ErrStateConflict)
}

func TestConversionCommittingMidRequestFreezesQuotation(t *testing.T) {
	svc, repo, owner, customerID := newTestService(t)
	ctx := context.Background()

	q := createQuotation(t, svc, owner, customerID,
		CreateItemRequest{Description: "Desk", Quantity: 1, UnitPrice: 500, TaxRate: 20})

	// A conversion commits after the handler's initial read but before its
	// transaction. The freeze check runs inside the transaction, so the
	// stale read must not let the write through.
	invoiceID := uuid.New()
	repo.beforeTx = func() {
		stored := repo.quotations[q.ID]
		stored.Status = StatusConverted
		stored.ConvertedInvoiceID = &invoiceID
	}

	_, err := svc.UpdateHeader(ctx, owner, q.ID, UpdateQuotationRequest{
		CustomerID:    customerID,
		QuotationDate: time.Now(),
	})
	require.ErrorIs(t, err, httpx.ErrStateConflict)

	_, err = svc.UpdateStatus(ctx, owner, q.ID, StatusRejected)
	require.ErrorIs(t, err, httpx.ErrStateConflict)

	err = svc.Delete(ctx, owner, q.ID)
	require.ErrorIs(t, err, httpx.ErrStateConflict)

	// The frozen quotation is untouched.
	require.Contains(t, repo.quotations, q.ID)
	require.Equal(t, StatusConverted, repo.quotations[q.ID].Status)
}

func TestStatusTransitions(t *testing.T) {
	svc, _, owner, customerID := newTestService(t)
	ctx := context.Background()

	q := createQuotation(t, svc, owner, customerID,
		CreateItemRequest{Description: "Desk", Quantity: 1, UnitPrice: 500, TaxRate: 20})

	q, err := svc.UpdateStatus(ctx, owner, q.ID, StatusSent)
	require.NoError(t, err)
	require.Equal(t, StatusSent, q.Status)

	q, err = svc.UpdateStatus(ctx, owner, q.ID, StatusAccepted)
	require.NoError(t, err)
	require.Equal(t, StatusAccepted, q.Status)

	_, err = svc.UpdateStatus(ctx, owner, q.ID, QuotationStatus("expired"))
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestItemMutationsRecomputeTotals(t *testing.T) {
	svc, _, owner, customerID := newTestService(t)
	ctx := context.Background()

	q := createQuotation(t, svc, owner, customerID,
		CreateItemRequest{Description: "Desk", Quantity: 2, UnitPrice: 500, TaxRate: 20})
	require.Equal(t, 1200.0, q.Total)

	q, err := svc.AddItem(ctx, owner, q.ID, CreateItemRequest{Description: "Chair", Quantity: 1, UnitPrice: 100, TaxRate: 20})
	require.NoError(t, err)
	require.Equal(t, 1100.0, q.Subtotal)
	require.Equal(t, 1320.0, q.Total)

	q, err = svc.RemoveItem(ctx, owner, q.ID, q.Items[0].ID)
	require.NoError(t, err)
	require.Equal(t, 100.0, q.Subtotal)
	require.Equal(t, 120.0, q.Total)
}

func TestOwnerScopingHidesForeignQuotations(t *testing.T) {
	svc, _, owner, customerID := newTestService(t)
	ctx := context.Background()

	q := createQuotation(t, svc, owner, customerID,
		CreateItemRequest{Description: "Desk", Quantity: 1, UnitPrice: 500, TaxRate: 20})

	_, err := svc.Get(ctx, uuid.New(), q.ID)
	require.ErrorIs(t, err, httpx.ErrNotFound)

	_, err = svc.Convert(ctx, uuid.New(), q.ID)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}
