package invoices

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/billing/customers"
	"github.com/ledgerline/ledgerline/internal/platform/httpx"
	"github.com/ledgerline/ledgerline/internal/shared"
)

type memoryRepo struct {
	invoices map[uuid.UUID]*Invoice
	items    map[uuid.UUID][]InvoiceItem
	payments map[uuid.UUID][]Payment
	counters map[uuid.UUID]int64

	// beforeTx runs at transaction start, standing in for a concurrent
	// writer that commits between a caller's read and its transaction.
	beforeTx func()
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		invoices: make(map[uuid.UUID]*Invoice),
		items:    make(map[uuid.UUID][]InvoiceItem),
		payments: make(map[uuid.UUID][]Payment),
		counters: make(map[uuid.UUID]int64),
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	if r.beforeTx != nil {
		r.beforeTx()
	}
	return fn(ctx, r)
}

func (r *memoryRepo) NextNumber(_ context.Context, ownerID uuid.UUID) (string, error) {
	r.counters[ownerID]++
	return fmt.Sprintf("INV-%04d", r.counters[ownerID]), nil
}

func (r *memoryRepo) Create(_ context.Context, inv Invoice) error {
	now := time.Now()
	inv.CreatedAt = now
	inv.UpdatedAt = now
	r.invoices[inv.ID] = &inv
	return nil
}

func (r *memoryRepo) Get(_ context.Context, ownerID, id uuid.UUID) (*Invoice, error) {
	inv, ok := r.invoices[id]
	if !ok || inv.OwnerID != ownerID {
		return nil, httpx.ErrNotFound
	}
	out := *inv
	out.Items = append([]InvoiceItem(nil), r.items[id]...)
	out.PaidAmount = 0
	for _, p := range r.payments[id] {
		out.PaidAmount += p.Amount
	}
	return &out, nil
}

func (r *memoryRepo) List(_ context.Context, ownerID uuid.UUID, _ ListInvoicesRequest) ([]Invoice, int, error) {
	var result []Invoice
	for id, inv := range r.invoices {
		if inv.OwnerID != ownerID {
			continue
		}
		out := *inv
		out.Items = r.items[id]
		result = append(result, out)
	}
	return result, len(result), nil
}

func (r *memoryRepo) UpdateHeader(_ context.Context, id uuid.UUID, customerID uuid.UUID, invoiceDate time.Time, dueDate *time.Time, notes *string) error {
	inv := r.invoices[id]
	inv.CustomerID = customerID
	inv.InvoiceDate = invoiceDate
	inv.DueDate = dueDate
	inv.Notes = notes
	return nil
}

func (r *memoryRepo) UpdateStatus(_ context.Context, id uuid.UUID, status InvoiceStatus) error {
	r.invoices[id].Status = status
	return nil
}

func (r *memoryRepo) UpdateTotals(_ context.Context, id uuid.UUID, subtotal, taxTotal, total float64) error {
	inv := r.invoices[id]
	inv.Subtotal = subtotal
	inv.TaxTotal = taxTotal
	inv.Total = total
	return nil
}

func (r *memoryRepo) Delete(_ context.Context, ownerID, id uuid.UUID) error {
	inv, ok := r.invoices[id]
	if !ok || inv.OwnerID != ownerID {
		return httpx.ErrNotFound
	}
	delete(r.invoices, id)
	delete(r.items, id)
	delete(r.payments, id)
	return nil
}

func (r *memoryRepo) InsertItem(_ context.Context, item InvoiceItem) error {
	r.items[item.InvoiceID] = append(r.items[item.InvoiceID], item)
	return nil
}

func (r *memoryRepo) ListItems(_ context.Context, invoiceID uuid.UUID) ([]InvoiceItem, error) {
	return r.items[invoiceID], nil
}

func (r *memoryRepo) DeleteItem(_ context.Context, invoiceID, itemID uuid.UUID) error {
	items := r.items[invoiceID]
	for i, it := range items {
		if it.ID == itemID {
			r.items[invoiceID] = append(items[:i], items[i+1:]...)
			return nil
		}
	}
	return httpx.ErrNotFound
}

func (r *memoryRepo) InsertPayment(_ context.Context, p Payment) error {
	r.payments[p.InvoiceID] = append(r.payments[p.InvoiceID], p)
	return nil
}

func (r *memoryRepo) GetPayment(_ context.Context, invoiceID, paymentID uuid.UUID) (*Payment, error) {
	for _, p := range r.payments[invoiceID] {
		if p.ID == paymentID {
			out := p
			return &out, nil
		}
	}
	return nil, httpx.ErrNotFound
}

func (r *memoryRepo) ListPayments(_ context.Context, invoiceID uuid.UUID) ([]Payment, error) {
	return r.payments[invoiceID], nil
}

func (r *memoryRepo) DeletePayment(_ context.Context, invoiceID, paymentID uuid.UUID) error {
	payments := r.payments[invoiceID]
	for i, p := range payments {
		if p.ID == paymentID {
			r.payments[invoiceID] = append(payments[:i], payments[i+1:]...)
			return nil
		}
	}
	return httpx.ErrNotFound
}

func (r *memoryRepo) Stats(_ context.Context, ownerID uuid.UUID) (*Stats, error) {
	stats := &Stats{ByStatus: make(map[InvoiceStatus]int)}
	for _, inv := range r.invoices {
		if inv.OwnerID != ownerID {
			continue
		}
		stats.TotalCount++
		stats.TotalRevenue += inv.Total
		stats.ByStatus[inv.Status]++
		switch inv.Status {
		case StatusPaid:
			stats.PaidTotal += inv.Total
		case StatusDraft, StatusSent:
			stats.UnpaidTotal += inv.Total
		}
	}
	return stats, nil
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

type capturedNotifications struct {
	payments []float64
	paid     []string
}

func (n *capturedNotifications) PaymentReceived(_ context.Context, _ uuid.UUID, _ string, amount, _ float64) {
	n.payments = append(n.payments, amount)
}

func (n *capturedNotifications) InvoicePaid(_ context.Context, _ uuid.UUID, number string) {
	n.paid = append(n.paid, number)
}

func newTestService(t *testing.T) (*Service, *memoryRepo, *capturedNotifications, uuid.UUID, uuid.UUID) {
	t.Helper()
	repo := newMemoryRepo()
	owner := uuid.New()
	customerID := uuid.New()
	custRepo := &memoryCustomers{customers: map[uuid.UUID]*customers.Customer{
		customerID: {ID: customerID, OwnerID: owner, CompanyName: "Acme Carpentry"},
	}}
	notifier := &capturedNotifications{}
	svc := NewService(repo, custRepo, shared.NewActivityLogger(nil, nil), notifier, nil)
	return svc, repo, notifier, owner, customerID
}

func createInvoice(t *testing.T, svc *Service, owner, customerID uuid.UUID, status InvoiceStatus, items ...CreateItemRequest) *Invoice {
	t.Helper()
	inv, err := svc.Create(context.Background(), owner, CreateInvoiceRequest{
		CustomerID:  customerID,
		InvoiceDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Status:      status,
		Items:       items,
	})
	require.NoError(t, err)
	return inv
}

func TestCreateComputesPerLineTotals(t *testing.T) {
	svc, _, _, owner, customerID := newTestService(t)

	inv := createInvoice(t, svc, owner, customerID, StatusDraft,
		CreateItemRequest{Description: "Consulting", Quantity: 3, UnitPrice: 33.33, TaxRate: 18})

	require.Equal(t, "INV-0001", inv.Number)
	require.Equal(t, 99.99, inv.Subtotal)
	require.Equal(t, 18.00, inv.TaxTotal)
	require.Equal(t, 117.99, inv.Total)
	require.Len(t, inv.Items, 1)
	require.Equal(t, 99.99, inv.Items[0].LineTotal)
	require.Equal(t, 18.00, inv.Items[0].TaxAmount)

	second := createInvoice(t, svc, owner, customerID, StatusDraft,
		CreateItemRequest{Description: "Cabinet", Quantity: 1, UnitPrice: 100, TaxRate: 20})
	require.Equal(t, "INV-0002", second.Number)
}

func TestCreateRejectsInvalidItems(t *testing.T) {
	svc, _, _, owner, customerID := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, owner, CreateInvoiceRequest{
		CustomerID:  customerID,
		InvoiceDate: time.Now(),
		Items:       []CreateItemRequest{{Description: "Bad", Quantity: -1, UnitPrice: 10}},
	})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.Create(ctx, owner, CreateInvoiceRequest{
		CustomerID:  customerID,
		InvoiceDate: time.Now(),
		Items:       []CreateItemRequest{{Description: "Bad", Quantity: 1, UnitPrice: 10, TaxRate: 101}},
	})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestItemMutationsRecomputeTotals(t *testing.T) {
	svc, _, _, owner, customerID := newTestService(t)
	ctx := context.Background()

	inv := createInvoice(t, svc, owner, customerID, StatusDraft,
		CreateItemRequest{Description: "Desk", Quantity: 2, UnitPrice: 500, TaxRate: 20})
	require.Equal(t, 1200.0, inv.Total)

	inv, err := svc.AddItem(ctx, owner, inv.ID, CreateItemRequest{Description: "Chair", Quantity: 1, UnitPrice: 100, TaxRate: 20})
	require.NoError(t, err)
	require.Equal(t, 1100.0, inv.Subtotal)
	require.Equal(t, 220.0, inv.TaxTotal)
	require.Equal(t, 1320.0, inv.Total)

	inv, err = svc.RemoveItem(ctx, owner, inv.ID, inv.Items[1].ID)
	require.NoError(t, err)
	require.Equal(t, 1000.0, inv.Subtotal)
	require.Equal(t, 1200.0, inv.Total)
}

func TestHeaderEditOnlyWhileOpen(t *testing.T) {
	svc, _, _, owner, customerID := newTestService(t)
	ctx := context.Background()

	inv := createInvoice(t, svc, owner, customerID, StatusDraft,
		CreateItemRequest{Description: "Desk", Quantity: 1, UnitPrice: 100, TaxRate: 0})

	_, err := svc.UpdateStatus(ctx, owner, inv.ID, StatusCancelled)
	require.NoError(t, err)

	_, err = svc.UpdateHeader(ctx, owner, inv.ID, UpdateInvoiceRequest{
		CustomerID:  customerID,
		InvoiceDate: time.Now(),
	})
	require.ErrorIs(t, err, httpx.ErrStateConflict)
}

func TestHeaderEditRejectedWhenInvoiceClosesMidRequest(t *testing.T) {
	svc, repo, _, owner, customerID := newTestService(t)
	ctx := context.Background()

	inv := createInvoice(t, svc, owner, customerID, StatusDraft,
		CreateItemRequest{Description: "Desk", Quantity: 1, UnitPrice: 100, TaxRate: 0})

	// The invoice closes after the handler's initial read; the editability
	// check inside the transaction must still see the closed state.
	repo.beforeTx = func() {
		repo.invoices[inv.ID].Status = StatusPaid
	}

	_, err := svc.UpdateHeader(ctx, owner, inv.ID, UpdateInvoiceRequest{
		CustomerID:  customerID,
		InvoiceDate: time.Now(),
	})
	require.ErrorIs(t, err, httpx.ErrStateConflict)
}

func TestOwnerScopingHidesForeignInvoices(t *testing.T) {
	svc, _, _, owner, customerID := newTestService(t)
	ctx := context.Background()

	inv := createInvoice(t, svc, owner, customerID, StatusDraft,
		CreateItemRequest{Description: "Desk", Quantity: 1, UnitPrice: 100, TaxRate: 0})

	_, err := svc.Get(ctx, uuid.New(), inv.ID)
	require.ErrorIs(t, err, httpx.ErrNotFound)

	err = svc.Delete(ctx, uuid.New(), inv.ID)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestPaymentReconciliation(t *testing.T) {
	svc, repo, notifier, owner, customerID := newTestService(t)
	ctx := context.Background()

	inv := createInvoice(t, svc, owner, customerID, StatusSent,
		CreateItemRequest{Description: "Project", Quantity: 1, UnitPrice: 1200, TaxRate: 0})
	require.Equal(t, 1200.0, inv.Total)

	_, err := svc.ApplyPayment(ctx, owner, inv.ID, CreatePaymentRequest{
		Amount: 700, PaymentDate: time.Now(), Method: "bank_transfer",
	})
	require.NoError(t, err)

	inv, err = svc.Get(ctx, owner, inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusSent, inv.Status)
	require.Equal(t, 500.0, inv.RemainingAmount())

	second, err := svc.ApplyPayment(ctx, owner, inv.ID, CreatePaymentRequest{
		Amount: 500, PaymentDate: time.Now(), Method: "cash",
	})
	require.NoError(t, err)

	inv, err = svc.Get(ctx, owner, inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, inv.Status)
	require.Equal(t, 0.0, inv.RemainingAmount())
	require.Equal(t, []string{inv.Number}, notifier.paid)
	require.Equal(t, []float64{700, 500}, notifier.payments)

	require.NoError(t, svc.RemovePayment(ctx, owner, inv.ID, second.ID))
	inv, err = svc.Get(ctx, owner, inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusSent, inv.Status)
	require.Equal(t, 500.0, inv.RemainingAmount())
	require.Len(t, repo.payments[inv.ID], 1)
}

func TestOverpaymentRejectedAndInvoiceUnchanged(t *testing.T) {
	svc, repo, _, owner, customerID := newTestService(t)
	ctx := context.Background()

	inv := createInvoice(t, svc, owner, customerID, StatusSent,
		CreateItemRequest{Description: "Project", Quantity: 1, UnitPrice: 1200, TaxRate: 0})

	_, err := svc.ApplyPayment(ctx, owner, inv.ID, CreatePaymentRequest{
		Amount: 700, PaymentDate: time.Now(), Method: "bank_transfer",
	})
	require.NoError(t, err)

	_, err = svc.ApplyPayment(ctx, owner, inv.ID, CreatePaymentRequest{
		Amount: 600, PaymentDate: time.Now(), Method: "cash",
	})
	require.ErrorIs(t, err, httpx.ErrStateConflict)
	require.Contains(t, err.Error(), "500.00")

	inv, err = svc.Get(ctx, owner, inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusSent, inv.Status)
	require.Equal(t, 700.0, inv.PaidAmount)
	require.Len(t, repo.payments[inv.ID], 1)
}

func TestPaymentOnCancelledInvoiceRejected(t *testing.T) {
	svc, _, _, owner, customerID := newTestService(t)
	ctx := context.Background()

	inv := createInvoice(t, svc, owner, customerID, StatusCancelled,
		CreateItemRequest{Description: "Project", Quantity: 1, UnitPrice: 100, TaxRate: 0})

	_, err := svc.ApplyPayment(ctx, owner, inv.ID, CreatePaymentRequest{
		Amount: 50, PaymentDate: time.Now(), Method: "cash",
	})
	require.ErrorIs(t, err, httpx.ErrStateConflict)
}

func TestExactPayoffFromDraft(t *testing.T) {
	svc, _, _, owner, customerID := newTestService(t)
	ctx := context.Background()

	inv := createInvoice(t, svc, owner, customerID, StatusDraft,
		CreateItemRequest{Description: "Project", Quantity: 3, UnitPrice: 33.33, TaxRate: 18})

	_, err := svc.ApplyPayment(ctx, owner, inv.ID, CreatePaymentRequest{
		Amount: 117.99, PaymentDate: time.Now(), Method: "cash",
	})
	require.NoError(t, err)

	inv, err = svc.Get(ctx, owner, inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, inv.Status)
}

func TestStatusMatrixIsPermissiveButClosed(t *testing.T) {
	all := []InvoiceStatus{StatusDraft, StatusSent, StatusPaid, StatusCancelled}
	for _, from := range all {
		for _, to := range all {
			require.True(t, TransitionAllowed(from, to), "%s -> %s", from, to)
		}
	}
	require.False(t, TransitionAllowed(StatusDraft, InvoiceStatus("archived")))

	svc, _, _, owner, customerID := newTestService(t)
	inv := createInvoice(t, svc, owner, customerID, StatusDraft,
		CreateItemRequest{Description: "Desk", Quantity: 1, UnitPrice: 100, TaxRate: 0})
	_, err := svc.UpdateStatus(context.Background(), owner, inv.ID, InvoiceStatus("archived"))
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestExportSnapshot(t *testing.T) {
	svc, _, _, owner, customerID := newTestService(t)

	inv := createInvoice(t, svc, owner, customerID, StatusSent,
		CreateItemRequest{Description: "Cabinet", Quantity: 5, UnitPrice: 3000, TaxRate: 20})

	export, err := svc.Export(context.Background(), owner, inv.ID)
	require.NoError(t, err)
	require.Equal(t, inv.Number, export.Number)
	require.Equal(t, "Acme Carpentry", export.CustomerName)
	require.Len(t, export.Lines, 1)
	require.Equal(t, 15000.0, export.Lines[0].LineTotal)
	require.Equal(t, 3000.0, export.Lines[0].TaxAmount)
	require.Equal(t, 18000.0, export.Total)
}
