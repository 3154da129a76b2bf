package invoices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline/ledgerline/internal/billing/sequence"
	"github.com/ledgerline/ledgerline/internal/platform/db"
	"github.com/ledgerline/ledgerline/internal/platform/httpx"
)

// Repository defines data access for invoices, their items and payments.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	NextNumber(ctx context.Context, ownerID uuid.UUID) (string, error)
	Create(ctx context.Context, inv Invoice) error
	Get(ctx context.Context, ownerID, id uuid.UUID) (*Invoice, error)
	List(ctx context.Context, ownerID uuid.UUID, req ListInvoicesRequest) ([]Invoice, int, error)
	UpdateHeader(ctx context.Context, id uuid.UUID, customerID uuid.UUID, invoiceDate time.Time, dueDate *time.Time, notes *string) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status InvoiceStatus) error
	UpdateTotals(ctx context.Context, id uuid.UUID, subtotal, taxTotal, total float64) error
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
	InsertItem(ctx context.Context, item InvoiceItem) error
	ListItems(ctx context.Context, invoiceID uuid.UUID) ([]InvoiceItem, error)
	DeleteItem(ctx context.Context, invoiceID, itemID uuid.UUID) error
	InsertPayment(ctx context.Context, p Payment) error
	GetPayment(ctx context.Context, invoiceID, paymentID uuid.UUID) (*Payment, error)
	ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]Payment, error)
	DeletePayment(ctx context.Context, invoiceID, paymentID uuid.UUID) error
	Stats(ctx context.Context, ownerID uuid.UUID) (*Stats, error)
}

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

func (r *repository) NextNumber(ctx context.Context, ownerID uuid.UUID) (string, error) {
	n, err := sequence.Next(ctx, r.db, ownerID, sequence.KeyInvoice)
	if err != nil {
		return "", err
	}
	return sequence.FormatInvoiceNumber(n), nil
}

func (r *repository) Create(ctx context.Context, inv Invoice) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO invoices (id, owner_id, customer_id, number, invoice_date, due_date, status, notes, subtotal, tax_total, total, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())`,
		inv.ID, inv.OwnerID, inv.CustomerID, inv.Number, inv.InvoiceDate, inv.DueDate, inv.Status, inv.Notes, inv.Subtotal, inv.TaxTotal, inv.Total)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: invoice number %s", httpx.ErrDuplicate, inv.Number)
		}
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

const invoiceColumns = `i.id, i.owner_id, i.customer_id, i.number, i.invoice_date, i.due_date, i.status, i.notes,
	i.subtotal, i.tax_total, i.total,
	COALESCE((SELECT SUM(p.amount) FROM payments p WHERE p.invoice_id = i.id), 0) AS paid_amount,
	i.created_at, i.updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.OwnerID, &inv.CustomerID, &inv.Number, &inv.InvoiceDate, &inv.DueDate,
		&inv.Status, &inv.Notes, &inv.Subtotal, &inv.TaxTotal, &inv.Total, &inv.PaidAmount,
		&inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

func (r *repository) Get(ctx context.Context, ownerID, id uuid.UUID) (*Invoice, error) {
	inv, err := scanInvoice(r.db.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices i WHERE i.id = $1 AND i.owner_id = $2`, id, ownerID))
	if err != nil {
		return nil, err
	}
	items, err := r.ListItems(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	inv.Items = items
	return inv, nil
}

func (r *repository) List(ctx context.Context, ownerID uuid.UUID, req ListInvoicesRequest) ([]Invoice, int, error) {
	where := `WHERE i.owner_id = $1`
	args := []any{ownerID}
	if req.CustomerID != nil {
		args = append(args, *req.CustomerID)
		where += fmt.Sprintf(` AND i.customer_id = $%d`, len(args))
	}
	if req.Status != nil {
		args = append(args, *req.Status)
		where += fmt.Sprintf(` AND i.status = $%d`, len(args))
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM invoices i `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	// NULL due dates sort last in either direction.
	orderBy := `ORDER BY i.created_at DESC`
	switch req.Sort {
	case "due_date_asc":
		orderBy = `ORDER BY i.due_date IS NULL, i.due_date ASC`
	case "due_date_desc":
		orderBy = `ORDER BY i.due_date IS NULL, i.due_date DESC`
	}

	perPage := req.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	page := req.Page
	if page <= 0 {
		page = 1
	}
	args = append(args, perPage, (page-1)*perPage)
	query := fmt.Sprintf(`SELECT `+invoiceColumns+` FROM invoices i %s %s LIMIT $%d OFFSET $%d`,
		where, orderBy, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func (r *repository) UpdateHeader(ctx context.Context, id uuid.UUID, customerID uuid.UUID, invoiceDate time.Time, dueDate *time.Time, notes *string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE invoices SET customer_id = $2, invoice_date = $3, due_date = $4, notes = $5, updated_at = NOW() WHERE id = $1`,
		id, customerID, invoiceDate, dueDate, notes)
	return err
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status InvoiceStatus) error {
	_, err := r.db.Exec(ctx,
		`UPDATE invoices SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	return err
}

func (r *repository) UpdateTotals(ctx context.Context, id uuid.UUID, subtotal, taxTotal, total float64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE invoices SET subtotal = $2, tax_total = $3, total = $4, updated_at = NOW() WHERE id = $1`,
		id, subtotal, taxTotal, total)
	return err
}

func (r *repository) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM invoices WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *repository) InsertItem(ctx context.Context, item InvoiceItem) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO invoice_items (id, invoice_id, product_id, description, quantity, unit_price, tax_rate, line_total, tax_amount)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		item.ID, item.InvoiceID, item.ProductID, item.Description, item.Quantity, item.UnitPrice, item.TaxRate, item.LineTotal, item.TaxAmount)
	return err
}

func (r *repository) ListItems(ctx context.Context, invoiceID uuid.UUID) ([]InvoiceItem, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, invoice_id, product_id, description, quantity, unit_price, tax_rate, line_total, tax_amount
		 FROM invoice_items WHERE invoice_id = $1 ORDER BY id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []InvoiceItem
	for rows.Next() {
		var it InvoiceItem
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.ProductID, &it.Description, &it.Quantity, &it.UnitPrice, &it.TaxRate, &it.LineTotal, &it.TaxAmount); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) DeleteItem(ctx context.Context, invoiceID, itemID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM invoice_items WHERE id = $1 AND invoice_id = $2`, itemID, invoiceID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *repository) InsertPayment(ctx context.Context, p Payment) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO payments (id, invoice_id, amount, payment_date, payment_method, notes, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
		p.ID, p.InvoiceID, p.Amount, p.PaymentDate, p.Method, p.Notes)
	return err
}

func (r *repository) GetPayment(ctx context.Context, invoiceID, paymentID uuid.UUID) (*Payment, error) {
	var p Payment
	err := r.db.QueryRow(ctx,
		`SELECT id, invoice_id, amount, payment_date, payment_method, notes, created_at
		 FROM payments WHERE id = $1 AND invoice_id = $2`, paymentID, invoiceID).
		Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.PaymentDate, &p.Method, &p.Notes, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *repository) ListPayments(ctx context.Context, invoiceID uuid.UUID) ([]Payment, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, invoice_id, amount, payment_date, payment_method, notes, created_at
		 FROM payments WHERE invoice_id = $1 ORDER BY payment_date DESC`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.PaymentDate, &p.Method, &p.Notes, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repository) DeletePayment(ctx context.Context, invoiceID, paymentID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM payments WHERE id = $1 AND invoice_id = $2`, paymentID, invoiceID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *repository) Stats(ctx context.Context, ownerID uuid.UUID) (*Stats, error) {
	rows, err := r.db.Query(ctx,
		`SELECT status, COUNT(*), COALESCE(SUM(total), 0) FROM invoices WHERE owner_id = $1 GROUP BY status`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &Stats{ByStatus: make(map[InvoiceStatus]int)}
	for rows.Next() {
		var status InvoiceStatus
		var count int
		var sum float64
		if err := rows.Scan(&status, &count, &sum); err != nil {
			return nil, err
		}
		stats.ByStatus[status] = count
		stats.TotalCount += count
		stats.TotalRevenue += sum
		switch status {
		case StatusPaid:
			stats.PaidTotal += sum
		case StatusDraft, StatusSent:
			stats.UnpaidTotal += sum
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return stats, nil
}
