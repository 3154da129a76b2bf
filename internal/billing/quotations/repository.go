package quotations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline/ledgerline/internal/billing/invoices"
	"github.com/ledgerline/ledgerline/internal/billing/sequence"
	"github.com/ledgerline/ledgerline/internal/platform/db"
	"github.com/ledgerline/ledgerline/internal/platform/httpx"
)

// Repository defines data access for quotations and their items. It is also
// the sole cross-aggregate writer: ConvertToInvoice persists the generated
// invoice and freezes the quotation in a single statement sequence, run
// inside the caller's transaction.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	NextNumber(ctx context.Context, ownerID uuid.UUID, year int) (string, error)
	PeekNumber(ctx context.Context, ownerID uuid.UUID, year int) (string, error)
	Create(ctx context.Context, q Quotation) error
	Get(ctx context.Context, ownerID, id uuid.UUID) (*Quotation, error)
	List(ctx context.Context, ownerID uuid.UUID, req ListQuotationsRequest) ([]Quotation, int, error)
	UpdateHeader(ctx context.Context, id uuid.UUID, customerID uuid.UUID, quotationDate time.Time, validUntil *time.Time, notes *string) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status QuotationStatus) error
	UpdateTotals(ctx context.Context, id uuid.UUID, subtotal, taxTotal, total float64) error
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
	InsertItem(ctx context.Context, item QuotationItem) error
	ListItems(ctx context.Context, quotationID uuid.UUID) ([]QuotationItem, error)
	DeleteItem(ctx context.Context, quotationID, itemID uuid.UUID) error
	NextInvoiceNumber(ctx context.Context, ownerID uuid.UUID) (string, error)
	ConvertToInvoice(ctx context.Context, quotationID uuid.UUID, inv invoices.Invoice) error
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

func (r *repository) NextNumber(ctx context.Context, ownerID uuid.UUID, year int) (string, error) {
	n, err := sequence.Next(ctx, r.db, ownerID, sequence.QuotationKey(year))
	if err != nil {
		return "", err
	}
	return sequence.FormatQuotationNumber(year, n), nil
}

func (r *repository) PeekNumber(ctx context.Context, ownerID uuid.UUID, year int) (string, error) {
	n, err := sequence.Peek(ctx, r.db, ownerID, sequence.QuotationKey(year))
	if err != nil {
		return "", err
	}
	return sequence.FormatQuotationNumber(year, n), nil
}

func (r *repository) Create(ctx context.Context, q Quotation) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO quotations (id, owner_id, customer_id, number, quotation_date, valid_until, status, notes, subtotal, tax_total, total, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())`,
		q.ID, q.OwnerID, q.CustomerID, q.Number, q.QuotationDate, q.ValidUntil, q.Status, q.Notes, q.Subtotal, q.TaxTotal, q.Total)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: quotation number %s", httpx.ErrDuplicate, q.Number)
		}
		return fmt.Errorf("insert quotation: %w", err)
	}
	return nil
}

const quotationColumns = `q.id, q.owner_id, q.customer_id, q.number, q.quotation_date, q.valid_until, q.status, q.notes,
	q.subtotal, q.tax_total, q.total, q.converted_invoice_id, q.created_at, q.updated_at`

func scanQuotation(row pgx.Row) (*Quotation, error) {
	var q Quotation
	err := row.Scan(&q.ID, &q.OwnerID, &q.CustomerID, &q.Number, &q.QuotationDate, &q.ValidUntil,
		&q.Status, &q.Notes, &q.Subtotal, &q.TaxTotal, &q.Total, &q.ConvertedInvoiceID,
		&q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &q, nil
}

func (r *repository) Get(ctx context.Context, ownerID, id uuid.UUID) (*Quotation, error) {
	q, err := scanQuotation(r.db.QueryRow(ctx,
		`SELECT `+quotationColumns+` FROM quotations q WHERE q.id = $1 AND q.owner_id = $2`, id, ownerID))
	if err != nil {
		return nil, err
	}
	items, err := r.ListItems(ctx, q.ID)
	if err != nil {
		return nil, err
	}
	q.Items = items
	return q, nil
}

func (r *repository) List(ctx context.Context, ownerID uuid.UUID, req ListQuotationsRequest) ([]Quotation, int, error) {
	where := `WHERE q.owner_id = $1`
	args := []any{ownerID}
	if req.Search != "" {
		args = append(args, "%"+req.Search+"%")
		where += fmt.Sprintf(` AND (q.number ILIKE $%d OR c.company_name ILIKE $%d)`, len(args), len(args))
	}
	if req.Status != nil {
		args = append(args, *req.Status)
		where += fmt.Sprintf(` AND q.status = $%d`, len(args))
	}
	from := `FROM quotations q JOIN customers c ON c.id = q.customer_id`

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) `+from+` `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	orderBy := `ORDER BY q.created_at DESC`
	switch req.Sort {
	case "date_asc":
		orderBy = `ORDER BY q.quotation_date ASC`
	case "date_desc":
		orderBy = `ORDER BY q.quotation_date DESC`
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
	query := fmt.Sprintf(`SELECT `+quotationColumns+` %s %s %s LIMIT $%d OFFSET $%d`,
		from, where, orderBy, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []Quotation
	for rows.Next() {
		q, err := scanQuotation(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *q)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func (r *repository) UpdateHeader(ctx context.Context, id uuid.UUID, customerID uuid.UUID, quotationDate time.Time, validUntil *time.Time, notes *string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE quotations SET customer_id = $2, quotation_date = $3, valid_until = $4, notes = $5, updated_at = NOW() WHERE id = $1`,
		id, customerID, quotationDate, validUntil, notes)
	return err
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status QuotationStatus) error {
	_, err := r.db.Exec(ctx,
		`UPDATE quotations SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	return err
}

func (r *repository) UpdateTotals(ctx context.Context, id uuid.UUID, subtotal, taxTotal, total float64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE quotations SET subtotal = $2, tax_total = $3, total = $4, updated_at = NOW() WHERE id = $1`,
		id, subtotal, taxTotal, total)
	return err
}

func (r *repository) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM quotations WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *repository) InsertItem(ctx context.Context, item QuotationItem) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO quotation_items (id, quotation_id, product_id, description, quantity, unit_price, tax_rate, line_total, tax_amount)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		item.ID, item.QuotationID, item.ProductID, item.Description, item.Quantity, item.UnitPrice, item.TaxRate, item.LineTotal, item.TaxAmount)
	return err
}

func (r *repository) ListItems(ctx context.Context, quotationID uuid.UUID) ([]QuotationItem, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, quotation_id, product_id, description, quantity, unit_price, tax_rate, line_total, tax_amount
		 FROM quotation_items WHERE quotation_id = $1 ORDER BY id`, quotationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []QuotationItem
	for rows.Next() {
		var it QuotationItem
		if err := rows.Scan(&it.ID, &it.QuotationID, &it.ProductID, &it.Description, &it.Quantity, &it.UnitPrice, &it.TaxRate, &it.LineTotal, &it.TaxAmount); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) DeleteItem(ctx context.Context, quotationID, itemID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM quotation_items WHERE id = $1 AND quotation_id = $2`, itemID, quotationID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *repository) NextInvoiceNumber(ctx context.Context, ownerID uuid.UUID) (string, error) {
	n, err := sequence.Next(ctx, r.db, ownerID, sequence.KeyInvoice)
	if err != nil {
		return "", err
	}
	return sequence.FormatInvoiceNumber(n), nil
}

func (r *repository) ConvertToInvoice(ctx context.Context, quotationID uuid.UUID, inv invoices.Invoice) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO invoices (id, owner_id, customer_id, number, invoice_date, due_date, status, notes, subtotal, tax_total, total, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())`,
		inv.ID, inv.OwnerID, inv.CustomerID, inv.Number, inv.InvoiceDate, inv.DueDate, inv.Status, inv.Notes, inv.Subtotal, inv.TaxTotal, inv.Total)
	if err != nil {
		return fmt.Errorf("insert converted invoice: %w", err)
	}
	for _, item := range inv.Items {
		_, err = r.db.Exec(ctx,
			`INSERT INTO invoice_items (id, invoice_id, product_id, description, quantity, unit_price, tax_rate, line_total, tax_amount)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			item.ID, item.InvoiceID, item.ProductID, item.Description, item.Quantity, item.UnitPrice, item.TaxRate, item.LineTotal, item.TaxAmount)
		if err != nil {
			return fmt.Errorf("insert converted invoice item: %w", err)
		}
	}
	_, err = r.db.Exec(ctx,
		`UPDATE quotations SET status = $2, converted_invoice_id = $3, updated_at = NOW() WHERE id = $1`,
		quotationID, StatusConverted, inv.ID)
	if err != nil {
		return fmt.Errorf("mark quotation converted: %w", err)
	}
	return nil
}
