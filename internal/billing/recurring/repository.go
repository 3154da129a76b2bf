package recurring

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

// Repository defines data access for recurring schedules. Like the
// quotation repository it doubles as the cross-aggregate writer for the
// invoices it generates.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Create(ctx context.Context, s Schedule) error
	Get(ctx context.Context, ownerID, id uuid.UUID) (*Schedule, error)
	List(ctx context.Context, ownerID uuid.UUID, req ListSchedulesRequest) ([]Schedule, int, error)
	ListDue(ctx context.Context, today time.Time) ([]Schedule, error)
	CountDue(ctx context.Context, ownerID uuid.UUID, today time.Time) (int, error)
	UpdateHeader(ctx context.Context, id uuid.UUID, customerID uuid.UUID, frequency Frequency, endDate *time.Time, notes *string) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	AdvanceCursor(ctx context.Context, id uuid.UUID, next time.Time, generatedAt time.Time) error
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
	InsertItem(ctx context.Context, item ScheduleItem) error
	ListItems(ctx context.Context, scheduleID uuid.UUID) ([]ScheduleItem, error)
	DeleteItems(ctx context.Context, scheduleID uuid.UUID) error
	NextInvoiceNumber(ctx context.Context, ownerID uuid.UUID) (string, error)
	InsertInvoice(ctx context.Context, inv invoices.Invoice) error
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

func (r *repository) Create(ctx context.Context, s Schedule) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO recurring_schedules (id, owner_id, customer_id, frequency, start_date, end_date, next_run_date, is_active, notes, total_generated, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())`,
		s.ID, s.OwnerID, s.CustomerID, s.Frequency, s.StartDate, s.EndDate, s.NextRunDate, s.IsActive, s.Notes, s.TotalGenerated)
	if err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}
	return nil
}

const scheduleColumns = `s.id, s.owner_id, s.customer_id, s.frequency, s.start_date, s.end_date, s.next_run_date,
	s.is_active, s.notes, s.last_generated_at, s.total_generated, s.created_at, s.updated_at`

func scanSchedule(row pgx.Row) (*Schedule, error) {
	var s Schedule
	err := row.Scan(&s.ID, &s.OwnerID, &s.CustomerID, &s.Frequency, &s.StartDate, &s.EndDate, &s.NextRunDate,
		&s.IsActive, &s.Notes, &s.LastGeneratedAt, &s.TotalGenerated, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *repository) Get(ctx context.Context, ownerID, id uuid.UUID) (*Schedule, error) {
	s, err := scanSchedule(r.db.QueryRow(ctx,
		`SELECT `+scheduleColumns+` FROM recurring_schedules s WHERE s.id = $1 AND s.owner_id = $2`, id, ownerID))
	if err != nil {
		return nil, err
	}
	items, err := r.ListItems(ctx, s.ID)
	if err != nil {
		return nil, err
	}
	s.Items = items
	return s, nil
}

func (r *repository) List(ctx context.Context, ownerID uuid.UUID, req ListSchedulesRequest) ([]Schedule, int, error) {
	where := `WHERE s.owner_id = $1`
	args := []any{ownerID}
	if req.Active != nil {
		args = append(args, *req.Active)
		where += fmt.Sprintf(` AND s.is_active = $%d`, len(args))
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM recurring_schedules s `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
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
	query := fmt.Sprintf(`SELECT `+scheduleColumns+` FROM recurring_schedules s %s ORDER BY s.next_run_date ASC LIMIT $%d OFFSET $%d`,
		where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var result []Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

// ListDue returns every active schedule, across owners, whose cursor is on
// or before today. Items are loaded eagerly since every row will be used.
func (r *repository) ListDue(ctx context.Context, today time.Time) ([]Schedule, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+scheduleColumns+` FROM recurring_schedules s
		 WHERE s.is_active AND s.next_run_date <= $1 ORDER BY s.next_run_date ASC`, today)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range result {
		items, err := r.ListItems(ctx, result[i].ID)
		if err != nil {
			return nil, err
		}
		result[i].Items = items
	}
	return result, nil
}

func (r *repository) CountDue(ctx context.Context, ownerID uuid.UUID, today time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM recurring_schedules s
		 WHERE s.owner_id = $1 AND s.is_active AND s.next_run_date <= $2`, ownerID, today).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repository) UpdateHeader(ctx context.Context, id uuid.UUID, customerID uuid.UUID, frequency Frequency, endDate *time.Time, notes *string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE recurring_schedules SET customer_id = $2, frequency = $3, end_date = $4, notes = $5, updated_at = NOW() WHERE id = $1`,
		id, customerID, frequency, endDate, notes)
	return err
}

func (r *repository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	_, err := r.db.Exec(ctx,
		`UPDATE recurring_schedules SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	return err
}

func (r *repository) AdvanceCursor(ctx context.Context, id uuid.UUID, next time.Time, generatedAt time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE recurring_schedules
		 SET next_run_date = $2, last_generated_at = $3, total_generated = total_generated + 1, updated_at = NOW()
		 WHERE id = $1`,
		id, next, generatedAt)
	return err
}

func (r *repository) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM recurring_schedules WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *repository) InsertItem(ctx context.Context, item ScheduleItem) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO recurring_schedule_items (id, schedule_id, product_id, description, quantity, unit_price, tax_rate)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		item.ID, item.ScheduleID, item.ProductID, item.Description, item.Quantity, item.UnitPrice, item.TaxRate)
	return err
}

func (r *repository) ListItems(ctx context.Context, scheduleID uuid.UUID) ([]ScheduleItem, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, schedule_id, product_id, description, quantity, unit_price, tax_rate
		 FROM recurring_schedule_items WHERE schedule_id = $1 ORDER BY id`, scheduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ScheduleItem
	for rows.Next() {
		var it ScheduleItem
		if err := rows.Scan(&it.ID, &it.ScheduleID, &it.ProductID, &it.Description, &it.Quantity, &it.UnitPrice, &it.TaxRate); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) DeleteItems(ctx context.Context, scheduleID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM recurring_schedule_items WHERE schedule_id = $1`, scheduleID)
	return err
}

func (r *repository) NextInvoiceNumber(ctx context.Context, ownerID uuid.UUID) (string, error) {
	n, err := sequence.Next(ctx, r.db, ownerID, sequence.KeyInvoice)
	if err != nil {
		return "", err
	}
	return sequence.FormatInvoiceNumber(n), nil
}

func (r *repository) InsertInvoice(ctx context.Context, inv invoices.Invoice) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO invoices (id, owner_id, customer_id, number, invoice_date, due_date, status, notes, subtotal, tax_total, total, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())`,
		inv.ID, inv.OwnerID, inv.CustomerID, inv.Number, inv.InvoiceDate, inv.DueDate, inv.Status, inv.Notes, inv.Subtotal, inv.TaxTotal, inv.Total)
	if err != nil {
		return fmt.Errorf("insert generated invoice: %w", err)
	}
	for _, item := range inv.Items {
		_, err = r.db.Exec(ctx,
			`INSERT INTO invoice_items (id, invoice_id, product_id, description, quantity, unit_price, tax_rate, line_total, tax_amount)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			item.ID, item.InvoiceID, item.ProductID, item.Description, item.Quantity, item.UnitPrice, item.TaxRate, item.LineTotal, item.TaxAmount)
		if err != nil {
			return fmt.Errorf("insert generated invoice item: %w", err)
		}
	}
	return nil
}
