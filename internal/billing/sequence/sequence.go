// Package sequence assigns human-readable document numbers from explicit
// per-owner counters. Counters only ever increment, so deleting documents
// can leave gaps but never reuses a number.
package sequence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// KeyInvoice is the counter key for invoices, scoped per owner.
const KeyInvoice = "invoice"

// QuotationKey returns the counter key for quotations, scoped per owner and
// calendar year.
func QuotationKey(year int) string {
	return fmt.Sprintf("quotation:%d", year)
}

// Querier is the subset of pgx used by the sequencer, satisfied by both
// pgxpool.Pool and pgx.Tx so numbers can be drawn inside the caller's
// transaction.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Next atomically increments and returns the counter for (owner, key).
func Next(ctx context.Context, q Querier, ownerID uuid.UUID, key string) (int64, error) {
	var value int64
	err := q.QueryRow(ctx,
		`INSERT INTO document_counters (owner_id, key, value)
		 VALUES ($1, $2, 1)
		 ON CONFLICT (owner_id, key)
		 DO UPDATE SET value = document_counters.value + 1
		 RETURNING value`,
		ownerID, key).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("sequence: next %s: %w", key, err)
	}
	return value, nil
}

// Peek returns the number the next call to Next would produce, without
// consuming it. Used by number-preview endpoints only.
func Peek(ctx context.Context, q Querier, ownerID uuid.UUID, key string) (int64, error) {
	var value int64
	err := q.QueryRow(ctx,
		`SELECT COALESCE((SELECT value FROM document_counters WHERE owner_id = $1 AND key = $2), 0) + 1`,
		ownerID, key).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("sequence: peek %s: %w", key, err)
	}
	return value, nil
}

// FormatInvoiceNumber renders an invoice sequence value, e.g. INV-0001.
func FormatInvoiceNumber(n int64) string {
	return fmt.Sprintf("INV-%04d", n)
}

// FormatQuotationNumber renders a quotation sequence value, e.g. QUO-2026-0001.
func FormatQuotationNumber(year int, n int64) string {
	return fmt.Sprintf("QUO-%d-%04d", year, n)
}
