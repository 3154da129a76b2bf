package sequence

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	value int64
}

func (r fakeRow) Scan(dest ...any) error {
	*(dest[0].(*int64)) = r.value
	return nil
}

type fakeQuerier struct {
	counters map[string]int64
}

func (q *fakeQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	key := args[0].(uuid.UUID).String() + "/" + args[1].(string)
	if q.counters == nil {
		q.counters = make(map[string]int64)
	}
	if len(sql) > 6 && sql[:6] != "SELECT" {
		q.counters[key]++
		return fakeRow{value: q.counters[key]}
	}
	return fakeRow{value: q.counters[key] + 1}
}

func TestNextIncrementsPerOwnerAndKey(t *testing.T) {
	ctx := context.Background()
	q := &fakeQuerier{}
	ownerA := uuid.New()
	ownerB := uuid.New()

	n, err := Next(ctx, q, ownerA, KeyInvoice)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	n, err = Next(ctx, q, ownerA, KeyInvoice)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	n, err = Next(ctx, q, ownerB, KeyInvoice)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	n, err = Next(ctx, q, ownerA, QuotationKey(2026))
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestPeekDoesNotConsume(t *testing.T) {
	ctx := context.Background()
	q := &fakeQuerier{}
	owner := uuid.New()

	n, err := Peek(ctx, q, owner, KeyInvoice)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	n, err = Next(ctx, q, owner, KeyInvoice)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestFormats(t *testing.T) {
	require.Equal(t, "INV-0007", FormatInvoiceNumber(7))
	require.Equal(t, "INV-12345", FormatInvoiceNumber(12345))
	require.Equal(t, "QUO-2026-0001", FormatQuotationNumber(2026, 1))
}
