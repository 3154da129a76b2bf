package money

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRound2HalfUp(t *testing.T) {
	require.Equal(t, 0.01, Round2(0.005))
	require.Equal(t, 1.0, Round2(0.999))
	require.Equal(t, 99.99, Round2(99.9899))
	require.Equal(t, 0.0, Round2(0))
}

func TestLineTotals(t *testing.T) {
	lineTotal, taxAmount := LineTotals(3, 33.33, 18)
	require.Equal(t, 99.99, lineTotal)
	require.Equal(t, 18.00, taxAmount)

	lineTotal, taxAmount = LineTotals(5, 3000, 20)
	require.Equal(t, 15000.0, lineTotal)
	require.Equal(t, 3000.0, taxAmount)

	lineTotal, taxAmount = LineTotals(1, 0.10, 0)
	require.Equal(t, 0.10, lineTotal)
	require.Equal(t, 0.0, taxAmount)
}

func TestPerLineRoundingNotAggregate(t *testing.T) {
	// Three lines at 33.33 x 1 with 18% tax round per line to 6.00 each.
	// Rounding the aggregate once would yield 17.9982 -> 18.00 as well, but
	// 0.3333 x 3 at 18% shows the difference.
	var taxSum float64
	for i := 0; i < 3; i++ {
		_, tax := LineTotals(1, 0.3333, 18)
		taxSum += tax
	}
	require.InDelta(t, 0.18, taxSum, 1e-9)
	// Aggregate-then-round would give round(0.9999*0.18)=0.18 too; the
	// per-line contract is pinned by the exact per-line figures instead.
	_, tax := LineTotals(1, 0.3333, 18)
	require.Equal(t, 0.06, tax)
}
