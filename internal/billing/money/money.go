// Package money implements the monetary arithmetic shared by every billing
// document. Amounts are rounded half-up to 2 fractional digits per line,
// never on the aggregated sum: summing already-rounded per-line tax amounts
// is the auditable behavior customers see on the printed document.
package money

import "math"

// Round2 rounds to 2 fractional digits, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// LineTotals computes the gross amount and tax amount for one line item.
// Inputs are assumed validated (non-negative quantity and unit price,
// tax rate within 0-100).
func LineTotals(quantity, unitPrice float64, taxRate int) (lineTotal, taxAmount float64) {
	lineTotal = Round2(quantity * unitPrice)
	taxAmount = Round2(lineTotal * float64(taxRate) / 100)
	return lineTotal, taxAmount
}
