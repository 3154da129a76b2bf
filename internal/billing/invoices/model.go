package invoices

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// InvoiceStatus enumerates invoice lifecycle states.
type InvoiceStatus string

const (
	StatusDraft     InvoiceStatus = "draft"
	StatusSent      InvoiceStatus = "sent"
	StatusPaid      InvoiceStatus = "paid"
	StatusCancelled InvoiceStatus = "cancelled"
)

// Valid reports whether s is a known status value.
func (s InvoiceStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusPaid, StatusCancelled:
		return true
	}
	return false
}

// Editable reports whether header fields may still change in this status.
func (s InvoiceStatus) Editable() bool {
	return s == StatusDraft || s == StatusSent
}

// Label returns the human-readable status name used in activity entries.
func (s InvoiceStatus) Label() string {
	switch s {
	case StatusDraft:
		return "Draft"
	case StatusSent:
		return "Sent"
	case StatusPaid:
		return "Paid"
	case StatusCancelled:
		return "Cancelled"
	}
	return string(s)
}

// transitions is the explicit status matrix. Every pair of valid states is
// allowed: the permissiveness is a named policy, not an absence of checks.
// Payment reconciliation drives the paid transitions automatically; the
// explicit endpoint exists for manual corrections.
var transitions = map[InvoiceStatus]map[InvoiceStatus]bool{
	StatusDraft:     {StatusDraft: true, StatusSent: true, StatusPaid: true, StatusCancelled: true},
	StatusSent:      {StatusDraft: true, StatusSent: true, StatusPaid: true, StatusCancelled: true},
	StatusPaid:      {StatusDraft: true, StatusSent: true, StatusPaid: true, StatusCancelled: true},
	StatusCancelled: {StatusDraft: true, StatusSent: true, StatusPaid: true, StatusCancelled: true},
}

// TransitionAllowed reports whether the explicit status-change endpoint may
// move an invoice from one status to another.
func TransitionAllowed(from, to InvoiceStatus) bool {
	return transitions[from][to]
}

// Invoice is a billing document with its line items and derived totals.
type Invoice struct {
	ID          uuid.UUID     `json:"id"`
	OwnerID     uuid.UUID     `json:"owner_id"`
	CustomerID  uuid.UUID     `json:"customer_id"`
	Number      string        `json:"number"`
	InvoiceDate time.Time     `json:"invoice_date"`
	DueDate     *time.Time    `json:"due_date,omitempty"`
	Status      InvoiceStatus `json:"status"`
	Notes       *string       `json:"notes,omitempty"`
	Subtotal    float64       `json:"subtotal"`
	TaxTotal    float64       `json:"tax_total"`
	Total       float64       `json:"total"`
	PaidAmount  float64       `json:"paid_amount"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	Items       []InvoiceItem `json:"items,omitempty"`
}

// RemainingAmount is the open balance, never negative.
func (i *Invoice) RemainingAmount() float64 {
	remaining := i.Total - i.PaidAmount
	if remaining < 0 {
		return 0
	}
	return remaining
}

// MarshalJSON adds the derived open balance to API responses.
func (i Invoice) MarshalJSON() ([]byte, error) {
	type alias Invoice
	return json.Marshal(struct {
		alias
		RemainingAmount float64 `json:"remaining_amount"`
	}{alias(i), i.RemainingAmount()})
}

// InvoiceItem is one priced row on an invoice. The product reference is
// advisory: deleting the product must not alter the stored description or
// price of historical lines.
type InvoiceItem struct {
	ID          uuid.UUID  `json:"id"`
	InvoiceID   uuid.UUID  `json:"invoice_id"`
	ProductID   *uuid.UUID `json:"product_id,omitempty"`
	Description string     `json:"description"`
	Quantity    float64    `json:"quantity"`
	UnitPrice   float64    `json:"unit_price"`
	TaxRate     int        `json:"tax_rate"`
	LineTotal   float64    `json:"line_total"`
	TaxAmount   float64    `json:"tax_amount"`
}

// Payment is one payment applied against an invoice.
type Payment struct {
	ID          uuid.UUID `json:"id"`
	InvoiceID   uuid.UUID `json:"invoice_id"`
	Amount      float64   `json:"amount"`
	PaymentDate time.Time `json:"payment_date"`
	Method      string    `json:"payment_method"`
	Notes       *string   `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Stats summarises an owner's invoices.
type Stats struct {
	TotalCount   int                   `json:"total_count"`
	TotalRevenue float64               `json:"total_revenue"`
	PaidTotal    float64               `json:"paid_total"`
	UnpaidTotal  float64               `json:"unpaid_total"`
	ByStatus     map[InvoiceStatus]int `json:"by_status"`
}
