package quotations

import (
	"time"

	"github.com/google/uuid"
)

// QuotationStatus enumerates quotation lifecycle states. Converted is
// terminal and reachable only through the conversion operation.
type QuotationStatus string

const (
	StatusDraft     QuotationStatus = "draft"
	StatusSent      QuotationStatus = "sent"
	StatusAccepted  QuotationStatus = "accepted"
	StatusRejected  QuotationStatus = "rejected"
	StatusConverted QuotationStatus = "converted"
)

// Valid reports whether s is a known status value.
func (s QuotationStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusAccepted, StatusRejected, StatusConverted:
		return true
	}
	return false
}

// Label returns the human-readable status name used in activity entries.
func (s QuotationStatus) Label() string {
	switch s {
	case StatusDraft:
		return "Draft"
	case StatusSent:
		return "Sent"
	case StatusAccepted:
		return "Accepted"
	case StatusRejected:
		return "Rejected"
	case StatusConverted:
		return "Converted"
	}
	return string(s)
}

// Quotation is an offer document. After conversion it becomes a frozen
// historical record; ConvertedInvoiceID links to the invoice it produced.
type Quotation struct {
	ID                 uuid.UUID       `json:"id"`
	OwnerID            uuid.UUID       `json:"owner_id"`
	CustomerID         uuid.UUID       `json:"customer_id"`
	Number             string          `json:"number"`
	QuotationDate      time.Time       `json:"quotation_date"`
	ValidUntil         *time.Time      `json:"valid_until,omitempty"`
	Status             QuotationStatus `json:"status"`
	Notes              *string         `json:"notes,omitempty"`
	Subtotal           float64         `json:"subtotal"`
	TaxTotal           float64         `json:"tax_total"`
	Total              float64         `json:"total"`
	ConvertedInvoiceID *uuid.UUID      `json:"converted_invoice_id,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	Items              []QuotationItem `json:"items,omitempty"`
}

// Converted reports whether the quotation has been turned into an invoice.
// Every mutating operation is rejected once this is true.
func (q *Quotation) Converted() bool {
	return q.Status == StatusConverted
}

// QuotationItem is one priced row on a quotation. The product reference is
// advisory, same as on invoices.
type QuotationItem struct {
	ID          uuid.UUID  `json:"id"`
	QuotationID uuid.UUID  `json:"quotation_id"`
	ProductID   *uuid.UUID `json:"product_id,omitempty"`
	Description string     `json:"description"`
	Quantity    float64    `json:"quantity"`
	UnitPrice   float64    `json:"unit_price"`
	TaxRate     int        `json:"tax_rate"`
	LineTotal   float64    `json:"line_total"`
	TaxAmount   float64    `json:"tax_amount"`
}
