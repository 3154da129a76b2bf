package invoices

import (
	"time"

	"github.com/google/uuid"
)

type CreateInvoiceRequest struct {
	CustomerID  uuid.UUID          `json:"customer_id" validate:"required"`
	InvoiceDate time.Time          `json:"invoice_date" validate:"required"`
	DueDate     *time.Time         `json:"due_date,omitempty"`
	Status      InvoiceStatus      `json:"status,omitempty"`
	Notes       *string            `json:"notes,omitempty"`
	Items       []CreateItemRequest `json:"items" validate:"required,min=1,dive"`
}

type CreateItemRequest struct {
	ProductID   *uuid.UUID `json:"product_id,omitempty"`
	Description string     `json:"description" validate:"required,max=255"`
	Quantity    float64    `json:"quantity" validate:"gte=0"`
	UnitPrice   float64    `json:"unit_price" validate:"gte=0"`
	TaxRate     int        `json:"tax_rate" validate:"gte=0,lte=100"`
}

type UpdateInvoiceRequest struct {
	CustomerID  uuid.UUID  `json:"customer_id" validate:"required"`
	InvoiceDate time.Time  `json:"invoice_date" validate:"required"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Notes       *string    `json:"notes,omitempty"`
}

type UpdateStatusRequest struct {
	Status InvoiceStatus `json:"status" validate:"required"`
}

type CreatePaymentRequest struct {
	Amount      float64   `json:"amount" validate:"required,gt=0"`
	PaymentDate time.Time `json:"payment_date" validate:"required"`
	Method      string    `json:"payment_method" validate:"required,max=50"`
	Notes       *string   `json:"notes,omitempty"`
}

type ListInvoicesRequest struct {
	CustomerID *uuid.UUID
	Status     *InvoiceStatus
	Sort       string
	Page       int
	PerPage    int
}
