package quotations

import (
	"time"

	"github.com/google/uuid"
)

type CreateQuotationRequest struct {
	CustomerID    uuid.UUID           `json:"customer_id" validate:"required"`
	QuotationDate time.Time           `json:"quotation_date" validate:"required"`
	ValidUntil    *time.Time          `json:"valid_until,omitempty"`
	Status        QuotationStatus     `json:"status,omitempty"`
	Notes         *string             `json:"notes,omitempty"`
	Items         []CreateItemRequest `json:"items" validate:"required,min=1,dive"`
}

type CreateItemRequest struct {
	ProductID   *uuid.UUID `json:"product_id,omitempty"`
	Description string     `json:"description" validate:"required,max=255"`
	Quantity    float64    `json:"quantity" validate:"gte=0"`
	UnitPrice   float64    `json:"unit_price" validate:"gte=0"`
	TaxRate     int        `json:"tax_rate" validate:"gte=0,lte=100"`
}

type UpdateQuotationRequest struct {
	CustomerID    uuid.UUID  `json:"customer_id" validate:"required"`
	QuotationDate time.Time  `json:"quotation_date" validate:"required"`
	ValidUntil    *time.Time `json:"valid_until,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
}

type UpdateStatusRequest struct {
	Status QuotationStatus `json:"status" validate:"required"`
}

type ListQuotationsRequest struct {
	Search  string
	Status  *QuotationStatus
	Sort    string
	Page    int
	PerPage int
}
