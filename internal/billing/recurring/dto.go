package recurring

import (
	"time"

	"github.com/google/uuid"
)

type CreateScheduleRequest struct {
	CustomerID uuid.UUID           `json:"customer_id" validate:"required"`
	Frequency  Frequency           `json:"frequency" validate:"required"`
	StartDate  time.Time           `json:"start_date" validate:"required"`
	EndDate    *time.Time          `json:"end_date,omitempty"`
	Notes      *string             `json:"notes,omitempty"`
	Items      []CreateItemRequest `json:"items" validate:"required,min=1,dive"`
}

type CreateItemRequest struct {
	ProductID   *uuid.UUID `json:"product_id,omitempty"`
	Description string     `json:"description" validate:"required,max=255"`
	Quantity    float64    `json:"quantity" validate:"gte=0"`
	UnitPrice   float64    `json:"unit_price" validate:"gte=0"`
	TaxRate     int        `json:"tax_rate" validate:"gte=0,lte=100"`
}

// UpdateScheduleRequest replaces header fields and the full template item
// set. Items are replaced wholesale since they carry no derived state.
type UpdateScheduleRequest struct {
	CustomerID uuid.UUID           `json:"customer_id" validate:"required"`
	Frequency  Frequency           `json:"frequency" validate:"required"`
	EndDate    *time.Time          `json:"end_date,omitempty"`
	Notes      *string             `json:"notes,omitempty"`
	Items      []CreateItemRequest `json:"items" validate:"required,min=1,dive"`
}

type ListSchedulesRequest struct {
	Active  *bool
	Page    int
	PerPage int
}
