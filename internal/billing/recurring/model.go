package recurring

import (
	"time"

	"github.com/google/uuid"
)

// Frequency enumerates the supported generation intervals.
type Frequency string

const (
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
)

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly, FrequencyYearly:
		return true
	}
	return false
}

// months returns the interval in calendar months, 0 for weekly.
func (f Frequency) months() int {
	switch f {
	case FrequencyMonthly:
		return 1
	case FrequencyQuarterly:
		return 3
	case FrequencyYearly:
		return 12
	}
	return 0
}

// Schedule is a recurring invoice template with a generation cursor.
// NextRunDate is the only piece of state the sweep advances, so re-running
// a sweep over the same day cannot double-generate.
type Schedule struct {
	ID              uuid.UUID      `json:"id"`
	OwnerID         uuid.UUID      `json:"owner_id"`
	CustomerID      uuid.UUID      `json:"customer_id"`
	Frequency       Frequency      `json:"frequency"`
	StartDate       time.Time      `json:"start_date"`
	EndDate         *time.Time     `json:"end_date,omitempty"`
	NextRunDate     time.Time      `json:"next_run_date"`
	IsActive        bool           `json:"is_active"`
	Notes           *string        `json:"notes,omitempty"`
	LastGeneratedAt *time.Time     `json:"last_generated_at,omitempty"`
	TotalGenerated  int            `json:"total_generated"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	Items           []ScheduleItem `json:"items,omitempty"`
}

// ScheduleItem is a template line. It carries no derived amounts: line
// totals are computed fresh at every generation so tax-rate or price edits
// on the template apply to future invoices only.
type ScheduleItem struct {
	ID          uuid.UUID  `json:"id"`
	ScheduleID  uuid.UUID  `json:"schedule_id"`
	ProductID   *uuid.UUID `json:"product_id,omitempty"`
	Description string     `json:"description"`
	Quantity    float64    `json:"quantity"`
	UnitPrice   float64    `json:"unit_price"`
	TaxRate     int        `json:"tax_rate"`
}

// RunReport summarises one sweep over the due schedules.
type RunReport struct {
	Processed   int `json:"processed"`
	Generated   int `json:"generated"`
	Deactivated int `json:"deactivated"`
	Failed      int `json:"failed"`
}
