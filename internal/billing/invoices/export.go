package invoices

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Export is the fixed-schema invoice snapshot handed to the external
// UBL/PDF serializer. Amounts carry the document's 2-decimal convention;
// no further formatting or rounding happens here.
type Export struct {
	Number       string       `json:"number"`
	InvoiceDate  time.Time    `json:"invoice_date"`
	DueDate      *time.Time   `json:"due_date,omitempty"`
	Status       string       `json:"status"`
	CustomerID   uuid.UUID    `json:"customer_id"`
	CustomerName string       `json:"customer_name"`
	TaxNumber    *string      `json:"tax_number,omitempty"`
	Lines        []ExportLine `json:"lines"`
	Subtotal     float64      `json:"subtotal"`
	TaxTotal     float64      `json:"tax_total"`
	Total        float64      `json:"total"`
}

// ExportLine is one invoice line in the export schema.
type ExportLine struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	TaxRate     int     `json:"tax_rate"`
	LineTotal   float64 `json:"line_total"`
	TaxAmount   float64 `json:"tax_amount"`
}

// Export builds the serializer snapshot for one invoice.
func (s *Service) Export(ctx context.Context, ownerID, id uuid.UUID) (*Export, error) {
	inv, err := s.repo.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	customer, err := s.customerRepo.Get(ctx, ownerID, inv.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("resolve customer: %w", err)
	}

	export := &Export{
		Number:       inv.Number,
		InvoiceDate:  inv.InvoiceDate,
		DueDate:      inv.DueDate,
		Status:       string(inv.Status),
		CustomerID:   customer.ID,
		CustomerName: customer.CompanyName,
		TaxNumber:    customer.TaxNumber,
		Subtotal:     inv.Subtotal,
		TaxTotal:     inv.TaxTotal,
		Total:        inv.Total,
	}
	for _, it := range inv.Items {
		export.Lines = append(export.Lines, ExportLine{
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TaxRate:     it.TaxRate,
			LineTotal:   it.LineTotal,
			TaxAmount:   it.TaxAmount,
		})
	}
	return export, nil
}
