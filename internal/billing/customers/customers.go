// Package customers exposes the owner-scoped customer lookup the billing
// documents reference. Customer management itself lives outside this core.
package customers

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline/ledgerline/internal/platform/httpx"
)

// Customer is the subset of the customer record billing needs.
type Customer struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	CompanyName string    `json:"company_name"`
	TaxNumber   *string   `json:"tax_number,omitempty"`
	Email       *string   `json:"email,omitempty"`
	Address     *string   `json:"address,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Repository provides read access to customers.
type Repository interface {
	Get(ctx context.Context, ownerID, id uuid.UUID) (*Customer, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Get(ctx context.Context, ownerID, id uuid.UUID) (*Customer, error) {
	var c Customer
	err := r.pool.QueryRow(ctx,
		`SELECT id, owner_id, company_name, tax_number, email, address, created_at
		 FROM customers WHERE id = $1 AND owner_id = $2`,
		id, ownerID).Scan(&c.ID, &c.OwnerID, &c.CompanyName, &c.TaxNumber, &c.Email, &c.Address, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}
