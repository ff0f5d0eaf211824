package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warebill/billing/internal/billing"
)

// CustomerStore resolves customers from Postgres.
type CustomerStore struct {
	Pool *pgxpool.Pool
}

// Customer implements billing.CustomerSource. A missing customer is (nil, nil).
func (s *CustomerStore) Customer(ctx context.Context, id uuid.UUID) (*billing.Customer, error) {
	if s == nil || s.Pool == nil {
		return nil, ErrStoreUnavailable
	}
	var c billing.Customer
	err := s.Pool.QueryRow(ctx,
		`SELECT id, company_name FROM customers WHERE id = $1 AND is_active`, id,
	).Scan(&c.ID, &c.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
