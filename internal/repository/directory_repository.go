package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/invenops/ticketing/internal/domain"
)

// DirectoryRepository is the read-only lookup into the customer/site records
// maintained elsewhere in the platform. Only name resolution is needed here.
type DirectoryRepository interface {
	GetCustomer(ctx context.Context, id int64) (*domain.CustomerRef, error)
	GetSite(ctx context.Context, id int64) (*domain.SiteRef, error)
}

type directoryRepository struct {
	pool *pgxpool.Pool
}

// NewDirectoryRepository instantiates repository.
func NewDirectoryRepository(pool *pgxpool.Pool) DirectoryRepository {
	return &directoryRepository{pool: pool}
}

func (r *directoryRepository) GetCustomer(ctx context.Context, id int64) (*domain.CustomerRef, error) {
	var ref domain.CustomerRef
	err := r.pool.QueryRow(ctx, `SELECT id, name FROM customers WHERE id=$1`, id).
		Scan(&ref.ID, &ref.Name)
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

func (r *directoryRepository) GetSite(ctx context.Context, id int64) (*domain.SiteRef, error) {
	var ref domain.SiteRef
	err := r.pool.QueryRow(ctx, `SELECT id, customer_id, name FROM sites WHERE id=$1`, id).
		Scan(&ref.ID, &ref.CustomerID, &ref.Name)
	if err != nil {
		return nil, err
	}
	return &ref, nil
}
