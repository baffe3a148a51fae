package repository

import (
	"context"
	"fmt"

	"electrichouse/crawler/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the repository needs.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type ProductRepository interface {
	SaveProducts(ctx context.Context, storeCode string, records []domain.ProductRecord) error
}

type productRepository struct {
	db DB
}

func NewProductRepository(db DB) ProductRepository {
	return &productRepository{
		db: db,
	}
}

// SaveProducts upserts the records keyed by (uid, store_code), so repeated
// crawls of the same locale overwrite in place and locales never collide.
func (r *productRepository) SaveProducts(ctx context.Context, storeCode string, records []domain.ProductRecord) error {
	query := `
	INSERT INTO products (uid, store_code, sku, data)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (uid, store_code)
	DO UPDATE SET sku = $3, data = $4`

	for _, record := range records {
		_, err := r.db.Exec(ctx, query, record.UID, storeCode, record.SKU, record)
		if err != nil {
			return fmt.Errorf("failed to save product %s: %w", record.UID, err)
		}
	}

	return nil
}
