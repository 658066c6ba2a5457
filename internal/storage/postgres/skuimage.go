package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/sku-image-service/internal/domain/skuimage"
)

const (
	getCollectionSQL = `SELECT sku, cover_image_id, image_ids
		FROM sku_images WHERE sku = $1`

	insertCollectionSQL = `INSERT INTO sku_images (sku, cover_image_id, image_ids)
		VALUES ($1, $2, $3)`

	updateCollectionSQL = `UPDATE sku_images
		SET cover_image_id = $2, image_ids = $3, updated_at = now()
		WHERE sku = $1`

	listCollectionsBySKUsSQL = `SELECT sku, cover_image_id, image_ids
		FROM sku_images WHERE sku = ANY($1) ORDER BY sku`
)

// uniqueViolation is the PostgreSQL error code for a unique constraint hit.
const uniqueViolation = "23505"

var _ skuimage.Repository = (*SKUImageRepository)(nil)

// SKUImageRepository implements skuimage.Repository backed by PostgreSQL.
type SKUImageRepository struct {
	pool *pgxpool.Pool
}

// NewSKUImageRepository returns a SKUImageRepository that uses the given pool.
func NewSKUImageRepository(pool *pgxpool.Pool) *SKUImageRepository {
	return &SKUImageRepository{pool: pool}
}

// Get returns the collection stored for the SKU. It returns
// skuimage.ErrSKUNotFound when no row exists.
func (r *SKUImageRepository) Get(ctx context.Context, sku uint64) (*skuimage.Collection, error) {
	rows, err := r.pool.Query(ctx, getCollectionSQL, int64(sku))
	if err != nil {
		return nil, fmt.Errorf("getting sku %d: %w", sku, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCollection)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, skuimage.ErrSKUNotFound
		}
		return nil, fmt.Errorf("getting sku %d: %w", sku, err)
	}
	return &c, nil
}

// Insert stores a collection for a SKU without one. A unique-constraint hit
// maps to skuimage.ErrAlreadyExists.
func (r *SKUImageRepository) Insert(ctx context.Context, c *skuimage.Collection) error {
	_, err := r.pool.Exec(ctx, insertCollectionSQL, int64(c.SKU), c.CoverImageID, c.ImageIDs)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return skuimage.ErrAlreadyExists
		}
		return fmt.Errorf("inserting sku %d: %w", c.SKU, err)
	}
	return nil
}

// Update overwrites the stored collection for an existing SKU.
func (r *SKUImageRepository) Update(ctx context.Context, c *skuimage.Collection) error {
	tag, err := r.pool.Exec(ctx, updateCollectionSQL, int64(c.SKU), c.CoverImageID, c.ImageIDs)
	if err != nil {
		return fmt.Errorf("updating sku %d: %w", c.SKU, err)
	}
	if tag.RowsAffected() == 0 {
		return skuimage.ErrSKUNotFound
	}
	return nil
}

// ListBySKUs returns the collections matching any of the given SKUs.
func (r *SKUImageRepository) ListBySKUs(ctx context.Context, skus []uint64) ([]*skuimage.Collection, error) {
	ids := make([]int64, len(skus))
	for i, sku := range skus {
		ids[i] = int64(sku)
	}

	rows, err := r.pool.Query(ctx, listCollectionsBySKUsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}

	collections, err := pgx.CollectRows(rows, scanCollection)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}

	out := make([]*skuimage.Collection, len(collections))
	for i := range collections {
		out[i] = &collections[i]
	}
	return out, nil
}

func scanCollection(row pgx.CollectableRow) (skuimage.Collection, error) {
	var (
		c   skuimage.Collection
		sku int64
	)
	err := row.Scan(&sku, &c.CoverImageID, &c.ImageIDs)
	c.SKU = uint64(sku)
	if c.ImageIDs == nil {
		c.ImageIDs = []string{}
	}
	return c, err
}
