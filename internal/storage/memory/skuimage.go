// Package memory implements the SKU image repository as an in-process map.
// It backs tests and the no-database development mode; state does not
// survive a restart.
package memory

import (
	"context"
	"sync"

	"github.com/xenking/sku-image-service/internal/domain/skuimage"
)

var _ skuimage.Repository = (*SKUImageRepository)(nil)

// SKUImageRepository is an in-memory skuimage.Repository implementation.
// It is safe for concurrent use on its own, though the service layer
// already serializes mutations.
type SKUImageRepository struct {
	mu    sync.RWMutex
	bySKU map[uint64]*skuimage.Collection
}

// NewSKUImageRepository creates an empty in-memory repository.
func NewSKUImageRepository() *SKUImageRepository {
	return &SKUImageRepository{bySKU: make(map[uint64]*skuimage.Collection)}
}

// Get returns a copy of the collection for the SKU, or
// skuimage.ErrSKUNotFound.
func (r *SKUImageRepository) Get(_ context.Context, sku uint64) (*skuimage.Collection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.bySKU[sku]
	if !ok {
		return nil, skuimage.ErrSKUNotFound
	}
	return c.Clone(), nil
}

// Insert stores a collection for a SKU without one, or fails with
// skuimage.ErrAlreadyExists.
func (r *SKUImageRepository) Insert(_ context.Context, c *skuimage.Collection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.bySKU[c.SKU]; ok {
		return skuimage.ErrAlreadyExists
	}
	r.bySKU[c.SKU] = c.Clone()
	return nil
}

// Update overwrites the stored collection for an existing SKU.
func (r *SKUImageRepository) Update(_ context.Context, c *skuimage.Collection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.bySKU[c.SKU]; !ok {
		return skuimage.ErrSKUNotFound
	}
	r.bySKU[c.SKU] = c.Clone()
	return nil
}

// ListBySKUs returns copies of the collections matching any of the given
// SKUs, in request order. Missing SKUs are skipped.
func (r *SKUImageRepository) ListBySKUs(_ context.Context, skus []uint64) ([]*skuimage.Collection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*skuimage.Collection, 0, len(skus))
	for _, sku := range skus {
		if c, ok := r.bySKU[sku]; ok {
			out = append(out, c.Clone())
		}
	}
	return out, nil
}
