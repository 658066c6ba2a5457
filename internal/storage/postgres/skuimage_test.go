//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/sku-image-service/internal/domain/skuimage"
)

// startPostgres launches a throwaway PostgreSQL container and returns a
// migrated repository against it.
func startPostgres(t *testing.T) *SKUImageRepository {
	t.Helper()
	ctx := context.Background()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "skuimages",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = ctr.Terminate(context.Background())
	})

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "5432")
	require.NoError(t, err)

	url := fmt.Sprintf("postgres://test:test@%s:%s/skuimages?sslmode=disable", host, port.Port())
	pool, err := NewPool(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, RunMigrations(ctx, pool))
	return NewSKUImageRepository(pool)
}

func TestSKUImageRepository(t *testing.T) {
	repo := startPostgres(t)
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		_, err := repo.Get(ctx, 999)
		require.ErrorIs(t, err, skuimage.ErrSKUNotFound)
	})

	t.Run("insert and get", func(t *testing.T) {
		c := skuimage.NewCollection(10)
		c.AddImage("a", "png", nil)
		require.NoError(t, repo.Insert(ctx, c))

		got, err := repo.Get(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, c.SKU, got.SKU)
		assert.Equal(t, c.ImageIDs, got.ImageIDs)
		assert.Equal(t, c.CoverImageID, got.CoverImageID)
	})

	t.Run("duplicate insert", func(t *testing.T) {
		err := repo.Insert(ctx, skuimage.NewCollection(10))
		require.ErrorIs(t, err, skuimage.ErrAlreadyExists)
	})

	t.Run("update", func(t *testing.T) {
		got, err := repo.Get(ctx, 10)
		require.NoError(t, err)

		got.AddImage("b", "jpg", nil)
		require.NoError(t, repo.Update(ctx, got))

		again, err := repo.Get(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, again.ImageIDs, 2)
		assert.Equal(t, got.CoverImageID, again.CoverImageID)
	})

	t.Run("update missing", func(t *testing.T) {
		err := repo.Update(ctx, skuimage.NewCollection(999))
		require.ErrorIs(t, err, skuimage.ErrSKUNotFound)
	})

	t.Run("empty collection roundtrip", func(t *testing.T) {
		require.NoError(t, repo.Insert(ctx, skuimage.NewCollection(30)))

		got, err := repo.Get(ctx, 30)
		require.NoError(t, err)
		assert.Empty(t, got.ImageIDs)
		assert.Empty(t, got.CoverImageID)
	})

	t.Run("list by skus", func(t *testing.T) {
		c := skuimage.NewCollection(20)
		c.AddImage("c", "png", nil)
		require.NoError(t, repo.Insert(ctx, c))

		got, err := repo.ListBySKUs(ctx, []uint64{10, 20, 999})
		require.NoError(t, err)
		require.Len(t, got, 2, "missing SKUs are skipped")
		assert.Equal(t, uint64(10), got[0].SKU)
		assert.Equal(t, uint64(20), got[1].SKU)
	})
}
