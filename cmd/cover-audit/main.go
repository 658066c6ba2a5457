// Command cover-audit scans every stored SKU image collection and verifies
// the cover invariant: a non-empty collection must have a cover that names
// one of its images. Rows written by older software can violate it; with
// -fix the tool repairs them using the same fallback rule the service
// applies (dangling cover cleared, first image promoted).
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/sku-image-service/internal/domain/skuimage"
	"github.com/xenking/sku-image-service/internal/storage/postgres"
)

const defaultWorkers = 4

func main() {
	var (
		databaseURL string
		fix         bool
		workers     int
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.BoolVar(&fix, "fix", false, "repair violations instead of only reporting them")
	flag.IntVar(&workers, "workers", defaultWorkers, "number of concurrent repair workers")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, fix, workers); err != nil {
		slog.Error("cover audit failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, databaseURL string, fix bool, workers int) error {
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	rows, err := pool.Query(ctx, `SELECT sku, cover_image_id, image_ids FROM sku_images ORDER BY sku`)
	if err != nil {
		return errors.Wrap(err, "query collections")
	}

	collections, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (skuimage.Collection, error) {
		var (
			c   skuimage.Collection
			sku int64
		)
		err := row.Scan(&sku, &c.CoverImageID, &c.ImageIDs)
		c.SKU = uint64(sku)
		return c, err
	})
	if err != nil {
		return errors.Wrap(err, "scan collections")
	}

	slog.Info("scanning collections", slog.Int("count", len(collections)), slog.Bool("fix", fix))

	var violations, repaired atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range collections {
		c := collections[i]
		fixed := c.Clone()
		if !fixed.Normalize() {
			continue
		}
		violations.Add(1)

		slog.Warn("cover invariant violated",
			slog.Uint64("sku", c.SKU),
			slog.String("cover", c.CoverImageID),
			slog.String("want", fixed.CoverImageID),
		)
		if !fix {
			continue
		}

		g.Go(func() error {
			tag, err := pool.Exec(ctx,
				`UPDATE sku_images SET cover_image_id = $2, updated_at = now() WHERE sku = $1`,
				int64(c.SKU), fixed.CoverImageID,
			)
			if err != nil {
				return errors.Wrapf(err, "repair sku %d", c.SKU)
			}
			if tag.RowsAffected() == 1 {
				repaired.Add(1)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("cover audit completed",
		slog.Int("collections", len(collections)),
		slog.Int64("violations", violations.Load()),
		slog.Int64("repaired", repaired.Load()),
	)
	return nil
}
