package skuimage

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Store-level sentinel errors.
var (
	// ErrSKUNotFound indicates the addressed SKU has no collection.
	ErrSKUNotFound = errors.New("sku not found")
	// ErrAlreadyExists indicates an insert for a SKU that already has a
	// collection. Under the service mutex the find-or-create sequence is
	// atomic, so this surfacing to a caller means a store-level bug.
	ErrAlreadyExists = errors.New("sku collection already exists")
	// ErrProcessorUnavailable wraps a failed image-processor notification.
	// The local mutation is already durable when this is returned.
	ErrProcessorUnavailable = errors.New("image processor unavailable")
)

// Repository defines durable keyed access to SKU image collections. It is
// not assumed to be safe for concurrent mutation; the Service serializes
// access with its own guard.
type Repository interface {
	// Get returns the collection for the SKU, or ErrSKUNotFound.
	Get(ctx context.Context, sku uint64) (*Collection, error)
	// Insert stores a collection for a SKU that has none yet, or fails
	// with ErrAlreadyExists.
	Insert(ctx context.Context, c *Collection) error
	// Update overwrites the stored collection for an existing SKU.
	Update(ctx context.Context, c *Collection) error
	// ListBySKUs returns the collections of the requested SKUs; missing
	// SKUs are skipped, not reported.
	ListBySKUs(ctx context.Context, skus []uint64) ([]*Collection, error)
}

// Notifier forwards freshly uploaded image bytes to the downstream
// image-processing service.
type Notifier interface {
	ImageAdded(ctx context.Context, sku uint64, imageID string, data []byte) error
}

// AddImageRequest holds the input for Service.AddImage. FileName and
// ImageBytes are passed through to the image processor untouched.
type AddImageRequest struct {
	SKU           uint64
	FileName      string
	FileExtension string
	ImageBytes    []byte
}

// Service orchestrates collection mutations against the repository.
//
// A single mutex spans every load-mutate-persist sequence, so at most one
// mutation is in flight against the store at any time and find-or-create in
// AddImage is atomic. Reads take the same guard briefly to snapshot, so a
// read never observes a half-applied mutation. The processor notification
// is made strictly after the guard is released: holding a lock across a
// remote call would stall every other request on a slow collaborator.
type Service struct {
	mu       sync.Mutex
	repo     Repository
	notifier Notifier
}

// NewService creates a Service backed by the given repository and processor
// notifier.
func NewService(repo Repository, notifier Notifier) *Service {
	return &Service{repo: repo, notifier: notifier}
}

// AddImage attaches a new image to the SKU's collection, creating the
// collection on first use, and notifies the image processor with the
// uploaded bytes. The mutation is durable before the notification starts;
// a notification failure is returned as ErrProcessorUnavailable while the
// new image id stays persisted (reconcile out of band using the logged
// sku and image id).
func (s *Service) AddImage(ctx context.Context, req AddImageRequest) (string, error) {
	imageID, err := s.addImage(ctx, req)
	if err != nil {
		return "", err
	}

	if err := s.notifier.ImageAdded(ctx, req.SKU, imageID, req.ImageBytes); err != nil {
		zctx.From(ctx).Error("Image processor notification failed, image kept",
			zap.Uint64("sku", req.SKU),
			zap.String("image_id", imageID),
			zap.Error(err),
		)
		return "", errors.Wrapf(ErrProcessorUnavailable, "notify sku %d image %s: %s", req.SKU, imageID, err)
	}
	return imageID, nil
}

// addImage performs the guarded find-or-create and persist sequence.
func (s *Service) addImage(ctx context.Context, req AddImageRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.repo.Get(ctx, req.SKU)
	switch {
	case err == nil:
		imageID := c.AddImage(req.FileName, req.FileExtension, req.ImageBytes)
		if err := s.repo.Update(ctx, c); err != nil {
			return "", errors.Wrap(err, "update collection")
		}
		return imageID, nil

	case errors.Is(err, ErrSKUNotFound):
		c = NewCollection(req.SKU)
		imageID := c.AddImage(req.FileName, req.FileExtension, req.ImageBytes)
		if err := s.repo.Insert(ctx, c); err != nil {
			// The guard makes a concurrent insert impossible, so an
			// AlreadyExists here is an internal invariant violation.
			return "", errors.Wrap(err, "insert collection")
		}
		return imageID, nil

	default:
		return "", errors.Wrap(err, "get collection")
	}
}

// SetCover makes an existing image the SKU's cover and returns the updated
// snapshot.
func (s *Service) SetCover(ctx context.Context, sku uint64, imageID string) (Snapshot, error) {
	return s.mutate(ctx, sku, func(c *Collection) error {
		return c.SetCover(imageID)
	})
}

// SwapImages exchanges two positions in the SKU's image order and returns
// the updated snapshot.
func (s *Service) SwapImages(ctx context.Context, sku uint64, from, to int) (Snapshot, error) {
	return s.mutate(ctx, sku, func(c *Collection) error {
		return c.SwapImages(from, to)
	})
}

// RemoveImage detaches an image from the SKU's collection and returns the
// updated snapshot.
func (s *Service) RemoveImage(ctx context.Context, sku uint64, imageID string) (Snapshot, error) {
	return s.mutate(ctx, sku, func(c *Collection) error {
		return c.RemoveImage(imageID)
	})
}

// mutate is the shared guard-locate-mutate-persist sequence behind SetCover,
// SwapImages, and RemoveImage. The collection is left untouched in the store
// when op fails.
func (s *Service) mutate(ctx context.Context, sku uint64, op func(*Collection) error) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.repo.Get(ctx, sku)
	if err != nil {
		return Snapshot{}, errors.Wrapf(err, "get sku %d", sku)
	}
	if err := op(c); err != nil {
		return Snapshot{}, err
	}
	if err := s.repo.Update(ctx, c); err != nil {
		return Snapshot{}, errors.Wrapf(err, "update sku %d", sku)
	}
	return c.Snapshot(), nil
}

// GetImages returns the current snapshot of the SKU's collection.
func (s *Service) GetImages(ctx context.Context, sku uint64) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.repo.Get(ctx, sku)
	if err != nil {
		return Snapshot{}, errors.Wrapf(err, "get sku %d", sku)
	}
	return c.Snapshot(), nil
}

// EachCover invokes fn once per requested SKU that exists and has a cover
// set; other SKUs are silently skipped. The entries are collected under the
// guard and fn runs after it is released, so callers may stream entries to
// a slow client without blocking mutations.
func (s *Service) EachCover(ctx context.Context, skus []uint64, fn func(CoverEntry) error) error {
	s.mu.Lock()
	collections, err := s.repo.ListBySKUs(ctx, skus)
	s.mu.Unlock()
	if err != nil {
		return errors.Wrap(err, "list collections")
	}

	for _, c := range collections {
		cover, ok := c.Cover()
		if !ok {
			continue
		}
		if err := fn(CoverEntry{SKU: c.SKU, CoverImageID: cover}); err != nil {
			return err
		}
	}
	return nil
}
