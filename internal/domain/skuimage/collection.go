// Package skuimage contains the per-SKU image collection model and the
// service that exposes it. A collection is the ordered list of image
// identifiers attached to one SKU plus a cover pointer; the cover always
// names an existing image while any image exists.
package skuimage

import (
	"encoding/hex"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// Sentinel errors for collection-level precondition violations.
var (
	ErrImageNotFound       = errors.New("image id does not belong to this SKU")
	ErrInvalidFromPosition = errors.New("start position does not exist")
	ErrInvalidToPosition   = errors.New("target position does not exist")
)

// Collection holds the ordered image identifiers of a single SKU together
// with its cover pointer. The zero CoverImageID value ("") means no cover.
//
// Invariants, restored by fixCover after every mutation:
//   - non-empty ImageIDs implies CoverImageID is a member of ImageIDs
//   - empty ImageIDs implies CoverImageID == ""
type Collection struct {
	SKU          uint64
	CoverImageID string
	ImageIDs     []string
}

// NewCollection creates an empty collection for the given SKU.
func NewCollection(sku uint64) *Collection {
	return &Collection{SKU: sku}
}

// AddImage generates a fresh image identifier, appends it to the end of the
// image list, and repairs the cover pointer. The file name and bytes are not
// stored here; the caller forwards them to the image processor. The returned
// identifier has the form "<token>.<ext>" where token is a dash-less UUIDv4.
func (c *Collection) AddImage(fileName, fileExt string, data []byte) string {
	_ = fileName
	_ = data

	id := uuid.New()
	imageID := hex.EncodeToString(id[:]) + "." + fileExt

	c.ImageIDs = append(c.ImageIDs, imageID)
	c.fixCover()
	return imageID
}

// SetCover points the cover at an existing image. It fails with
// ErrImageNotFound when the id is not a member of the collection, leaving
// the collection unchanged.
func (c *Collection) SetCover(imageID string) error {
	if !c.contains(imageID) {
		return errors.Wrapf(ErrImageNotFound, "set cover %q", imageID)
	}
	c.CoverImageID = imageID
	c.fixCover()
	return nil
}

// SwapImages exchanges the images at the two positions. The start position
// is validated before the target position; on failure the collection is
// unchanged. Membership does not change, so no cover repair is needed.
func (c *Collection) SwapImages(from, to int) error {
	if from < 0 || from >= len(c.ImageIDs) {
		return errors.Wrapf(ErrInvalidFromPosition, "swap from %d", from)
	}
	if to < 0 || to >= len(c.ImageIDs) {
		return errors.Wrapf(ErrInvalidToPosition, "swap to %d", to)
	}
	c.ImageIDs[from], c.ImageIDs[to] = c.ImageIDs[to], c.ImageIDs[from]
	return nil
}

// RemoveImage removes the first entry matching the id, preserving the order
// of the rest, and repairs the cover pointer. It fails with ErrImageNotFound
// when the id is not present.
func (c *Collection) RemoveImage(imageID string) error {
	for i, id := range c.ImageIDs {
		if id == imageID {
			c.ImageIDs = append(c.ImageIDs[:i], c.ImageIDs[i+1:]...)
			c.fixCover()
			return nil
		}
	}
	return errors.Wrapf(ErrImageNotFound, "remove %q", imageID)
}

// Images returns the image identifiers in display order. The returned slice
// is a copy; mutating it does not affect the collection.
func (c *Collection) Images() []string {
	out := make([]string, len(c.ImageIDs))
	copy(out, c.ImageIDs)
	return out
}

// Cover returns the cover image id and whether one is set.
func (c *Collection) Cover() (string, bool) {
	return c.CoverImageID, c.CoverImageID != ""
}

// Snapshot returns an immutable copy of the collection state.
func (c *Collection) Snapshot() Snapshot {
	return Snapshot{
		SKU:          c.SKU,
		CoverImageID: c.CoverImageID,
		ImageIDs:     c.Images(),
	}
}

// Clone returns a deep copy of the collection.
func (c *Collection) Clone() *Collection {
	return &Collection{
		SKU:          c.SKU,
		CoverImageID: c.CoverImageID,
		ImageIDs:     c.Images(),
	}
}

// Normalize repairs the cover invariant on a collection loaded from storage
// and reports whether anything changed. Rows written by the service always
// conform; this exists for auditing externally written data.
func (c *Collection) Normalize() bool {
	before := c.CoverImageID
	c.fixCover()
	return c.CoverImageID != before
}

func (c *Collection) contains(imageID string) bool {
	for _, id := range c.ImageIDs {
		if id == imageID {
			return true
		}
	}
	return false
}

// fixCover restores the cover invariant in two steps whose order matters:
// a dangling cover is cleared first, and only then an unset cover falls back
// to the first image. A cover that still names a present image is never
// disturbed.
func (c *Collection) fixCover() {
	if c.CoverImageID != "" && !c.contains(c.CoverImageID) {
		c.CoverImageID = ""
	}
	if c.CoverImageID == "" && len(c.ImageIDs) > 0 {
		c.CoverImageID = c.ImageIDs[0]
	}
}

// Snapshot is the read-only wire-facing view of a collection. An empty
// CoverImageID means the collection has no images.
type Snapshot struct {
	SKU          uint64
	CoverImageID string
	ImageIDs     []string
}

// CoverEntry is one row of the bulk cover query.
type CoverEntry struct {
	SKU          uint64
	CoverImageID string
}
