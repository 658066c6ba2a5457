package api

import (
	"io"
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/sku-image-service/internal/domain/skuimage"
)

// AddImage handles POST /api/images. It attaches a new image to the SKU's
// collection (creating it on first use) and forwards the bytes to the image
// processor. Responds 201 with the new image id.
func (h *Handler) AddImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "request body too large or unreadable")
		return
	}

	var req skuimage.AddImageRequest
	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "sku":
			req.SKU, err = d.UInt64()
		case "fileName":
			req.FileName, err = d.Str()
		case "fileExtension":
			req.FileExtension, err = d.Str()
		case "imageBytes":
			req.ImageBytes, err = d.Base64()
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.FileExtension == "" {
		writeBadRequest(w, "fileExtension is required")
		return
	}

	imageID, err := h.svc.AddImage(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("newImageId", func(e *jx.Encoder) { e.Str(imageID) })
	})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(e.Bytes())
}

// GetImages handles GET /api/skus/{sku}/images.
func (h *Handler) GetImages(w http.ResponseWriter, r *http.Request) {
	sku, ok := skuFromPath(r)
	if !ok {
		writeBadRequest(w, "invalid sku")
		return
	}

	snap, err := h.svc.GetImages(r.Context(), sku)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSnapshot(w, snap)
}

// SetCover handles PUT /api/skus/{sku}/cover.
func (h *Handler) SetCover(w http.ResponseWriter, r *http.Request) {
	sku, ok := skuFromPath(r)
	if !ok {
		writeBadRequest(w, "invalid sku")
		return
	}

	imageID, ok := decodeImageID(r)
	if !ok {
		writeBadRequest(w, "invalid request body")
		return
	}

	snap, err := h.svc.SetCover(r.Context(), sku, imageID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSnapshot(w, snap)
}

// SwapImages handles POST /api/skus/{sku}/images/swap.
func (h *Handler) SwapImages(w http.ResponseWriter, r *http.Request) {
	sku, ok := skuFromPath(r)
	if !ok {
		writeBadRequest(w, "invalid sku")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "unreadable request body")
		return
	}

	var (
		from, to         int
		fromSeen, toSeen bool
	)
	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "from":
			from, err = d.Int()
			fromSeen = true
		case "to":
			to, err = d.Int()
			toSeen = true
		default:
			err = d.Skip()
		}
		return err
	}); err != nil || !fromSeen || !toSeen {
		writeBadRequest(w, "invalid request body")
		return
	}

	snap, err := h.svc.SwapImages(r.Context(), sku, from, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSnapshot(w, snap)
}

// RemoveImage handles DELETE /api/skus/{sku}/images/{imageId}.
func (h *Handler) RemoveImage(w http.ResponseWriter, r *http.Request) {
	sku, ok := skuFromPath(r)
	if !ok {
		writeBadRequest(w, "invalid sku")
		return
	}
	imageID := r.PathValue("imageId")

	snap, err := h.svc.RemoveImage(r.Context(), sku, imageID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeSnapshot(w, snap)
}

// GetCoverBulk handles POST /api/covers/query. The response is
// newline-delimited JSON, one {sku, coverImageId} object per requested SKU
// that has a cover, flushed per line so large requests stream with bounded
// memory. SKUs without a collection or cover are omitted.
func (h *Handler) GetCoverBulk(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "unreadable request body")
		return
	}

	var skus []uint64
	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "skuIds" {
			return d.Skip()
		}
		return d.Arr(func(d *jx.Decoder) error {
			sku, err := d.UInt64()
			if err != nil {
				return err
			}
			skus = append(skus, sku)
			return nil
		})
	}); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	err = h.svc.EachCover(r.Context(), skus, func(entry skuimage.CoverEntry) error {
		var e jx.Encoder
		e.Obj(func(e *jx.Encoder) {
			e.Field("sku", func(e *jx.Encoder) { e.UInt64(entry.SKU) })
			e.Field("coverImageId", func(e *jx.Encoder) { e.Str(entry.CoverImageID) })
		})
		if _, err := w.Write(append(e.Bytes(), '\n')); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})
	if err != nil {
		// Headers are sent; stop the stream and let the client detect the
		// truncation. Logged upstream by the request logger.
		return
	}
}

// decodeImageID reads an {"imageId": "..."} body.
func decodeImageID(r *http.Request) (string, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return "", false
	}

	var imageID string
	d := jx.DecodeBytes(body)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		if key != "imageId" {
			return d.Skip()
		}
		var err error
		imageID, err = d.Str()
		return err
	}); err != nil || imageID == "" {
		return "", false
	}
	return imageID, true
}

// writeSnapshot responds 200 with the collection snapshot wire shape:
// {sku, coverImageId, imageIds}. An empty coverImageId means no cover.
func writeSnapshot(w http.ResponseWriter, snap skuimage.Snapshot) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("sku", func(e *jx.Encoder) { e.UInt64(snap.SKU) })
		e.Field("coverImageId", func(e *jx.Encoder) { e.Str(snap.CoverImageID) })
		e.Field("imageIds", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, id := range snap.ImageIDs {
					e.Str(id)
				}
			})
		})
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(e.Bytes())
}
