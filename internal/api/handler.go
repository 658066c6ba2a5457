// Package api binds the SKU image service to its HTTP surface. Requests and
// responses are plain JSON encoded with go-faster/jx; the bulk cover query
// streams newline-delimited JSON.
package api

import (
	"net/http"
	"strconv"

	"github.com/xenking/sku-image-service/internal/domain/skuimage"
)

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// MaxUploadBytes caps the AddImage request body. Zero means 32 MiB.
	MaxUploadBytes int64
}

// Handler exposes the skuimage.Service operations over HTTP.
type Handler struct {
	svc       *skuimage.Service
	maxUpload int64
}

// NewHandler constructs a Handler around the given service.
func NewHandler(cfg HandlerConfig, svc *skuimage.Service) *Handler {
	maxUpload := cfg.MaxUploadBytes
	if maxUpload == 0 {
		maxUpload = 32 << 20
	}
	return &Handler{svc: svc, maxUpload: maxUpload}
}

// Register attaches all routes to the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/images", h.AddImage)
	mux.HandleFunc("GET /api/skus/{sku}/images", h.GetImages)
	mux.HandleFunc("PUT /api/skus/{sku}/cover", h.SetCover)
	mux.HandleFunc("POST /api/skus/{sku}/images/swap", h.SwapImages)
	mux.HandleFunc("DELETE /api/skus/{sku}/images/{imageId}", h.RemoveImage)
	mux.HandleFunc("POST /api/covers/query", h.GetCoverBulk)
}

// skuFromPath parses the {sku} path segment.
func skuFromPath(r *http.Request) (uint64, bool) {
	sku, err := strconv.ParseUint(r.PathValue("sku"), 10, 64)
	return sku, err == nil
}
