package api

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/sku-image-service/internal/domain/skuimage"
)

// writeError responds with the {code, message} envelope mapped from the
// domain error taxonomy. Infrastructure faults are logged and masked behind
// a generic message; precondition failures go to the caller verbatim.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapStatus(err)
	msg := err.Error()

	switch status {
	case http.StatusInternalServerError:
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		msg = "internal error"
	case http.StatusConflict:
		// Unreachable under the service guard; if it fires, it is a bug
		// worth an error-level log even though the caller sees 409.
		zctx.From(r.Context()).Error("Insert race detected", zap.Error(err))
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(status) })
		e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeBadRequest responds 400 with the given message, for transport-level
// input problems (malformed JSON, bad path segments).
func writeBadRequest(w http.ResponseWriter, msg string) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(http.StatusBadRequest) })
		e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_, _ = w.Write(e.Bytes())
}

func mapStatus(err error) int {
	switch {
	case errors.Is(err, skuimage.ErrSKUNotFound),
		errors.Is(err, skuimage.ErrImageNotFound):
		return http.StatusNotFound
	case errors.Is(err, skuimage.ErrInvalidFromPosition),
		errors.Is(err, skuimage.ErrInvalidToPosition):
		return http.StatusBadRequest
	case errors.Is(err, skuimage.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, skuimage.ErrProcessorUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
