// Package processor holds the HTTP client for the downstream image-processing
// service, which thumbnails and stores uploaded image bytes asynchronously.
package processor

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"

	"github.com/xenking/sku-image-service/internal/domain/skuimage"
)

var _ skuimage.Notifier = (*Client)(nil)

// Config holds the processor client settings.
type Config struct {
	// BaseURL is the processor's address, e.g. "http://img-processor:8081".
	BaseURL string
	// Timeout bounds each notification call. Zero means 30s.
	Timeout time.Duration
}

// Client notifies the image processor about new uploads over HTTP. Request
// bodies carry the raw image bytes and are gzip-compressed with a parallel
// writer, since uploads are routinely megabytes large.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a processor Client for the given configuration.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// ImageAdded posts the uploaded bytes to the processor's intake endpoint.
// Any non-2xx response is an error; the caller decides what a failed
// notification means for the originating request.
func (c *Client) ImageAdded(ctx context.Context, sku uint64, imageID string, data []byte) error {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("sku", func(e *jx.Encoder) { e.UInt64(sku) })
		e.Field("imageId", func(e *jx.Encoder) { e.Str(imageID) })
		e.Field("imageBytes", func(e *jx.Encoder) { e.Base64(data) })
	})

	var body bytes.Buffer
	zw := pgzip.NewWriter(&body)
	if _, err := zw.Write(e.Bytes()); err != nil {
		return errors.Wrap(err, "compress payload")
	}
	if err := zw.Close(); err != nil {
		return errors.Wrap(err, "compress payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/images", &body)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "post image")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Errorf("processor responded %d: %s", resp.StatusCode, msg)
	}
	return nil
}

// Ping reports whether the processor answers at all. Used by the readiness
// probe; any HTTP response counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/v1/images", nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "ping processor")
	}
	resp.Body.Close()
	return nil
}
