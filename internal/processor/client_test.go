package processor

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decodePayload gunzips and decodes the notification body.
func decodePayload(t *testing.T, r io.Reader) (sku uint64, imageID string, data []byte) {
	t.Helper()

	zr, err := gzip.NewReader(r)
	require.NoError(t, err)
	raw, err := io.ReadAll(zr)
	require.NoError(t, err)

	d := jx.DecodeBytes(raw)
	require.NoError(t, d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "sku":
			sku, err = d.UInt64()
		case "imageId":
			imageID, err = d.Str()
		case "imageBytes":
			data, err = d.Base64()
		default:
			err = d.Skip()
		}
		return err
	}))
	return sku, imageID, data
}

func TestImageAdded(t *testing.T) {
	var (
		gotPath    string
		gotSKU     uint64
		gotImageID string
		gotData    []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "gzip", r.Header.Get("Content-Encoding"))
		gotSKU, gotImageID, gotData = decodePayload(t, r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	err := c.ImageAdded(context.Background(), 10, "abc.png", []byte("image-bytes"))
	require.NoError(t, err)

	assert.Equal(t, "/v1/images", gotPath)
	assert.Equal(t, uint64(10), gotSKU)
	assert.Equal(t, "abc.png", gotImageID)
	assert.Equal(t, []byte("image-bytes"), gotData)
}

func TestImageAdded_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "queue full", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	err := c.ImageAdded(context.Background(), 10, "abc.png", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "queue full")
}

func TestImageAdded_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // nothing listening anymore

	c := New(Config{BaseURL: srv.URL})
	err := c.ImageAdded(context.Background(), 10, "abc.png", nil)
	require.Error(t, err)
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		// Even an error status means the processor is reachable.
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	require.NoError(t, c.Ping(context.Background()))
}
