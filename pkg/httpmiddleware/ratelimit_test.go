package httpmiddleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hit(t *testing.T, h http.Handler, remoteAddr string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("under limit passes with headers", func(t *testing.T) {
		h := RateLimit(RateLimitConfig{Max: 5, Window: time.Minute})(ok)
		for i := 0; i < 5; i++ {
			w := hit(t, h, "192.168.1.1:12345", nil)
			require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
			assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
			assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
			assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
		}
	})

	t.Run("over limit rejected with JSON body", func(t *testing.T) {
		h := RateLimit(RateLimitConfig{Max: 2, Window: time.Minute})(ok)
		for i := 0; i < 2; i++ {
			require.Equal(t, http.StatusOK, hit(t, h, "10.0.0.1:9999", nil).Code)
		}

		w := hit(t, h, "10.0.0.1:9999", nil)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, float64(429), body["code"])
		assert.Equal(t, "rate limit exceeded", body["message"])
	})

	t.Run("limits are per client", func(t *testing.T) {
		h := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute})(ok)
		assert.Equal(t, http.StatusOK, hit(t, h, "10.0.0.1:1234", nil).Code)
		assert.Equal(t, http.StatusOK, hit(t, h, "10.0.0.2:1234", nil).Code)
		// Same client, different ephemeral port.
		assert.Equal(t, http.StatusTooManyRequests, hit(t, h, "10.0.0.1:5678", nil).Code)
	})

	t.Run("custom key func", func(t *testing.T) {
		h := RateLimit(RateLimitConfig{
			Max:    1,
			Window: time.Minute,
			KeyFunc: func(r *http.Request) string {
				return r.Header.Get("X-API-Key")
			},
		})(ok)
		assert.Equal(t, http.StatusOK, hit(t, h, "1.1.1.1:1", map[string]string{"X-API-Key": "key-a"}).Code)
		assert.Equal(t, http.StatusTooManyRequests, hit(t, h, "2.2.2.2:2", map[string]string{"X-API-Key": "key-a"}).Code)
		assert.Equal(t, http.StatusOK, hit(t, h, "1.1.1.1:1", map[string]string{"X-API-Key": "key-b"}).Code)
	})

	t.Run("keys on first forwarded address", func(t *testing.T) {
		h := RateLimit(RateLimitConfig{Max: 1, Window: time.Minute})(ok)
		fwd := map[string]string{"X-Forwarded-For": "203.0.113.50, 70.41.3.18"}
		assert.Equal(t, http.StatusOK, hit(t, h, "192.168.1.1:4444", fwd).Code)
		assert.Equal(t, http.StatusTooManyRequests, hit(t, h, "192.168.1.2:5555", fwd).Code)
	})
}
