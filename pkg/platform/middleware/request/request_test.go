package request

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storegate/pkg/requestcontext"
)

func TestRequestID(t *testing.T) {
	t.Run("generates UUID when no header provided", func(t *testing.T) {
		var capturedID string
		handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			capturedID = requestcontext.RequestID(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/stores/1300", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Len(t, capturedID, 36)
		assert.Equal(t, capturedID, w.Header().Get("X-Request-ID"))
	})

	t.Run("accepts valid client-provided ID", func(t *testing.T) {
		var capturedID string
		handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			capturedID = requestcontext.RequestID(r.Context())
		}))

		req := httptest.NewRequest(http.MethodGet, "/stores/1300", nil)
		req.Header.Set("X-Request-ID", "trace.span_1234")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, "trace.span_1234", capturedID)
	})

	t.Run("replaces unsafe IDs", func(t *testing.T) {
		for _, id := range []string{"a\nb", "<script>", strings.Repeat("a", MaxRequestIDLength+1)} {
			assert.False(t, isValidRequestID(id), id)
		}
		assert.True(t, isValidRequestID(strings.Repeat("a", MaxRequestIDLength)))
	})
}

func TestRecovery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := Recovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("mapping exploded")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stores/1300", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	t.Run("logs status and keeps the writer flushable", func(t *testing.T) {
		handler := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, ok := w.(http.Flusher)
			assert.True(t, ok)
			w.WriteHeader(http.StatusTeapot)
		}))
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/merchants", nil))

		assert.Contains(t, buf.String(), `"status":418`)
		assert.Contains(t, buf.String(), `"path":"/merchants"`)
	})

	t.Run("skips healthy health checks", func(t *testing.T) {
		buf.Reset()
		handler := Logger(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Empty(t, buf.String())
	})
}

func TestBodyLimit(t *testing.T) {
	t.Run("request under limit passes through", func(t *testing.T) {
		handler := BodyLimit(1024)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			assert.Len(t, data, 100)
		}))

		req := httptest.NewRequest(http.MethodPost, "/ngt/api/orders", strings.NewReader(strings.Repeat("x", 100)))
		handler.ServeHTTP(httptest.NewRecorder(), req)
	})

	t.Run("request over limit fails to read", func(t *testing.T) {
		handler := BodyLimit(10)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, err := io.ReadAll(r.Body)
			var maxErr *http.MaxBytesError
			assert.ErrorAs(t, err, &maxErr)
		}))

		req := httptest.NewRequest(http.MethodPost, "/ngt/api/orders", strings.NewReader(strings.Repeat("x", 100)))
		handler.ServeHTTP(httptest.NewRecorder(), req)
	})
}

func TestLatencyMiddlewareUsesRoutePattern(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	r := chi.NewRouter()
	r.Use(LatencyMiddleware(m))
	r.Get("/stores/{chainId}", func(http.ResponseWriter, *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/stores/1300", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/stores/1100", nil))

	assert.Equal(t, 1, testutil.CollectAndCount(m.EndpointLatency))
}

func TestRequestIDFromContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	assert.Equal(t, "", requestcontext.RequestID(req.Context()))
}
