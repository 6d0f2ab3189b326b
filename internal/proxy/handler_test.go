package proxy

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storegate/internal/platform/config"
	"storegate/pkg/validation"
)

func newTestHandler(t *testing.T, upstream http.HandlerFunc) http.Handler {
	t.Helper()
	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	router := NewRouter(config.Backends{Default: srv.URL})
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	h := NewHandler(NewClient(router, true, time.Second, WithLogger(logger)), router, logger)

	r := chi.NewRouter()
	h.Register(r)
	return r
}

func TestHandleProxy(t *testing.T) {
	t.Run("strips the prefix and streams the answer", func(t *testing.T) {
		gotURI := make(chan string, 1)
		r := newTestHandler(t, func(w http.ResponseWriter, req *http.Request) {
			gotURI <- req.URL.RequestURI()
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, "created")
		})

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/ngt/api/cart/1?source=crm&x=y", strings.NewReader(`{"q":1}`)))

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "created", rec.Body.String())
		assert.Equal(t, "/api/cart/1?x=y", <-gotURI)
	})

	t.Run("upstream errors reach the caller verbatim", func(t *testing.T) {
		r := newTestHandler(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusConflict)
			_, _ = io.WriteString(w, `{"error":"stale cart"}`)
		})

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ngt/api/cart", nil))

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.JSONEq(t, `{"error":"stale cart"}`, rec.Body.String())
	})

	t.Run("oversized bodies are rejected", func(t *testing.T) {
		called := make(chan struct{}, 1)
		r := newTestHandler(t, func(http.ResponseWriter, *http.Request) { called <- struct{}{} })

		rec := httptest.NewRecorder()
		big := bytes.Repeat([]byte("a"), validation.MaxProxyBodySize+1)
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ngt/api/cart", bytes.NewReader(big)))

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, called)
	})
}
