package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "storegate/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "not found", err: dErrors.New(dErrors.CodeNotFound, "store 42 not found"), wantStatus: http.StatusNotFound, wantCode: "not_found"},
		{name: "unknown chain", err: dErrors.New(dErrors.CodeUnknownChain, "chain 9999"), wantStatus: http.StatusBadRequest, wantCode: "unknown_chain"},
		{name: "unsupported option", err: dErrors.ErrUnsupportedOption, wantStatus: http.StatusBadRequest, wantCode: "unsupported_option"},
		{name: "cache unavailable", err: dErrors.New(dErrors.CodeCacheUnavailable, "not connected"), wantStatus: http.StatusServiceUnavailable, wantCode: "cache_unavailable"},
		{name: "upstream keeps status", err: dErrors.NewUpstream(http.StatusServiceUnavailable, "index down", nil), wantStatus: http.StatusServiceUnavailable, wantCode: "upstream_error"},
		{name: "upstream below 400 becomes 502", err: dErrors.NewUpstream(http.StatusNotModified, "odd", nil), wantStatus: http.StatusBadGateway, wantCode: "upstream_error"},
		{name: "unexpected", err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantCode: "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body["error"])
		})
	}
}

func TestWriteErrorReplaysProxyBody(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, &dErrors.ProxyError{
		StatusCode: http.StatusConflict,
		Header:     http.Header{"Content-Type": []string{"text/plain"}},
		Body:       []byte("order locked"),
	})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "text/plain", w.Header().Get("Content-Type"))
	assert.Equal(t, "order locked", w.Body.String())
}

type postalRequest struct {
	PostalCode string
	normalized bool
}

func (r *postalRequest) Normalize() {
	r.normalized = true
}

func (r *postalRequest) Validate() error {
	if r.PostalCode == "" {
		return errors.New("postal code is required")
	}
	return nil
}

func TestPrepare(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	ctx := context.Background()

	t.Run("normalizes and validates", func(t *testing.T) {
		req := &postalRequest{PostalCode: "0150"}
		w := httptest.NewRecorder()
		assert.True(t, Prepare(w, req, logger, ctx, "req-1"))
		assert.True(t, req.normalized)
	})

	t.Run("plain validation errors become invalid_argument", func(t *testing.T) {
		w := httptest.NewRecorder()
		assert.False(t, Prepare(w, &postalRequest{}, logger, ctx, "req-1"))
		assert.Equal(t, http.StatusBadRequest, w.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "invalid_argument", body["error"])
		assert.Equal(t, "postal code is required", body["error_description"])
	})

	t.Run("non-validatable types pass", func(t *testing.T) {
		assert.NoError(t, PrepareRequest(&struct{}{}))
	})
}
