package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, h *Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	h.Register(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestLiveness(t *testing.T) {
	rec := serve(t, New("test"), "/health/live")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"alive"}`, rec.Body.String())
}

func TestReadiness(t *testing.T) {
	t.Run("all checks up", func(t *testing.T) {
		h := New("test")
		h.RegisterCheck("cache", func(context.Context) error { return nil })
		h.RegisterCheck("search", func(context.Context) error { return nil })

		rec := serve(t, h, "/health/ready")
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp ReadinessResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "ready", resp.Status)
		assert.Equal(t, map[string]string{"cache": "up", "search": "up"}, resp.Checks)
	})

	t.Run("one failing check makes the service not ready", func(t *testing.T) {
		h := New("test")
		h.RegisterCheck("cache", func(context.Context) error { return nil })
		h.RegisterCheck("search", func(context.Context) error { return errors.New("cluster is red") })

		rec := serve(t, h, "/health/ready")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var resp ReadinessResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "not_ready", resp.Status)
		assert.Equal(t, "down: cluster is red", resp.Checks["search"])
	})

	t.Run("checks receive a deadline", func(t *testing.T) {
		h := New("test")
		h.RegisterCheck("cache", func(ctx context.Context) error {
			if _, ok := ctx.Deadline(); !ok {
				return errors.New("no deadline")
			}
			return nil
		})

		rec := serve(t, h, "/health/ready")
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestStatus(t *testing.T) {
	rec := serve(t, New("staging"), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "staging", resp.Environment)
	assert.Equal(t, Version, resp.Version)
}
