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

func TestHandleReadiness(t *testing.T) {
	t.Run("ready when all checks pass", func(t *testing.T) {
		h := New("test")
		h.RegisterCheck("backend", func(context.Context) error { return nil })
		h.RegisterCheck("redis", func(context.Context) error { return nil })

		w := httptest.NewRecorder()
		h.HandleReadiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var resp ReadinessResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "ready", resp.Status)
		assert.Equal(t, "up", resp.Checks["backend"])
		assert.Equal(t, "up", resp.Checks["redis"])
	})

	t.Run("one failing check makes the service not ready", func(t *testing.T) {
		h := New("test")
		h.RegisterCheck("backend", func(context.Context) error { return nil })
		h.RegisterCheck("database", func(context.Context) error { return errors.New("connection refused") })

		w := httptest.NewRecorder()
		h.HandleReadiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

		require.Equal(t, http.StatusServiceUnavailable, w.Code)
		var resp ReadinessResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "not_ready", resp.Status)
		assert.Contains(t, resp.Checks["database"], "connection refused")
		assert.Equal(t, "up", resp.Checks["backend"])
	})

	t.Run("checks run under a deadline", func(t *testing.T) {
		h := New("test")
		var hadDeadline bool
		h.RegisterCheck("backend", func(ctx context.Context) error {
			_, hadDeadline = ctx.Deadline()
			return nil
		})

		h.HandleReadiness(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/ready", nil))
		assert.True(t, hadDeadline)
	})
}

func TestHandleLiveness(t *testing.T) {
	w := httptest.NewRecorder()
	New("test").HandleLiveness(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleStatus(t *testing.T) {
	w := httptest.NewRecorder()
	New("staging").HandleStatus(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var resp StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "staging", resp.Environment)
}

func TestRegisterMountsRoutes(t *testing.T) {
	r := chi.NewRouter()
	New("test").Register(r)

	for _, path := range []string{"/health", "/health/live", "/health/ready"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}
