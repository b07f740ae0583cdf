package http

import (
	"context"
	"errors"
	stdhttp "net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	healthy := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	newRouter := func(checkers map[string]HealthChecker) stdhttp.Handler {
		r := chi.NewRouter()
		NewHealthHandler("1.2.3", checkers).RegisterRoutes(r)
		return r
	}

	t.Run("live ignores dependencies", func(t *testing.T) {
		rec := do(t, newRouter(map[string]HealthChecker{"database": down}), stdhttp.MethodGet, "/health/live", nil)
		assert.Equal(t, stdhttp.StatusOK, rec.Code)
	})

	t.Run("ready when every checker answers", func(t *testing.T) {
		rec := do(t, newRouter(map[string]HealthChecker{"database": healthy, "redis": healthy}), stdhttp.MethodGet, "/health/ready", nil)

		require.Equal(t, stdhttp.StatusOK, rec.Code)
		resp := decodeBody[HealthResponse](t, rec)
		assert.Equal(t, "healthy", resp.Status)
		assert.Len(t, resp.Checks, 2)
		assert.Equal(t, "1.2.3", resp.Version)
	})

	t.Run("not ready when one fails", func(t *testing.T) {
		rec := do(t, newRouter(map[string]HealthChecker{"database": healthy, "redis": down}), stdhttp.MethodGet, "/health/ready", nil)

		require.Equal(t, stdhttp.StatusServiceUnavailable, rec.Code)
		resp := decodeBody[HealthResponse](t, rec)
		assert.Equal(t, "unhealthy", resp.Checks["redis"].Status)
		assert.Equal(t, "connection refused", resp.Checks["redis"].Message)
	})

	t.Run("detailed reports degraded", func(t *testing.T) {
		rec := do(t, newRouter(map[string]HealthChecker{"database": down}), stdhttp.MethodGet, "/health", nil)

		require.Equal(t, stdhttp.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "degraded", decodeBody[HealthResponse](t, rec).Status)
	})
}
