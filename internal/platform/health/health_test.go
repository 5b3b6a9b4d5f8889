package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPinger struct{ err error }

func (s stubPinger) HealthCheck(context.Context) error { return s.err }

func TestCheckAggregatesStatus(t *testing.T) {
	h := NewHandler("notification", "test")
	h.AddCheck("mongodb", FromPinger(stubPinger{}))
	h.AddCheck("redis", FromPinger(stubPinger{err: errors.New("connection refused")}))

	resp := h.Check(context.Background())

	assert.Equal(t, StatusUnhealthy, resp.Status)
	require.Contains(t, resp.Checks, "redis")
	assert.Equal(t, "connection refused", resp.Checks["redis"].Message)
	assert.Equal(t, StatusHealthy, resp.Checks["mongodb"].Status)
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"healthy", nil, http.StatusOK},
		{"unhealthy", errors.New("down"), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler("notification", "test")
			h.AddCheck("mongodb", FromPinger(stubPinger{err: tt.err}))

			rec := httptest.NewRecorder()
			h.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestOptionalCheckDegrades(t *testing.T) {
	h := NewHandler("notification", "test")
	h.AddCheck("mongodb", FromPinger(stubPinger{}))
	h.AddOptionalCheck("redis", FromPinger(stubPinger{err: errors.New("connection refused")}))

	resp := h.Check(context.Background())
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.False(t, resp.Checks["redis"].Critical)
	assert.True(t, resp.Checks["mongodb"].Critical)

	rec := httptest.NewRecorder()
	h.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"degraded"`)
}

func TestCheckTimesOutSlowProbe(t *testing.T) {
	h := NewHandler("notification", "test")
	h.checkTimeout = 10 * time.Millisecond
	h.AddCheck("mongodb", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	resp := h.Check(context.Background())

	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Equal(t, context.DeadlineExceeded.Error(), resp.Checks["mongodb"].Message)
}
