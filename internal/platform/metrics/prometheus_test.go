package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPMetricsMiddlewareUsesRouteTemplate(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("notification", reg)

	router := mux.NewRouter()
	router.Use(m.HTTPMetricsMiddleware())
	router.HandleFunc("/api/v1/user_notification/{user_id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for _, user := range []string{"u1", "u2"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/user_notification/"+user, nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/user_notification/{user_id}", "200"))
	assert.Equal(t, float64(2), got)
}

func TestHandlerServesOwnRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("notification", reg)
	m.NotificationsRead.Add(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Contains(t, rec.Body.String(), "notification_notifications_marked_read_total 3")
}

func TestInboxMetricsRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewInboxMetrics(reg)
	m.GatewayFailures.WithLabelValues("FetchAll").Inc()

	assert.Equal(t, 1, testutil.CollectAndCount(m.GatewayFailures))
}

func TestHTTPMetricsUnmatchedRoute(t *testing.T) {
	m := NewMetrics("notification", prometheus.NewRegistry())

	router := mux.NewRouter()
	router.Use(m.HTTPMetricsMiddleware())
	router.NotFoundHandler = m.HTTPMetricsMiddleware()(http.NotFoundHandler())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope/u1", nil))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "unmatched", "404")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.HTTPInFlight))
}
