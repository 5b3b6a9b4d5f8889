package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
)

func newCORSHandler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/api/v1/user_notification/{user_id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)
	return CORS(DefaultCORSConfig("https://portal.example.jp"))(router)
}

func TestCORSAllowedOriginEchoed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/user_notification/u1", nil)
	req.Header.Set("Origin", "https://portal.example.jp")
	rec := httptest.NewRecorder()

	newCORSHandler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://portal.example.jp", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, rec.Header().Values("Vary"), "Origin")
}

func TestCORSPreflight(t *testing.T) {
	tests := []struct {
		name       string
		origin     string
		wantStatus int
		wantOrigin string
	}{
		{"allowed origin", "https://portal.example.jp", http.StatusNoContent, "https://portal.example.jp"},
		{"unknown origin", "https://evil.example.com", http.StatusForbidden, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/api/v1/user_notification/read/u1", nil)
			req.Header.Set("Origin", tt.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			rec := httptest.NewRecorder()

			newCORSHandler().ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			if tt.wantStatus == http.StatusNoContent {
				assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
				assert.Equal(t, "86400", rec.Header().Get("Access-Control-Max-Age"))
			}
		})
	}
}

func TestCORSWildcardWithCredentialsEchoesOrigin(t *testing.T) {
	handler := CORS(DefaultCORSConfig("*"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSNoOriginPassesThrough(t *testing.T) {
	rec := httptest.NewRecorder()

	newCORSHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/user_notification/u1", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
