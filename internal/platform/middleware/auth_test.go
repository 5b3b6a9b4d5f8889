package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, subject string, roles ...string) string {
	t.Helper()
	claims := Claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)
	return s
}

func newOwnerRouter(m *AuthMiddleware) *mux.Router {
	router := mux.NewRouter()
	router.Use(m.Middleware)
	sub := router.PathPrefix("/api/v1/user_notification").Subrouter()
	sub.Use(m.RequireOwner("user_id"))
	sub.HandleFunc("/{user_id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return router
}

func TestAuthMiddleware(t *testing.T) {
	var rejected []string
	m := NewAuthMiddleware(testSecret, WithRejectHook(func(reason string) { rejected = append(rejected, reason) }))
	router := newOwnerRouter(m)

	tests := []struct {
		name   string
		path   string
		setup  func(r *http.Request)
		status int
	}{
		{
			name:   "health is public",
			path:   "/health/live",
			setup:  func(r *http.Request) {},
			status: http.StatusOK,
		},
		{
			name:   "missing token",
			path:   "/api/v1/user_notification/u1",
			setup:  func(r *http.Request) {},
			status: http.StatusUnauthorized,
		},
		{
			name: "bearer owner",
			path: "/api/v1/user_notification/u1",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+signToken(t, "u1"))
			},
			status: http.StatusOK,
		},
		{
			name: "session cookie owner",
			path: "/api/v1/user_notification/u1",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: "session_token", Value: signToken(t, "u1")})
			},
			status: http.StatusOK,
		},
		{
			name: "other user",
			path: "/api/v1/user_notification/u2",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+signToken(t, "u1"))
			},
			status: http.StatusForbidden,
		},
		{
			name: "admin may act on any user",
			path: "/api/v1/user_notification/u2",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+signToken(t, "ops", "admin"))
			},
			status: http.StatusOK,
		},
		{
			name: "wrong signature",
			path: "/api/v1/user_notification/u1",
			setup: func(r *http.Request) {
				tok, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "u1"}).SignedString([]byte("other"))
				r.Header.Set("Authorization", "Bearer "+tok)
			},
			status: http.StatusUnauthorized,
		},
		{
			name: "malformed header",
			path: "/api/v1/user_notification/u1",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Token abc")
			},
			status: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			tt.setup(req)
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
		})
	}

	assert.Contains(t, rejected, "not_owner")
	assert.Contains(t, rejected, "missing_token")
}

func TestRequireRole(t *testing.T) {
	m := NewAuthMiddleware(testSecret)
	handler := m.Middleware(m.RequireRole("admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/user_notification/u1", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "u1"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/user_notification/u1", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "ops", "admin"))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)
}
