package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/hoken-app/insurance-portal/internal/platform/logger"
	"github.com/hoken-app/insurance-portal/internal/platform/response"
)

type contextKey string

const rolesKey contextKey = "roles"

// Claims are the session token claims this service relies on. Tokens are
// issued by the portal's session service; this package only validates them.
type Claims struct {
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// AuthMiddleware provides JWT authentication from the session cookie or a Bearer header
type AuthMiddleware struct {
	jwtSecret  []byte
	cookieName string
	adminRole  string
	skipPaths  []string
	onReject   func(reason string)
}

// AuthOption configures the middleware
type AuthOption func(*AuthMiddleware)

// WithSessionCookie sets the cookie the session token is read from
func WithSessionCookie(name string) AuthOption {
	return func(m *AuthMiddleware) { m.cookieName = name }
}

// WithAdminRole sets the role that bypasses ownership checks
func WithAdminRole(role string) AuthOption {
	return func(m *AuthMiddleware) { m.adminRole = role }
}

// WithRejectHook is called with a short reason whenever a request is refused
func WithRejectHook(fn func(reason string)) AuthOption {
	return func(m *AuthMiddleware) { m.onReject = fn }
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(jwtSecret []byte, opts ...AuthOption) *AuthMiddleware {
	m := &AuthMiddleware{
		jwtSecret:  jwtSecret,
		cookieName: "session_token",
		adminRole:  "admin",
		skipPaths: []string{
			"/health/",
			"/metrics",
		},
		onReject: func(string) {},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var errNoToken = errors.New("missing session token")

// Middleware returns the middleware handler
func (m *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, path := range m.skipPaths {
			if strings.HasPrefix(r.URL.Path, path) {
				next.ServeHTTP(w, r)
				return
			}
		}

		tokenString, err := m.extractToken(r)
		if err != nil {
			m.reject(w, response.ErrUnauthorized.WithMessage(err.Error()), "missing_token")
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return m.jwtSecret, nil
		})
		if err != nil || !token.Valid {
			m.reject(w, response.ErrUnauthorized.WithMessage("invalid token"), "invalid_token")
			return
		}

		if claims.Subject == "" {
			m.reject(w, response.ErrUnauthorized.WithMessage("token has no subject"), "invalid_claims")
			return
		}

		ctx := context.WithValue(r.Context(), logger.UserIDKey, claims.Subject)
		ctx = context.WithValue(ctx, rolesKey, claims.Roles)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) extractToken(r *http.Request) (string, error) {
	if c, err := r.Cookie(m.cookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errNoToken
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", errors.New("invalid authorization header format")
	}
	return parts[1], nil
}

// RequireRole creates a middleware that requires a specific role
func (m *AuthMiddleware) RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !HasRole(r.Context(), role) {
				m.reject(w, response.ErrForbidden.WithMessage("insufficient permissions"), "missing_role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireOwner rejects requests whose {param} path variable differs from the
// token subject. Callers holding the admin role may act on any user.
func (m *AuthMiddleware) RequireOwner(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, ok := ExtractUserID(r.Context())
			if !ok {
				m.reject(w, response.ErrUnauthorized, "missing_subject")
				return
			}

			if mux.Vars(r)[param] != subject && !HasRole(r.Context(), m.adminRole) {
				m.reject(w, response.ErrForbidden.WithMessage("cannot access another user's notifications"), "not_owner")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ExtractUserID extracts the token subject from the context
func ExtractUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(logger.UserIDKey).(string)
	return userID, ok && userID != ""
}

// ExtractRoles extracts roles from the context
func ExtractRoles(ctx context.Context) []string {
	roles, _ := ctx.Value(rolesKey).([]string)
	return roles
}

// HasRole reports whether the authenticated caller holds role
func HasRole(ctx context.Context, role string) bool {
	for _, r := range ExtractRoles(ctx) {
		if r == role {
			return true
		}
	}
	return false
}

func (m *AuthMiddleware) reject(w http.ResponseWriter, err *response.APIError, reason string) {
	m.onReject(reason)
	response.Error(w, err)
}
