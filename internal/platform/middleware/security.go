package middleware

import (
	"net/http"
	"strings"

	"github.com/hoken-app/insurance-portal/internal/platform/response"
)

// SecurityHeaders sets the browser hardening headers on every response and
// disables caching below any of the private path prefixes.
func SecurityHeaders(privatePrefixes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")

			for _, prefix := range privatePrefixes {
				if strings.HasPrefix(r.URL.Path, prefix) {
					h.Set("Cache-Control", "no-store, private")
					h.Set("Pragma", "no-cache")
					break
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequestSizeLimit rejects bodies that declare more than maxBytes and caps
// the reader for those that don't declare a length.
func RequestSizeLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				response.Error(w, response.ErrPayloadTooLarge)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
