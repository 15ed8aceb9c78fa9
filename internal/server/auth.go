// Package server provides the HTTP API: a thin adapter over the session
// engine plus auth, rate limiting, and CORS middleware.
package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ankitpatel990/neuvox/internal/requestctx"
	"github.com/ankitpatel990/neuvox/internal/tenant"
)

// AuthMiddleware validates X-Neuvox-Key or Authorization: Bearer <key> and
// sets tenant_id in the request context. apiKeys maps key -> tenant_id.
func AuthMiddleware(apiKeys map[string]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-Neuvox-Key")
			if key == "" {
				if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
					key = strings.TrimPrefix(auth, "Bearer ")
				}
			}
			if key == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid or missing API key")
				return
			}
			var tenantID string
			for k, t := range apiKeys {
				if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
					tenantID = t
					break
				}
			}
			if tenantID == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid or missing API key")
				return
			}
			r = r.WithContext(requestctx.SetTenantID(r.Context(), tenantID))
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitMiddleware validates the request against the tenant manager and
// returns 429 with Retry-After when the tenant's limit is exceeded.
func RateLimitMiddleware(tm *tenant.Manager) func(http.Handler) http.Handler {
	if tm == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID := requestctx.TenantID(r.Context())
			if tenantID == "" {
				next.ServeHTTP(w, r)
				return
			}
			switch err := tm.ValidateRequest(r.Context(), tenantID); err {
			case nil:
				next.ServeHTTP(w, r)
			case tenant.ErrRateLimitExceeded:
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "rate_limit_exceeded", err.Error())
			case tenant.ErrTenantNotFound:
				writeError(w, http.StatusForbidden, "forbidden", err.Error())
			default:
				writeError(w, http.StatusInternalServerError, "internal", err.Error())
			}
		})
	}
}

// CORSMiddleware sets CORS headers. allowedOrigins can be ["*"] for any.
func CORSMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	allowAll := false
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
			break
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if allowAll {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else if origin != "" {
				for _, o := range allowedOrigins {
					if o == origin {
						w.Header().Set("Access-Control-Allow-Origin", origin)
						break
					}
				}
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Neuvox-Key")
			w.Header().Set("Access-Control-Max-Age", "300")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code, "message": message})
}
