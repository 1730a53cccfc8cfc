// Package middleware provides queryd-specific HTTP middleware:
// API key authentication with per-key rate limiting.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/kavyarao/streamfilter/internal/auth/apikey"
	"github.com/kavyarao/streamfilter/internal/auth/ratelimit"
)

type keyInfoCtx struct{}

// Auth validates API keys and enforces each key's rate limit. A key can
// arrive as a bearer token, the X-API-Key header, or the api_key query
// parameter. Probe and metrics endpoints pass through unauthenticated.
func Auth(validator *apikey.Validator, limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if exempt(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			key, ok := credential(r)
			if !ok {
				deny(w, http.StatusUnauthorized, "missing api key")
				return
			}

			info, err := validator.Validate(r.Context(), key)
			switch {
			case errors.Is(err, apikey.ErrInvalidKey):
				deny(w, http.StatusUnauthorized, "invalid api key")
				return
			case errors.Is(err, apikey.ErrExpiredKey):
				deny(w, http.StatusUnauthorized, "expired api key")
				return
			case err != nil:
				deny(w, http.StatusInternalServerError, "authentication error")
				return
			}

			if limiter != nil && info.RateLimit > 0 && !limiter.Allow(info.ID, info.RateLimit) {
				deny(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			ctx := context.WithValue(r.Context(), keyInfoCtx{}, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetKeyInfo retrieves the validated KeyInfo from the request context,
// or nil when the request was not authenticated.
func GetKeyInfo(ctx context.Context) *apikey.KeyInfo {
	info, _ := ctx.Value(keyInfoCtx{}).(*apikey.KeyInfo)
	return info
}

func exempt(path string) bool {
	return strings.HasPrefix(path, "/health") || path == "/metrics"
}

// credential reads the API key in priority order: Authorization bearer
// token, X-API-Key header, api_key query parameter.
func credential(r *http.Request) (string, bool) {
	if bearer, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); found && bearer != "" {
		return bearer, true
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key, true
	}
	if key := r.URL.Query().Get("api_key"); key != "" {
		return key, true
	}
	return "", false
}

func deny(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
