package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/siyabendoezdemir/m323/pkg/errors"
	"github.com/siyabendoezdemir/m323/pkg/logger"
	"github.com/siyabendoezdemir/m323/pkg/ratelimit"
)

// RateLimit returns middleware that enforces per-client limits keyed by the
// client IP. Health endpoints are exempt. onLimited, if set, runs for every
// rejected request. When the limiter itself fails the request is let through.
func RateLimit(limiter ratelimit.Limiter, window time.Duration, onLimited func()) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(window.Seconds()))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/health") {
				next.ServeHTTP(w, r)
				return
			}

			ok, err := limiter.Allow(r.Context(), ClientIP(r))
			if err != nil {
				logger.FromContext(r.Context()).Warn("rate limiter failed", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				if onLimited != nil {
					onLimited()
				}
				w.Header().Set("Retry-After", retryAfter)
				apperrors.WriteJSON(w, apperrors.ErrRateLimited)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the first X-Forwarded-For entry or the remote address host.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
