package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/princekumarofficial/chat-media-service/internal/utils/response"
)

// Limiter is satisfied by ratelimit.TokenBucket.
type Limiter interface {
	Allow(ctx context.Context, scope, subject string) (bool, int64, error)
	Capacity() int64
}

type RateLimitConfig struct {
	limiter Limiter
	logger  *slog.Logger
}

// NewRateLimitConfig returns nil-safe config; a nil limiter disables limiting.
func NewRateLimitConfig(limiter Limiter, logger *slog.Logger) *RateLimitConfig {
	if logger == nil {
		logger = slog.Default()
	}
	return &RateLimitConfig{limiter: limiter, logger: logger}
}

// RateLimitMiddleware limits each client address within scope. Relay
// endpoints are hit by media elements that carry no credentials, so the
// client address is the only stable subject.
func (rlc *RateLimitConfig) RateLimitMiddleware(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rlc == nil || rlc.limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			subject := ClientIP(r)
			allowed, remaining, err := rlc.limiter.Allow(r.Context(), scope, subject)
			if err != nil {
				// fail open: a relay outage is worse than an unthrottled client
				rlc.logger.Warn("rate limit check failed", slog.String("scope", scope), slog.String("error", err.Error()))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(rlc.limiter.Capacity(), 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			w.Header().Set("X-RateLimit-Reset", "60")

			if !allowed {
				response.WriteJSON(w, http.StatusTooManyRequests, response.GeneralError(
					errors.New("rate limit exceeded")))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitedHandler wraps a handler with rate limiting for a specific scope
func (rlc *RateLimitConfig) RateLimitedHandler(scope string, handler http.HandlerFunc) http.Handler {
	return rlc.RateLimitMiddleware(scope)(handler)
}

// ClientIP returns the first X-Forwarded-For hop, or the remote address host.
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
