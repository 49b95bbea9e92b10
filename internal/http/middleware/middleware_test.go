package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/princekumarofficial/chat-media-service/internal/utils/jwt"
)

type fakeLimiter struct {
	allowed  bool
	err      error
	subjects []string
}

func (f *fakeLimiter) Allow(_ context.Context, scope, subject string) (bool, int64, error) {
	f.subjects = append(f.subjects, scope+"|"+subject)
	return f.allowed, 3, f.err
}

func (f *fakeLimiter) Capacity() int64 { return 10 }

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := &fakeLimiter{allowed: true}
	h := NewRateLimitConfig(limiter, nil).RateLimitedHandler("media-relay", okHandler)

	req := httptest.NewRequest(http.MethodGet, "/media-relay", nil)
	req.RemoteAddr = "192.0.2.7:5123"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Limit") != "10" || rec.Header().Get("X-RateLimit-Remaining") != "3" {
		t.Fatalf("missing rate limit headers: %v", rec.Header())
	}
	if limiter.subjects[0] != "media-relay|192.0.2.7" {
		t.Fatalf("unexpected subject %q", limiter.subjects[0])
	}

	limiter.allowed = false
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
}

func TestRateLimitFailsOpen(t *testing.T) {
	h := NewRateLimitConfig(&fakeLimiter{err: errors.New("redis down")}, nil).RateLimitedHandler("object-relay", okHandler)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/object-relay", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected limiter errors to let the request through, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	NewRateLimitConfig(nil, nil).RateLimitedHandler("object-relay", okHandler).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/object-relay", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected nil limiter to disable limiting, got %d", rec.Code)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.1.1:443"
	if got := ClientIP(req); got != "10.1.1.1" {
		t.Fatalf("expected remote host, got %q", got)
	}
	req.Header.Set("X-Forwarded-For", " 203.0.113.9 , 10.1.1.1")
	if got := ClientIP(req); got != "203.0.113.9" {
		t.Fatalf("expected first forwarded hop, got %q", got)
	}
}

func TestAuthMiddleware(t *testing.T) {
	const secret = "test-secret"
	var seen string
	h := AuthMiddleware(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetUserIDFromContext(r.Context())
	}))

	token, err := jwt.CreateToken("agent-7", secret)
	if err != nil {
		t.Fatalf("create token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/media/probe", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || seen != "agent-7" {
		t.Fatalf("expected agent-7 to pass, got %d %q", rec.Code, seen)
	}

	cases := map[string]func(*http.Request){
		"missing":    func(r *http.Request) {},
		"bad scheme": func(r *http.Request) { r.Header.Set("Authorization", "Basic "+token) },
		"bad token":  func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") },
	}
	for name, setup := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/media/probe", nil)
		setup(req)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", name, rec.Code)
		}
	}
}

func TestTokenFromQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws/media?token=abc", nil)
	token, err := TokenFromRequest(req)
	if err != nil || token != "abc" {
		t.Fatalf("expected query token, got %q %v", token, err)
	}
}

func TestMetricsRecordsStatus(t *testing.T) {
	h := Metrics("/media-relay", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/media-relay", nil))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected status to pass through, got %d", rec.Code)
	}
}
