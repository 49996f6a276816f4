package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type fakeLimiterStore struct {
	counts map[string]int64
}

func (f *fakeLimiterStore) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if f.counts == nil {
		f.counts = map[string]int64{}
	}
	f.counts[key]++
	return f.counts[key], nil
}

func TestAuthRateLimitAllowsUnderLimit(t *testing.T) {
	policy := NewAuthRateLimitPolicy("login", time.Minute, 2, 2)
	store := &fakeLimiterStore{}

	var served int
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served++
	})
	handler := AuthRateLimit(policy, store, testMiddlewareLogger(t))(next)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"a@b.com"}`))
		req.RemoteAddr = "10.0.0.1:1234"
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200 got %d", i, resp.Code)
		}
	}
	if served != 2 {
		t.Fatalf("expected 2 served requests, got %d", served)
	}
}

func TestAuthRateLimitBlocksIPOverLimit(t *testing.T) {
	policy := NewAuthRateLimitPolicy("login", time.Minute, 1, 0)
	store := &fakeLimiterStore{}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	handler := AuthRateLimit(policy, store, testMiddlewareLogger(t))(next)

	first := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{}`))
	first.RemoteAddr = "10.0.0.1:1234"
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, first)
	if resp.Code != http.StatusOK {
		t.Fatalf("first request should pass, got %d", resp.Code)
	}

	second := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{}`))
	second.RemoteAddr = "10.0.0.1:1234"
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, second)
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", resp.Code)
	}
}

func TestAuthRateLimitBlocksEmailAcrossIPs(t *testing.T) {
	policy := NewAuthRateLimitPolicy("login", time.Minute, 0, 1)
	store := &fakeLimiterStore{}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	handler := AuthRateLimit(policy, store, testMiddlewareLogger(t))(next)

	for i, addr := range []string{"10.0.0.1:1", "10.0.0.2:2"} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"Same@Example.com"}`))
		req.RemoteAddr = addr
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)

		if i == 0 && resp.Code != http.StatusOK {
			t.Fatalf("first request should pass, got %d", resp.Code)
		}
		if i == 1 && resp.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429 for same email, got %d", resp.Code)
		}
	}
}

func TestAuthRateLimitDisabledPolicyPassesThrough(t *testing.T) {
	policy := NewAuthRateLimitPolicy("login", 0, 0, 0)

	served := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served = true
	})
	handler := AuthRateLimit(policy, &fakeLimiterStore{}, testMiddlewareLogger(t))(next)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if !served {
		t.Fatal("expected request to pass through")
	}
}
