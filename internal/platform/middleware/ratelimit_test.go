package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/auth"
)

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestRateLimit_RequestsWithinLimit(t *testing.T) {
	cfg := RateLimitConfig{RequestsPerSecond: 10, BurstSize: 5}

	e := echo.New()
	handler := RateLimit(cfg)(okHandler)

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		if err := handler(c); err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
		if got := rec.Header().Get("X-RateLimit-Limit"); got != "10" {
			t.Errorf("request %d: expected X-RateLimit-Limit '10', got %q", i+1, got)
		}
	}
}

func TestRateLimit_ExceedsLimit(t *testing.T) {
	cfg := RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2}

	e := echo.New()
	handler := RateLimit(cfg)(okHandler)

	for i := 0; i < 2; i++ {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		if err := handler(c); err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
	}

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	err := handler(c)
	if err == nil {
		t.Fatal("expected error for rate-limited request")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", httpErr.Code)
	}

	retryVal, parseErr := strconv.Atoi(rec.Header().Get("Retry-After"))
	if parseErr != nil || retryVal < 1 {
		t.Errorf("expected Retry-After >= 1, got %q", rec.Header().Get("Retry-After"))
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("expected X-RateLimit-Remaining '0', got %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimit_PerUserIsolation(t *testing.T) {
	cfg := RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1}

	e := echo.New()
	handler := RateLimit(cfg)(okHandler)

	call := func(uid uuid.UUID) error {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(auth.WithUser(context.Background(), uid, nil))
		return handler(e.NewContext(req, httptest.NewRecorder()))
	}

	a, b := uuid.New(), uuid.New()
	if err := call(a); err != nil {
		t.Fatalf("user a first request: %v", err)
	}
	if err := call(a); err == nil {
		t.Fatal("user a second request: expected rate limit error")
	}
	if err := call(b); err != nil {
		t.Fatalf("user b first request: expected no error, got %v", err)
	}
}

func TestRateLimiter_RefillsOverTime(t *testing.T) {
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})
	rl.nowFunc = func() time.Time { return now }

	if ok, _ := rl.Allow("k"); !ok {
		t.Fatal("first request should pass")
	}
	ok, wait := rl.Allow("k")
	if ok {
		t.Fatal("second request should be limited")
	}
	if wait <= 0 || wait > time.Second {
		t.Errorf("expected wait in (0, 1s], got %v", wait)
	}

	now = now.Add(time.Second)
	if ok, _ := rl.Allow("k"); !ok {
		t.Error("request after refill should pass")
	}
}

func TestRateLimiter_SweepsIdleClients(t *testing.T) {
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 10, BurstSize: 10, IdleTTL: time.Minute})
	rl.nowFunc = func() time.Time { return now }

	rl.Allow("a")
	rl.Allow("b")
	if rl.Len() != 2 {
		t.Fatalf("expected 2 clients, got %d", rl.Len())
	}

	now = now.Add(2 * time.Minute)
	rl.Allow("c")
	if rl.Len() != 1 {
		t.Errorf("expected idle clients to be swept, got %d", rl.Len())
	}
}

func TestRateLimit_DefaultConfig(t *testing.T) {
	cfg := DefaultRateLimitConfig()
	if cfg.RequestsPerSecond != 50 {
		t.Errorf("expected RequestsPerSecond 50, got %f", cfg.RequestsPerSecond)
	}
	if cfg.BurstSize != 100 {
		t.Errorf("expected BurstSize 100, got %d", cfg.BurstSize)
	}
}
