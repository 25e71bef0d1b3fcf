package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestRateLimit_RequestsWithinLimit(t *testing.T) {
	cfg := RateLimitConfig{
		RequestsPerSecond: 10,
		BurstSize:         5,
	}

	e := echo.New()
	mw := RateLimit(cfg)
	handler := mw(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	// Send 5 requests (within burst size), all should pass
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := handler(c)
		if err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}

		// Verify X-RateLimit-Limit header is set
		limitHeader := rec.Header().Get("X-RateLimit-Limit")
		if limitHeader != "10" {
			t.Errorf("request %d: expected X-RateLimit-Limit '10', got %q", i+1, limitHeader)
		}
	}
}

func TestRateLimit_ExceedsLimit(t *testing.T) {
	cfg := RateLimitConfig{
		RequestsPerSecond: 1,
		BurstSize:         2,
	}

	e := echo.New()
	mw := RateLimit(cfg)
	handler := mw(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	// First 2 requests should pass (burst size = 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		err := handler(c)
		if err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
	}

	// Third request should be rate limited
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
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
}

func TestRateLimit_RetryAfterHeader(t *testing.T) {
	cfg := RateLimitConfig{
		RequestsPerSecond: 1,
		BurstSize:         1,
	}

	e := echo.New()
	mw := RateLimit(cfg)
	handler := mw(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	// First request passes
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	_ = handler(c)

	// Second request should be rate limited and include Retry-After
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	err := handler(c)

	if err == nil {
		t.Fatal("expected error for rate-limited request")
	}

	retryAfter := rec.Header().Get("Retry-After")
	if retryAfter == "" {
		t.Error("expected Retry-After header to be set")
	}

	retryVal, parseErr := strconv.Atoi(retryAfter)
	if parseErr != nil {
		t.Fatalf("Retry-After header is not a valid integer: %q", retryAfter)
	}
	if retryVal < 1 {
		t.Errorf("expected Retry-After >= 1, got %d", retryVal)
	}

	// Check X-RateLimit-Remaining is "0" for rate-limited requests
	remaining := rec.Header().Get("X-RateLimit-Remaining")
	if remaining != "0" {
		t.Errorf("expected X-RateLimit-Remaining '0', got %q", remaining)
	}
}

func TestRateLimit_PerClientIsolation(t *testing.T) {
	cfg := RateLimitConfig{
		RequestsPerSecond: 1,
		BurstSize:         1,
	}

	e := echo.New()
	mw := RateLimit(cfg)
	handler := mw(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	send := func(addr string) error {
		req := httptest.NewRequest(http.MethodGet, "/charts/status", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		return handler(e.NewContext(req, rec))
	}

	if err := send("10.0.0.1:5000"); err != nil {
		t.Fatalf("client a first request: expected no error, got %v", err)
	}
	if err := send("10.0.0.1:5001"); err == nil {
		t.Fatal("client a second request: expected rate limit error")
	}
	if err := send("10.0.0.2:5000"); err != nil {
		t.Fatalf("client b first request: expected no error, got %v", err)
	}
}

func TestRateLimit_DefaultConfig(t *testing.T) {
	cfg := DefaultRateLimitConfig()
	if cfg.RequestsPerSecond != 5 {
		t.Errorf("expected RequestsPerSecond 5, got %f", cfg.RequestsPerSecond)
	}
	if cfg.BurstSize != 20 {
		t.Errorf("expected BurstSize 20, got %d", cfg.BurstSize)
	}
}

func TestRateLimit_FractionalRateHeader(t *testing.T) {
	e := echo.New()
	handler := RateLimit(RateLimitConfig{RequestsPerSecond: 0.5, BurstSize: 1})(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	rec := httptest.NewRecorder()
	if err := handler(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := rec.Header().Get("X-RateLimit-Limit"); got != "0.5" {
		t.Errorf("expected X-RateLimit-Limit 0.5, got %q", got)
	}
}

func TestClientLimiter_ZeroRateWaitsOneSecond(t *testing.T) {
	l := newClientLimiter(RateLimitConfig{RequestsPerSecond: 0, BurstSize: 1})
	if ok, _ := l.take("a"); !ok {
		t.Fatal("expected the burst token to be available")
	}
	ok, wait := l.take("a")
	if ok {
		t.Fatal("expected no token left")
	}
	if retryAfterSeconds(wait) != 1 {
		t.Errorf("expected retry after 1s, got %s", wait)
	}
}

func TestClientLimiter_Refills(t *testing.T) {
	now := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newClientLimiter(RateLimitConfig{RequestsPerSecond: 2, BurstSize: 1})
	l.now = func() time.Time { return now }

	l.take("a")
	ok, wait := l.take("a")
	if ok || wait != 500*time.Millisecond {
		t.Fatalf("expected a 500ms wait, got ok=%v wait=%s", ok, wait)
	}

	now = now.Add(500 * time.Millisecond)
	if ok, _ := l.take("a"); !ok {
		t.Error("expected a token after refilling")
	}
}

func TestClientLimiter_PrunesIdleClients(t *testing.T) {
	now := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newClientLimiter(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2})
	l.now = func() time.Time { return now }
	l.pruneAt = 10

	for i := 0; i < 10; i++ {
		l.take("10.0.0." + strconv.Itoa(i))
	}
	if n := l.clients(); n != 10 {
		t.Fatalf("expected 10 clients, got %d", n)
	}

	// Every bucket is full again after a second.
	now = now.Add(time.Second)
	l.take("10.0.1.1")
	if n := l.clients(); n != 1 {
		t.Errorf("expected idle clients to be dropped, got %d", n)
	}
}

func TestRateLimit_ErrorMentionsRetry(t *testing.T) {
	e := echo.New()
	handler := RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	_ = handler(e.NewContext(httptest.NewRequest(http.MethodGet, "/export/workbook", nil), httptest.NewRecorder()))

	err := handler(e.NewContext(httptest.NewRequest(http.MethodGet, "/export/workbook", nil), httptest.NewRecorder()))
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if msg, _ := httpErr.Message.(string); !strings.Contains(msg, "retry in 1s") {
		t.Errorf("unexpected message %q", msg)
	}
}
