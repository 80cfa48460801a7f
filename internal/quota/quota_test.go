package quota

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterAllow(t *testing.T) {
	rl := NewRateLimiter()

	// 10 requests per minute
	rpm := 10
	key := "user-1"

	// Should allow up to 10 requests
	for i := 0; i < 10; i++ {
		if !rl.Allow(key, rpm) {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	// 11th should be denied
	if rl.Allow(key, rpm) {
		t.Error("11th request should be denied")
	}
}

func TestRateLimiterUnlimited(t *testing.T) {
	rl := NewRateLimiter()

	// rpm=0 means unlimited
	for i := 0; i < 1000; i++ {
		if !rl.Allow("anyone", 0) {
			t.Fatalf("request %d should be allowed (unlimited)", i+1)
		}
	}
}

func TestRateLimiterRefill(t *testing.T) {
	rl := NewRateLimiter()
	key := "user-1"
	rpm := 60 // 1 token per second

	// Exhaust all tokens
	for i := 0; i < 60; i++ {
		rl.Allow(key, rpm)
	}

	if rl.Allow(key, rpm) {
		t.Error("should be rate limited after exhausting tokens")
	}

	// Wait for refill
	time.Sleep(1100 * time.Millisecond)

	if !rl.Allow(key, rpm) {
		t.Error("should be allowed after refill")
	}
}

func TestRateLimiterIsolatesCallers(t *testing.T) {
	rl := NewRateLimiter()
	rpm := 2

	rl.Allow("a", rpm)
	rl.Allow("a", rpm)
	if rl.Allow("a", rpm) {
		t.Error("caller a should be limited")
	}
	if !rl.Allow("b", rpm) {
		t.Error("caller b should not be affected by a's usage")
	}
}

func TestRateLimiterRetryAfter(t *testing.T) {
	rl := NewRateLimiter()
	key := "user-1"
	rpm := 60

	if got := rl.RetryAfter(key, rpm); got != 0 {
		t.Errorf("RetryAfter before any request = %d, want 0", got)
	}

	for i := 0; i < 60; i++ {
		rl.Allow(key, rpm)
	}
	if got := rl.RetryAfter(key, rpm); got < 1 {
		t.Errorf("RetryAfter when exhausted = %d, want >= 1", got)
	}

	if got := rl.RetryAfter(key, 0); got != 0 {
		t.Errorf("RetryAfter unlimited = %d, want 0", got)
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter()
	rl.Allow("stale", 10)

	rl.Cleanup(0)

	rl.mu.Lock()
	remaining := len(rl.buckets)
	rl.mu.Unlock()
	if remaining != 0 {
		t.Errorf("buckets after cleanup = %d, want 0", remaining)
	}
}

func TestMiddlewareLimits(t *testing.T) {
	rl := NewRateLimiter()
	handler := Middleware(rl, 2, func(r *http.Request) string { return "fixed" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/analyze/full", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/analyze/full", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("429 response missing Retry-After header")
	}
}

func TestClientKey(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.1.2.3:5555"
	if got := ClientKey(r); got != "10.1.2.3" {
		t.Errorf("ClientKey = %q, want 10.1.2.3", got)
	}
}
