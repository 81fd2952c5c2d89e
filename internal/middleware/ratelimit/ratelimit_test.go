package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiter_Window(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 2})
	defer rl.Stop()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if !rl.allowAt("1.1.1.1", now) || !rl.allowAt("1.1.1.1", now.Add(time.Second)) {
		t.Fatal("first two requests should pass")
	}
	if rl.allowAt("1.1.1.1", now.Add(2*time.Second)) {
		t.Error("third request in window should be rejected")
	}
	if !rl.allowAt("2.2.2.2", now.Add(2*time.Second)) {
		t.Error("other clients have their own window")
	}
	if !rl.allowAt("1.1.1.1", now.Add(61*time.Second)) {
		t.Error("new window should allow again")
	}

	m := rl.GetMetrics()
	if m.Rejected != 1 || m.ClientCount != 2 {
		t.Errorf("GetMetrics() = %+v", m)
	}

	rl.cleanupStaleEntries(now.Add(time.Hour))
	if rl.GetMetrics().ClientCount != 0 {
		t.Error("stale clients should be removed")
	}
}

func TestLimiter_Middleware(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 1})
	defer rl.Stop()

	handler := rl.Middleware(func(*http.Request) string { return "ip" }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/predict", nil))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/predict", nil))

	if first.Code != http.StatusOK {
		t.Errorf("first status = %d", first.Code)
	}
	if second.Code != http.StatusTooManyRequests || second.Header().Get("Retry-After") != "60" {
		t.Errorf("second status = %d, retry-after %q", second.Code, second.Header().Get("Retry-After"))
	}
	rl.Stop()
}
