package trace

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	applog "previsioni/internal/log"
)

func TestMiddleware_RequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := applog.New(applog.Config{Component: applog.ComponentHTTP, Handler: applog.NewHandler(&buf, "info", "text")})
	m := NewMiddleware(logger, func(*http.Request) string { return "10.0.0.1" })

	var seen string
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		applog.FromContext(r.Context()).Info("handled")
		w.WriteHeader(http.StatusTeapot)
	}))

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		if !strings.HasPrefix(seen, "req_") {
			t.Errorf("request id = %q", seen)
		}
		if rec.Header().Get(RequestIDHeader) != seen {
			t.Errorf("response header = %q, want %q", rec.Header().Get(RequestIDHeader), seen)
		}
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(RequestIDHeader, "abc123")
		handler.ServeHTTP(httptest.NewRecorder(), req)
		if seen != "abc123" {
			t.Errorf("request id = %q, want abc123", seen)
		}
	})

	out := buf.String()
	if !strings.Contains(out, "HTTP request completed") || !strings.Contains(out, "status_code=418") {
		t.Errorf("missing completion log: %s", out)
	}
	if !strings.Contains(out, "request_id=abc123") {
		t.Errorf("request scoped logger not installed: %s", out)
	}
	if got := m.GetMetrics().TotalRequests; got != 2 {
		t.Errorf("TotalRequests = %d, want 2", got)
	}
}

func TestGetRequestID_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if id := GetRequestID(req.Context()); id != "" {
		t.Errorf("GetRequestID() = %q, want empty", id)
	}
}
