package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"console/internal/adapters/http/perf"
)

// TestTimingMiddleware_EmitsEntry verifies that a request entry is recorded.
func TestTimingMiddleware_EmitsEntry(t *testing.T) {
	collector := perf.NewCollector(100)
	handler := Timing(collector)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/initialize", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if collector.TotalRecorded() != 1 {
		t.Errorf("TotalRecorded = %d, want 1", collector.TotalRecorded())
	}
}

// TestTimingMiddleware_SkipsStatic verifies static assets are excluded from timing.
func TestTimingMiddleware_SkipsStatic(t *testing.T) {
	collector := perf.NewCollector(100)
	handler := Timing(collector)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/static/style.css", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if collector.TotalRecorded() != 0 {
		t.Errorf("TotalRecorded = %d, want 0 (static excluded)", collector.TotalRecorded())
	}
}

// TestTimingMiddleware_RequestID verifies the id is in both the context and the response.
func TestTimingMiddleware_RequestID(t *testing.T) {
	var seen string
	handler := Timing(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

	if seen == "" {
		t.Fatal("expected a request id in the context")
	}
	if rr.Header().Get(HeaderRequestID) != seen {
		t.Errorf("expected header %q, got %q", seen, rr.Header().Get(HeaderRequestID))
	}
}

// TestTimingMiddleware_CapturesStatusAndLabel verifies status and UUID collapsing.
func TestTimingMiddleware_CapturesStatusAndLabel(t *testing.T) {
	collector := perf.NewCollector(100)
	handler := Timing(collector)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	req := httptest.NewRequest("GET", "/members/6ba7b810-9dad-11d1-80b4-00c04fd430c8", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	snap := collector.Snapshot(time.Now().Add(-time.Minute), 5)
	if len(snap.SlowestPaths) != 1 || snap.SlowestPaths[0].Path != "GET /members/{id}" {
		t.Fatalf("expected collapsed path, got %+v", snap.SlowestPaths)
	}
	if rr.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rr.Code)
	}
}

func TestRouteLabel(t *testing.T) {
	tests := []struct{ in, want string }{
		{"/", "/"},
		{"/initialize", "/initialize"},
		{"/api/members/bbbb", "/api/members/bbbb"},
		{"/api/admins/6ba7b810-9dad-11d1-80b4-00c04fd430c8/members/6ba7b811-9dad-11d1-80b4-00c04fd430c8", "/api/admins/{id}/members/{id}"},
	}
	for _, tt := range tests {
		if got := RouteLabel(tt.in); got != tt.want {
			t.Errorf("RouteLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
