package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"console/internal/adapters/http/perf"
)

// DefaultSlowRequestMs is the default threshold for slow request warnings.
// A page load includes one identity lookup, so the bar is higher than a plain handler's.
const DefaultSlowRequestMs = 500

// HeaderRequestID echoes the request id to the client.
const HeaderRequestID = "X-Request-Id"

type requestIDKey struct{}

// RequestID returns the id Timing assigned to the request, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// SlowRequestThreshold reads CONSOLE_SLOW_REQUEST_MS, falling back to the default.
func SlowRequestThreshold() float64 {
	if v := os.Getenv("CONSOLE_SLOW_REQUEST_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return float64(n)
		}
	}
	return DefaultSlowRequestMs
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader captures the status code and delegates to the underlying ResponseWriter.
func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

// statusWriterPool reduces allocations on the hot path.
var statusWriterPool = sync.Pool{
	New: func() any {
		return &statusWriter{}
	},
}

// Timing returns middleware that assigns a request id and logs request duration.
// Requests to /static/ are excluded.
// Normal requests log at DEBUG; slow requests (above threshold) log at WARN.
// If collector is non-nil, entries are recorded under RouteLabel.
func Timing(collector *perf.Collector) func(http.Handler) http.Handler {
	threshold := SlowRequestThreshold()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if strings.HasPrefix(path, "/static/") {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			reqID := uuid.NewString()
			w.Header().Set(HeaderRequestID, reqID)
			r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, reqID))

			sw := statusWriterPool.Get().(*statusWriter)
			sw.ResponseWriter = w
			sw.status = http.StatusOK
			defer func() {
				durationMs := float64(time.Since(start).Microseconds()) / 1000.0
				attrs := []any{
					"request_id", reqID,
					"method", r.Method,
					"path", path,
					"status", sw.status,
					"duration_ms", durationMs,
				}
				if durationMs >= threshold {
					slog.Warn("slow_request", attrs...)
				} else {
					slog.Debug("request", attrs...)
				}

				collector.Record(perf.Entry{
					Kind:       perf.KindRequest,
					Path:       r.Method + " " + RouteLabel(path),
					StatusCode: sw.status,
					Failed:     sw.status >= http.StatusInternalServerError,
					DurationMs: durationMs,
					Timestamp:  start,
				})

				sw.ResponseWriter = nil
				statusWriterPool.Put(sw)
			}()

			next.ServeHTTP(sw, r)
		})
	}
}

// RouteLabel collapses UUID path segments to {id} so per-member routes
// aggregate into one perf entry.
func RouteLabel(path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		if _, err := uuid.Parse(s); err == nil {
			segments[i] = "{id}"
		}
	}
	return strings.Join(segments, "/")
}
