package observability

import (
	"net/http"
	"strconv"
	"time"
)

// chatRoute is the streaming endpoint tracked by the connections gauge.
const chatRoute = "/api/chat"

// knownRoutes bounds the route label cardinality. Anything else is "other".
var knownRoutes = map[string]bool{
	chatRoute:           true,
	"/api/chat/create":  true,
	"/api/chat/history": true,
	"/api/thread/info":  true,
	"/healthz":          true,
	"/readyz":           true,
	"/metrics":          true,
}

// MetricsMiddleware wraps an HTTP handler to record request metrics.
//
// It captures:
//   - arena_requests_total (counter): per request with method, route, and status class labels
//   - arena_request_duration_seconds (histogram): request duration with method and route labels
//   - arena_streaming_connections_active (gauge): incremented while a chat stream is in flight
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		route := routeLabel(r.URL.Path)

		if route == chatRoute && r.Method == http.MethodPost {
			StreamingConnections.Inc()
			defer StreamingConnections.Dec()
		}

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		statusStr := strconv.Itoa(sw.status/100) + "xx"
		RequestsTotal.WithLabelValues(r.Method, route, statusStr).Inc()
		RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func routeLabel(path string) string {
	if knownRoutes[path] {
		return path
	}
	return "other"
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

// WriteHeader captures the status code and delegates to the underlying writer.
func (w *statusWriter) WriteHeader(status int) {
	if !w.written {
		w.status = status
		w.written = true
	}
	w.ResponseWriter.WriteHeader(status)
}

// Write delegates to the underlying writer and marks the status as written.
func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	return w.ResponseWriter.Write(b)
}

// Flush delegates to the underlying writer if it implements http.Flusher.
// Chat streams flush after every line.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap returns the underlying ResponseWriter, enabling http.ResponseController
// and similar utilities to access the original writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
