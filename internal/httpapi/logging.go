package httpapi

import (
	"bufio"
	"errors"
	"expvar"
	"log"
	"net"
	"net/http"
	"strings"
	"time"
)

var (
	requestsTotal   = expvar.NewInt("requests_total")
	requestsErrors  = expvar.NewInt("requests_errors_total")
	requestsByRoute = expvar.NewMap("requests_by_route")
)

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush and Hijack pass through so the live display feed can stream and
// upgrade to websockets behind the middleware.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		writer := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(writer, r)
		duration := time.Since(start)

		route := routeLabel(r.URL.Path)
		requestsTotal.Add(1)
		requestsByRoute.Add(route, 1)
		if writer.status >= http.StatusBadRequest {
			requestsErrors.Add(1)
		}
		log.Printf("request method=%s route=%s path=%s status=%d duration_ms=%d device=%s request_id=%s",
			r.Method, route, r.URL.Path, writer.status, duration.Milliseconds(), r.Header.Get("X-Device-ID"), requestID(r))
	})
}

// routeLabel folds per-session live feed paths into one label and every
// unknown path into "other", keeping the counter map bounded.
func routeLabel(path string) string {
	if path == "/queue/live" || strings.HasPrefix(path, "/queue/live/") {
		return "/queue/live"
	}
	switch path {
	case "/healthz", "/metrics", "/queue", "/queue/check-reset", "/queue/next-ticket",
		"/queue/sync", "/queue/add-and-notify", "/queue/update-status", "/orders/history":
		return path
	}
	return "other"
}
