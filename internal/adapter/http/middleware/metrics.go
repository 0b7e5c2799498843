package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/iho/trustledger/internal/infrastructure/metrics"
)

// Metrics records request counts and latencies labelled by route pattern.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &metricsRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			path := ""
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				path = rctx.RoutePattern()
			}
			if path == "" {
				path = normalizePath(r.URL.Path)
			}

			m.HTTPRequests.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
			m.HTTPDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

type metricsRecorder struct {
	http.ResponseWriter

	statusCode int
}

func (r *metricsRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

// idSegments are path segments followed by an identifier.
var idSegments = map[string]bool{
	"matters":       true,
	"transactions":  true,
	"firm-accounts": true,
}

// normalizePath replaces identifiers with {id} to bound label cardinality.
// /api/v1/matters/M-1/trust -> /api/v1/matters/{id}/trust
func normalizePath(path string) string {
	parts := strings.Split(path, "/")
	for i := 1; i < len(parts); i++ {
		if idSegments[parts[i-1]] && parts[i] != "" {
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}
