package middleware

import (
	"net/http"
	"time"

	"github.com/ekaya-inc/assembly-factory/pkg/telemetry"
)

// Metrics returns middleware that records request counts and latency per
// route. A nil metrics set passes through.
func Metrics(m *telemetry.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			m.ObserveHTTP(r.Method, routeOf(r), wrapped.statusCode, time.Since(start))
		})
	}
}
