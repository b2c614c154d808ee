package database

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// acquireTimeout bounds how long a request waits for a pooled connection
// before it is turned away with 503.
const acquireTimeout = 5 * time.Second

// WithConnection wraps handlers that read or write assemblies: it pins one
// pooled connection to the request context and releases it when the
// handler returns.
func WithConnection(db *DB, logger *zap.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), acquireTimeout)
			scope, err := db.Acquire(ctx)
			cancel()
			if err != nil {
				logger.Error("Failed to acquire database connection",
					zap.String("route", r.Pattern),
					zap.Int32("pool_in_use", db.Stat().AcquiredConns()),
					zap.Error(err))
				unavailable(w)
				return
			}
			defer scope.Close()

			next(w, r.WithContext(WithScope(r.Context(), scope)))
		}
	}
}

// unavailable writes the same {"error","message"} body the API handlers use.
func unavailable(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", "1")
	w.WriteHeader(http.StatusServiceUnavailable)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "database_unavailable",
		"message": "Assembly store is busy, please retry",
	})
}
