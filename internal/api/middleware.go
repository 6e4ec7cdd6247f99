package api

import (
	"log/slog"
	"net/http"
	"time"
)

const apiKeyHeader = "X-API-Key"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// requestLogger logs each request's method, path, status, address and duration.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"addr", r.RemoteAddr,
				"duration", time.Since(start),
			)
		})
	}
}

// apiKeyGuard checks the X-API-Key header on state-changing requests. An
// empty key disables the check.
func apiKeyGuard(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" || r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			switch r.Header.Get(apiKeyHeader) {
			case "":
				respondJSON(w, http.StatusUnauthorized, errorBody{Error: "API key required"})
			case apiKey:
				next.ServeHTTP(w, r)
			default:
				respondJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid API key"})
			}
		})
	}
}
