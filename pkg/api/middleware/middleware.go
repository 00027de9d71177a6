// Package middleware provides HTTP middleware for the flowsweep adapter API.
package middleware

import (
	"net/http"

	"github.com/tcmartin/flowsweep/pkg/logging"
	"github.com/tcmartin/flowsweep/pkg/sweep"
)

// RequestLogger logs every request at debug level.
func RequestLogger(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Debug("request",
				logging.F("method", r.Method),
				logging.F("path", r.URL.Path))
			next.ServeHTTP(w, r)
		})
	}
}

// CORS adds permissive CORS headers and answers preflight requests.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// AccessGate rejects every request once the session's access gate has
// reported denial. Denial is terminal for the session, so there is no
// per-request re-check against the host.
func AccessGate(controller *sweep.Controller) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if controller.Snapshot().Phase == sweep.PhaseDenied {
				http.Error(w, "Access to flow management denied", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
