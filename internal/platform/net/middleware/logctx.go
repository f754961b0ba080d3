package middleware

import (
	"net/http"

	"rollcall/internal/platform/logger"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// LogContext copies the request id onto the logging context so logger.C(ctx)
// tags every line a handler writes. Mount it after RequestID.
func LogContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := chimw.GetReqID(r.Context()); id != "" {
			r = r.WithContext(logger.WithRequest(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}
