package httpkit

import (
	"compress/flate"
	"net/http"
	"time"

	"rollcall/internal/platform/net/middleware"
)

// CommonStack is the middleware every versioned API route runs behind.
// Order matters: the request id must exist before logging and recovery.
func CommonStack() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		middleware.RequestID(),
		middleware.LogContext,
		middleware.RealIP(),
		middleware.AccessLog(time.Second),
		middleware.RecoverJSON,
		middleware.NoCache(),
		middleware.CORS(middleware.CORSOptions{}),
		middleware.Compress(flate.BestSpeed),
		middleware.StripSlashes(),
		middleware.Timeout(30 * time.Second),
	}
}
