package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/drishti-ai/drishti/internal/api/response"
)

// Recovery converts a handler panic into a 500 envelope. The stack is
// logged under the same trace id as the request line so the two can be
// joined in the log stream.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("panic recovered",
					"error", err,
					"trace_id", TraceID(r),
					"stack", string(debug.Stack()),
					"method", r.Method,
					"path", r.URL.Path,
				)
				response.Error(w, http.StatusInternalServerError,
					"INTERNAL_ERROR", "An unexpected error occurred", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
