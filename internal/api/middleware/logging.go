package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// requestLog collects fields the logger only learns from middleware
// running inside it, such as which API key authenticated. The pointer
// survives context derivation, so Authenticate can write into it.
type requestLog struct {
	keyPrefix string
}

type requestLogKey struct{}

func noteKeyPrefix(ctx context.Context, prefix string) {
	if rl, ok := ctx.Value(requestLogKey{}).(*requestLog); ok {
		rl.keyPrefix = prefix
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Logger tags every request with a trace id and emits one structured
// line at completion. Authenticated traffic also carries the key prefix;
// the public verify and health routes log without one.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		traceID := uuid.NewString()
		rl := &requestLog{}
		ctx := setTraceID(r.Context(), traceID)
		ctx = context.WithValue(ctx, requestLogKey{}, rl)

		next.ServeHTTP(rec, r.WithContext(ctx))

		attrs := []any{
			"trace_id", traceID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"remote_addr", r.RemoteAddr,
		}
		if rl.keyPrefix != "" {
			attrs = append(attrs, "key_prefix", rl.keyPrefix)
		}
		slog.Info("request", attrs...)
	})
}
