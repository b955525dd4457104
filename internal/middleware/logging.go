// Package middleware holds the HTTP middleware MemberHub writes itself.
// The off-the-shelf ones (RequestID, RealIP, Recoverer) come straight from
// chi; this package is for the pieces that need our own logger or domain
// knowledge.
package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// statusRecorder wraps http.ResponseWriter so the logger can see what the
// handler did. The stock ResponseWriter is write-only: once a handler calls
// WriteHeader there is no way to ask it what status went out, so we note it
// on the way through. Embedding keeps every other method intact.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += int64(n)
	return n, err
}

// Logger emits one structured slog line per completed request: method, path,
// status, duration, bytes, and the request ID that chi's RequestID middleware
// assigned. Register it AFTER RequestID in the chain or the ID field comes
// out empty. Grep a request ID out of a bug report and the logs give you
// that request's full story.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// 200 is what the client sees when a handler writes the body
			// without ever calling WriteHeader, so it's our default too.
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			logger.Info("request completed",
				slog.String("requestID", chimiddleware.GetReqID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Duration("duration", time.Since(start)),
				slog.Int64("bytes", rec.bytes),
			)
		})
	}
}
