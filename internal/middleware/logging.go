package middleware

import (
	"net/http"
	"time"

	"github.com/think-in-universe/nearai-cloud-server/internal/logging"
)

// Logger logs every request twice: "<--" when it arrives and "-->" with
// the status and duration once it is answered.
func Logger(next http.Handler) http.Handler {
	logger := logging.For("http")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := GetRequestID(r.Context())

		logger.Info("<--",
			"method", r.Method,
			"path", r.URL.RequestURI(),
			"request_id", requestID,
		)

		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)

		logger.Info("-->",
			"method", r.Method,
			"path", r.URL.RequestURI(),
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", requestID,
		)
	})
}
