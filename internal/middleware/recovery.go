package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/think-in-universe/nearai-cloud-server/internal/logging"
	"github.com/think-in-universe/nearai-cloud-server/internal/utils"
)

// Recovery turns a panic into a 500 error envelope.
func Recovery(isDev bool) func(http.Handler) http.Handler {
	logger := logging.For("http")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("panic recovered",
					"error", rec,
					"stack", string(debug.Stack()),
					"method", r.Method,
					"path", r.URL.Path,
					"request_id", GetRequestID(r.Context()),
				)
				utils.RespondWithError(w, utils.Internal("", fmt.Errorf("panic: %v", rec)), isDev)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
