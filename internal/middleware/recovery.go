package middleware

import (
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	apperrors "brain2-canvas/internal/errors"
	"brain2-canvas/pkg/api"
)

// Recovery turns panics into 500 responses and logs the stack.
func Recovery(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					if err == http.ErrAbortHandler {
						panic(err)
					}
					logger.Error("panic recovered",
						zap.String("request_id", GetRequestIDFromRequest(r)),
						zap.Any("panic", err),
						zap.ByteString("stack", debug.Stack()))

					// Nothing can be sent once the body has started.
					if w.Header().Get("Content-Type") == "" {
						api.Error(w, http.StatusInternalServerError, apperrors.CodeInternalError, "Internal server error")
					}
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
