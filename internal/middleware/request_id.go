package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type requestIDKey struct{}

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLength bounds ids accepted from clients.
const maxRequestIDLength = 128

// RequestID reuses a well-formed X-Request-ID sent by the client, otherwise
// issues a uuid, and echoes it on the response. Diagram handlers, error
// bodies and websocket connections opened by the request all carry it.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if !validRequestID(id) {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), id)))
	})
}

// validRequestID accepts short ids made of characters that are safe to echo
// in headers and log lines.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.', c == ':':
		default:
			return false
		}
	}
	return true
}

// WithRequestID returns ctx carrying id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// GetRequestID extracts the request ID from ctx.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// GetRequestIDFromRequest extracts the request ID from the request context.
func GetRequestIDFromRequest(r *http.Request) string {
	return GetRequestID(r.Context())
}

// Logger returns base tagged with the request id in ctx. Without one, base
// is returned unchanged.
func Logger(ctx context.Context, base *zap.Logger) *zap.Logger {
	if id := GetRequestID(ctx); id != "" {
		return base.With(zap.String("request_id", id))
	}
	return base
}
