package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	apperrors "brain2-canvas/internal/errors"
	"brain2-canvas/internal/observability"
	"brain2-canvas/pkg/api"
)

func ok(w http.ResponseWriter, _ *http.Request) {
	api.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func TestRequestIDMiddleware(t *testing.T) {
	t.Run("Should generate request ID when not provided", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		w := httptest.NewRecorder()

		handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.NotEmpty(t, GetRequestIDFromRequest(r))
			w.WriteHeader(http.StatusOK)
		}))
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
	})

	t.Run("Should use provided request ID", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set(RequestIDHeader, "test-request-id")
		w := httptest.NewRecorder()

		handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "test-request-id", GetRequestIDFromRequest(r))
		}))
		handler.ServeHTTP(w, req)

		assert.Equal(t, "test-request-id", w.Header().Get(RequestIDHeader))
	})
}

func TestRecoveryMiddleware(t *testing.T) {
	t.Run("Should handle panic gracefully", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler := Recovery(zaptest.NewLogger(t))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("test panic")
		}))
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), string(apperrors.CodeInternalError))
	})

	t.Run("Should pass through normal requests", func(t *testing.T) {
		w := httptest.NewRecorder()
		Recovery(zaptest.NewLogger(t))(http.HandlerFunc(ok)).ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestTimeoutMiddleware(t *testing.T) {
	handler := Timeout(20 * time.Millisecond)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline, has := r.Context().Deadline()
		require.True(t, has)
		assert.WithinDuration(t, time.Now().Add(20*time.Millisecond), deadline, 20*time.Millisecond)
		<-r.Context().Done()
		assert.ErrorIs(t, r.Context().Err(), context.DeadlineExceeded)
		w.WriteHeader(http.StatusGatewayTimeout)
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/slow", nil))
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
}

func TestLoggingMiddleware(t *testing.T) {
	metrics := observability.NewCollector("test")
	r := chi.NewRouter()
	r.Use(Logging(zaptest.NewLogger(t), metrics))
	r.Get("/diagrams/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", "/diagrams/"+id, nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("GET", "/diagrams/{id}", "404")))
}

func TestCircuitBreakerMiddleware(t *testing.T) {
	t.Run("Should pass through successful requests", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler := CircuitBreaker(DefaultCircuitBreakerConfig("test"), zaptest.NewLogger(t))(http.HandlerFunc(ok))
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Should open after repeated 5xx", func(t *testing.T) {
		cfg := DefaultCircuitBreakerConfig("test-failure")
		cfg.MinRequests = 3
		cfg.FailureThreshold = 0.5
		calls := 0
		handler := CircuitBreaker(cfg, zaptest.NewLogger(t))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls++
			w.WriteHeader(http.StatusInternalServerError)
		}))

		for i := 0; i < 3; i++ {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))
			assert.Equal(t, http.StatusInternalServerError, w.Code)
		}

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.True(t, strings.Contains(w.Body.String(), string(apperrors.CodeCircuitOpen)))
		assert.Equal(t, 3, calls)
	})
}

func TestGetRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "test-id")
	assert.Equal(t, "test-id", GetRequestID(ctx))
	assert.Empty(t, GetRequestID(context.Background()))
}

func TestRequestID_RejectsMalformedClientIDs(t *testing.T) {
	tests := []struct {
		name string
		id   string
		keep bool
	}{
		{"uuid", "0b7e8f8e-5d1c-4c39-9a57-3f1d2c7a9e10", true},
		{"trace style", "trace:abc_123.4", true},
		{"newline", "abc\nforged=1", false},
		{"space", "abc def", false},
		{"too long", strings.Repeat("a", maxRequestIDLength+1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", nil)
			req.Header[RequestIDHeader] = []string{tt.id}
			w := httptest.NewRecorder()

			var seen string
			RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				seen = GetRequestIDFromRequest(r)
			})).ServeHTTP(w, req)

			assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
			if tt.keep {
				assert.Equal(t, tt.id, seen)
			} else {
				assert.NotEqual(t, tt.id, seen)
				assert.True(t, validRequestID(seen))
			}
		})
	}
}

func TestLogger_TagsRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	base := zap.New(core)

	Logger(WithRequestID(context.Background(), "req-1"), base).Info("tagged")
	Logger(context.Background(), base).Info("plain")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "req-1", entries[0].ContextMap()["request_id"])
	_, ok := entries[1].ContextMap()["request_id"]
	assert.False(t, ok)
}
