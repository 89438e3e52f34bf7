package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	for _, env := range []string{"production", "development", "staging"} {
		logger, err := NewLogger(env)
		require.NoError(t, err, env)
		assert.NotNil(t, logger)
	}
}

func TestCollector_Records(t *testing.T) {
	c := NewCollector("canvas")

	c.RecordHTTPRequest(http.MethodGet, "/api/v1/diagrams/{id}", http.StatusOK, 10*time.Millisecond)
	c.RecordLayout(time.Millisecond, nil)
	c.RecordLayout(time.Millisecond, errors.New("boom"))
	c.RecordGeneration(time.Second, nil)
	c.SessionsOpen.Set(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues("GET", "/api/v1/diagrams/{id}", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.LayoutRuns.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.LayoutRuns.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.GenerationCalls.WithLabelValues("success")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.SessionsOpen))

	// Separate collectors do not share registries.
	other := NewCollector("canvas")
	assert.Equal(t, 0.0, testutil.ToFloat64(other.SessionsOpen))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("canvas")
	c.MutationsApplied.WithLabelValues("move-nodes").Inc()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `canvas_mutations_applied_total{mutation="move-nodes"} 1`)
}

func TestInitTracing_Disabled(t *testing.T) {
	tp, err := InitTracing(context.Background(), TracingConfig{ServiceName: "canvas"})
	require.NoError(t, err)

	_, span := tp.Tracer().Start(context.Background(), "test")
	span.End()
	assert.False(t, span.SpanContext().IsValid())
	assert.NoError(t, tp.Shutdown(context.Background()))
}
