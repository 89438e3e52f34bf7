package rest

import (
	"bytes"
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"brain2-canvas/internal/application/diagrams"
	"brain2-canvas/internal/geometry"
	"brain2-canvas/internal/interfaces/http/handlers"
	"brain2-canvas/internal/interfaces/websocket"
	"brain2-canvas/internal/observability"
	"brain2-canvas/internal/repository"
	"brain2-canvas/internal/surface"
	"brain2-canvas/pkg/api"
)

type recordingBroadcaster struct {
	mu       sync.Mutex
	messages []string
}

func (b *recordingBroadcaster) Broadcast(diagramID, messageType string, _ any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, diagramID+":"+messageType)
	return nil
}

func (b *recordingBroadcaster) sent() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.messages...)
}

func newTestRouter(t *testing.T) (http.Handler, *recordingBroadcaster) {
	t.Helper()
	return newTestRouterWithLogger(t, zaptest.NewLogger(t))
}

func newTestRouterWithLogger(t *testing.T, logger *zap.Logger) (http.Handler, *recordingBroadcaster) {
	t.Helper()
	store, err := repository.NewMemoryStore(8)
	require.NoError(t, err)
	metrics := observability.NewCollector("test")
	svc := diagrams.NewService(store, surface.Options{
		Canvas: geometry.Size{Width: 1200, Height: 800},
		Rand:   rand.New(rand.NewPCG(1, 2)),
	}, logger, diagrams.WithMetrics(metrics))

	b := &recordingBroadcaster{}
	rt := NewRouter(
		handlers.NewDiagramHandler(svc, b, 1<<20, logger),
		handlers.NewHealthHandler(store, "test"),
		nil,
		metrics,
		logger,
		Config{},
	)
	return rt.Setup(), b
}

const pipeline = `{
	"document": {
		"title": "Pipeline",
		"nodes": [
			{"id": "src", "name": "Source", "properties": []},
			{"id": "dst", "name": "Sink", "properties": []}
		],
		"relationships": [
			{"id": "r1", "source": "src", "target": "dst", "label": "feeds", "properties": []}
		]
	}
}`

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func create(t *testing.T, h http.Handler) string {
	t.Helper()
	w := do(t, h, http.MethodPost, "/api/v1/diagrams", pipeline)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var view diagrams.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	require.Len(t, view.Scene.Nodes, 2)
	return view.ID
}

func TestHealthAndMetrics(t *testing.T) {
	h, _ := newTestRouter(t)

	w := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	var health handlers.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, handlers.StatusHealthy, health.Status)
	assert.Equal(t, 0, health.Sessions)

	do(t, h, http.MethodGet, "/health", "")
	w = do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `test_http_requests_total{method="GET",route="/health",status="200"}`)
}

func TestDiagramLifecycle(t *testing.T) {
	h, b := newTestRouter(t)
	id := create(t, h)
	base := "/api/v1/diagrams/" + id

	w := do(t, h, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, w.Code)
	var got handlers.DiagramResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Pipeline", got.Document.Title)
	assert.Contains(t, got.Layout.Positions, "src")

	w = do(t, h, http.MethodGet, base+"/flowchart", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "feeds")
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain"))

	w = do(t, h, http.MethodPost, base+"/events", `{"events":[
		{"type":"select","selection":{"kind":"node","id":"src"}},
		{"type":"delete"}
	]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res diagrams.DispatchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, []string{"delete"}, res.Mutations)
	assert.Len(t, res.Scene.Nodes, 1)
	assert.Empty(t, res.Scene.Edges)
	assert.True(t, res.Scene.CanUndo)

	w = do(t, h, http.MethodPost, base+"/undo", "")
	require.Equal(t, http.StatusOK, w.Code)
	var step handlers.StepResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &step))
	assert.True(t, step.Changed)
	assert.Len(t, step.Scene.Nodes, 2)

	w = do(t, h, http.MethodDelete, base, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, h, http.MethodGet, base+"/scene", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	assert.Equal(t, []string{
		id + ":" + websocket.TypeSceneUpdated,
		id + ":" + websocket.TypeSceneUpdated,
		id + ":" + websocket.TypeDiagramClosed,
	}, b.sent())
}

func TestExportImportRoundTrip(t *testing.T) {
	h, _ := newTestRouter(t)
	id := create(t, h)

	w := do(t, h, http.MethodGet, "/api/v1/diagrams/"+id+"/export", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), id+".json")
	snapshot := w.Body.String()

	w = do(t, h, http.MethodPost, "/api/v1/diagrams/import", snapshot)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var view diagrams.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.NotEqual(t, id, view.ID)
	assert.Len(t, view.Scene.Nodes, 2)
}

func TestLayoutRoundTrip(t *testing.T) {
	h, _ := newTestRouter(t)
	id := create(t, h)
	base := "/api/v1/diagrams/" + id

	w := do(t, h, http.MethodGet, base+"/layout", "")
	require.Equal(t, http.StatusOK, w.Code)
	var l map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &l))

	w = do(t, h, http.MethodPut, base+"/layout", w.Body.String())
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, h, http.MethodPut, base+"/layout", `{"positions":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMergeAndProblems(t *testing.T) {
	h, _ := newTestRouter(t)
	id := create(t, h)
	base := "/api/v1/diagrams/" + id

	w := do(t, h, http.MethodPost, base+"/merge", `{"document":{"title":"more","nodes":[{"id":"src","name":"Other","properties":[]}]}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var merged diagrams.MergeView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &merged))
	assert.Equal(t, 1, merged.Renamed)
	assert.Len(t, merged.Scene.Nodes, 3)

	w = do(t, h, http.MethodPost, base+"/merge", `{"policy":"reject","document":{"nodes":[{"id":"dst","name":"x","properties":[]}]}}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, h, http.MethodGet, base+"/problems", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"problems":[]}`, w.Body.String())
}

func TestErrorResponses(t *testing.T) {
	h, _ := newTestRouter(t)
	id := create(t, h)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"unknown diagram", http.MethodGet, "/api/v1/diagrams/missing/scene", "", http.StatusNotFound, "DIAGRAM_NOT_FOUND"},
		{"malformed body", http.MethodPost, "/api/v1/diagrams", `{"title":`, http.StatusBadRequest, "INVALID_JSON"},
		{"invalid event", http.MethodPost, "/api/v1/diagrams/" + id + "/events", `{"events":[{"type":"teleport"}]}`, http.StatusBadRequest, "INVALID_EVENT"},
		{"generation disabled", http.MethodPost, "/api/v1/diagrams/generate", `{"text":"a pipeline"}`, http.StatusServiceUnavailable, "GENERATION_UNAVAILABLE"},
		{"unknown route", http.MethodGet, "/api/v2/nothing", "", http.StatusNotFound, "VALIDATION_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code)
			var resp api.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Code)
			if tt.status < http.StatusInternalServerError && tt.status != http.StatusNotFound {
				assert.NotEmpty(t, resp.Details)
			}
		})
	}
}

func TestBodyLimit(t *testing.T) {
	h, _ := newTestRouter(t)
	big := bytes.Repeat([]byte("a"), 2<<20)
	r := httptest.NewRequest(http.MethodPost, "/api/v1/diagrams/import", bytes.NewReader(big))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequestIDEchoed(t *testing.T) {
	h, _ := newTestRouter(t)
	r := httptest.NewRequest(http.MethodGet, "/api/v1/diagrams/missing", nil)
	r.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "req-42", resp.RequestID)
}

func TestFailuresLoggedWithRequestAndDiagram(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	h, _ := newTestRouterWithLogger(t, zap.New(core))

	r := httptest.NewRequest(http.MethodGet, "/api/v1/diagrams/missing/scene", nil)
	r.Header.Set("X-Request-ID", "req-7")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	require.Equal(t, http.StatusNotFound, w.Code)

	failed := logs.FilterMessage("diagram request failed").All()
	require.Len(t, failed, 1)
	fields := failed[0].ContextMap()
	assert.Equal(t, "req-7", fields["request_id"])
	assert.Equal(t, "missing", fields["diagram_id"])
	assert.Equal(t, "DIAGRAM_NOT_FOUND", fields["code"])
	assert.Equal(t, zapcore.DebugLevel, failed[0].Level, "not-found is low severity")
}

func TestAPIDocCoversRoutes(t *testing.T) {
	h, _ := newTestRouter(t)

	w := do(t, h, http.MethodGet, "/swagger/doc.json", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var doc struct {
		BasePath string                            `json:"basePath"`
		Info     struct{ Title string }            `json:"info"`
		Paths    map[string]map[string]interface{} `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "/api/v1", doc.BasePath)
	assert.NotEmpty(t, doc.Info.Title)

	routes, ok := h.(chi.Routes)
	require.True(t, ok)
	err := chi.Walk(routes, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		path, found := strings.CutPrefix(route, doc.BasePath)
		if !found {
			return nil
		}
		path = strings.TrimSuffix(path, "/")
		ops, documented := doc.Paths[path]
		if assert.True(t, documented, "undocumented path %s", path) {
			assert.Contains(t, ops, strings.ToLower(method), "undocumented %s %s", method, path)
		}
		return nil
	})
	require.NoError(t, err)
}
