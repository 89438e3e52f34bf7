// Package handlers adapts HTTP requests to the diagram service. Handlers
// decode and validate input, call the service and write JSON; they hold no
// diagram logic.
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"brain2-canvas/internal/application/diagrams"
	"brain2-canvas/internal/domain/diagram"
	apperrors "brain2-canvas/internal/errors"
	"brain2-canvas/internal/export"
	"brain2-canvas/internal/interfaces/http/dto"
	"brain2-canvas/internal/interfaces/websocket"
	"brain2-canvas/internal/middleware"
	"brain2-canvas/internal/surface"
	"brain2-canvas/pkg/api"
)

// Broadcaster pushes a message to everyone watching a diagram.
type Broadcaster interface {
	Broadcast(diagramID, messageType string, data any) error
}

// DiagramHandler serves the /diagrams routes.
type DiagramHandler struct {
	service     *diagrams.Service
	broadcaster Broadcaster
	maxBody     int64
	logger      *zap.Logger
}

// NewDiagramHandler creates a handler. broadcaster may be nil.
func NewDiagramHandler(service *diagrams.Service, broadcaster Broadcaster, maxBody int64, logger *zap.Logger) *DiagramHandler {
	if service == nil {
		panic("diagram service is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxBody <= 0 {
		maxBody = 10 << 20
	}
	return &DiagramHandler{service: service, broadcaster: broadcaster, maxBody: maxBody, logger: logger}
}

// DiagramResponse is a diagram with its layout snapshot.
type DiagramResponse struct {
	ID       string           `json:"id"`
	Document diagram.Document `json:"document"`
	Layout   diagram.Layout   `json:"layout"`
}

// StepResponse reports an undo or redo.
type StepResponse struct {
	Changed bool          `json:"changed"`
	Scene   surface.Scene `json:"scene"`
}

// Create handles POST /diagrams.
func (h *DiagramHandler) Create(w http.ResponseWriter, r *http.Request) {
	var cmd diagrams.CreateCommand
	if !h.decode(w, r, &cmd) {
		return
	}
	view, err := h.service.Create(r.Context(), cmd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.JSON(w, http.StatusCreated, view)
}

// Generate handles POST /diagrams/generate.
func (h *DiagramHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var cmd diagrams.GenerateCommand
	if !h.decode(w, r, &cmd) {
		return
	}
	view, err := h.service.Generate(r.Context(), cmd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.JSON(w, http.StatusCreated, view)
}

// Import handles POST /diagrams/import. The body is a JSON snapshot.
func (h *DiagramHandler) Import(w http.ResponseWriter, r *http.Request) {
	data, ok := h.body(w, r)
	if !ok {
		return
	}
	view, err := h.service.Import(r.Context(), data)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.JSON(w, http.StatusCreated, view)
}

// Get handles GET /diagrams/{id}.
func (h *DiagramHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, l, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.JSON(w, http.StatusOK, DiagramResponse{ID: id, Document: doc, Layout: l})
}

// Delete handles DELETE /diagrams/{id}.
func (h *DiagramHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	h.broadcast(r.Context(), id, websocket.TypeDiagramClosed, nil)
	w.WriteHeader(http.StatusNoContent)
}

// Scene handles GET /diagrams/{id}/scene.
func (h *DiagramHandler) Scene(w http.ResponseWriter, r *http.Request) {
	scene, err := h.service.Scene(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.JSON(w, http.StatusOK, scene)
}

// Export handles GET /diagrams/{id}/export.
func (h *DiagramHandler) Export(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	data, err := h.service.Export(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+id+`.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Flowchart handles GET /diagrams/{id}/flowchart.
func (h *DiagramHandler) Flowchart(w http.ResponseWriter, r *http.Request) {
	text, err := h.service.Flowchart(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, text)
}

// Problems handles GET /diagrams/{id}/problems.
func (h *DiagramHandler) Problems(w http.ResponseWriter, r *http.Request) {
	problems, err := h.service.Problems(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if problems == nil {
		problems = []diagram.Problem{}
	}
	api.JSON(w, http.StatusOK, map[string]any{"problems": problems})
}

// Events handles POST /diagrams/{id}/events.
func (h *DiagramHandler) Events(w http.ResponseWriter, r *http.Request) {
	data, ok := h.body(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	res, err := h.dispatch(r.Context(), id, data)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.JSON(w, http.StatusOK, res)
}

func (h *DiagramHandler) dispatch(ctx context.Context, id string, data []byte) (*diagrams.DispatchResult, error) {
	events, err := dto.DecodeEvents(data)
	if err != nil {
		return nil, err
	}
	res, err := h.service.Dispatch(ctx, id, events)
	if err != nil {
		return nil, err
	}
	if len(res.Mutations) > 0 {
		h.broadcast(ctx, id, websocket.TypeSceneUpdated, res.Scene)
	}
	return res, nil
}

// Undo handles POST /diagrams/{id}/undo.
func (h *DiagramHandler) Undo(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, h.service.Undo)
}

// Redo handles POST /diagrams/{id}/redo.
func (h *DiagramHandler) Redo(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, h.service.Redo)
}

func (h *DiagramHandler) step(w http.ResponseWriter, r *http.Request, fn func(context.Context, string) (surface.Scene, bool, error)) {
	id := chi.URLParam(r, "id")
	scene, changed, err := fn(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if changed {
		h.broadcast(r.Context(), id, websocket.TypeSceneUpdated, scene)
	}
	api.JSON(w, http.StatusOK, StepResponse{Changed: changed, Scene: scene})
}

// Relayout handles POST /diagrams/{id}/relayout.
func (h *DiagramHandler) Relayout(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	scene, err := h.service.Relayout(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.broadcast(r.Context(), id, websocket.TypeSceneUpdated, scene)
	api.JSON(w, http.StatusOK, scene)
}

// GetLayout handles GET /diagrams/{id}/layout.
func (h *DiagramHandler) GetLayout(w http.ResponseWriter, r *http.Request) {
	l, err := h.service.Layout(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	data, err := export.EncodeLayout(l)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// PutLayout handles PUT /diagrams/{id}/layout.
func (h *DiagramHandler) PutLayout(w http.ResponseWriter, r *http.Request) {
	data, ok := h.body(w, r)
	if !ok {
		return
	}
	l, err := export.DecodeLayout(data)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	scene, err := h.service.RestoreLayout(r.Context(), id, l)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.broadcast(r.Context(), id, websocket.TypeSceneUpdated, scene)
	api.JSON(w, http.StatusOK, scene)
}

// Merge handles POST /diagrams/{id}/merge.
func (h *DiagramHandler) Merge(w http.ResponseWriter, r *http.Request) {
	var cmd diagrams.MergeCommand
	if !h.decode(w, r, &cmd) {
		return
	}
	id := chi.URLParam(r, "id")
	view, err := h.service.Merge(r.Context(), id, cmd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.broadcast(r.Context(), id, websocket.TypeSceneUpdated, view.Scene)
	api.JSON(w, http.StatusOK, view)
}

// SocketMessage handles an inbound WebSocket frame of the form
// {"type":"events","events":[...]}. Errors go back to the sender; scene
// updates go to every client through the broadcaster.
func (h *DiagramHandler) SocketMessage(ctx context.Context, diagramID string, payload []byte) *websocket.Message {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil || envelope.Type != "events" {
		return h.socketError(diagramID, apperrors.Validation(apperrors.CodeInvalidJSON, "expected an events message").Build())
	}
	if _, err := h.dispatch(ctx, diagramID, payload); err != nil {
		return h.socketError(diagramID, err)
	}
	return nil
}

func (h *DiagramHandler) socketError(diagramID string, err error) *websocket.Message {
	ue := apperrors.As(err)
	m, merr := websocket.NewMessage(diagramID, websocket.TypeError, api.ErrorResponse{
		Error:     ue.Message,
		Code:      ue.Code,
		Details:   ue.Details,
		Retryable: ue.Retryable,
	})
	if merr != nil {
		h.logger.Error("failed to build socket error", zap.Error(merr))
		return nil
	}
	return m
}

func (h *DiagramHandler) broadcast(ctx context.Context, id, messageType string, data any) {
	if h.broadcaster == nil {
		return
	}
	if err := h.broadcaster.Broadcast(id, messageType, data); err != nil {
		middleware.Logger(ctx, h.logger).Warn("broadcast failed",
			zap.String("diagram_id", id),
			zap.String("type", messageType),
			zap.Error(err))
	}
}

// body reads the request body up to the configured limit.
func (h *DiagramHandler) body(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		h.fail(w, r, apperrors.Validation(apperrors.CodeValidationFailed, "request body too large or unreadable").
			WithDetails(err.Error()).WithCause(err).Build())
		return nil, false
	}
	return data, true
}

// decode unmarshals the request body into v.
func (h *DiagramHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	data, ok := h.body(w, r)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		h.fail(w, r, apperrors.Validation(apperrors.CodeInvalidJSON, "invalid request body").
			WithDetails(err.Error()).WithCause(err).Build())
		return false
	}
	return true
}

func (h *DiagramHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetRequestIDFromRequest(r)
	ue := apperrors.As(err)
	h.log(r).Log(ue.Severity.Level(), "diagram request failed",
		zap.String("path", r.URL.Path),
		zap.String("code", ue.Code),
		zap.String("severity", string(ue.Severity)),
		zap.Error(err))
	api.FromError(w, err, requestID)
}

// log returns the handler logger tagged with the request id and, on
// /diagrams/{id} routes, the diagram id.
func (h *DiagramHandler) log(r *http.Request) *zap.Logger {
	l := middleware.Logger(r.Context(), h.logger)
	if id := chi.URLParam(r, "id"); id != "" {
		l = l.With(zap.String("diagram_id", id))
	}
	return l
}

// Service returns the underlying diagram service.
func (h *DiagramHandler) Service() *diagrams.Service {
	return h.service
}
