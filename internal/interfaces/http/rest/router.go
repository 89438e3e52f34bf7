// Package rest assembles the HTTP API.
package rest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	gorilla "github.com/gorilla/websocket"
	"github.com/swaggo/swag"
	"go.uber.org/zap"

	apperrors "brain2-canvas/internal/errors"
	"brain2-canvas/internal/interfaces/http/docs"
	"brain2-canvas/internal/interfaces/http/handlers"
	"brain2-canvas/internal/interfaces/websocket"
	"brain2-canvas/internal/middleware"
	"brain2-canvas/internal/observability"
	"brain2-canvas/pkg/api"
)

// Config controls the router's middleware.
type Config struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	MetricsPath    string
	Breaker        middleware.CircuitBreakerConfig
}

// Router creates and configures the HTTP router.
type Router struct {
	diagrams *handlers.DiagramHandler
	health   *handlers.HealthHandler
	hub      *websocket.Hub
	upgrader *gorilla.Upgrader
	metrics  *observability.Collector
	logger   *zap.Logger
	config   Config
}

// NewRouter creates a router. hub and metrics may be nil, which disables
// the WebSocket route and the metrics endpoint.
func NewRouter(
	diagrams *handlers.DiagramHandler,
	health *handlers.HealthHandler,
	hub *websocket.Hub,
	metrics *observability.Collector,
	logger *zap.Logger,
	config Config,
) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Breaker.Name == "" {
		config.Breaker = middleware.DefaultCircuitBreakerConfig("api")
	}
	if config.MetricsPath == "" {
		config.MetricsPath = "/metrics"
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 30 * time.Second
	}
	return &Router{
		diagrams: diagrams,
		health:   health,
		hub:      hub,
		upgrader: websocket.NewUpgrader(config.AllowedOrigins),
		metrics:  metrics,
		logger:   logger,
		config:   config,
	}
}

// Setup configures all routes and middleware.
func (rt *Router) Setup() *chi.Mux {
	router := chi.NewRouter()

	// Global middleware
	router.Use(middleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.Recovery(rt.logger))
	router.Use(middleware.Logging(rt.logger, rt.metrics))

	origins := rt.config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))

	router.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		api.Error(w, http.StatusNotFound, apperrors.CodeValidationFailed, "route not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		api.Error(w, http.StatusMethodNotAllowed, apperrors.CodeValidationFailed, "method not allowed")
	})

	router.Get("/health", rt.health.Health)
	router.Get("/swagger/doc.json", rt.serveDoc)
	if rt.metrics != nil {
		router.Handle(rt.config.MetricsPath, rt.metrics.Handler())
	}

	d := rt.diagrams
	timeout := middleware.Timeout(rt.config.RequestTimeout)
	breaker := middleware.CircuitBreaker(rt.config.Breaker, rt.logger)
	guard := func(r chi.Router) {
		r.Use(timeout, breaker)
	}
	router.Route("/api/v1/diagrams", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			guard(r)
			r.Post("/", d.Create)
			r.Post("/generate", d.Generate)
			r.Post("/import", d.Import)
		})

		r.Route("/{id}", func(r chi.Router) {
			// Upgraded connections outlive any request deadline.
			if rt.hub != nil {
				r.Get("/ws", rt.serveWS)
			}

			r.Group(func(r chi.Router) {
				guard(r)
				r.Get("/", d.Get)
				r.Delete("/", d.Delete)
				r.Get("/scene", d.Scene)
				r.Get("/export", d.Export)
				r.Get("/flowchart", d.Flowchart)
				r.Get("/problems", d.Problems)
				r.Post("/events", d.Events)
				r.Post("/undo", d.Undo)
				r.Post("/redo", d.Redo)
				r.Post("/relayout", d.Relayout)
				r.Post("/merge", d.Merge)
				r.Get("/layout", d.GetLayout)
				r.Put("/layout", d.PutLayout)
			})
		})
	})

	return router
}

func (rt *Router) serveWS(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := rt.diagrams.Service().Scene(r.Context(), id); err != nil {
		api.FromError(w, err, middleware.GetRequestIDFromRequest(r))
		return
	}
	if err := rt.hub.Serve(rt.upgrader, w, r, id); err != nil {
		// The upgrader has already written the failure response.
		rt.logger.Warn("websocket upgrade failed", zap.String("diagram_id", id), zap.Error(err))
	}
}

// serveDoc writes the OpenAPI description registered by package docs.
func (rt *Router) serveDoc(w http.ResponseWriter, _ *http.Request) {
	doc, err := swag.ReadDoc(docs.SwaggerInfo.InstanceName())
	if err != nil {
		rt.logger.Error("api doc unavailable", zap.Error(err))
		api.Error(w, http.StatusInternalServerError, apperrors.CodeInternalError, "api doc unavailable")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(doc))
}
