// Package di wires the application together. Provider functions live here;
// wire.go declares the injector and wire_gen.go is its generated form.
package di

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"brain2-canvas/internal/application/diagrams"
	"brain2-canvas/internal/config"
	"brain2-canvas/internal/generation"
	"brain2-canvas/internal/geometry"
	"brain2-canvas/internal/interaction"
	"brain2-canvas/internal/interfaces/http/handlers"
	"brain2-canvas/internal/interfaces/http/rest"
	"brain2-canvas/internal/interfaces/websocket"
	"brain2-canvas/internal/layout"
	"brain2-canvas/internal/middleware"
	"brain2-canvas/internal/observability"
	"brain2-canvas/internal/repository"
	"brain2-canvas/internal/routing"
	"brain2-canvas/internal/surface"
	"brain2-canvas/internal/viewport"
)

// Version is reported by the health endpoint. Set at build time with
// -ldflags "-X brain2-canvas/internal/di.Version=...".
var Version = "dev"

// SurfaceOptions converts configuration into the options every new
// diagram is opened with.
func SurfaceOptions(cfg *config.Config) surface.Options {
	return surface.Options{
		Canvas: geometry.Size{Width: cfg.Diagram.CanvasWidth, Height: cfg.Diagram.CanvasHeight},
		Layout: layout.Options{
			Iterations:      cfg.Layout.Iterations,
			Repulsion:       cfg.Layout.Repulsion,
			SpringLength:    cfg.Layout.SpringLength,
			SpringStiffness: cfg.Layout.SpringStiffness,
			Centering:       cfg.Layout.Centering,
			Damping:         cfg.Layout.Damping,
			CollisionPasses: cfg.Layout.CollisionPasses,
			PaddingX:        cfg.Layout.PaddingX,
			PaddingY:        cfg.Layout.PaddingY,
			Jitter:          cfg.Layout.Jitter,
			MaxNodes:        cfg.Layout.MaxNodes,
			MaxDensity:      cfg.Layout.MaxDensity,
		},
		Routing: routing.Options{
			ParallelSpacing: cfg.Routing.ParallelSpacing,
			CurveBias:       cfg.Routing.CurveBias,
			LoopHeight:      cfg.Routing.LoopHeight,
			LoopSpacing:     cfg.Routing.LoopSpacing,
		},
		Viewport: viewport.Options{
			ZoomFactor: cfg.Viewport.ZoomFactor,
			MinScale:   cfg.Viewport.MinScale,
			MaxScale:   cfg.Viewport.MaxScale,
		},
		Interaction: interaction.Options{
			MinImageSize:       cfg.Diagram.MinImageSize,
			DefaultClusterName: cfg.Diagram.DefaultClusterName,
		},
		HistoryCapacity: cfg.Diagram.HistoryCapacity,
		DuplicateOffset: geometry.Pt(cfg.Diagram.DuplicateOffset, cfg.Diagram.DuplicateOffset),
	}
}

func provideLogger(cfg *config.Config) (*zap.Logger, error) {
	return observability.NewLogger(string(cfg.Environment))
}

// provideMetrics returns nil when metrics are disabled; every consumer
// accepts a nil collector.
func provideMetrics(cfg *config.Config) *observability.Collector {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return observability.NewCollector(cfg.Metrics.Namespace)
}

func provideTracerProvider(ctx context.Context, cfg *config.Config) (*observability.TracerProvider, error) {
	return observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Environment: string(cfg.Environment),
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRate:  cfg.Tracing.SampleRate,
	})
}

func provideTracer(tp *observability.TracerProvider) trace.Tracer {
	return tp.Tracer()
}

// provideGenerator returns nil when no generation endpoint is configured.
func provideGenerator(cfg *config.Config, logger *zap.Logger, metrics *observability.Collector, tracer trace.Tracer) generation.Generator {
	g := cfg.Generation
	if !g.Enabled() {
		logger.Info("generation disabled: no endpoint configured")
		return nil
	}
	breaker := generation.DefaultBreakerSettings("generation")
	if g.FailureThreshold > 0 {
		threshold := g.FailureThreshold
		breaker.ReadyToTrip = func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		}
	}
	if g.OpenTimeout.D() > 0 {
		breaker.Timeout = g.OpenTimeout.D()
	}
	opts := []generation.ClientOption{
		generation.WithAPIKey(g.APIKey),
		generation.WithHTTPClient(&http.Client{Timeout: g.Timeout.D()}),
		generation.WithRateLimit(g.RateLimit, g.Burst),
		generation.WithBreaker(breaker),
		generation.WithLogger(logger),
		generation.WithTracer(tracer),
	}
	if metrics != nil {
		opts = append(opts, generation.WithObserver(func(d time.Duration, err error) {
			metrics.RecordGeneration(d, err)
		}))
	}
	return generation.NewClient(g.Endpoint, opts...)
}

func provideHub(logger *zap.Logger, metrics *observability.Collector) *websocket.Hub {
	return websocket.NewHub(logger, metrics)
}

// provideSessionStore tells watching clients when their diagram is evicted.
func provideSessionStore(cfg *config.Config, logger *zap.Logger, metrics *observability.Collector, hub *websocket.Hub) (*repository.MemoryStore, error) {
	return repository.NewMemoryStore(cfg.Sessions.MaxOpen,
		repository.WithIdleTTL(cfg.Sessions.IdleTTL.D()),
		repository.WithStoreLogger(logger),
		repository.WithStoreMetrics(metrics),
		repository.WithEvictionHook(func(id string) {
			go func() {
				if err := hub.Broadcast(id, websocket.TypeDiagramClosed, nil); err != nil {
					logger.Debug("eviction notice dropped", zap.String("diagram_id", id), zap.Error(err))
				}
			}()
		}),
	)
}

func provideService(
	cfg *config.Config,
	store repository.SessionStore,
	generator generation.Generator,
	metrics *observability.Collector,
	tracer trace.Tracer,
	logger *zap.Logger,
) *diagrams.Service {
	opts := []diagrams.Option{diagrams.WithTracer(tracer)}
	if generator != nil {
		opts = append(opts, diagrams.WithGenerator(generator))
	}
	if metrics != nil {
		opts = append(opts, diagrams.WithMetrics(metrics))
	}
	return diagrams.NewService(store, SurfaceOptions(cfg), logger, opts...)
}

// provideDiagramHandler also routes inbound WebSocket frames to the handler.
func provideDiagramHandler(cfg *config.Config, service *diagrams.Service, hub *websocket.Hub, logger *zap.Logger) *handlers.DiagramHandler {
	h := handlers.NewDiagramHandler(service, hub, cfg.Server.MaxRequestSize, logger)
	hub.OnMessage(h.SocketMessage)
	return h
}

func provideHealthHandler(store *repository.MemoryStore) *handlers.HealthHandler {
	return handlers.NewHealthHandler(store, Version)
}

func provideRouter(
	cfg *config.Config,
	diagramHandler *handlers.DiagramHandler,
	healthHandler *handlers.HealthHandler,
	hub *websocket.Hub,
	metrics *observability.Collector,
	logger *zap.Logger,
) *chi.Mux {
	return rest.NewRouter(diagramHandler, healthHandler, hub, metrics, logger, rest.Config{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: cfg.Server.RequestTimeout.D(),
		MetricsPath:    cfg.Metrics.Path,
		Breaker:        middleware.DefaultCircuitBreakerConfig("api"),
	}).Setup()
}
