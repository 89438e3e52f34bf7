package di

import (
	"context"
	"errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"brain2-canvas/internal/application/diagrams"
	"brain2-canvas/internal/config"
	"brain2-canvas/internal/interfaces/websocket"
	"brain2-canvas/internal/observability"
	"brain2-canvas/internal/repository"
)

// Container holds the long-lived components of one process.
type Container struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *observability.Collector
	Tracing *observability.TracerProvider
	Store   *repository.MemoryStore
	Service *diagrams.Service
	Hub     *websocket.Hub
	Router  *chi.Mux

	watcher *config.Watcher
}

func provideContainer(
	cfg *config.Config,
	logger *zap.Logger,
	metrics *observability.Collector,
	tracing *observability.TracerProvider,
	store *repository.MemoryStore,
	service *diagrams.Service,
	hub *websocket.Hub,
	router *chi.Mux,
) *Container {
	return &Container{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics,
		Tracing: tracing,
		Store:   store,
		Service: service,
		Hub:     hub,
		Router:  router,
	}
}

// Start runs the background workers.
func (c *Container) Start() {
	go c.Hub.Run()
}

// WatchConfig applies changed diagram settings from loader's directory to
// diagrams opened afterwards. Watching is a no-op outside development.
func (c *Container) WatchConfig(loader *config.Loader) error {
	w, err := config.NewWatcher(loader, c.Config, 0, c.Logger)
	if err != nil {
		return err
	}
	w.OnChange(func(cfg *config.Config) {
		c.Service.SetOptions(SurfaceOptions(cfg))
	})
	c.watcher = w
	return nil
}

// Shutdown stops background workers and flushes telemetry.
func (c *Container) Shutdown(ctx context.Context) error {
	if c.watcher != nil {
		c.watcher.Stop()
	}
	c.Hub.Stop()
	var errs []error
	if err := c.Tracing.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	_ = c.Logger.Sync()
	return errors.Join(errs...)
}
