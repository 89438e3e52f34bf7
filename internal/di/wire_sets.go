package di

import (
	"github.com/google/wire"

	"brain2-canvas/internal/repository"
)

// SuperSet combines all provider sets for the complete application.
var SuperSet = wire.NewSet(
	ObservabilityProviders,
	InfrastructureProviders,
	ApplicationProviders,
	InterfaceProviders,
	provideContainer,
)

// ObservabilityProviders provides logging, metrics and tracing.
var ObservabilityProviders = wire.NewSet(
	provideLogger,
	provideMetrics,
	provideTracerProvider,
	provideTracer,
)

// InfrastructureProviders provides the session store, the generation
// client and the WebSocket hub.
var InfrastructureProviders = wire.NewSet(
	provideSessionStore,
	wire.Bind(new(repository.SessionStore), new(*repository.MemoryStore)),
	provideGenerator,
	provideHub,
)

// ApplicationProviders provides the diagram use cases.
var ApplicationProviders = wire.NewSet(
	provideService,
)

// InterfaceProviders provides handlers and the router.
var InterfaceProviders = wire.NewSet(
	provideDiagramHandler,
	provideHealthHandler,
	provideRouter,
)
