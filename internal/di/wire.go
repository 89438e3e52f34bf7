//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"brain2-canvas/internal/config"
)

// InitializeContainer builds the application container from cfg.
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil
}
