// Package observability provides the logger, Prometheus metrics and
// OpenTelemetry tracing shared by the binaries.
package observability

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger returns a production logger for "production" and a development
// logger for every other environment.
func NewLogger(environment string) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	switch environment {
	case "production":
		logger, err = zap.NewProduction()
	default:
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}
