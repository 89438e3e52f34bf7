package config_test

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"brain2-canvas/internal/config"
	apperrors "brain2-canvas/internal/errors"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "staging")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("CANVAS_WIDTH", "1600")
	t.Setenv("SESSIONS_IDLE_TTL", "15m")
	t.Setenv("GENERATION_ENDPOINT", "http://gen.local")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, config.Staging, cfg.Environment)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 1600.0, cfg.Diagram.CanvasWidth)
	assert.Equal(t, 15*time.Minute, cfg.Sessions.IdleTTL.D())
	assert.True(t, cfg.Generation.Enabled())
	assert.Equal(t, []string{"defaults", "environment"}, cfg.LoadedFrom)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"defaults", func(*config.Config) {}, ""},
		{"bad port", func(c *config.Config) { c.Server.Port = 0 }, "server.port"},
		{"bad damping", func(c *config.Config) { c.Layout.Damping = 1 }, "layout.damping"},
		{"inverted zoom", func(c *config.Config) { c.Viewport.MinScale = 20 }, "viewport.min_scale"},
		{"no canvas", func(c *config.Config) { c.Diagram.CanvasHeight = 0 }, "canvas"},
		{"unknown env", func(c *config.Config) { c.Environment = "qa" }, "unknown environment"},
		{"tracing without endpoint", func(c *config.Config) { c.Tracing.Enabled = true }, "tracing.endpoint"},
		{"production generation key", func(c *config.Config) {
			c.Environment = config.Production
			c.Generation.Endpoint = "http://gen"
		}, "api_key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default(config.Development)
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, apperrors.CodeConfigInvalid))
			assert.Contains(t, apperrors.As(err).Details, tt.wantErr)
		})
	}
}

func TestLoader_Layering(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
server:
  port: 7000
  request_timeout: 5s
layout:
  iterations: 120
diagram:
  default_cluster_name: Group
`)
	writeFile(t, dir, "production.toml", `
[server]
port = 7100

[generation]
endpoint = "https://gen.example"
api_key = "k"
timeout = "20s"
`)
	writeFile(t, dir, "local.json", `{"server": {"port": 7200}}`)

	cfg, err := config.NewLoader(dir, config.Production).Load()
	require.NoError(t, err)

	assert.Equal(t, 7100, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.RequestTimeout.D())
	assert.Equal(t, 120, cfg.Layout.Iterations)
	assert.Equal(t, "Group", cfg.Diagram.DefaultClusterName)
	assert.Equal(t, 20*time.Second, cfg.Generation.Timeout.D())
	assert.Equal(t, 0.6, cfg.Layout.Damping)
	assert.Equal(t, []string{
		"defaults",
		filepath.Join(dir, "base.yaml"),
		filepath.Join(dir, "production.toml"),
		"environment",
	}, cfg.LoadedFrom)

	dev, err := config.NewLoader(dir, config.Development).Load()
	require.NoError(t, err)
	assert.Equal(t, 7200, dev.Server.Port)
}

func TestLoader_Errors(t *testing.T) {
	t.Run("malformed file", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "base.json", `{"server": `)
		_, err := config.NewLoader(dir, config.Development).Load()
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeConfigInvalid))
	})

	t.Run("unknown toml key", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "base.toml", "[server]\nprot = 1\n")
		_, err := config.NewLoader(dir, config.Development).Load()
		require.Error(t, err)
	})

	t.Run("invalid values", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "base.yaml", "sessions:\n  max_open: 0\n")
		_, err := config.NewLoader(dir, config.Development).Load()
		require.Error(t, err)
		assert.Contains(t, apperrors.As(err).Details, "sessions.max_open")
	})

	t.Run("missing directory uses defaults", func(t *testing.T) {
		cfg, err := config.NewLoader(filepath.Join(t.TempDir(), "none"), config.Development).Load()
		require.NoError(t, err)
		assert.Equal(t, 8080, cfg.Server.Port)
	})
}

func TestWatcher_Reloads(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "layout:\n  iterations: 100\n")
	loader := config.NewLoader(dir, config.Development)
	initial, err := loader.Load()
	require.NoError(t, err)

	w, err := config.NewWatcher(loader, initial, 20*time.Millisecond, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer w.Stop()

	var seen atomic.Int64
	w.OnChange(func(c *config.Config) { seen.Store(int64(c.Layout.Iterations)) })

	writeFile(t, dir, "base.yaml", "layout:\n  iterations: 250\n")

	assert.Eventually(t, func() bool { return seen.Load() == 250 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, 250, w.Config().Layout.Iterations)
}

func TestWatcher_IgnoresInvalidReload(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "layout:\n  iterations: 100\n")
	loader := config.NewLoader(dir, config.Development)
	initial, err := loader.Load()
	require.NoError(t, err)

	w, err := config.NewWatcher(loader, initial, 10*time.Millisecond, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer w.Stop()

	var calls atomic.Int32
	w.OnChange(func(*config.Config) { calls.Add(1) })
	writeFile(t, dir, "base.yaml", "layout:\n  iterations: -1\n")

	time.Sleep(200 * time.Millisecond)
	assert.Zero(t, calls.Load())
	assert.Equal(t, 100, w.Config().Layout.Iterations)
}

func TestWatcher_DisabledOutsideDevelopment(t *testing.T) {
	cfg := config.Default(config.Production)
	w, err := config.NewWatcher(config.NewLoader(t.TempDir(), config.Production), cfg, 0, nil)
	require.NoError(t, err)
	assert.Same(t, cfg, w.Config())
	w.Stop()
	w.Stop()
}

func TestServerAddress(t *testing.T) {
	s := config.Server{Host: "127.0.0.1", Port: 8081}
	assert.Equal(t, "127.0.0.1:8081", s.Address())
}
