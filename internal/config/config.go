package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "brain2-canvas/internal/errors"
)

// Environment is the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Duration is a time.Duration written as "30s" in every file format.
type Duration time.Duration

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Config holds all application configuration.
type Config struct {
	Environment Environment `yaml:"environment" json:"environment" toml:"environment"`
	Server      Server      `yaml:"server" json:"server" toml:"server"`
	Layout      Layout      `yaml:"layout" json:"layout" toml:"layout"`
	Routing     Routing     `yaml:"routing" json:"routing" toml:"routing"`
	Viewport    Viewport    `yaml:"viewport" json:"viewport" toml:"viewport"`
	Diagram     Diagram     `yaml:"diagram" json:"diagram" toml:"diagram"`
	Sessions    Sessions    `yaml:"sessions" json:"sessions" toml:"sessions"`
	Generation  Generation  `yaml:"generation" json:"generation" toml:"generation"`
	Tracing     Tracing     `yaml:"tracing" json:"tracing" toml:"tracing"`
	Metrics     Metrics     `yaml:"metrics" json:"metrics" toml:"metrics"`

	// LoadedFrom lists the sources applied, lowest priority first.
	LoadedFrom []string `yaml:"-" json:"-" toml:"-"`
}

// Server configures the HTTP listener.
type Server struct {
	Host            string   `yaml:"host" json:"host" toml:"host"`
	Port            int      `yaml:"port" json:"port" toml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout" json:"read_timeout" toml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout" json:"write_timeout" toml:"write_timeout"`
	IdleTimeout     Duration `yaml:"idle_timeout" json:"idle_timeout" toml:"idle_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout" json:"shutdown_timeout" toml:"shutdown_timeout"`
	RequestTimeout  Duration `yaml:"request_timeout" json:"request_timeout" toml:"request_timeout"`
	MaxRequestSize  int64    `yaml:"max_request_size" json:"max_request_size" toml:"max_request_size"`
	AllowedOrigins  []string `yaml:"allowed_origins" json:"allowed_origins" toml:"allowed_origins"`
}

// Address is host:port.
func (s Server) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Layout holds the force simulation parameters.
type Layout struct {
	Iterations      int     `yaml:"iterations" json:"iterations" toml:"iterations"`
	Repulsion       float64 `yaml:"repulsion" json:"repulsion" toml:"repulsion"`
	SpringLength    float64 `yaml:"spring_length" json:"spring_length" toml:"spring_length"`
	SpringStiffness float64 `yaml:"spring_stiffness" json:"spring_stiffness" toml:"spring_stiffness"`
	Centering       float64 `yaml:"centering" json:"centering" toml:"centering"`
	Damping         float64 `yaml:"damping" json:"damping" toml:"damping"`
	CollisionPasses int     `yaml:"collision_passes" json:"collision_passes" toml:"collision_passes"`
	PaddingX        float64 `yaml:"padding_x" json:"padding_x" toml:"padding_x"`
	PaddingY        float64 `yaml:"padding_y" json:"padding_y" toml:"padding_y"`
	Jitter          float64 `yaml:"jitter" json:"jitter" toml:"jitter"`
	MaxNodes        int     `yaml:"max_nodes" json:"max_nodes" toml:"max_nodes"`
	MaxDensity      float64 `yaml:"max_density" json:"max_density" toml:"max_density"`
}

// Routing holds edge routing parameters.
type Routing struct {
	ParallelSpacing float64 `yaml:"parallel_spacing" json:"parallel_spacing" toml:"parallel_spacing"`
	CurveBias       float64 `yaml:"curve_bias" json:"curve_bias" toml:"curve_bias"`
	LoopHeight      float64 `yaml:"loop_height" json:"loop_height" toml:"loop_height"`
	LoopSpacing     float64 `yaml:"loop_spacing" json:"loop_spacing" toml:"loop_spacing"`
}

// Viewport holds zoom limits.
type Viewport struct {
	ZoomFactor float64 `yaml:"zoom_factor" json:"zoom_factor" toml:"zoom_factor"`
	MinScale   float64 `yaml:"min_scale" json:"min_scale" toml:"min_scale"`
	MaxScale   float64 `yaml:"max_scale" json:"max_scale" toml:"max_scale"`
}

// Diagram holds per-diagram editing settings.
type Diagram struct {
	CanvasWidth        float64 `yaml:"canvas_width" json:"canvas_width" toml:"canvas_width"`
	CanvasHeight       float64 `yaml:"canvas_height" json:"canvas_height" toml:"canvas_height"`
	HistoryCapacity    int     `yaml:"history_capacity" json:"history_capacity" toml:"history_capacity"`
	MinImageSize       float64 `yaml:"min_image_size" json:"min_image_size" toml:"min_image_size"`
	DefaultClusterName string  `yaml:"default_cluster_name" json:"default_cluster_name" toml:"default_cluster_name"`
	DuplicateOffset    float64 `yaml:"duplicate_offset" json:"duplicate_offset" toml:"duplicate_offset"`
}

// Sessions bounds the in-memory session store.
type Sessions struct {
	MaxOpen int      `yaml:"max_open" json:"max_open" toml:"max_open"`
	IdleTTL Duration `yaml:"idle_ttl" json:"idle_ttl" toml:"idle_ttl"`
}

// Generation configures the text-to-diagram service client.
type Generation struct {
	Endpoint         string   `yaml:"endpoint" json:"endpoint" toml:"endpoint"`
	APIKey           string   `yaml:"api_key" json:"api_key" toml:"api_key"`
	Timeout          Duration `yaml:"timeout" json:"timeout" toml:"timeout"`
	RateLimit        float64  `yaml:"rate_limit" json:"rate_limit" toml:"rate_limit"`
	Burst            int      `yaml:"burst" json:"burst" toml:"burst"`
	FailureThreshold uint32   `yaml:"failure_threshold" json:"failure_threshold" toml:"failure_threshold"`
	OpenTimeout      Duration `yaml:"open_timeout" json:"open_timeout" toml:"open_timeout"`
}

// Enabled reports whether an endpoint is configured.
func (g Generation) Enabled() bool {
	return g.Endpoint != ""
}

// Tracing configures OpenTelemetry export.
type Tracing struct {
	Enabled     bool    `yaml:"enabled" json:"enabled" toml:"enabled"`
	ServiceName string  `yaml:"service_name" json:"service_name" toml:"service_name"`
	Endpoint    string  `yaml:"endpoint" json:"endpoint" toml:"endpoint"`
	SampleRate  float64 `yaml:"sample_rate" json:"sample_rate" toml:"sample_rate"`
}

// Metrics configures the Prometheus endpoint.
type Metrics struct {
	Enabled   bool   `yaml:"enabled" json:"enabled" toml:"enabled"`
	Namespace string `yaml:"namespace" json:"namespace" toml:"namespace"`
	Path      string `yaml:"path" json:"path" toml:"path"`
}

// Default returns a configuration that runs without any files.
func Default(env Environment) *Config {
	if env == "" {
		env = Development
	}
	return &Config{
		Environment: env,
		Server: Server{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			IdleTimeout:     Duration(60 * time.Second),
			ShutdownTimeout: Duration(10 * time.Second),
			RequestTimeout:  Duration(30 * time.Second),
			MaxRequestSize:  10 * 1024 * 1024,
			AllowedOrigins:  []string{"*"},
		},
		Layout: Layout{
			Iterations:      300,
			Repulsion:       120000,
			SpringLength:    300,
			SpringStiffness: 0.03,
			Centering:       0.005,
			Damping:         0.6,
			CollisionPasses: 5,
			PaddingX:        30,
			PaddingY:        20,
			Jitter:          50,
			MaxNodes:        500,
			MaxDensity:      0.35,
		},
		Routing: Routing{
			ParallelSpacing: 20,
			CurveBias:       25,
			LoopHeight:      40,
			LoopSpacing:     18,
		},
		Viewport: Viewport{ZoomFactor: 1.1, MinScale: 0.1, MaxScale: 10},
		Diagram: Diagram{
			CanvasWidth:        1200,
			CanvasHeight:       800,
			HistoryCapacity:    100,
			MinImageSize:       20,
			DefaultClusterName: "Nhóm",
			DuplicateOffset:    40,
		},
		Sessions: Sessions{MaxOpen: 256, IdleTTL: Duration(2 * time.Hour)},
		Generation: Generation{
			Timeout:          Duration(60 * time.Second),
			RateLimit:        2,
			Burst:            1,
			FailureThreshold: 5,
			OpenTimeout:      Duration(30 * time.Second),
		},
		Tracing: Tracing{ServiceName: "brain2-canvas", SampleRate: 0.1},
		Metrics: Metrics{Enabled: true, Namespace: "canvas", Path: "/metrics"},
	}
}

// Load returns defaults overlaid with environment variables.
func Load() (*Config, error) {
	cfg := Default(getEnvironment())
	cfg.LoadedFrom = []string{"defaults"}
	applyEnv(cfg)
	cfg.LoadedFrom = append(cfg.LoadedFrom, "environment")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var problems []string
	check := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	switch c.Environment {
	case Development, Staging, Production:
	default:
		problems = append(problems, fmt.Sprintf("unknown environment %q", c.Environment))
	}
	check(c.Server.Port > 0 && c.Server.Port < 65536, "server.port must be between 1 and 65535")
	check(c.Server.RequestTimeout > 0, "server.request_timeout must be positive")
	check(c.Server.MaxRequestSize > 0, "server.max_request_size must be positive")
	check(c.Layout.Iterations > 0, "layout.iterations must be positive")
	check(c.Layout.Damping > 0 && c.Layout.Damping < 1, "layout.damping must be in (0, 1)")
	check(c.Layout.MaxNodes > 0, "layout.max_nodes must be positive")
	check(c.Layout.MaxDensity > 0 && c.Layout.MaxDensity <= 1, "layout.max_density must be in (0, 1]")
	check(c.Viewport.MinScale > 0 && c.Viewport.MinScale <= c.Viewport.MaxScale, "viewport.min_scale must be positive and at most max_scale")
	check(c.Viewport.ZoomFactor > 1, "viewport.zoom_factor must exceed 1")
	check(c.Diagram.CanvasWidth > 0 && c.Diagram.CanvasHeight > 0, "diagram canvas must have positive size")
	check(c.Diagram.HistoryCapacity > 0, "diagram.history_capacity must be positive")
	check(c.Sessions.MaxOpen > 0, "sessions.max_open must be positive")
	if c.Generation.Enabled() {
		check(c.Generation.RateLimit > 0, "generation.rate_limit must be positive")
		check(c.Generation.Timeout > 0, "generation.timeout must be positive")
	}
	if c.Tracing.Enabled {
		check(c.Tracing.SampleRate >= 0 && c.Tracing.SampleRate <= 1, "tracing.sample_rate must be in [0, 1]")
		check(c.Tracing.Endpoint != "", "tracing.endpoint is required when tracing is enabled")
	}
	if c.Environment == Production && c.Generation.Enabled() {
		check(c.Generation.APIKey != "", "generation.api_key is required in production")
	}

	if len(problems) == 0 {
		return nil
	}
	return apperrors.Validation(apperrors.CodeConfigInvalid, "invalid configuration").
		WithDetails(strings.Join(problems, "; ")).Build()
}

// IsDevelopment checks if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction checks if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

func getEnvironment() Environment {
	return Environment(strings.ToLower(getEnv("ENVIRONMENT", string(Development))))
}

// applyEnv overlays environment variables, the highest priority source.
func applyEnv(cfg *Config) {
	if v := os.Getenv("ENVIRONMENT"); v != "" {
		cfg.Environment = Environment(strings.ToLower(v))
	}
	cfg.Server.Host = getEnv("SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("SERVER_PORT", cfg.Server.Port)
	cfg.Server.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", cfg.Server.RequestTimeout)

	cfg.Layout.MaxNodes = getEnvInt("LAYOUT_MAX_NODES", cfg.Layout.MaxNodes)
	cfg.Layout.Iterations = getEnvInt("LAYOUT_ITERATIONS", cfg.Layout.Iterations)
	cfg.Diagram.CanvasWidth = getEnvFloat("CANVAS_WIDTH", cfg.Diagram.CanvasWidth)
	cfg.Diagram.CanvasHeight = getEnvFloat("CANVAS_HEIGHT", cfg.Diagram.CanvasHeight)
	cfg.Diagram.HistoryCapacity = getEnvInt("HISTORY_CAPACITY", cfg.Diagram.HistoryCapacity)

	cfg.Sessions.MaxOpen = getEnvInt("SESSIONS_MAX_OPEN", cfg.Sessions.MaxOpen)
	cfg.Sessions.IdleTTL = getEnvDuration("SESSIONS_IDLE_TTL", cfg.Sessions.IdleTTL)

	cfg.Generation.Endpoint = getEnv("GENERATION_ENDPOINT", cfg.Generation.Endpoint)
	cfg.Generation.APIKey = getEnv("GENERATION_API_KEY", cfg.Generation.APIKey)
	cfg.Generation.Timeout = getEnvDuration("GENERATION_TIMEOUT", cfg.Generation.Timeout)

	cfg.Tracing.Enabled = getEnvBool("ENABLE_TRACING", cfg.Tracing.Enabled)
	cfg.Tracing.Endpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Tracing.Endpoint)
	cfg.Metrics.Enabled = getEnvBool("ENABLE_METRICS", cfg.Metrics.Enabled)
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat gets a float environment variable with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue Duration) Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return Duration(d)
		}
	}
	return defaultValue
}
