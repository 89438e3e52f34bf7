// Package generation talks to the external text-to-diagram service. The
// service's internals are out of scope; only its result contract matters.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"brain2-canvas/internal/domain/diagram"
	apperrors "brain2-canvas/internal/errors"
)

const (
	// DefaultTimeout bounds a single generation request.
	DefaultTimeout = 60 * time.Second

	// DefaultRateLimit is requests per second sent to the service.
	DefaultRateLimit = 2.0

	maxResponseSize = 4 << 20
)

// Generator turns free text into a diagram description.
type Generator interface {
	Generate(ctx context.Context, req Request) (diagram.GenerationResult, error)
}

// Request is the payload sent to the service.
type Request struct {
	Text     string `json:"text" validate:"required,max=20000"`
	Language string `json:"language,omitempty"`
}

// Client is a rate-limited, circuit-broken HTTP client for the generation
// service.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	baseURL    string
	apiKey     string
	logger     *zap.Logger
	tracer     trace.Tracer
	observe    func(time.Duration, error)
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithAPIKey sets the bearer token sent with every request.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRateLimit sets requests per second and burst.
func WithRateLimit(perSecond float64, burst int) ClientOption {
	return func(c *Client) {
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithBreaker replaces the circuit breaker settings.
func WithBreaker(st gobreaker.Settings) ClientOption {
	return func(c *Client) {
		c.breaker = gobreaker.NewCircuitBreaker(st)
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// WithTracer sets the tracer used for request spans. Nil keeps the no-op
// tracer.
func WithTracer(t trace.Tracer) ClientOption {
	return func(c *Client) {
		if t != nil {
			c.tracer = t
		}
	}
}

// WithObserver registers a callback invoked after every call.
func WithObserver(fn func(time.Duration, error)) ClientOption {
	return func(c *Client) {
		c.observe = fn
	}
}

// DefaultBreakerSettings trips after five consecutive failures and probes
// again after thirty seconds.
func DefaultBreakerSettings(name string) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Caller mistakes say nothing about the service's health.
		IsSuccessful: func(err error) bool {
			return err == nil || apperrors.IsValidation(err) || errors.Is(err, context.Canceled)
		},
	}
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
		breaker:    gobreaker.NewCircuitBreaker(DefaultBreakerSettings("generation")),
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     zap.NewNop(),
		tracer:     noop.NewTracerProvider().Tracer("generation"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate posts req and decodes the service's result. The in-flight request
// is abandoned when ctx is done.
func (c *Client) Generate(ctx context.Context, req Request) (diagram.GenerationResult, error) {
	ctx, span := c.tracer.Start(ctx, "generation.Generate",
		trace.WithAttributes(attribute.Int("text.length", len(req.Text))))
	defer span.End()

	start := time.Now()
	res, err := c.generate(ctx, req)
	elapsed := time.Since(start)
	if c.observe != nil {
		c.observe(elapsed, err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("generation failed", zap.Duration("elapsed", elapsed), zap.Error(err))
		return diagram.GenerationResult{}, err
	}
	span.SetAttributes(attribute.Int("objects", len(res.Objects)), attribute.Int("relationships", len(res.Relationships)))
	c.logger.Info("generation completed",
		zap.Duration("elapsed", elapsed),
		zap.Int("objects", len(res.Objects)),
		zap.Int("relationships", len(res.Relationships)))
	return res, nil
}

func (c *Client) generate(ctx context.Context, req Request) (diagram.GenerationResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		return diagram.GenerationResult{}, apperrors.Validation(apperrors.CodeValidationFailed, "text is required").
			WithOperation("Generate").Build()
	}
	if err := c.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return diagram.GenerationResult{}, apperrors.Timeout(apperrors.CodeRequestTimeout, "generation request aborted").
				WithCause(ctx.Err()).Build()
		}
		return diagram.GenerationResult{}, apperrors.RateLimit(apperrors.CodeGenerationRateLimited, "rate limiter").
			WithCause(err).Build()
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.post(ctx, req)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return diagram.GenerationResult{}, apperrors.Unavailable(apperrors.CodeCircuitOpen, "generation service temporarily unavailable").
			WithCause(err).WithRetryable(true).Build()
	case err != nil:
		return diagram.GenerationResult{}, err
	}
	return out.(diagram.GenerationResult), nil
}

func (c *Client) post(ctx context.Context, req Request) (diagram.GenerationResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return diagram.GenerationResult{}, apperrors.Internal(apperrors.CodeInternalError, "encode request").WithCause(err).Build()
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return diagram.GenerationResult{}, apperrors.Internal(apperrors.CodeInternalError, "build request").WithCause(err).Build()
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return diagram.GenerationResult{}, apperrors.Timeout(apperrors.CodeRequestTimeout, "generation request aborted").
				WithCause(ctx.Err()).Build()
		}
		return diagram.GenerationResult{}, apperrors.External(apperrors.CodeGenerationUnavailable, "generation service unreachable").
			WithCause(err).WithRetryable(true).Build()
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return diagram.GenerationResult{}, apperrors.External(apperrors.CodeGenerationFailed, "read response").
			WithCause(err).WithRetryable(true).Build()
	}
	if err := checkStatus(resp.StatusCode, data); err != nil {
		return diagram.GenerationResult{}, err
	}

	var res diagram.GenerationResult
	if err := json.Unmarshal(data, &res); err != nil {
		return diagram.GenerationResult{}, apperrors.External(apperrors.CodeGenerationFailed, "generation service returned malformed JSON").
			WithCause(err).WithRetryable(false).Build()
	}
	return res, nil
}

func checkStatus(status int, body []byte) error {
	switch {
	case status == http.StatusTooManyRequests:
		return apperrors.RateLimit(apperrors.CodeGenerationRateLimited, "generation service rate limited").
			WithRetryable(true).Build()
	case status >= 500:
		return apperrors.External(apperrors.CodeGenerationUnavailable, "generation service error").
			WithDetailsf("HTTP %d", status).WithRetryable(true).Build()
	case status >= 400:
		return apperrors.External(apperrors.CodeGenerationFailed, "generation request rejected").
			WithDetails(fmt.Sprintf("HTTP %d: %s", status, truncate(string(body), 200))).
			WithRetryable(false).Build()
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
