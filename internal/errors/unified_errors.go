// Package errors provides the unified error type shared by every layer of the
// canvas service. Pure geometry and interaction code never returns errors;
// this type is used at the ingestion, layout, generation and transport edges.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"go.uber.org/zap/zapcore"
)

// ErrorType defines the category of error for proper handling and response.
type ErrorType string

const (
	ErrorTypeValidation  ErrorType = "VALIDATION"
	ErrorTypeNotFound    ErrorType = "NOT_FOUND"
	ErrorTypeConflict    ErrorType = "CONFLICT"
	ErrorTypeInternal    ErrorType = "INTERNAL"
	ErrorTypeTimeout     ErrorType = "TIMEOUT"
	ErrorTypeRateLimit   ErrorType = "RATE_LIMIT"
	ErrorTypeExternal    ErrorType = "EXTERNAL"
	ErrorTypeUnavailable ErrorType = "UNAVAILABLE"
)

// ErrorSeverity defines the severity level for logging and monitoring.
type ErrorSeverity string

const (
	SeverityLow      ErrorSeverity = "LOW"
	SeverityMedium   ErrorSeverity = "MEDIUM"
	SeverityHigh     ErrorSeverity = "HIGH"
	SeverityCritical ErrorSeverity = "CRITICAL"
)

// Level is the log level an error of this severity is reported at.
func (s ErrorSeverity) Level() zapcore.Level {
	switch s {
	case SeverityLow:
		return zapcore.DebugLevel
	case SeverityHigh, SeverityCritical:
		return zapcore.ErrorLevel
	default:
		return zapcore.WarnLevel
	}
}

// UnifiedError is the single error type returned across layer boundaries.
type UnifiedError struct {
	Type    ErrorType `json:"type"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`

	Operation string `json:"operation,omitempty"`
	Resource  string `json:"resource,omitempty"`
	RequestID string `json:"requestId,omitempty"`

	Severity  ErrorSeverity `json:"severity"`
	Retryable bool          `json:"retryable"`
	Cause     error         `json:"-"`

	File string `json:"-"`
	Line int    `json:"-"`
}

// Error implements the error interface.
func (e *UnifiedError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s:%s] %s: %s", e.Type, e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with the underlying cause.
func (e *UnifiedError) Unwrap() error {
	return e.Cause
}

// String provides a detailed representation for logging.
func (e *UnifiedError) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Error: %s\n", e.Error())
	if e.Operation != "" {
		fmt.Fprintf(&b, "Operation: %s\n", e.Operation)
	}
	if e.Resource != "" {
		fmt.Fprintf(&b, "Resource: %s\n", e.Resource)
	}
	if e.RequestID != "" {
		fmt.Fprintf(&b, "RequestID: %s\n", e.RequestID)
	}
	fmt.Fprintf(&b, "Severity: %s\n", e.Severity)
	if e.Cause != nil {
		fmt.Fprintf(&b, "Cause: %v\n", e.Cause)
	}
	if e.File != "" && e.Line > 0 {
		fmt.Fprintf(&b, "Location: %s:%d\n", e.File, e.Line)
	}
	return b.String()
}

// ErrorBuilder provides a fluent interface for constructing UnifiedError instances.
type ErrorBuilder struct {
	error *UnifiedError
}

// NewError creates a new error builder with the specified type and message.
func NewError(errType ErrorType, code ErrorCode, message string) *ErrorBuilder {
	_, file, line, _ := runtime.Caller(2)
	return &ErrorBuilder{
		error: &UnifiedError{
			Type:     errType,
			Code:     string(code),
			Message:  message,
			Severity: SeverityMedium,
			File:     file,
			Line:     line,
		},
	}
}

// Annotate starts a builder for a copy of err whose cause is err itself, so
// request-scoped fields can be added without touching a shared error.
// Classification, details and validation fields stay reachable.
func Annotate(err error) *ErrorBuilder {
	if err == nil {
		return Internal(CodeInternalError, "internal error")
	}
	c := *As(err)
	c.Cause = err
	return &ErrorBuilder{error: &c}
}

// WithDetails adds additional details to the error.
func (b *ErrorBuilder) WithDetails(details string) *ErrorBuilder {
	b.error.Details = details
	return b
}

// WithDetailsf formats additional details.
func (b *ErrorBuilder) WithDetailsf(format string, args ...any) *ErrorBuilder {
	b.error.Details = fmt.Sprintf(format, args...)
	return b
}

// WithOperation specifies the operation that failed.
func (b *ErrorBuilder) WithOperation(operation string) *ErrorBuilder {
	b.error.Operation = operation
	return b
}

// WithResource specifies the resource being operated on.
func (b *ErrorBuilder) WithResource(resource string) *ErrorBuilder {
	b.error.Resource = resource
	return b
}

// WithRequestID adds request tracing information.
func (b *ErrorBuilder) WithRequestID(requestID string) *ErrorBuilder {
	b.error.RequestID = requestID
	return b
}

// WithSeverity sets the error severity.
func (b *ErrorBuilder) WithSeverity(severity ErrorSeverity) *ErrorBuilder {
	b.error.Severity = severity
	return b
}

// WithRetryable marks the error as retryable.
func (b *ErrorBuilder) WithRetryable(retryable bool) *ErrorBuilder {
	b.error.Retryable = retryable
	return b
}

// WithCause adds the underlying cause error.
func (b *ErrorBuilder) WithCause(cause error) *ErrorBuilder {
	b.error.Cause = cause
	return b
}

// Build returns the constructed UnifiedError.
func (b *ErrorBuilder) Build() *UnifiedError {
	return b.error
}

// Validation creates a validation error.
func Validation(code ErrorCode, message string) *ErrorBuilder {
	return NewError(ErrorTypeValidation, code, message).WithSeverity(SeverityLow)
}

// NotFound creates a not found error.
func NotFound(code ErrorCode, message string) *ErrorBuilder {
	return NewError(ErrorTypeNotFound, code, message).WithSeverity(SeverityLow)
}

// Conflict creates a conflict error.
func Conflict(code ErrorCode, message string) *ErrorBuilder {
	return NewError(ErrorTypeConflict, code, message).WithRetryable(true)
}

// Internal creates an internal error.
func Internal(code ErrorCode, message string) *ErrorBuilder {
	return NewError(ErrorTypeInternal, code, message).WithSeverity(SeverityHigh)
}

// Timeout creates a timeout error.
func Timeout(code ErrorCode, message string) *ErrorBuilder {
	return NewError(ErrorTypeTimeout, code, message).WithRetryable(true)
}

// RateLimit creates a rate limit error.
func RateLimit(code ErrorCode, message string) *ErrorBuilder {
	return NewError(ErrorTypeRateLimit, code, message).WithRetryable(true)
}

// External creates an external service error.
func External(code ErrorCode, message string) *ErrorBuilder {
	return NewError(ErrorTypeExternal, code, message).WithRetryable(true)
}

// Unavailable creates a service unavailable error.
func Unavailable(code ErrorCode, message string) *ErrorBuilder {
	return NewError(ErrorTypeUnavailable, code, message).
		WithSeverity(SeverityHigh).
		WithRetryable(true)
}

// IsType checks if an error is of a specific type.
func IsType(err error, errType ErrorType) bool {
	var unifiedErr *UnifiedError
	if errors.As(err, &unifiedErr) {
		return unifiedErr.Type == errType
	}
	return false
}

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool { return IsType(err, ErrorTypeValidation) }

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool { return IsType(err, ErrorTypeNotFound) }

// IsConflict checks if an error is a conflict error.
func IsConflict(err error) bool { return IsType(err, ErrorTypeConflict) }

// IsTimeout checks if an error is a timeout error.
func IsTimeout(err error) bool { return IsType(err, ErrorTypeTimeout) }

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var unifiedErr *UnifiedError
	if errors.As(err, &unifiedErr) {
		return unifiedErr.Retryable
	}
	return false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	var unifiedErr *UnifiedError
	if errors.As(err, &unifiedErr) {
		return unifiedErr.Code == string(code)
	}
	return false
}

// Wrap wraps an existing error with additional context while preserving the
// original classification when it is already a UnifiedError.
func Wrap(err error, operation, message string) *UnifiedError {
	if err == nil {
		return nil
	}

	var existing *UnifiedError
	if errors.As(err, &existing) {
		return &UnifiedError{
			Type:      existing.Type,
			Code:      existing.Code,
			Message:   message,
			Details:   existing.Message,
			Operation: operation,
			Resource:  existing.Resource,
			RequestID: existing.RequestID,
			Severity:  existing.Severity,
			Retryable: existing.Retryable,
			Cause:     err,
			File:      existing.File,
			Line:      existing.Line,
		}
	}

	_, file, line, _ := runtime.Caller(1)
	return &UnifiedError{
		Type:      ErrorTypeInternal,
		Code:      string(CodeInternalError),
		Message:   message,
		Details:   err.Error(),
		Operation: operation,
		Severity:  SeverityMedium,
		Cause:     err,
		File:      file,
		Line:      line,
	}
}

// As converts any error into a UnifiedError, classifying unknown errors as internal.
func As(err error) *UnifiedError {
	if err == nil {
		return nil
	}
	var unifiedErr *UnifiedError
	if errors.As(err, &unifiedErr) {
		return unifiedErr
	}
	return Internal(CodeInternalError, "internal error").WithCause(err).WithDetails(err.Error()).Build()
}
