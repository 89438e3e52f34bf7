package errors

import "net/http"

// ErrorCode represents a unique error code for specific error scenarios.
type ErrorCode string

const (
	// Diagram entities
	CodeDiagramNotFound      ErrorCode = "DIAGRAM_NOT_FOUND"
	CodeNodeNotFound         ErrorCode = "NODE_NOT_FOUND"
	CodeRelationshipNotFound ErrorCode = "RELATIONSHIP_NOT_FOUND"
	CodeClusterNotFound      ErrorCode = "CLUSTER_NOT_FOUND"
	CodeDuplicateID          ErrorCode = "DUPLICATE_ID"
	CodeDanglingReference    ErrorCode = "DANGLING_REFERENCE"

	// Interchange
	CodeImportMalformed   ErrorCode = "IMPORT_MALFORMED"
	CodeUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT"

	// Layout
	CodeLayoutTooLarge  ErrorCode = "LAYOUT_TOO_LARGE"
	CodeLayoutCancelled ErrorCode = "LAYOUT_CANCELLED"

	// Generation collaborator
	CodeGenerationFailed      ErrorCode = "GENERATION_FAILED"
	CodeGenerationUnavailable ErrorCode = "GENERATION_UNAVAILABLE"
	CodeGenerationRateLimited ErrorCode = "GENERATION_RATE_LIMITED"

	// Transport
	CodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	CodeInvalidEvent     ErrorCode = "INVALID_EVENT"
	CodeInvalidJSON      ErrorCode = "INVALID_JSON"
	CodeRequestTimeout   ErrorCode = "REQUEST_TIMEOUT"
	CodeCircuitOpen      ErrorCode = "CIRCUIT_OPEN"

	// Configuration
	CodeConfigInvalid ErrorCode = "CONFIG_INVALID"

	CodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// HTTPStatus returns the HTTP status code for an error type.
func (t ErrorType) HTTPStatus() int {
	switch t {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeConflict:
		return http.StatusConflict
	case ErrorTypeTimeout:
		return http.StatusGatewayTimeout
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrorTypeExternal:
		return http.StatusBadGateway
	case ErrorTypeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// HTTPStatus maps any error to an HTTP status code.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return As(err).Type.HTTPStatus()
}
