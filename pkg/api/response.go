// Package api holds the JSON envelope shared by the HTTP handlers and
// middleware.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "brain2-canvas/internal/errors"
	"brain2-canvas/internal/validation"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error     string                  `json:"error"`
	Code      string                  `json:"code"`
	Details   string                  `json:"details,omitempty"`
	Fields    []validation.FieldError `json:"fields,omitempty"`
	Retryable bool                    `json:"retryable,omitempty"`
	RequestID string                  `json:"requestId,omitempty"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes a plain error response.
func Error(w http.ResponseWriter, status int, code apperrors.ErrorCode, message string) {
	JSON(w, status, ErrorResponse{Error: message, Code: string(code)})
}

// FromError writes err with the status its type maps to. Internal details
// are not exposed. A non-empty requestID is stamped onto the reported error;
// otherwise any id the error already carries is used.
func FromError(w http.ResponseWriter, err error, requestID string) {
	if requestID != "" {
		err = apperrors.Annotate(err).WithRequestID(requestID).Build()
	}
	ue := apperrors.As(err)
	status := apperrors.HTTPStatus(ue)
	resp := ErrorResponse{
		Error:     ue.Message,
		Code:      ue.Code,
		Retryable: ue.Retryable,
		RequestID: ue.RequestID,
	}
	if status < http.StatusInternalServerError {
		resp.Details = ue.Details
	}
	var verr *validation.Error
	if errors.As(err, &verr) {
		resp.Fields = verr.Fields
	}
	JSON(w, status, resp)
}
