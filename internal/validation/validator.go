// Package validation wraps go-playground/validator with JSON field names and
// converts failures into UnifiedError values carrying per-field messages.
package validation

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	apperrors "brain2-canvas/internal/errors"
)

// FieldError describes one failed field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error is returned when struct validation fails. It unwraps to a
// validation-typed UnifiedError so callers can classify it.
type Error struct {
	Fields []FieldError
	cause  *apperrors.UnifiedError
}

func (e *Error) Error() string {
	return e.cause.Error()
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Validator provides struct tag validation.
type Validator struct {
	validate *validator.Validate
}

var (
	instance *Validator
	once     sync.Once
)

// Get returns the shared validator instance.
func Get() *Validator {
	once.Do(func() {
		instance = New()
	})
	return instance
}

// New creates a validator that reports JSON tag names and knows the
// diagram-specific rules.
func New() *Validator {
	v := &Validator{validate: validator.New()}

	v.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Entity ids must not contain the property-id delimiter.
	_ = v.validate.RegisterValidation("entityid", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s != "" && !strings.Contains(s, "::") && strings.TrimSpace(s) == s
	})

	return v
}

// Struct validates s and returns an *Error describing every failed field.
func (v *Validator) Struct(s any) error {
	return v.StructWithCode(s, apperrors.CodeValidationFailed)
}

// StructWithCode validates s and tags failures with code.
func (v *Validator) StructWithCode(s any, code apperrors.ErrorCode) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperrors.Validation(code, "validation failed").WithCause(err).WithDetails(err.Error()).Build()
	}

	fields := make([]FieldError, 0, len(verrs))
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		path := fieldPath(fe.Namespace())
		msg := message(fe.Tag(), fe.Param())
		fields = append(fields, FieldError{Field: path, Message: msg, Code: strings.ToUpper(fe.Tag())})
		parts = append(parts, path+": "+msg)
	}

	return &Error{
		Fields: fields,
		cause: apperrors.Validation(code, "validation failed").
			WithDetails(strings.Join(parts, "; ")).
			Build(),
	}
}

// Var validates a single value against tag.
func (v *Validator) Var(field any, tag string) error {
	return v.validate.Var(field, tag)
}

// fieldPath drops the top-level struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func message(tag, param string) string {
	switch tag {
	case "required":
		return "This field is required"
	case "min":
		return fmt.Sprintf("Must be at least %s", param)
	case "max":
		return fmt.Sprintf("Must be at most %s", param)
	case "gt":
		return fmt.Sprintf("Must be greater than %s", param)
	case "gte":
		return fmt.Sprintf("Must be greater than or equal to %s", param)
	case "oneof":
		return fmt.Sprintf("Must be one of: %s", strings.ReplaceAll(param, " ", ", "))
	case "hexcolor":
		return "Must be a valid hex color (e.g., #FF5733)"
	case "entityid":
		return "Must be a non-empty id without '::'"
	default:
		return fmt.Sprintf("Failed %s validation", tag)
	}
}
