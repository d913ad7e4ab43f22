package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Error codes carried by AppError.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
	CodeInternal     = "INTERNAL_ERROR"
)

// ErrorResponse represents a standardized API error response.
type ErrorResponse struct {
	Error   string              `json:"error"`
	Code    string              `json:"code,omitempty"`
	Details string              `json:"details,omitempty"`
	Fields  map[string][]string `json:"fields,omitempty"`
}

// AppError represents a custom application error.
type AppError struct {
	Code    string
	Message string
	// Fields maps an input field name to the problems found with it.
	Fields map[string][]string
	Err    error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Field returns the messages recorded for name.
func (e *AppError) Field(name string) []string {
	if e == nil || e.Fields == nil {
		return nil
	}
	return e.Fields[name]
}

func NewNotFoundError(resource string, id any) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
	}
}

// NewFieldError reports a single invalid input field.
func NewFieldError(field, message string) *AppError {
	return NewFieldErrors(map[string][]string{field: {message}})
}

// NewFieldErrors reports several invalid input fields at once.
func NewFieldErrors(fields map[string][]string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: "Validation failed",
		Fields:  fields,
	}
}

// NewDuplicateError reports a unique field that already holds value in another record.
func NewDuplicateError(resource, field string) *AppError {
	return NewFieldError(field, fmt.Sprintf("%s with this %s already exists.", resource, strings.ReplaceAll(field, "_", " ")))
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
	}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{
		Code:    CodeForbidden,
		Message: message,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// FieldErrors accumulates per-field validation messages.
type FieldErrors map[string][]string

// Add records message against field.
func (f FieldErrors) Add(field, message string) {
	f[field] = append(f[field], message)
}

// Err returns nil when nothing was recorded, otherwise a validation AppError.
func (f FieldErrors) Err() error {
	if len(f) == 0 {
		return nil
	}
	return NewFieldErrors(f)
}

// RespondWithError writes err as an ErrorResponse. Internal error details are
// only exposed when exposeDetails is set.
func RespondWithError(c *fiber.Ctx, status int, err error, exposeDetails ...bool) error {
	var response ErrorResponse

	var appErr *AppError
	if errors.As(err, &appErr) {
		response = ErrorResponse{
			Error:  appErr.Message,
			Code:   appErr.Code,
			Fields: appErr.Fields,
		}
		if appErr.Err != nil && len(exposeDetails) > 0 && exposeDetails[0] {
			response.Details = appErr.Err.Error()
		}
	} else {
		response = ErrorResponse{Error: err.Error()}
	}

	return c.Status(status).JSON(response)
}
