// Package errors defines the classified errors returned by services and
// mapped to HTTP responses at the API boundary.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Code classifies a service error.
type Code string

const (
	CodeNotFound            Code = "NOT_FOUND"
	CodeUpstreamUnavailable Code = "UPSTREAM_UNAVAILABLE"
	CodeValidation          Code = "VALIDATION_FAILED"
	CodeConflict            Code = "CONFLICT"
	CodeRateLimited         Code = "RATE_LIMITED"
	CodeInternal            Code = "INTERNAL"
)

// InternalMessage is the only message ever exposed for unclassified failures.
const InternalMessage = "Internal server error"

// ServiceError is an error with a stable code, a client-facing message and
// the HTTP status it maps to.
type ServiceError struct {
	Code       Code
	Message    string
	Details    any
	HTTPStatus int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Body returns the JSON body sent to clients.
func (e *ServiceError) Body() map[string]any {
	body := map[string]any{"error": e.Message}
	if e.Details != nil {
		body["details"] = e.Details
	}
	return body
}

// NotFound reports a missing lookup or delete target.
func NotFound(message string) *ServiceError {
	return &ServiceError{Code: CodeNotFound, Message: message, HTTPStatus: http.StatusNotFound}
}

// UpstreamUnavailable reports that an external data source could not be used.
func UpstreamUnavailable(provider string, err error) *ServiceError {
	return &ServiceError{
		Code:       CodeUpstreamUnavailable,
		Message:    "External data source unavailable",
		Details:    "Could not fetch data from " + provider,
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

// Validation reports rejected request parameters, keyed by field.
func Validation(details map[string]string) *ServiceError {
	return &ServiceError{
		Code:       CodeValidation,
		Message:    "Validation failed",
		Details:    details,
		HTTPStatus: http.StatusBadRequest,
	}
}

// Conflict reports an operation that cannot run in the current state.
func Conflict(message string) *ServiceError {
	return &ServiceError{Code: CodeConflict, Message: message, HTTPStatus: http.StatusConflict}
}

// RateLimitExceeded reports a throttled client.
func RateLimitExceeded(limit int, window string) *ServiceError {
	return &ServiceError{
		Code:       CodeRateLimited,
		Message:    "Too many requests",
		Details:    fmt.Sprintf("limit of %d requests per %s exceeded", limit, window),
		HTTPStatus: http.StatusTooManyRequests,
	}
}

// Internal wraps an unclassified failure. Its message never includes err.
func Internal(err error) *ServiceError {
	return &ServiceError{
		Code:       CodeInternal,
		Message:    InternalMessage,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// As extracts a ServiceError from err's chain.
func As(err error) (*ServiceError, bool) {
	var svcErr *ServiceError
	if stderrors.As(err, &svcErr) {
		return svcErr, true
	}
	return nil, false
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	svcErr, ok := As(err)
	return ok && svcErr.Code == code
}

// Classify returns err as a ServiceError, coercing unclassified errors to Internal.
func Classify(err error) *ServiceError {
	if err == nil {
		return nil
	}
	if svcErr, ok := As(err); ok {
		return svcErr
	}
	return Internal(err)
}
