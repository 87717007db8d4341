// Package http serves the ledger over a JSON REST API and a websocket
// change feed.
//
// This file implements the Builder Pattern for constructing JSON responses
// and maps domain errors onto status codes.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"fintrack/internal/analytics"
	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Message sets a {"message": msg} body.
func (b *JSONResponseBuilder) Message(msg string) *JSONResponseBuilder {
	return b.Body(map[string]string{"message": msg})
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	if b.statusCode == http.StatusNoContent {
		return
	}
	_ = json.NewEncoder(w).Encode(b.body)
}

// ErrorResponse creates a {"error": message} response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		Body(map[string]string{"error": message})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// UnauthorizedError creates a 401 Unauthorized error response.
func UnauthorizedError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, message)
}

// UnprocessableEntityError creates a 422 Unprocessable Entity error response.
func UnprocessableEntityError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// TooManyRequestsError creates a 429 Too Many Requests error response.
func TooManyRequestsError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later")
}

var validationErrors = []error{
	core.ErrInvalidKind,
	core.ErrInvalidDate,
	core.ErrInvalidAmount,
	core.ErrEmptyLabel,
	core.ErrDescriptionTooLong,
	core.ErrMissingOwner,
	analytics.ErrInvalidMonth,
	auth.ErrWeakPassword,
	auth.ErrMissingField,
}

// errorStatus maps an error from the service layer to a status code and a
// client-safe message. Unknown errors become 500 with a generic message.
func errorStatus(err error) (int, string) {
	// A DataError wraps validation sentinels but describes stored data the
	// client cannot fix, so it must be checked first.
	var dataErr *core.DataError
	if errors.As(err, &dataErr) {
		return http.StatusInternalServerError, "stored data is malformed"
	}
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return http.StatusUnprocessableEntity, err.Error()
		}
	}
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, auth.ErrInvalidCredentials.Error()
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, "missing or invalid token"
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, storage.ErrUserExists):
		return http.StatusConflict, storage.ErrUserExists.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
