// Package http provides the JSON API of the ledger.
//
// This file implements the builder used by every handler to write JSON
// responses and map service errors to status codes.

package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"finboard/internal/core"
	"finboard/internal/log"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

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

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body. A nil body writes no
// content.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.body)
}

// ErrorResponse creates an error response with the given message.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(ErrorBody{Error: message})
}

// FieldErrorResponse reports a validation failure on one field.
func FieldErrorResponse(fe *core.FieldError) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(http.StatusUnprocessableEntity).
		Body(ErrorBody{Error: fe.Err.Error(), Field: fe.Field})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// errorResponse maps a service error to its response.
func errorResponse(err error) *JSONResponseBuilder {
	var fe *core.FieldError
	var bad *badRequestError
	switch {
	case errors.As(err, &fe):
		return FieldErrorResponse(fe)
	case errors.As(err, &bad):
		return BadRequestError(bad.msg)
	case errors.Is(err, errMissingUser):
		return ErrorResponse(http.StatusUnauthorized, errMissingUser.Error())
	case errors.Is(err, core.ErrUnauthorized):
		return ErrorResponse(http.StatusForbidden, core.ErrUnauthorized.Error())
	case errors.Is(err, core.ErrNotFound):
		return NotFoundError(core.ErrNotFound.Error())
	case errors.Is(err, core.ErrSyntheticImmutable):
		return ErrorResponse(http.StatusConflict, core.ErrSyntheticImmutable.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorResponse(http.StatusGatewayTimeout, "request timed out")
	case errors.Is(err, core.ErrUpstreamUnavailable):
		return ErrorResponse(http.StatusServiceUnavailable, core.ErrUpstreamUnavailable.Error()).Header("Retry-After", "5")
	default:
		return InternalServerError("internal error")
	}
}

// writeError logs server-side failures and writes the mapped response.
func writeError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	resp := errorResponse(err)
	if resp.statusCode >= http.StatusInternalServerError {
		fields := log.NewFields()
		fields[log.FieldPath] = r.URL.Path
		log.NewStructuredLogger(log.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, operation, fields)
	}
	resp.Write(w)
}
