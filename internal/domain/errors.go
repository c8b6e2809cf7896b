package domain

import (
	"encoding/json"
	"errors"
	"net/http"
)

var (
	// ErrRecordNotFound is returned by a CacheRecordStore when no record exists for the key.
	ErrRecordNotFound = errors.New("cache record not found")
	// ErrRecordExists is returned by CacheRecordStore.Create when the key is already taken.
	ErrRecordExists = errors.New("cache record already exists")

	// ErrUpstreamUnavailable covers timeouts, network errors, 5xx and 429 responses once retries are
	// exhausted, and calls refused by an open circuit breaker.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrUpstreamRejected covers non-retryable upstream failures: 4xx other than 429 and malformed responses.
	ErrUpstreamRejected = errors.New("upstream rejected request")
)

// IsUpstreamError reports whether err came from an upstream service rather than the cache store.
func IsUpstreamError(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable) || errors.Is(err, ErrUpstreamRejected)
}

// ErrorCode represents a specific error condition.
type ErrorCode string

const (
	ErrInvalidAPIKey ErrorCode = "InvalidAPIKey"       // HTTP 401, gRPC Unauthenticated
	ErrBadRequest    ErrorCode = "BadRequest"          // HTTP 400, e.g. missing tenant or user id
	ErrNotFound      ErrorCode = "NotFound"            // HTTP 404, unknown cache domain
	ErrInternal      ErrorCode = "InternalServerError" // HTTP 500, cache store failure
)

// ErrorResponse is the standard error format returned to clients as JSON.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

// NewErrorResponse creates a new ErrorResponse struct.
func NewErrorResponse(code ErrorCode, message string, details string) ErrorResponse {
	return ErrorResponse{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// WriteJSON sends an ErrorResponse as JSON with the given HTTP status code.
func (er ErrorResponse) WriteJSON(w http.ResponseWriter, httpStatusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusCode)
	json.NewEncoder(w).Encode(er) // Best effort, error from Encode is not typically handled here.
}
