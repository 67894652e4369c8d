package core

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorType represents the type of error that occurred
type ErrorType string

const (
	// ErrorTypeUpstream indicates the CMS or lead endpoint failed (5xx or transport)
	ErrorTypeUpstream ErrorType = "upstream_error"
	// ErrorTypeInvalidRequest indicates a client error (4xx)
	ErrorTypeInvalidRequest ErrorType = "invalid_request_error"
	// ErrorTypeAuthentication indicates an authentication error (401)
	ErrorTypeAuthentication ErrorType = "authentication_error"
	// ErrorTypeNotFound indicates a not found error (404)
	ErrorTypeNotFound ErrorType = "not_found_error"
	// ErrorTypeInternal indicates an unexpected failure inside the service
	ErrorTypeInternal ErrorType = "internal_error"
)

// Error is the base error type surfaced by the CMS and lead clients.
type Error struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code"`
	// Upstream names the remote endpoint involved, if any.
	Upstream string `json:"upstream,omitempty"`
	// Original error for debugging (not exposed to clients)
	Err error `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Upstream != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Upstream, e.Type, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the error unwrapping interface
func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns the appropriate HTTP status code for this error
func (e *Error) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	switch e.Type {
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether repeating the request could succeed.
// Client errors (4xx) from upstream are final.
func (e *Error) Retryable() bool {
	if e.Type != ErrorTypeUpstream {
		return false
	}
	return e.StatusCode == 0 || e.StatusCode >= 500
}

// ToJSON converts the error to a JSON-compatible map
func (e *Error) ToJSON() map[string]interface{} {
	return map[string]interface{}{
		"error": map[string]interface{}{
			"type":    e.Type,
			"message": e.Message,
		},
	}
}

// NewUpstreamError creates an error for a failed call to a remote endpoint.
// statusCode is the upstream status, or 0 for transport failures.
func NewUpstreamError(upstream string, statusCode int, message string, err error) *Error {
	return &Error{
		Type:       ErrorTypeUpstream,
		Message:    message,
		StatusCode: statusCode,
		Upstream:   upstream,
		Err:        err,
	}
}

// NewInvalidRequestError creates a new invalid request error (400)
func NewInvalidRequestError(message string, err error) *Error {
	return &Error{
		Type:       ErrorTypeInvalidRequest,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Err:        err,
	}
}

// NewAuthenticationError creates a new authentication error (401)
func NewAuthenticationError(message string) *Error {
	return &Error{
		Type:       ErrorTypeAuthentication,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

// NewNotFoundError creates a new not found error (404)
func NewNotFoundError(message string) *Error {
	return &Error{
		Type:       ErrorTypeNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

// ParseUpstreamError builds an Error from a non-2xx upstream response.
// Wagtail and DRF report problems as {"detail": "..."} or {"message": "..."}.
func ParseUpstreamError(upstream string, statusCode int, body []byte) *Error {
	var errorResponse struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}

	message := fmt.Sprintf("request failed: %d %s", statusCode, http.StatusText(statusCode))
	if err := json.Unmarshal(body, &errorResponse); err == nil {
		switch {
		case errorResponse.Detail != "":
			message = errorResponse.Detail
		case errorResponse.Message != "":
			message = errorResponse.Message
		case errorResponse.Error != "":
			message = errorResponse.Error
		}
	}

	if statusCode == http.StatusNotFound {
		e := NewNotFoundError(message)
		e.Upstream = upstream
		return e
	}
	return NewUpstreamError(upstream, statusCode, message, nil)
}
