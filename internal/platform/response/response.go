// Package response writes JSON bodies and the error envelope shared by
// every endpoint of the notification API.
package response

import (
	"encoding/json"
	"net/http"
)

// Response is the error envelope. Successful notification reads return bare
// values through Raw, so only failures carry it.
type Response struct {
	Success bool       `json:"success"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo is the machine-readable part of a failure
type ErrorInfo struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// APIError is a failure together with the status it is written with
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    map[string]string
}

func (e *APIError) Error() string {
	return e.Message
}

// WithDetails returns a copy of the error with an extra detail
func (e *APIError) WithDetails(key, value string) *APIError {
	c := *e
	c.Details = make(map[string]string, len(e.Details)+1)
	for k, v := range e.Details {
		c.Details[k] = v
	}
	c.Details[key] = value
	return &c
}

// WithMessage returns a copy of the error with a different message
func (e *APIError) WithMessage(msg string) *APIError {
	c := *e
	c.Message = msg
	return &c
}

func newError(status int, code, message string) *APIError {
	return &APIError{StatusCode: status, Code: code, Message: message}
}

var (
	ErrBadRequest      = newError(http.StatusBadRequest, "BAD_REQUEST", "Invalid request")
	ErrUnauthorized    = newError(http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
	ErrForbidden       = newError(http.StatusForbidden, "FORBIDDEN", "Access denied")
	ErrNotFound        = newError(http.StatusNotFound, "NOT_FOUND", "Notification not found")
	ErrConflict        = newError(http.StatusConflict, "CONFLICT", "Notification already exists")
	ErrPayloadTooLarge = newError(http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large")
	ErrValidation      = newError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Validation failed")
	ErrTooManyRequests = newError(http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Too many requests. Please try again later.")
	ErrInternal        = newError(http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
)

// Error writes err inside the envelope
func Error(w http.ResponseWriter, err *APIError) {
	write(w, err.StatusCode, Response{
		Error: &ErrorInfo{
			Code:    err.Code,
			Message: err.Message,
			Details: err.Details,
		},
	})
}

// Raw writes data as the whole body. The notification endpoints return bare
// arrays, integers and objects.
func Raw(w http.ResponseWriter, statusCode int, data interface{}) {
	write(w, statusCode, data)
}

func write(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}
