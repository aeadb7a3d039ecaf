package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// APIError represents a custom error type for API responses
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Details string `json:"details,omitempty"`
}

// Error returns the error message
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAPIError(code, message string, status int, details ...string) *APIError {
	err := &APIError{
		Code:    code,
		Message: message,
		Status:  status,
	}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}

var (
	ErrInvalidInput = NewAPIError("INVALID_INPUT", "Invalid request data", http.StatusBadRequest)
	ErrUnauthorized = NewAPIError("UNAUTHORIZED", "Authentication required", http.StatusUnauthorized)
	ErrNotFound     = NewAPIError("NOT_FOUND", "Resource not found", http.StatusNotFound)
	ErrInternal     = NewAPIError("INTERNAL_SERVER_ERROR", "Internal server error", http.StatusInternalServerError)

	// Login failures share one error so callers cannot tell an unknown
	// email from a wrong password.
	ErrBadLogin   = NewAPIError("BAD_LOGIN", "bad login data", http.StatusBadRequest)
	ErrEmailTaken = NewAPIError("EMAIL_TAKEN", "Email already registered", http.StatusBadRequest)
	ErrBadToken   = NewAPIError("INVALID_TOKEN", "Invalid or expired token", http.StatusBadRequest)

	ErrLocationNotFound = NewAPIError("LOCATION_NOT_FOUND", "Location not found", http.StatusNotFound)
	ErrUserNotFound     = NewAPIError("USER_NOT_FOUND", "User not found", http.StatusNotFound)
)

// Validation builds a 400 error carrying the failed rule in Details.
func Validation(details string) *APIError {
	return NewAPIError("VALIDATION_ERROR", "Validation failed", http.StatusBadRequest, details)
}

func Wrap(err error, code, message string, status int) *APIError {
	if apiErr, ok := As(err); ok {
		return apiErr
	}
	return NewAPIError(code, message, status, err.Error())
}

// As reports whether err, or anything it wraps, is an *APIError.
func As(err error) (*APIError, bool) {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
