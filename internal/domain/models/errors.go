package models

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every desk component.
var (
	// ErrUnauthenticated means no usable credentials were found locally.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden means the verified user lacks the role a page requires.
	ErrForbidden = errors.New("forbidden")
	// ErrSessionInvalid means the backend refused or could not verify the session.
	ErrSessionInvalid = errors.New("session invalid")
	// ErrNetwork wraps every transport-level failure talking to the backend.
	ErrNetwork = errors.New("network error")
	// ErrValidation marks client-side form and stock checks.
	ErrValidation = errors.New("validation failed")
	// ErrSaleRejected means the backend refused to record a sale.
	ErrSaleRejected = errors.New("sale rejected")
	// ErrPriceNotSet means the product has no unit price and none was supplied.
	ErrPriceNotSet = errors.New("unit price not set")
)

// APIError carries a non-2xx response from the backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned status %d", e.Status)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.Status, e.Message)
}

// IsClientError reports whether the backend rejected the request itself (4xx).
func (e *APIError) IsClientError() bool {
	return e.Status >= 400 && e.Status < 500
}

// ValidationError describes a single rejected form field.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// BackendMessage extracts the backend-provided reason from err, if any.
func BackendMessage(err error) (string, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message, true
	}
	return "", false
}
