package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var (
	ErrNoContent       = errors.New("no content available to summarize")
	ErrValidation      = errors.New("validation error")
	ErrTimeout         = errors.New("request timed out")
	ErrAPI             = errors.New("api error")
	ErrAuthorization   = errors.New("authorization failed")
	ErrInvalidResponse = errors.New("invalid response")
	ErrPersistence     = errors.New("persistence failure")

	ErrNotFound  = errors.New("not found")
	ErrConflict  = errors.New("conflict")
	ErrTemporary = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// APIError is a non-2xx response from a remote HTTP API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("api error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api error: status %d: %s", e.StatusCode, body)
}

func (e *APIError) Unwrap() []error {
	if e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden {
		return []error{ErrAPI, ErrAuthorization}
	}
	return []error{ErrAPI}
}

// TimeoutError reports a call abandoned after the configured duration.
type TimeoutError struct {
	Duration time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request timed out after %dms", e.Duration.Milliseconds())
}

func (e *TimeoutError) Unwrap() error {
	return ErrTimeout
}

type FieldError struct {
	Field   string
	Message string
}

// ValidationError collects field-level problems of a locally built request.
type ValidationError struct {
	Errors []FieldError
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Errors: []FieldError{{Field: field, Message: message}}}
}

func (e *ValidationError) Add(field, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation error: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
