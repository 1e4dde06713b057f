package util

import (
	"errors"
	"fmt"
	"net/http"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

// NewPermissionDenied carries the attempted operation and target path for
// diagnostic logging. Permission failures are never retried.
func NewPermissionDenied(operation, target string, err error) error {
	return &DomainError{
		Code:       "PERMISSION_DENIED",
		Message:    "permission denied",
		HTTPStatus: http.StatusForbidden,
		Details:    map[string]any{"operation": operation, "target": target},
		Err:        err,
	}
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError("CONFLICT", message, http.StatusConflict, details)
}

// NewTransient marks infrastructure hiccups that are safe to retry with backoff.
func NewTransient(operation string, err error) error {
	return &DomainError{
		Code:       "TRANSIENT",
		Message:    "temporary failure, retry later",
		HTTPStatus: http.StatusServiceUnavailable,
		Details:    map[string]any{"operation": operation},
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// IsConflict reports whether err is a key-collision conflict.
func IsConflict(err error) bool {
	return hasCode(err, "CONFLICT")
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return hasCode(err, "NOT_FOUND")
}

// IsTransient reports whether err is safe to retry.
func IsTransient(err error) bool {
	return hasCode(err, "TRANSIENT")
}

func hasCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}
