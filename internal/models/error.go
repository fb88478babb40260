package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")

	// Web-service failure kinds
	ErrInvalidCriteria  = errors.New("invalid search criteria")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrNotConfigured    = errors.New("enrolment method not configured")
	ErrRejected         = errors.New("enrolment method rejected the request")
)

// ServiceError is a terminal web-service failure. Kind is one of the
// sentinels above, Code is the host error code reported to the client.
type ServiceError struct {
	Kind    error
	Code    string
	Message string
	Params  map[string]any
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

func (e *ServiceError) Unwrap() error {
	return e.Kind
}

// NewServiceError builds a ServiceError with optional params
func NewServiceError(kind error, code, message string, params map[string]any) *ServiceError {
	return &ServiceError{Kind: kind, Code: code, Message: message, Params: params}
}

// InvalidCriteriaError reports an unsupported key or an illegal key mix
func InvalidCriteriaError(code, key string) *ServiceError {
	return NewServiceError(ErrInvalidCriteria, code, fmt.Sprintf("invalid criteria key %q", key), map[string]any{"key": key})
}

// MissingCapabilityError reports a criterion or action the caller may not use
func MissingCapabilityError(what string) *ServiceError {
	return NewServiceError(ErrForbidden, "missingrequiredcapability", fmt.Sprintf("missing required capability for %s", what), map[string]any{"key": what})
}
