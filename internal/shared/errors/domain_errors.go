package errors

import (
	"errors"
	"fmt"
	"time"
)

// DomainError is the base interface for all structured errors in the application
type DomainError interface {
	error

	// Domain returns the domain context (e.g., "server", "provider", "ip")
	Domain() string

	// Code returns a stable error code for API responses
	Code() string

	// Retryable indicates if the operation can be retried
	Retryable() bool

	// Metadata returns additional error context
	Metadata() map[string]any

	// WithMetadata adds metadata to the error
	WithMetadata(key string, value any) DomainError

	// Timestamp returns when the error occurred
	Timestamp() time.Time
}

// BaseError is the foundational implementation of DomainError
type BaseError struct {
	domain    string
	code      string
	message   string
	cause     error
	retryable bool
	metadata  map[string]any
	timestamp time.Time
}

func (e *BaseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.domain, e.code, e.message, e.cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.domain, e.code, e.message)
}

func (e *BaseError) Unwrap() error            { return e.cause }
func (e *BaseError) Domain() string           { return e.domain }
func (e *BaseError) Code() string             { return e.code }
func (e *BaseError) Message() string          { return e.message }
func (e *BaseError) Retryable() bool          { return e.retryable }
func (e *BaseError) Metadata() map[string]any { return e.metadata }
func (e *BaseError) Timestamp() time.Time     { return e.timestamp }

// NewBaseError creates a new BaseError with the specified parameters
func NewBaseError(domain, code, message string, retryable bool, cause error, metadata map[string]any) *BaseError {
	if metadata == nil {
		metadata = make(map[string]any)
	}

	return &BaseError{
		domain:    domain,
		code:      code,
		message:   message,
		cause:     cause,
		retryable: retryable,
		metadata:  metadata,
		timestamp: time.Now(),
	}
}

// WithMetadata returns a copy of the error carrying the extra key.
// The receiver is left untouched so package-level sentinels stay immutable.
func (e *BaseError) WithMetadata(key string, value any) DomainError {
	newMeta := make(map[string]any, len(e.metadata)+1)
	for k, v := range e.metadata {
		newMeta[k] = v
	}
	newMeta[key] = value

	return &BaseError{
		domain:    e.domain,
		code:      e.code,
		message:   e.message,
		cause:     e.cause,
		retryable: e.retryable,
		metadata:  newMeta,
		timestamp: e.timestamp,
	}
}

// Standardized Error Codes
const (
	// Server lifecycle errors
	ErrCodeInsufficientBalance = "insufficient_balance"
	ErrCodeServerExists        = "server_already_exists"
	ErrCodeProvisioningFailed  = "provisioning_failed"
	ErrCodeIPExhausted         = "ip_exhausted"
	ErrCodeCapacityExhausted   = "capacity_exhausted"
	ErrCodeInvalidOperation    = "invalid_operation"
	ErrCodeRotationFailed      = "rotation_failed"
	ErrCodeNotFound            = "not_found"
	ErrCodeProviderUnavailable = "provider_unavailable"
	ErrCodeConcurrentUpdate    = "concurrent_modification"

	// Access errors
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"

	// Infrastructure errors
	ErrCodeCircuitOpen  = "circuit_breaker_open"
	ErrCodeRateLimit    = "rate_limit_exceeded"
	ErrCodeNetworkError = "network_error"
	ErrCodeLeaseHeld    = "lease_held"

	// System errors
	ErrCodeDatabase      = "database_error"
	ErrCodeConfiguration = "config_error"
	ErrCodeInternal      = "internal_error"
	ErrCodeValidation    = "validation_error"
	ErrCodeTimeout       = "timeout"
)

// Domain Constants
const (
	DomainServer    = "server"
	DomainProvider  = "provider"
	DomainIP        = "ip"
	DomainAccount   = "account"
	DomainAuth      = "auth"
	DomainPlacement = "placement"
	DomainDatabase  = "database"
	DomainSystem    = "system"
	DomainAPI       = "api"
	DomainEvent     = "event"
)

// Domain-specific error constructors

// NewServerError creates a standardized server lifecycle error
func NewServerError(code, message string, retryable bool, cause error) DomainError {
	return NewBaseError(DomainServer, code, message, retryable, cause, nil)
}

// NewProviderError creates a standardized cloud provider error
func NewProviderError(code, message string, retryable bool, cause error) DomainError {
	return NewBaseError(DomainProvider, code, message, retryable, cause, nil)
}

// NewIPError creates a standardized IP ledger error
func NewIPError(code, message string, retryable bool, cause error) DomainError {
	return NewBaseError(DomainIP, code, message, retryable, cause, nil)
}

// NewAccountError creates a standardized account error
func NewAccountError(code, message string, retryable bool, cause error) DomainError {
	return NewBaseError(DomainAccount, code, message, retryable, cause, nil)
}

// NewAuthError creates a standardized authentication error
func NewAuthError(code, message string, cause error) DomainError {
	return NewBaseError(DomainAuth, code, message, false, cause, nil)
}

// NewPlacementError creates a standardized placement error
func NewPlacementError(code, message string, retryable bool, cause error) DomainError {
	return NewBaseError(DomainPlacement, code, message, retryable, cause, nil)
}

// NewDatabaseError creates a standardized database error
func NewDatabaseError(code, message string, retryable bool, cause error) DomainError {
	return NewBaseError(DomainDatabase, code, message, retryable, cause, nil)
}

// NewSystemError creates a standardized system error
func NewSystemError(code, message string, retryable bool, cause error) DomainError {
	return NewBaseError(DomainSystem, code, message, retryable, cause, nil)
}

// NewDomainAPIError creates a standardized API error
func NewDomainAPIError(code, message string, retryable bool, cause error) DomainError {
	return NewBaseError(DomainAPI, code, message, retryable, cause, nil)
}

// Domain sentinel errors for fast comparison by code
var (
	DomainErrNotFound            = NewServerError(ErrCodeNotFound, "server not found", false, nil)
	DomainErrInsufficientBalance = NewAccountError(ErrCodeInsufficientBalance, "insufficient points balance", false, nil)
	DomainErrIPExhausted         = NewIPError(ErrCodeIPExhausted, "no fresh floating address available", true, nil)
	DomainErrCapacityExhausted   = NewPlacementError(ErrCodeCapacityExhausted, "all regions are at capacity", true, nil)
	DomainErrProviderUnavailable = NewProviderError(ErrCodeProviderUnavailable, "cloud provider unavailable", true, nil)
	DomainErrUnauthorized        = NewAuthError(ErrCodeUnauthorized, "authentication required", nil)
	DomainErrForbidden           = NewAuthError(ErrCodeForbidden, "insufficient permissions", nil)
	DomainErrInvalidConfig       = NewSystemError(ErrCodeConfiguration, "invalid configuration", false, nil)
	DomainErrDatabaseError       = NewDatabaseError(ErrCodeDatabase, "database error", true, nil)
)

// Helper functions for error checking

// AsDomainError finds the first DomainError in the chain
func AsDomainError(err error) (DomainError, bool) {
	var domainErr DomainError
	if errors.As(err, &domainErr) {
		return domainErr, true
	}
	return nil, false
}

// IsDomainError checks if an error is or wraps a DomainError
func IsDomainError(err error) bool {
	_, ok := AsDomainError(err)
	return ok
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	if domainErr, ok := AsDomainError(err); ok {
		return domainErr.Retryable()
	}
	return false
}

// GetErrorCode returns the code of the first DomainError in the chain, otherwise "unknown"
func GetErrorCode(err error) string {
	if domainErr, ok := AsDomainError(err); ok {
		return domainErr.Code()
	}
	return "unknown"
}

// GetErrorDomain returns the domain of the first DomainError in the chain, otherwise "unknown"
func GetErrorDomain(err error) string {
	if domainErr, ok := AsDomainError(err); ok {
		return domainErr.Domain()
	}
	return "unknown"
}

// HasErrorCode checks if the error itself carries a specific code
func HasErrorCode(err error, code string) bool {
	if domainErr, ok := err.(DomainError); ok {
		return domainErr.Code() == code
	}
	return false
}

// IsErrorCode checks if any error in the chain has the specified code
func IsErrorCode(err error, code string) bool {
	for err != nil {
		if HasErrorCode(err, code) {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// WrapWithDomain wraps an existing error with domain context
func WrapWithDomain(err error, domain, code, message string, retryable bool) DomainError {
	return NewBaseError(domain, code, message, retryable, err, nil)
}

// UserMessage returns the message of a DomainError without the cause chain.
// Causes may contain provider internals and are kept for logs only.
func UserMessage(err error) string {
	var base *BaseError
	if errors.As(err, &base) {
		return base.message
	}
	return "an internal error occurred"
}
