package server

import (
	apperrors "github.com/burhanmukhtar/Molly-Pro/internal/shared/errors"
)

// Common domain errors
var (
	ErrServerNotFound = apperrors.NewServerError(apperrors.ErrCodeNotFound, "server not found", false, nil)

	ErrConcurrentModification = apperrors.NewServerError(apperrors.ErrCodeConcurrentUpdate,
		"concurrent modification detected - version mismatch", true, nil)

	ErrInvalidStatusTransition = apperrors.NewServerError(apperrors.ErrCodeInvalidOperation,
		"invalid status transition", false, nil)
)

// NewAlreadyExistsError reports the user's existing active server.
func NewAlreadyExistsError(existingID string) apperrors.DomainError {
	return apperrors.NewServerError(apperrors.ErrCodeServerExists,
		"an active server already exists for this user", false, nil).
		WithMetadata("server_id", existingID)
}

// NewInvalidOperationError reports an operation the server cannot accept in its current state.
func NewInvalidOperationError(message string) apperrors.DomainError {
	return apperrors.NewServerError(apperrors.ErrCodeInvalidOperation, message, false, nil)
}
