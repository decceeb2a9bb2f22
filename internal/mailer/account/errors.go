package account

import (
	apperrors "github.com/burhanmukhtar/Molly-Pro/internal/shared/errors"
)

var (
	ErrAccountNotFound     = apperrors.NewAccountError(apperrors.ErrCodeNotFound, "account not found", false, nil)
	ErrInsufficientBalance = apperrors.DomainErrInsufficientBalance
	ErrUsernameTaken       = apperrors.NewAccountError(apperrors.ErrCodeValidation, "username already taken", false, nil)

	// ErrInvalidCredentials covers both unknown users and wrong passwords.
	ErrInvalidCredentials = apperrors.NewAuthError(apperrors.ErrCodeUnauthorized, "invalid username or password", nil)
)

func newValidationError(message string) apperrors.DomainError {
	return apperrors.NewAccountError(apperrors.ErrCodeValidation, message, false, nil)
}
