package ipledger

import (
	apperrors "github.com/burhanmukhtar/Molly-Pro/internal/shared/errors"
)

// NewExhaustedError reports that every drawn address had been used before
func NewExhaustedError(region string, attempts int) apperrors.DomainError {
	return apperrors.NewIPError(apperrors.ErrCodeIPExhausted,
		"no fresh floating address available", true, nil).
		WithMetadata("region", region).
		WithMetadata("attempts", attempts)
}
