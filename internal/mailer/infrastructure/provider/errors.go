package provider

import (
	"context"
	"errors"
	"fmt"
	"net"

	apperrors "github.com/burhanmukhtar/Molly-Pro/internal/shared/errors"
)

// ErrFloatingIPNotFound is returned by FindFloatingIPByAddress when nothing holds the address
var ErrFloatingIPNotFound = apperrors.NewProviderError(apperrors.ErrCodeNotFound, "floating ip not found", false, nil)

// NewProvisioningFailed wraps a failed instance creation. The provider's detail
// is kept in the message so callers see it verbatim.
func NewProvisioningFailed(provider string, cause error) apperrors.DomainError {
	msg := "instance creation failed"
	if cause != nil {
		msg = fmt.Sprintf("instance creation failed on %s: %s", provider, detail(cause))
	}
	return apperrors.NewProviderError(apperrors.ErrCodeProvisioningFailed, msg, false, cause)
}

// NewCallError wraps a provider API failure that is not instance creation.
func NewCallError(provider, call string, retryable bool, cause error) apperrors.DomainError {
	return apperrors.NewProviderError(apperrors.ErrCodeProviderUnavailable,
		fmt.Sprintf("%s %s failed: %s", provider, call, detail(cause)), retryable, cause)
}

// NewOperationError reports a long-running provider operation that finished with errors.
func NewOperationError(provider, call string, messages []string) apperrors.DomainError {
	return apperrors.NewProviderError(apperrors.ErrCodeProviderUnavailable,
		fmt.Sprintf("%s %s operation failed: %v", provider, call, messages), false, nil).
		WithMetadata("provider_errors", messages)
}

// isNetworkTransient reports timeouts and temporary network errors.
func isNetworkTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

func detail(err error) string {
	if err == nil {
		return ""
	}
	if d, ok := apperrors.AsDomainError(err); ok {
		if b, ok := d.(*apperrors.BaseError); ok {
			return b.Message()
		}
	}
	return err.Error()
}
