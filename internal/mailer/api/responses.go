package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	apperrors "github.com/burhanmukhtar/Molly-Pro/internal/shared/errors"
	"github.com/burhanmukhtar/Molly-Pro/pkg/api"
	"github.com/gookit/goutil"
)

// defaultRetryAfterSec is advertised on retryable 503s that carry no hint.
const defaultRetryAfterSec = 30

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a successful JSON response.
func WriteSuccess[T any](w http.ResponseWriter, data T) error {
	return WriteJSON(w, http.StatusOK, api.Response[T]{
		Success: true,
		Data:    data,
	})
}

// WriteCreated writes a 201 JSON response.
func WriteCreated[T any](w http.ResponseWriter, data T) error {
	return WriteJSON(w, http.StatusCreated, api.Response[T]{
		Success: true,
		Data:    data,
	})
}

// WriteErrorResponse logs err and translates it into an HTTP error response.
// Only the DomainError message reaches the client; causes stay in the logs.
func WriteErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	logger := GetLogger(ctx)

	statusCode := http.StatusInternalServerError
	errorCode := apperrors.ErrCodeInternal
	message := "An internal server error occurred"
	var metadata map[string]any

	if domainErr, ok := apperrors.AsDomainError(err); ok {
		errorCode = domainErr.Code()
		statusCode = mapErrorCodeToHTTP(errorCode)
		if statusCode != http.StatusInternalServerError {
			message = apperrors.UserMessage(err)
		}
		metadata = publicMetadata(domainErr.Metadata())

		if statusCode == http.StatusServiceUnavailable && domainErr.Retryable() {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter(domainErr.Metadata())))
		}
	}

	if statusCode >= http.StatusInternalServerError {
		logger.ErrorCtx(ctx, "API request failed", err, "http_status", statusCode)
	} else {
		logger.WarnErr(ctx, "API request rejected", err, "http_status", statusCode)
	}

	_ = WriteJSON(w, statusCode, api.Response[any]{
		Success: false,
		Error: &api.ErrorInfo{
			Code:      errorCode,
			Message:   message,
			RequestID: GetRequestID(ctx),
			Metadata:  metadata,
		},
	})
}

// mapErrorCodeToHTTP maps domain error codes to HTTP status codes.
func mapErrorCodeToHTTP(code string) int {
	switch code {
	case apperrors.ErrCodeValidation, apperrors.ErrCodeInvalidOperation:
		return http.StatusBadRequest

	case apperrors.ErrCodeUnauthorized:
		return http.StatusUnauthorized

	case apperrors.ErrCodeInsufficientBalance:
		return http.StatusPaymentRequired

	case apperrors.ErrCodeForbidden:
		return http.StatusForbidden

	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound

	case apperrors.ErrCodeServerExists, apperrors.ErrCodeConcurrentUpdate, apperrors.ErrCodeLeaseHeld:
		return http.StatusConflict

	case apperrors.ErrCodeRateLimit:
		return http.StatusTooManyRequests

	case apperrors.ErrCodeProvisioningFailed, apperrors.ErrCodeRotationFailed:
		return http.StatusBadGateway

	case apperrors.ErrCodeCapacityExhausted, apperrors.ErrCodeIPExhausted,
		apperrors.ErrCodeProviderUnavailable, apperrors.ErrCodeCircuitOpen:
		return http.StatusServiceUnavailable

	case apperrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout

	default:
		return http.StatusInternalServerError
	}
}

// publicMetadata drops metadata keys that describe internals.
func publicMetadata(md map[string]any) map[string]any {
	if len(md) == 0 {
		return nil
	}
	out := make(map[string]any, len(md))
	for k, v := range md {
		switch k {
		case "path", "method", "instance_id", "handle", "lease", "provider_errors":
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func retryAfter(md map[string]any) int {
	for _, key := range []string{"retry_after_sec", "estimated_wait_sec"} {
		v, ok := md[key]
		if !ok {
			continue
		}
		if sec, err := goutil.ToInt(v); err == nil && sec > 0 {
			return sec
		}
	}
	return defaultRetryAfterSec
}
