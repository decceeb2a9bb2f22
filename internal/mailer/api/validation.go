package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"reflect"
	"strings"

	apperrors "github.com/burhanmukhtar/Molly-Pro/internal/shared/errors"
	"github.com/go-playground/validator/v10"
)

// maxBodyBytes bounds request bodies; every request here is a few fields.
const maxBodyBytes = 1 << 16

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names rather than Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidationError represents a validation error with field-specific details
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors represents multiple validation errors
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (ve ValidationErrors) Error() string {
	messages := make([]string, 0, len(ve.Errors))
	for _, err := range ve.Errors {
		messages = append(messages, fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	return strings.Join(messages, "; ")
}

// DomainError converts the field errors into a validation DomainError.
func (ve ValidationErrors) DomainError() apperrors.DomainError {
	fields := make(map[string]string, len(ve.Errors))
	for _, e := range ve.Errors {
		fields[e.Field] = e.Message
	}
	return apperrors.NewDomainAPIError(apperrors.ErrCodeValidation, ve.Error(), false, nil).
		WithMetadata("fields", fields)
}

// DecodeAndValidate parses the JSON body into target and runs its validate tags.
// Any failure is returned as a validation DomainError.
func DecodeAndValidate[T any](r *http.Request, target *T) error {
	if err := ParseJSONRequest(r, target); err != nil {
		return apperrors.NewDomainAPIError(apperrors.ErrCodeValidation, err.Error(), false, err)
	}
	if err := validate.Struct(target); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			return toValidationErrors(fieldErrs).DomainError()
		}
		return apperrors.NewDomainAPIError(apperrors.ErrCodeValidation, "invalid request", false, err)
	}
	return nil
}

// ParseJSONRequest decodes a JSON request body, rejecting unknown fields.
func ParseJSONRequest[T any](r *http.Request, target *T) error {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return fmt.Errorf("content-type must be application/json")
	}

	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("request body is empty")
		}
		return fmt.Errorf("invalid JSON: %w", err)
	}

	return nil
}

func toValidationErrors(fieldErrs validator.ValidationErrors) ValidationErrors {
	out := ValidationErrors{Errors: make([]ValidationError, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Errors = append(out.Errors, ValidationError{
			Field:   fe.Field(),
			Message: formatValidationError(fe),
		})
	}
	return out
}

func formatValidationError(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return fmt.Sprintf("the %s field is required", err.Field())
	case "oneof":
		return fmt.Sprintf("the %s field must be one of: %s", err.Field(), strings.ReplaceAll(err.Param(), " ", ", "))
	case "min":
		return fmt.Sprintf("the %s field must be at least %s characters", err.Field(), err.Param())
	case "max":
		return fmt.Sprintf("the %s field must be at most %s characters", err.Field(), err.Param())
	case "gte":
		return fmt.Sprintf("the %s field must be greater than or equal to %s", err.Field(), err.Param())
	default:
		return fmt.Sprintf("validation failed for %s with tag %s", err.Field(), err.Tag())
	}
}
