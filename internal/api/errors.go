package api

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/listenupapp/notes-server/internal/errors"
	"github.com/listenupapp/notes-server/internal/http/response"
	"github.com/listenupapp/notes-server/internal/store"
)

// APIError is a custom error type that implements huma.StatusError.
// It maps domain errors to HTTP responses with consistent structure.
type APIError struct { //nolint:revive // API prefix is intentional for clarity
	status  int
	Code    string `json:"code" doc:"Machine-readable error code"`
	Message string `json:"message" doc:"Human-readable error message"`
	Details any    `json:"details,omitempty" doc:"Additional error details"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// GetStatus implements huma.StatusError.
func (e *APIError) GetStatus() int {
	return e.status
}

// ContentType returns the content type for the error response.
func (e *APIError) ContentType(_ string) string {
	return "application/json"
}

// RegisterErrorHandler configures huma to use domain errors.
// Call this after creating the huma.API but before registering routes.
func RegisterErrorHandler() {
	huma.NewError = func(status int, message string, errs ...error) huma.StatusError {
		for _, err := range errs {
			var domainErr *domainerrors.Error
			var storeErr *store.Error
			if errors.As(err, &domainErr) || errors.As(err, &storeErr) {
				body, code := response.FromError(err)
				return &APIError{
					status:  code,
					Code:    body.Code,
					Message: body.Message,
					Details: body.Details,
				}
			}
		}

		// Schema violations are reported like service validation failures.
		if status == http.StatusUnprocessableEntity {
			status = http.StatusBadRequest
		}

		apiErr := &APIError{
			status:  status,
			Code:    string(response.CodeForStatus(status)),
			Message: message,
		}
		if details := schemaDetails(errs); len(details) > 0 {
			apiErr.Details = details
		}
		if status >= http.StatusInternalServerError && apiErr.Code == string(domainerrors.CodeInternal) {
			apiErr.Message = "internal server error"
		}
		return apiErr
	}
}

// schemaDetails collects huma's per-location validation messages.
func schemaDetails(errs []error) map[string]string {
	details := make(map[string]string)
	for _, err := range errs {
		var detail *huma.ErrorDetail
		if errors.As(err, &detail) {
			details[detail.Location] = detail.Message
		}
	}
	return details
}
