// Package response writes the versioned JSON envelope for handlers that run
// outside huma, such as middleware and the event stream.
package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	domainerrors "github.com/listenupapp/notes-server/internal/errors"
	"github.com/listenupapp/notes-server/internal/store"
)

// EnvelopeVersion is bumped on breaking changes to the envelope shape.
const EnvelopeVersion = 1

// Envelope is the body of every API response.
type Envelope struct {
	Version int        `json:"v"`
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Success wraps data in a success envelope.
func Success(data any) Envelope {
	return Envelope{Version: EnvelopeVersion, Success: true, Data: data}
}

// Failure wraps an error body in a failure envelope.
func Failure(body ErrorBody) Envelope {
	return Envelope{Version: EnvelopeVersion, Success: false, Error: &body}
}

// JSON writes a success envelope with the given status code.
func JSON(w http.ResponseWriter, status int, data any, logger *slog.Logger) {
	write(w, status, Success(data), logger)
}

// Error writes a failure envelope.
func Error(w http.ResponseWriter, status int, code domainerrors.Code, message string, logger *slog.Logger) {
	write(w, status, Failure(ErrorBody{Code: string(code), Message: message}), logger)
}

// Unauthorized writes a 401 envelope.
func Unauthorized(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusUnauthorized, domainerrors.CodeUnauthorized, message, logger)
}

// TooManyRequests writes a 429 envelope.
func TooManyRequests(w http.ResponseWriter, message string, logger *slog.Logger) {
	Error(w, http.StatusTooManyRequests, domainerrors.CodeRateLimited, message, logger)
}

// HandleError maps domain and store errors to their status codes.
// Anything else becomes a generic 500 so internals never leak.
func HandleError(w http.ResponseWriter, err error, logger *slog.Logger) {
	body, status := FromError(err)
	if status == http.StatusInternalServerError && logger != nil {
		logger.Error("unhandled error", "error", err)
	}
	write(w, status, Failure(body), logger)
}

// FromError converts err to an error body and HTTP status.
func FromError(err error) (ErrorBody, int) {
	var domainErr *domainerrors.Error
	if errors.As(err, &domainErr) {
		return ErrorBody{
			Code:    string(domainErr.Code),
			Message: domainErr.Message,
			Details: domainErr.Details,
		}, domainErr.HTTPStatus()
	}

	var storeErr *store.Error
	if errors.As(err, &storeErr) {
		return ErrorBody{
			Code:    string(CodeForStatus(storeErr.HTTPCode())),
			Message: storeErr.Message,
		}, storeErr.HTTPCode()
	}

	return ErrorBody{
		Code:    string(domainerrors.CodeInternal),
		Message: "internal server error",
	}, http.StatusInternalServerError
}

// CodeForStatus maps an HTTP status to the closest error code.
func CodeForStatus(status int) domainerrors.Code {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return domainerrors.CodeValidation
	case http.StatusUnauthorized:
		return domainerrors.CodeUnauthorized
	case http.StatusForbidden:
		return domainerrors.CodeForbidden
	case http.StatusNotFound:
		return domainerrors.CodeNotFound
	case http.StatusConflict:
		return domainerrors.CodeConflict
	case http.StatusTooManyRequests:
		return domainerrors.CodeRateLimited
	case http.StatusBadGateway:
		return domainerrors.CodeDispatchFailed
	default:
		return domainerrors.CodeInternal
	}
}

func write(w http.ResponseWriter, status int, envelope Envelope, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(envelope); err != nil && logger != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}
