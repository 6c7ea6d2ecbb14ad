package api

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/notes-server/internal/http/response"
)

// EnvelopeTransformer wraps every huma response body in the versioned
// envelope. Error bodies become failure envelopes.
func EnvelopeTransformer(_ huma.Context, _ string, v any) (any, error) {
	switch body := v.(type) {
	case response.Envelope, *response.Envelope:
		return v, nil
	case *APIError:
		return response.Failure(response.ErrorBody{
			Code:    body.Code,
			Message: body.Message,
			Details: body.Details,
		}), nil
	case error:
		errBody, _ := response.FromError(body)
		return response.Failure(errBody), nil
	default:
		return response.Success(v), nil
	}
}
