package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/listenupapp/notes-server/internal/errors"
	"github.com/listenupapp/notes-server/internal/http/response"
)

func marshalMap(t *testing.T, v any) map[string]any {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	return out
}

func TestEnvelopeTransformer_Success(t *testing.T) {
	result, err := EnvelopeTransformer(nil, "200", map[string]string{"id": "note-1"})
	require.NoError(t, err)

	out := marshalMap(t, result)
	assert.Equal(t, float64(response.EnvelopeVersion), out["v"])
	assert.Equal(t, true, out["success"])
	assert.Equal(t, map[string]any{"id": "note-1"}, out["data"])
	assert.NotContains(t, out, "error")
}

func TestEnvelopeTransformer_NilData(t *testing.T) {
	result, err := EnvelopeTransformer(nil, "204", nil)
	require.NoError(t, err)

	out := marshalMap(t, result)
	assert.Equal(t, true, out["success"])
	assert.NotContains(t, out, "data")
}

func TestEnvelopeTransformer_APIError(t *testing.T) {
	result, err := EnvelopeTransformer(nil, "404", &APIError{
		status:  http.StatusNotFound,
		Code:    "NOT_FOUND",
		Message: "note not found",
	})
	require.NoError(t, err)

	out := marshalMap(t, result)
	assert.Equal(t, false, out["success"])
	assert.NotContains(t, out, "data")
	assert.Equal(t, map[string]any{"code": "NOT_FOUND", "message": "note not found"}, out["error"])
}

func TestEnvelopeTransformer_PlainErrorIsInternal(t *testing.T) {
	result, err := EnvelopeTransformer(nil, "500", errors.New("disk on fire"))
	require.NoError(t, err)

	out := marshalMap(t, result)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "INTERNAL", out["error"].(map[string]any)["code"])
	assert.NotContains(t, out["error"].(map[string]any)["message"], "disk")
}

func TestEnvelopeTransformer_PassesEnvelopesThrough(t *testing.T) {
	env := response.Success("x")
	result, err := EnvelopeTransformer(nil, "200", env)
	require.NoError(t, err)
	assert.Equal(t, env, result)
}

func TestRegisterErrorHandler_MapsDomainErrors(t *testing.T) {
	RegisterErrorHandler()

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", domainerrors.Validation("bad"), http.StatusBadRequest, "VALIDATION"},
		{"unauthorized", domainerrors.Unauthorized("who"), http.StatusUnauthorized, "UNAUTHORIZED"},
		{"forbidden", domainerrors.Forbidden("no"), http.StatusForbidden, "FORBIDDEN"},
		{"not found", domainerrors.NotFound("gone"), http.StatusNotFound, "NOT_FOUND"},
		{"rate limited", domainerrors.RateLimited("slow"), http.StatusTooManyRequests, "RATE_LIMITED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			statusErr := huma.NewError(http.StatusInternalServerError, "ignored", tt.err)
			assert.Equal(t, tt.status, statusErr.GetStatus())
			apiErr, ok := statusErr.(*APIError)
			require.True(t, ok)
			assert.Equal(t, tt.code, apiErr.Code)
		})
	}
}

func TestRegisterErrorHandler_SchemaViolationsAreValidation(t *testing.T) {
	RegisterErrorHandler()

	statusErr := huma.NewError(http.StatusUnprocessableEntity, "validation failed",
		&huma.ErrorDetail{Location: "body.type", Message: "expected string"})
	assert.Equal(t, http.StatusBadRequest, statusErr.GetStatus())

	apiErr := statusErr.(*APIError)
	assert.Equal(t, "VALIDATION", apiErr.Code)
	assert.Equal(t, map[string]string{"body.type": "expected string"}, apiErr.Details)
}
