package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/notes-server/internal/api/dto"
	"github.com/listenupapp/notes-server/internal/domain"
)

func TestAISettings_OwnerOnly(t *testing.T) {
	ts := setupTestServer(t, serverOptions{})
	member := ts.createUser(t, "usr-member", "member@example.com", domain.RoleMember)

	resp := ts.api.Get("/admin/ai-settings", member)
	require.Equal(t, http.StatusForbidden, resp.Code)
	assert.Equal(t, "FORBIDDEN", decode[any](t, resp).Error.Code)

	resp = ts.api.Post("/admin/ai-settings", member, map[string]any{"enabled": false})
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = ts.api.Get("/admin/ai-settings")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestAISettings_DefaultsThenUpdate(t *testing.T) {
	ts := setupTestServer(t, serverOptions{})
	owner := ts.createUser(t, "usr-owner", "owner@example.com", domain.RoleOwner)

	resp := ts.api.Get("/admin/ai-settings", owner)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	settings := decode[dto.AISettings](t, resp).Data
	assert.Equal(t, "https://default.example.com/hook", settings.WebhookURL)
	assert.True(t, settings.Enabled)

	resp = ts.api.Post("/admin/ai-settings", owner, map[string]any{
		"webhookUrl":   "https://hooks.example.com/enrich",
		"openaiKey":    "sk-1234567890abcdef",
		"customPrompt": "Summarize in one line",
		"enabled":      false,
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	ack := decode[dto.Ack](t, resp)
	assert.True(t, ack.Data.Success)

	resp = ts.api.Get("/admin/ai-settings", owner)
	settings = decode[dto.AISettings](t, resp).Data
	assert.Equal(t, "https://hooks.example.com/enrich", settings.WebhookURL)
	assert.Equal(t, "sk-12345...cdef", settings.OpenAIKey)
	assert.Equal(t, "Summarize in one line", settings.CustomPrompt)
	assert.False(t, settings.Enabled)

	// Echoing the masked key back keeps the stored one.
	resp = ts.api.Post("/admin/ai-settings", owner, map[string]any{"openaiKey": settings.OpenAIKey})
	require.Equal(t, http.StatusOK, resp.Code)

	stored, err := ts.store.GetAISettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sk-1234567890abcdef", stored.OpenAIKey)
}

func TestAISettings_RejectsBadWebhookURL(t *testing.T) {
	ts := setupTestServer(t, serverOptions{})
	owner := ts.createUser(t, "usr-owner", "owner@example.com", domain.RoleOwner)

	resp := ts.api.Post("/admin/ai-settings", owner, map[string]any{"webhookUrl": "ftp://example.com"})
	require.Equal(t, http.StatusBadRequest, resp.Code)

	envelope := decode[any](t, resp)
	assert.Equal(t, "VALIDATION", envelope.Error.Code)
	assert.Contains(t, envelope.Error.Details, "webhookUrl")
}
