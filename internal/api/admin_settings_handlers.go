package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/notes-server/internal/api/dto"
	"github.com/listenupapp/notes-server/internal/auth"
	"github.com/listenupapp/notes-server/internal/service"
)

func (s *Server) registerAdminSettingsRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getAISettings",
		Method:      http.MethodGet,
		Path:        "/admin/ai-settings",
		Summary:     "Get AI settings",
		Description: "Returns the enrichment settings with API keys masked (owner only)",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetAISettings)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateAISettings",
		Method:      http.MethodPost,
		Path:        "/admin/ai-settings",
		Summary:     "Update AI settings",
		Description: "Updates the enrichment settings. Masked keys sent back unchanged are kept (owner only)",
		Tags:        []string{"Admin"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateAISettings)
}

// GetAISettingsInput contains parameters for reading settings.
type GetAISettingsInput struct {
	Authorization string `header:"Authorization"`
}

// AISettingsOutput wraps the settings for Huma.
type AISettingsOutput struct {
	Body dto.AISettings
}

// UpdateAISettingsRequest is the request body for updating settings.
// Omitted fields are left unchanged.
type UpdateAISettingsRequest struct {
	WebhookURL   *string `json:"webhookUrl,omitempty" nullable:"true" doc:"Processor webhook URL; empty keeps the current one"`
	OpenAIKey    *string `json:"openaiKey,omitempty" nullable:"true" doc:"OpenAI key; a masked value keeps the current key"`
	AnthropicKey *string `json:"anthropicKey,omitempty" nullable:"true" doc:"Anthropic key; a masked value keeps the current key"`
	CustomPrompt *string `json:"customPrompt,omitempty" nullable:"true" doc:"Prompt sent with every enrichment request"`
	Enabled      *bool   `json:"enabled,omitempty" nullable:"true" doc:"Whether notes are dispatched"`
}

// UpdateAISettingsInput wraps the update request for Huma.
type UpdateAISettingsInput struct {
	Authorization string `header:"Authorization"`
	Body          UpdateAISettingsRequest
}

func (s *Server) handleGetAISettings(ctx context.Context, _ *GetAISettingsInput) (*AISettingsOutput, error) {
	settings, err := s.services.Settings.Get(ctx, auth.PrincipalFrom(ctx))
	if err != nil {
		return nil, err
	}
	return &AISettingsOutput{Body: dto.FromAISettings(settings)}, nil
}

func (s *Server) handleUpdateAISettings(ctx context.Context, input *UpdateAISettingsInput) (*AckOutput, error) {
	_, err := s.services.Settings.Update(ctx, auth.PrincipalFrom(ctx), service.AISettingsUpdate{
		WebhookURL:   input.Body.WebhookURL,
		OpenAIKey:    input.Body.OpenAIKey,
		AnthropicKey: input.Body.AnthropicKey,
		CustomPrompt: input.Body.CustomPrompt,
		Enabled:      input.Body.Enabled,
	}, clientIP(ctx))
	if err != nil {
		return nil, err
	}
	return &AckOutput{Body: dto.Ack{Success: true}}, nil
}
