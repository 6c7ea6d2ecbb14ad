package dto

import (
	"time"

	"github.com/listenupapp/notes-server/internal/domain"
)

// AISettings is the admin view of the enrichment settings. Keys are masked.
type AISettings struct {
	WebhookURL   string    `json:"webhookUrl" doc:"Processor webhook URL"`
	OpenAIKey    string    `json:"openaiKey" doc:"Masked OpenAI key"`
	AnthropicKey string    `json:"anthropicKey" doc:"Masked Anthropic key"`
	CustomPrompt string    `json:"customPrompt" doc:"Prompt sent with every enrichment request"`
	Enabled      bool      `json:"enabled" doc:"Whether notes are dispatched for enrichment"`
	UpdatedAt    time.Time `json:"updatedAt" doc:"Last change, zero before the first save"`
}

// FromAISettings converts already-masked settings.
func FromAISettings(s *domain.AISettings) AISettings {
	return AISettings{
		WebhookURL:   s.WebhookURL,
		OpenAIKey:    s.OpenAIKey,
		AnthropicKey: s.AnthropicKey,
		CustomPrompt: s.CustomPrompt,
		Enabled:      s.Enabled,
		UpdatedAt:    s.UpdatedAt,
	}
}

// Ack is the body of write endpoints that only report success.
type Ack struct {
	Success bool   `json:"success" doc:"Always true on success"`
	Message string `json:"message,omitempty" doc:"Human-readable result"`
	NoteID  string `json:"noteId,omitempty" doc:"Affected note"`
}
