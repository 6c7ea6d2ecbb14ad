package domain

import (
	"strings"
	"time"
)

// maskMarker separates the visible ends of a masked key. A submitted value
// containing it is an echo of a masked read and never replaces a stored key.
const maskMarker = "..."

// AISettings is the single administrative record controlling enrichment.
type AISettings struct {
	WebhookURL   string    `json:"webhookUrl"`
	OpenAIKey    string    `json:"openaiKey"`
	AnthropicKey string    `json:"anthropicKey"`
	CustomPrompt string    `json:"customPrompt"`
	Enabled      bool      `json:"enabled"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// DefaultAISettings returns the settings used before any admin write.
func DefaultAISettings(defaultWebhookURL string) *AISettings {
	return &AISettings{
		WebhookURL: defaultWebhookURL,
		Enabled:    true,
	}
}

// Masked returns a copy safe to return to clients.
func (s *AISettings) Masked() *AISettings {
	masked := *s
	masked.OpenAIKey = MaskKey(s.OpenAIKey)
	masked.AnthropicKey = MaskKey(s.AnthropicKey)
	return &masked
}

// DispatchTarget returns the webhook URL to deliver to, falling back to
// defaultURL, and false when dispatch should be skipped.
func (s *AISettings) DispatchTarget(defaultURL string) (string, bool) {
	if !s.Enabled {
		return "", false
	}
	target := strings.TrimSpace(s.WebhookURL)
	if target == "" {
		target = strings.TrimSpace(defaultURL)
	}
	return target, target != ""
}

// MaskKey keeps the first 8 and last 4 characters of a key.
// Keys too short to mask meaningfully are fully hidden.
func MaskKey(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 12 {
		return maskMarker
	}
	return key[:8] + maskMarker + key[len(key)-4:]
}

// IsMaskedKey reports whether value looks like a masked key echoed back.
func IsMaskedKey(value string) bool {
	return strings.Contains(value, maskMarker)
}
