package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "", MaskKey(""))
	assert.Equal(t, "...", MaskKey("short-key"))
	assert.Equal(t, "sk-proj-...wxyz", MaskKey("sk-proj-abcdefghijklmnopqrstuvwxyz"))
}

func TestAISettings_Masked(t *testing.T) {
	s := &AISettings{
		WebhookURL:   "https://hooks.example.com/n8n",
		OpenAIKey:    "sk-proj-abcdefghijklmnopqrstuvwxyz",
		AnthropicKey: "sk-ant-0123456789abcdef",
		Enabled:      true,
	}

	masked := s.Masked()

	assert.Equal(t, "sk-proj-...wxyz", masked.OpenAIKey)
	assert.Equal(t, "sk-ant-0...cdef", masked.AnthropicKey)
	assert.True(t, IsMaskedKey(masked.OpenAIKey))
	assert.Equal(t, "sk-proj-abcdefghijklmnopqrstuvwxyz", s.OpenAIKey, "original must be untouched")
}

func TestAISettings_DispatchTarget(t *testing.T) {
	tests := []struct {
		name       string
		settings   AISettings
		defaultURL string
		wantURL    string
		wantOK     bool
	}{
		{"admin url wins", AISettings{WebhookURL: "https://admin.test/hook", Enabled: true}, "https://env.test/hook", "https://admin.test/hook", true},
		{"env fallback", AISettings{Enabled: true}, "https://env.test/hook", "https://env.test/hook", true},
		{"unconfigured", AISettings{Enabled: true}, "", "", false},
		{"disabled", AISettings{WebhookURL: "https://admin.test/hook"}, "https://env.test/hook", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url, ok := tt.settings.DispatchTarget(tt.defaultURL)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantURL, url)
		})
	}
}

func TestDefaultAISettings(t *testing.T) {
	s := DefaultAISettings("https://env.test/hook")
	assert.True(t, s.Enabled)
	assert.Equal(t, "https://env.test/hook", s.WebhookURL)
}
