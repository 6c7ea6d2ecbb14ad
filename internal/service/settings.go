package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/listenupapp/notes-server/internal/auth"
	"github.com/listenupapp/notes-server/internal/domain"
	domainerrors "github.com/listenupapp/notes-server/internal/errors"
	"github.com/listenupapp/notes-server/internal/sse"
	"github.com/listenupapp/notes-server/internal/store"
	"github.com/listenupapp/notes-server/internal/validation"
)

const settingsCacheKey = "ai_settings"

// AISettingsUpdate holds the fields an admin may change. Nil means unchanged.
type AISettingsUpdate struct {
	WebhookURL   *string `json:"webhookUrl,omitempty"`
	OpenAIKey    *string `json:"openaiKey,omitempty"`
	AnthropicKey *string `json:"anthropicKey,omitempty"`
	CustomPrompt *string `json:"customPrompt,omitempty"`
	Enabled      *bool   `json:"enabled,omitempty"`
}

// SettingsService manages the single AI settings record.
type SettingsService struct {
	store      store.Store
	activity   *ActivityService
	events     EventPublisher
	defaultURL string
	cache      *expirable.LRU[string, domain.AISettings]
	logger     *slog.Logger
}

// NewSettingsService creates a new settings service. defaultURL applies
// until an admin saves a webhook URL; ttl bounds how long Effective may serve
// a cached copy.
func NewSettingsService(store store.Store, activity *ActivityService, events EventPublisher, defaultURL string, ttl time.Duration, logger *slog.Logger) *SettingsService {
	return &SettingsService{
		store:      store,
		activity:   activity,
		events:     events,
		defaultURL: defaultURL,
		cache:      expirable.NewLRU[string, domain.AISettings](1, nil, ttl),
		logger:     logger,
	}
}

// Get returns the settings with keys masked.
func (s *SettingsService) Get(ctx context.Context, principal *auth.Principal) (*domain.AISettings, error) {
	if err := auth.Require(principal, auth.CapManageAISettings); err != nil {
		return nil, err
	}
	current, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return current.Masked(), nil
}

// Update applies an admin change as one read-modify-write. An empty webhook
// URL keeps the current one, and a key is replaced only by a non-empty value
// that is not a masked echo.
func (s *SettingsService) Update(ctx context.Context, principal *auth.Principal, update AISettingsUpdate, clientIP string) (*domain.AISettings, error) {
	if err := auth.Require(principal, auth.CapManageAISettings); err != nil {
		return nil, err
	}

	var webhookURL string
	if update.WebhookURL != nil {
		webhookURL = strings.TrimSpace(*update.WebhookURL)
		if webhookURL != "" && !validation.IsHTTPURL(webhookURL) {
			return nil, domainerrors.ValidationWithDetails("validation failed",
				map[string]string{"webhookUrl": "must be an absolute http or https URL"})
		}
	}

	current, err := s.store.UpdateAISettings(ctx, domain.DefaultAISettings(s.defaultURL), func(current *domain.AISettings) error {
		if webhookURL != "" {
			current.WebhookURL = webhookURL
		}
		current.OpenAIKey = replaceKey(current.OpenAIKey, update.OpenAIKey)
		current.AnthropicKey = replaceKey(current.AnthropicKey, update.AnthropicKey)
		if update.CustomPrompt != nil {
			current.CustomPrompt = *update.CustomPrompt
		}
		if update.Enabled != nil {
			current.Enabled = *update.Enabled
		}
		current.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update ai settings: %w", err)
	}
	s.cache.Remove(settingsCacheKey)

	s.logger.Info("ai settings updated",
		"user_id", principal.UserID,
		"enabled", current.Enabled,
		"webhook_configured", current.WebhookURL != "",
	)
	s.activity.Record(ctx, principal.UserID, domain.ActivityUpdateAISettings, clientIP)
	s.events.Emit(sse.NewSettingsUpdatedEvent(current))

	return current.Masked(), nil
}

// Effective returns the unmasked settings for dispatch, served from a
// short-lived cache that every write invalidates.
func (s *SettingsService) Effective(ctx context.Context) (*domain.AISettings, error) {
	if cached, ok := s.cache.Get(settingsCacheKey); ok {
		return &cached, nil
	}
	current, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Add(settingsCacheKey, *current)
	return current, nil
}

// load reads the stored record, or the defaults before the first save.
func (s *SettingsService) load(ctx context.Context) (*domain.AISettings, error) {
	current, err := s.store.GetAISettings(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return domain.DefaultAISettings(s.defaultURL), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load ai settings: %w", err)
	}
	return current, nil
}

func replaceKey(current string, submitted *string) string {
	if submitted == nil || *submitted == "" || domain.IsMaskedKey(*submitted) {
		return current
	}
	return *submitted
}
