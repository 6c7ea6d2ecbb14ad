package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/listenupapp/notes-server/internal/domain"
	"github.com/listenupapp/notes-server/internal/store"
)

// GetAISettings reads the single settings row.
// Returns store.ErrSettingsNotFound before the first save.
func (s *Store) GetAISettings(ctx context.Context) (*domain.AISettings, error) {
	return getAISettings(ctx, s.db)
}

func getAISettings(ctx context.Context, q querier) (*domain.AISettings, error) {
	var (
		settings  domain.AISettings
		enabled   int
		updatedAt string
	)
	err := q.QueryRowContext(ctx, `
		SELECT webhook_url, openai_key, anthropic_key, custom_prompt, enabled, updated_at
		FROM ai_settings WHERE id = 1`,
	).Scan(&settings.WebhookURL, &settings.OpenAIKey, &settings.AnthropicKey,
		&settings.CustomPrompt, &enabled, &updatedAt)
	if isNoRows(err) {
		return nil, store.ErrSettingsNotFound
	}
	if err != nil {
		return nil, err
	}

	settings.Enabled = enabled != 0
	if settings.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &settings, nil
}

// SaveAISettings writes the single settings row in one statement.
func (s *Store) SaveAISettings(ctx context.Context, settings *domain.AISettings) error {
	return saveAISettings(ctx, s.db, settings)
}

// UpdateAISettings reads the settings row, hands it to apply and writes the
// result back in one transaction, so concurrent updates cannot drop each
// other's fields. defaults stands in for the row before the first save. An
// error from apply aborts without writing.
func (s *Store) UpdateAISettings(ctx context.Context, defaults *domain.AISettings, apply func(*domain.AISettings) error) (*domain.AISettings, error) {
	var updated *domain.AISettings

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getAISettings(ctx, tx)
		if isNotFound(err) {
			seed := *defaults
			current, err = &seed, nil
		}
		if err != nil {
			return fmt.Errorf("load ai settings: %w", err)
		}

		if err := apply(current); err != nil {
			return err
		}
		if err := saveAISettings(ctx, tx, current); err != nil {
			return err
		}
		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func saveAISettings(ctx context.Context, q querier, settings *domain.AISettings) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO ai_settings (id, webhook_url, openai_key, anthropic_key, custom_prompt, enabled, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			webhook_url = excluded.webhook_url,
			openai_key = excluded.openai_key,
			anthropic_key = excluded.anthropic_key,
			custom_prompt = excluded.custom_prompt,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at`,
		settings.WebhookURL,
		settings.OpenAIKey,
		settings.AnthropicKey,
		settings.CustomPrompt,
		boolToInt(settings.Enabled),
		formatTime(settings.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save ai settings: %w", err)
	}
	return nil
}
