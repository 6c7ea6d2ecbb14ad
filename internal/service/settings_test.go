package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/notes-server/internal/domain"
	domainerrors "github.com/listenupapp/notes-server/internal/errors"
	"github.com/listenupapp/notes-server/internal/sse"
)

func boolPtr(b bool) *bool { return &b }

func TestSettings_Defaults(t *testing.T) {
	env := newTestEnv(t, envOptions{defaultURL: "https://n8n.example.com/hook"})
	owner := env.createUser(t, "usr-owner", "owner@example.com", domain.RoleOwner)

	got, err := env.settings.Get(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, "https://n8n.example.com/hook", got.WebhookURL)
	assert.True(t, got.Enabled)
	assert.Empty(t, got.OpenAIKey)
}

func TestSettings_RequiresOwner(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()
	member := env.createUser(t, "usr-member", "member@example.com", domain.RoleMember)

	_, err := env.settings.Get(ctx, member)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrForbidden))

	_, err = env.settings.Update(ctx, member, AISettingsUpdate{Enabled: boolPtr(false)}, "")
	assert.True(t, domainerrors.Is(err, domainerrors.ErrForbidden))

	_, err = env.settings.Get(ctx, nil)
	assert.True(t, domainerrors.Is(err, domainerrors.ErrUnauthorized))
}

func TestSettings_UpdateAndMask(t *testing.T) {
	env := newTestEnv(t, envOptions{defaultURL: "https://default.example.com"})
	ctx := context.Background()
	owner := env.createUser(t, "usr-owner", "owner@example.com", domain.RoleOwner)

	const openai = "sk-1234567890abcdef"
	masked, err := env.settings.Update(ctx, owner, AISettingsUpdate{
		WebhookURL:   strPtr("https://n8n.example.com/hook"),
		OpenAIKey:    strPtr(openai),
		CustomPrompt: strPtr("Summarize in one line."),
	}, "10.0.0.2")
	require.NoError(t, err)
	assert.Equal(t, "sk-12345...cdef", masked.OpenAIKey)

	// Echoing the masked key back, or sending it empty, keeps the stored key.
	_, err = env.settings.Update(ctx, owner, AISettingsUpdate{
		WebhookURL: strPtr(""),
		OpenAIKey:  strPtr(masked.OpenAIKey),
		Enabled:    boolPtr(false),
	}, "")
	require.NoError(t, err)

	effective, err := env.settings.Effective(ctx)
	require.NoError(t, err)
	assert.Equal(t, openai, effective.OpenAIKey)
	assert.Equal(t, "https://n8n.example.com/hook", effective.WebhookURL)
	assert.Equal(t, "Summarize in one line.", effective.CustomPrompt)
	assert.False(t, effective.Enabled)

	stored, err := env.store.GetAISettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, openai, stored.OpenAIKey)

	activity, err := env.activity.List(ctx, owner, 0)
	require.NoError(t, err)
	require.Len(t, activity, 2)
	assert.Equal(t, domain.ActivityUpdateAISettings, activity[0].Action)

	assert.Equal(t, []sse.EventType{sse.EventSettingsUpdated, sse.EventSettingsUpdated}, env.events.types())
}

func TestSettings_RejectsBadWebhookURL(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	owner := env.createUser(t, "usr-owner", "owner@example.com", domain.RoleOwner)

	_, err := env.settings.Update(context.Background(), owner, AISettingsUpdate{WebhookURL: strPtr("not a url")}, "")
	assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))
}

func TestSettings_EffectiveCacheInvalidatedOnWrite(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()
	owner := env.createUser(t, "usr-owner", "owner@example.com", domain.RoleOwner)

	first, err := env.settings.Effective(ctx)
	require.NoError(t, err)
	assert.True(t, first.Enabled)

	// A write behind the service's back is not seen until the cache expires.
	require.NoError(t, env.store.SaveAISettings(ctx, &domain.AISettings{Enabled: false}))
	cached, err := env.settings.Effective(ctx)
	require.NoError(t, err)
	assert.True(t, cached.Enabled)

	// A write through the service is seen immediately.
	_, err = env.settings.Update(ctx, owner, AISettingsUpdate{CustomPrompt: strPtr("p")}, "")
	require.NoError(t, err)
	fresh, err := env.settings.Effective(ctx)
	require.NoError(t, err)
	assert.False(t, fresh.Enabled)
	assert.Equal(t, "p", fresh.CustomPrompt)
}

func TestSettings_ConcurrentUpdatesOfDifferentFields(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()
	owner := env.createUser(t, "usr-owner", "owner@example.com", domain.RoleOwner)

	for i := range 10 {
		prompt := fmt.Sprintf("prompt %d", i)
		hook := fmt.Sprintf("https://hook%d.example.com", i)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := env.settings.Update(ctx, owner, AISettingsUpdate{CustomPrompt: strPtr(prompt)}, "")
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := env.settings.Update(ctx, owner, AISettingsUpdate{WebhookURL: strPtr(hook)}, "")
			assert.NoError(t, err)
		}()
		wg.Wait()

		stored, err := env.store.GetAISettings(ctx)
		require.NoError(t, err)
		assert.Equal(t, prompt, stored.CustomPrompt, "round %d", i)
		assert.Equal(t, hook, stored.WebhookURL, "round %d", i)
	}
}
