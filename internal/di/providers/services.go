package providers

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/notes-server/internal/config"
	"github.com/listenupapp/notes-server/internal/logger"
	"github.com/listenupapp/notes-server/internal/service"
	"github.com/listenupapp/notes-server/internal/validation"
)

// ProvideValidator provides the request validator.
func ProvideValidator(i do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}

// ProvideActivityService provides the audit log service.
func ProvideActivityService(i do.Injector) (*service.ActivityService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewActivityService(storeHandle.Store, log.Logger), nil
}

// ProvideTagService provides the tag service.
func ProvideTagService(i do.Injector) (*service.TagService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	return service.NewTagService(storeHandle.Store), nil
}

// ProvideSettingsService provides the AI settings service.
func ProvideSettingsService(i do.Injector) (*service.SettingsService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	activity := do.MustInvoke[*service.ActivityService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSettingsService(
		storeHandle.Store,
		activity,
		sseHandle.Manager,
		cfg.Enrichment.DefaultWebhookURL,
		cfg.Enrichment.SettingsCacheTTL,
		log.Logger,
	), nil
}

// ProvideNoteService provides the note ingestion service. New notes nudge
// the dispatch worker.
func ProvideNoteService(i do.Injector) (*service.NoteService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	searchService := do.MustInvoke[*service.SearchService](i)
	activity := do.MustInvoke[*service.ActivityService](i)
	dispatch := do.MustInvoke[*DispatchWorkerHandle](i)
	validator := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewNoteService(
		storeHandle.Store,
		searchService,
		activity,
		sseHandle.Manager,
		dispatch.Worker,
		validator,
		log.Logger,
	), nil
}

// ProvideEnrichmentService provides the callback reconciliation service.
func ProvideEnrichmentService(i do.Injector) (*service.EnrichmentService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	searchService := do.MustInvoke[*service.SearchService](i)
	activity := do.MustInvoke[*service.ActivityService](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.Enrichment.WebhookSecret == "" {
		log.Warn("WEBHOOK_SECRET not set, callbacks are accepted without authentication")
	}

	return service.NewEnrichmentService(
		storeHandle.Store,
		searchService,
		activity,
		sseHandle.Manager,
		cfg.Enrichment.WebhookSecret,
		log.Logger,
	), nil
}
