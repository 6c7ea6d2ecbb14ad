package api

import "github.com/listenupapp/notes-server/internal/service"

// Services groups the business logic services used by the API server.
type Services struct {
	Notes      *service.NoteService
	Enrichment *service.EnrichmentService
	Settings   *service.SettingsService
	Tags       *service.TagService
	Activity   *service.ActivityService
	Search     *service.SearchService
}
