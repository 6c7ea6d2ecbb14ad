package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/listenupapp/notes-server/internal/config"
	"github.com/listenupapp/notes-server/internal/logger"
	"github.com/listenupapp/notes-server/internal/search"
	"github.com/listenupapp/notes-server/internal/service"
)

// SearchIndexHandle wraps the search index with shutdown capability.
// NoteIndex is nil when search is disabled.
type SearchIndexHandle struct {
	*search.NoteIndex
	// Created reports that the index was built empty on this start.
	Created bool
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	if h.NoteIndex == nil {
		return nil
	}
	return h.Close()
}

// ProvideSearchIndex provides the Bleve note index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.Search.Enabled {
		log.Info("Search index disabled, using database search")
		return &SearchIndexHandle{}, nil
	}

	index, created, err := search.NewNoteIndex(search.Options{
		Path:   cfg.Search.Path,
		Logger: log.Logger,
	})
	if err != nil {
		return nil, err
	}

	docCount, _ := index.DocumentCount()
	log.Info("Search index initialized", "path", cfg.Search.Path, "documents", docCount, "created", created)

	return &SearchIndexHandle{NoteIndex: index, Created: created}, nil
}

// ProvideSearchService provides the search service.
func ProvideSearchService(i do.Injector) (*service.SearchService, error) {
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSearchService(indexHandle.NoteIndex, storeHandle.Store, log.Logger), nil
}

// TriggerSearchReindexIfNeeded rebuilds the index from the database when it
// was just created or is empty.
func TriggerSearchReindexIfNeeded(i do.Injector) {
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	searchService := do.MustInvoke[*service.SearchService](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !searchService.Enabled() {
		return
	}
	docCount, _ := searchService.DocumentCount()
	if !indexHandle.Created && docCount > 0 {
		return
	}

	go func() {
		if err := searchService.Reindex(context.Background()); err != nil {
			log.Error("Initial search reindex failed", "error", err)
			return
		}
		count, _ := searchService.DocumentCount()
		log.Info("Initial search reindex completed", "documents", count)
	}()
}
