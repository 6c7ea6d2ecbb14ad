package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/listenupapp/notes-server/internal/domain"
	"github.com/listenupapp/notes-server/internal/search"
	"github.com/listenupapp/notes-server/internal/store"
)

// SearchService bridges the note index with the data store. A nil index
// means full-text search is disabled; every method then becomes a no-op and
// queries fall back to substring matching in the store.
type SearchService struct {
	index  *search.NoteIndex
	store  store.Store
	logger *slog.Logger
}

// NewSearchService creates a new search service. index may be nil.
func NewSearchService(index *search.NoteIndex, store store.Store, logger *slog.Logger) *SearchService {
	return &SearchService{
		index:  index,
		store:  store,
		logger: logger,
	}
}

// Enabled reports whether a full-text index is attached.
func (s *SearchService) Enabled() bool {
	return s != nil && s.index != nil
}

// IndexNote adds or replaces a note in the index.
func (s *SearchService) IndexNote(note *domain.Note) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.index.IndexNote(search.NoteToDocument(note)); err != nil {
		return fmt.Errorf("index note: %w", err)
	}
	s.logger.Debug("indexed note", "note_id", note.ID)
	return nil
}

// Search runs a ranked query over one user's notes and loads them from the
// store in rank order. Hits whose note no longer exists are dropped. Without
// an index, or when the index query fails, it falls back to substring
// matching in the store.
func (s *SearchService) Search(ctx context.Context, userID string, q SearchQuery) ([]*domain.Note, error) {
	if !s.Enabled() {
		return s.fallback(ctx, userID, q)
	}

	result, err := s.index.Search(ctx, search.Params{
		UserID: userID,
		Query:  q.Query,
		Tag:    q.Tag,
		Limit:  q.Limit,
		Offset: q.Offset,
	})
	if err != nil {
		s.logger.Warn("full-text search failed, using database search",
			"user_id", userID, "error", err)
		return s.fallback(ctx, userID, q)
	}
	return s.store.GetNotesByIDs(ctx, userID, result.IDs())
}

func (s *SearchService) fallback(ctx context.Context, userID string, q SearchQuery) ([]*domain.Note, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = search.DefaultLimit
	}
	notes, err := s.store.ListNotes(ctx, userID, store.NoteFilter{
		Search: q.Query,
		Tag:    q.Tag,
		Limit:  limit,
		Offset: q.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("search notes: %w", err)
	}
	return notes, nil
}

// Reindex rebuilds the index from every user's notes. Used at startup when
// the index was freshly created.
func (s *SearchService) Reindex(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	total := 0
	for _, u := range users {
		notes, err := s.store.ListNotes(ctx, u.ID, store.NoteFilter{})
		if err != nil {
			return fmt.Errorf("list notes for %s: %w", u.ID, err)
		}
		docs := make([]*search.NoteDocument, len(notes))
		for i, n := range notes {
			docs[i] = search.NoteToDocument(n)
		}
		if err := s.index.IndexNotes(docs); err != nil {
			return fmt.Errorf("index notes for %s: %w", u.ID, err)
		}
		total += len(docs)
	}

	s.logger.Info("search index rebuilt", "notes", total)
	return nil
}

// DocumentCount returns the number of indexed notes, or 0 when disabled.
func (s *SearchService) DocumentCount() (uint64, error) {
	if !s.Enabled() {
		return 0, nil
	}
	return s.index.DocumentCount()
}
