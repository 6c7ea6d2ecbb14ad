package service

import (
	"context"

	"github.com/listenupapp/notes-server/internal/auth"
	"github.com/listenupapp/notes-server/internal/domain"
	"github.com/listenupapp/notes-server/internal/store"
)

// TagService lists tags. Tags are global rows; a user sees the ones
// attached to at least one of their notes.
type TagService struct {
	store store.Store
}

// NewTagService creates a new tag service.
func NewTagService(store store.Store) *TagService {
	return &TagService{store: store}
}

// ListTags returns the caller's distinct tags ordered by name.
func (s *TagService) ListTags(ctx context.Context, principal *auth.Principal) ([]*domain.Tag, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}
	return s.store.ListUserTags(ctx, principal.UserID)
}
