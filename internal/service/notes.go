// Package service implements the note capture, enrichment and admin
// operations on top of the store.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/listenupapp/notes-server/internal/auth"
	"github.com/listenupapp/notes-server/internal/domain"
	domainerrors "github.com/listenupapp/notes-server/internal/errors"
	"github.com/listenupapp/notes-server/internal/id"
	"github.com/listenupapp/notes-server/internal/metrics"
	"github.com/listenupapp/notes-server/internal/sse"
	"github.com/listenupapp/notes-server/internal/store"
	"github.com/listenupapp/notes-server/internal/validation"
)

// RecentNotesLimit is the size of the recent notes listing.
const RecentNotesLimit = 10

// EventPublisher delivers live events to connected clients.
type EventPublisher interface {
	Emit(event sse.Event)
}

// Nudger wakes the dispatch worker after a new outbox entry is committed.
type Nudger interface {
	Nudge()
}

// CreateNoteRequest is a capture submission.
type CreateNoteRequest struct {
	Type    string `json:"type" validate:"required,oneof=url text"`
	URL     string `json:"url" validate:"required_if=Type url,omitempty,httpurl"`
	Content string `json:"content" validate:"required_if=Type text"`
	Title   string `json:"title" validate:"max=500"`
}

// NoteService captures notes and answers note queries.
type NoteService struct {
	store     store.Store
	search    *SearchService
	activity  *ActivityService
	events    EventPublisher
	dispatch  Nudger
	validator *validation.Validator
	logger    *slog.Logger

	now func() time.Time
}

// NewNoteService creates a new note service.
func NewNoteService(
	store store.Store,
	search *SearchService,
	activity *ActivityService,
	events EventPublisher,
	dispatch Nudger,
	validator *validation.Validator,
	logger *slog.Logger,
) *NoteService {
	return &NoteService{
		store:     store,
		search:    search,
		activity:  activity,
		events:    events,
		dispatch:  dispatch,
		validator: validator,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateNote validates and stores a note together with its enrichment outbox
// entry. Everything after the commit is best effort: a failure to index,
// notify or record activity is logged and the note is still returned.
func (s *NoteService) CreateNote(ctx context.Context, principal *auth.Principal, req CreateNoteRequest, clientIP string) (*domain.Note, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}

	req.Type = strings.TrimSpace(req.Type)
	req.URL = strings.TrimSpace(req.URL)
	req.Title = strings.TrimSpace(req.Title)
	if strings.TrimSpace(req.Content) == "" {
		req.Content = ""
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	noteID, err := id.Generate(id.PrefixNote)
	if err != nil {
		return nil, fmt.Errorf("generate note ID: %w", err)
	}
	outboxID, err := id.Generate(id.PrefixOutbox)
	if err != nil {
		return nil, fmt.Errorf("generate outbox ID: %w", err)
	}

	now := s.now().UTC()
	note := &domain.Note{
		ID:               noteID,
		UserID:           principal.UserID,
		Title:            domain.StringPtr(req.Title),
		ProcessingStatus: domain.StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
		NoteTags:         []domain.NoteTag{},
	}
	if domain.NoteType(req.Type) == domain.NoteTypeURL {
		note.URL = domain.StringPtr(req.URL)
	} else {
		note.Content = domain.StringPtr(req.Content)
	}

	owner := &domain.User{ID: principal.UserID, Email: principal.Email}
	payload, err := json.Marshal(domain.NewEnrichmentRequest(note, owner, now))
	if err != nil {
		return nil, fmt.Errorf("encode enrichment request: %w", err)
	}
	entry := &domain.OutboxEntry{
		ID:            outboxID,
		NoteID:        noteID,
		Payload:       payload,
		Status:        domain.OutboxPending,
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.store.CreateNoteWithOutbox(ctx, note, entry); err != nil {
		if domainerrors.Is(err, store.ErrNotFound) {
			return nil, domainerrors.Unauthorized("unknown user")
		}
		return nil, fmt.Errorf("create note: %w", err)
	}

	log := s.logger.With("note_id", note.ID, "user_id", note.UserID)
	log.Info("note captured", "type", req.Type)
	metrics.RecordNoteCreated(req.Type)

	s.activity.Record(ctx, principal.UserID, domain.ActivityAddNote, clientIP)
	if err := s.search.IndexNote(note); err != nil {
		log.Warn("failed to index note", "error", err)
	}
	s.events.Emit(sse.NewNoteCreatedEvent(note))
	s.dispatch.Nudge()

	return note, nil
}

// ListNotes returns the caller's notes newest first, optionally filtered by a
// substring search and an exact tag.
func (s *NoteService) ListNotes(ctx context.Context, principal *auth.Principal, search, tag string) ([]*domain.Note, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}
	return s.store.ListNotes(ctx, principal.UserID, store.NoteFilter{Search: search, Tag: tag})
}

// RecentNotes returns the caller's latest notes.
func (s *NoteService) RecentNotes(ctx context.Context, principal *auth.Principal) ([]*domain.Note, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}
	return s.store.ListNotes(ctx, principal.UserID, store.NoteFilter{Limit: RecentNotesLimit})
}

// Stats counts the caller's notes and tags. The month boundary is UTC.
func (s *NoteService) Stats(ctx context.Context, principal *auth.Principal) (*domain.NoteStats, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}
	return s.store.NoteStats(ctx, principal.UserID, domain.MonthStart(s.now()))
}

// SearchQuery narrows a ranked note search. Tag is an exact tag name;
// Limit and Offset page through the ranking.
type SearchQuery struct {
	Query  string
	Tag    string
	Limit  int
	Offset int
}

// SearchNotes ranks the caller's notes against q.Query.
func (s *NoteService) SearchNotes(ctx context.Context, principal *auth.Principal, q SearchQuery) ([]*domain.Note, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}
	q.Query = strings.TrimSpace(q.Query)
	if q.Query == "" {
		return nil, domainerrors.Validation("query is required")
	}
	return s.search.Search(ctx, principal.UserID, q)
}

func requirePrincipal(p *auth.Principal) error {
	if p == nil || p.UserID == "" {
		return domainerrors.Unauthorized("authentication required")
	}
	return nil
}
