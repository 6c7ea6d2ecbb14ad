package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/notes-server/internal/api/dto"
	"github.com/listenupapp/notes-server/internal/auth"
	domainerrors "github.com/listenupapp/notes-server/internal/errors"
	"github.com/listenupapp/notes-server/internal/service"
)

func (s *Server) registerNoteRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "createNote",
		Method:        http.MethodPost,
		Path:          "/notes",
		Summary:       "Capture note",
		Description:   "Stores a URL or text note and queues it for enrichment",
		Tags:          []string{"Notes"},
		DefaultStatus: http.StatusCreated,
		Security:      []map[string][]string{{"bearer": {}}},
	}, s.handleCreateNote)

	huma.Register(s.api, huma.Operation{
		OperationID: "listNotes",
		Method:      http.MethodGet,
		Path:        "/notes",
		Summary:     "List notes",
		Description: "Returns the caller's notes newest first, optionally filtered",
		Tags:        []string{"Notes"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListNotes)

	huma.Register(s.api, huma.Operation{
		OperationID: "recentNotes",
		Method:      http.MethodGet,
		Path:        "/notes/recent",
		Summary:     "Recent notes",
		Description: "Returns the caller's latest notes",
		Tags:        []string{"Notes"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleRecentNotes)

	huma.Register(s.api, huma.Operation{
		OperationID: "noteStats",
		Method:      http.MethodGet,
		Path:        "/notes/stats",
		Summary:     "Note stats",
		Description: "Counts the caller's notes, notes this month and distinct tags",
		Tags:        []string{"Notes"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleNoteStats)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchNotes",
		Method:      http.MethodGet,
		Path:        "/notes/search",
		Summary:     "Search notes",
		Description: "Full-text search over the caller's notes",
		Tags:        []string{"Notes"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleSearchNotes)
}

// === DTOs ===

// CreateNoteRequest is the request body for capturing a note.
type CreateNoteRequest struct {
	Type    string `json:"type,omitempty" doc:"url or text"`
	URL     string `json:"url,omitempty" doc:"Absolute http(s) URL, required for url notes"`
	Content string `json:"content,omitempty" doc:"Note text, required for text notes"`
	Title   string `json:"title,omitempty" doc:"Optional title"`
}

// CreateNoteInput wraps the create note request for Huma.
type CreateNoteInput struct {
	Authorization string `header:"Authorization"`
	Body          CreateNoteRequest
}

// NoteOutput wraps a note for Huma.
type NoteOutput struct {
	Body dto.Note
}

// ListNotesInput contains parameters for listing notes.
type ListNotesInput struct {
	Authorization string `header:"Authorization"`
	Search        string `query:"search" doc:"Substring matched against title, content and summary"`
	Tag           string `query:"tag" doc:"Exact tag name"`
}

// RecentNotesInput contains parameters for listing recent notes.
type RecentNotesInput struct {
	Authorization string `header:"Authorization"`
}

// NotesOutput wraps a list of notes for Huma.
type NotesOutput struct {
	Body []dto.Note
}

// NoteStatsInput contains parameters for note stats.
type NoteStatsInput struct {
	Authorization string `header:"Authorization"`
}

// NoteStatsOutput wraps note stats for Huma.
type NoteStatsOutput struct {
	Body dto.NoteStats
}

// SearchNotesInput contains parameters for searching notes.
type SearchNotesInput struct {
	Authorization string `header:"Authorization"`
	Query         string `query:"q" doc:"Search query"`
	Tag           string `query:"tag" doc:"Only notes carrying this tag"`
	Limit         int    `query:"limit" default:"20" minimum:"1" maximum:"100" doc:"Maximum results"`
	Offset        int    `query:"offset" default:"0" minimum:"0" doc:"Results to skip"`
}

// === Handlers ===

func (s *Server) handleCreateNote(ctx context.Context, input *CreateNoteInput) (*NoteOutput, error) {
	principal := auth.PrincipalFrom(ctx)
	if principal == nil {
		return nil, domainerrors.Unauthorized("authentication required")
	}
	if !s.submitLimiter.Allow(principal.UserID) {
		s.logger.Warn("note submission rate limit exceeded", "user_id", principal.UserID)
		return nil, domainerrors.RateLimited("too many notes, please try again later")
	}

	note, err := s.services.Notes.CreateNote(ctx, principal, service.CreateNoteRequest{
		Type:    input.Body.Type,
		URL:     input.Body.URL,
		Content: input.Body.Content,
		Title:   input.Body.Title,
	}, clientIP(ctx))
	if err != nil {
		return nil, err
	}
	return &NoteOutput{Body: dto.FromNote(note)}, nil
}

func (s *Server) handleListNotes(ctx context.Context, input *ListNotesInput) (*NotesOutput, error) {
	notes, err := s.services.Notes.ListNotes(ctx, auth.PrincipalFrom(ctx), input.Search, input.Tag)
	if err != nil {
		return nil, err
	}
	return &NotesOutput{Body: dto.FromNotes(notes)}, nil
}

func (s *Server) handleRecentNotes(ctx context.Context, _ *RecentNotesInput) (*NotesOutput, error) {
	notes, err := s.services.Notes.RecentNotes(ctx, auth.PrincipalFrom(ctx))
	if err != nil {
		return nil, err
	}
	return &NotesOutput{Body: dto.FromNotes(notes)}, nil
}

func (s *Server) handleNoteStats(ctx context.Context, _ *NoteStatsInput) (*NoteStatsOutput, error) {
	stats, err := s.services.Notes.Stats(ctx, auth.PrincipalFrom(ctx))
	if err != nil {
		return nil, err
	}
	return &NoteStatsOutput{Body: dto.FromStats(stats)}, nil
}

func (s *Server) handleSearchNotes(ctx context.Context, input *SearchNotesInput) (*NotesOutput, error) {
	notes, err := s.services.Notes.SearchNotes(ctx, auth.PrincipalFrom(ctx), service.SearchQuery{
		Query:  input.Query,
		Tag:    input.Tag,
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return nil, err
	}
	return &NotesOutput{Body: dto.FromNotes(notes)}, nil
}
