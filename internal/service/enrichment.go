package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/listenupapp/notes-server/internal/domain"
	domainerrors "github.com/listenupapp/notes-server/internal/errors"
	"github.com/listenupapp/notes-server/internal/metrics"
	"github.com/listenupapp/notes-server/internal/sanitize"
	"github.com/listenupapp/notes-server/internal/sse"
	"github.com/listenupapp/notes-server/internal/store"
)

// WorkflowCallback is the body of the workflow engine's completion callback.
// Tags replace the note's associations, the title overwrites.
type WorkflowCallback struct {
	NoteID           string   `json:"noteId"`
	Summary          *string  `json:"summary,omitempty"`
	ExtractedTitle   *string  `json:"extractedTitle,omitempty"`
	TagsArray        []string `json:"tagsArray,omitempty"`
	ProcessingStatus string   `json:"processingStatus,omitempty"`
	// Format is "html" when text fields carry markup; otherwise they are
	// stored as sent.
	Format string `json:"format,omitempty"`
}

// ProcessorCallback is the body of the AI processor's completion callback.
// Tags are merged, the title only fills an empty one.
type ProcessorCallback struct {
	NoteID           string   `json:"noteId"`
	UserEmail        string   `json:"userEmail"`
	Summary          *string  `json:"summary,omitempty"`
	Title            *string  `json:"title,omitempty"`
	ExtractedTags    []string `json:"extractedTags,omitempty"`
	ProcessingStatus string   `json:"processingStatus,omitempty"`
	Format           string   `json:"format,omitempty"`
}

// EnrichmentService reconciles processor callbacks onto notes.
type EnrichmentService struct {
	store     store.Store
	search    *SearchService
	activity  *ActivityService
	events    EventPublisher
	sanitizer *sanitize.Sanitizer
	secret    string
	logger    *slog.Logger

	now func() time.Time
}

// NewEnrichmentService creates a new enrichment service. An empty secret
// accepts unauthenticated callbacks.
func NewEnrichmentService(
	store store.Store,
	search *SearchService,
	activity *ActivityService,
	events EventPublisher,
	secret string,
	logger *slog.Logger,
) *EnrichmentService {
	return &EnrichmentService{
		store:     store,
		search:    search,
		activity:  activity,
		events:    events,
		sanitizer: sanitize.New(),
		secret:    secret,
		logger:    logger,
		now:       time.Now,
	}
}

// Authorize checks an Authorization header against the configured secret.
func (s *EnrichmentService) Authorize(header string) error {
	if s.secret == "" {
		return nil
	}
	want := "Bearer " + s.secret
	if subtle.ConstantTimeCompare([]byte(header), []byte(want)) != 1 {
		return domainerrors.Unauthorized("invalid webhook secret")
	}
	return nil
}

// ReplaceFromWorkflow applies a workflow callback: summary and title overwrite
// when non-empty, and a supplied tag list replaces every existing association.
func (s *EnrichmentService) ReplaceFromWorkflow(ctx context.Context, authHeader string, cb WorkflowCallback) (*domain.Note, error) {
	const variant = metrics.VariantWorkflow

	if err := s.Authorize(authHeader); err != nil {
		metrics.RecordReconcile(variant, metrics.ResultUnauthorized)
		return nil, err
	}
	noteID := strings.TrimSpace(cb.NoteID)
	if noteID == "" {
		metrics.RecordReconcile(variant, metrics.ResultRejected)
		return nil, domainerrors.Validation("missing noteId")
	}

	format := sanitize.ParseFormat(cb.Format)
	update := store.EnrichmentUpdate{
		NoteID:           noteID,
		ProcessingStatus: processingStatus(cb.ProcessingStatus),
		Summary:          s.nonEmptyText(cb.Summary, format),
		Title:            s.nonEmptyLine(cb.ExtractedTitle, format),
		TitleMode:        store.TitleOverwrite,
		Tags:             s.tagNames(cb.TagsArray, format),
		TagMode:          store.TagsReplace,
		UpdatedAt:        s.now().UTC(),
	}
	return s.apply(ctx, variant, update)
}

// MergeFromProcessor applies a processor callback: the summary overwrites when
// non-empty, the title is set only when the note has none, and tags are added
// alongside existing ones. userEmail must belong to the note's owner.
func (s *EnrichmentService) MergeFromProcessor(ctx context.Context, authHeader string, cb ProcessorCallback) (*domain.Note, error) {
	const variant = metrics.VariantProcessor

	if err := s.Authorize(authHeader); err != nil {
		metrics.RecordReconcile(variant, metrics.ResultUnauthorized)
		return nil, err
	}
	noteID := strings.TrimSpace(cb.NoteID)
	email := domain.NormalizeEmail(cb.UserEmail)
	if noteID == "" || email == "" {
		metrics.RecordReconcile(variant, metrics.ResultRejected)
		return nil, domainerrors.Validation("missing required fields")
	}

	note, err := s.store.GetNote(ctx, noteID)
	if err != nil {
		return nil, s.lookupError(variant, err)
	}
	owner, err := s.store.GetUser(ctx, note.UserID)
	if err != nil {
		return nil, s.lookupError(variant, err)
	}
	if domain.NormalizeEmail(owner.Email) != email {
		// Indistinguishable from an unknown note to the caller.
		metrics.RecordReconcile(variant, metrics.ResultNotFound)
		return nil, domainerrors.NotFound("note not found")
	}

	format := sanitize.ParseFormat(cb.Format)
	update := store.EnrichmentUpdate{
		NoteID:           noteID,
		ProcessingStatus: processingStatus(cb.ProcessingStatus),
		Summary:          s.nonEmptyText(cb.Summary, format),
		Title:            s.nonEmptyLine(cb.Title, format),
		TitleMode:        store.TitleIfEmpty,
		Tags:             s.tagNames(cb.ExtractedTags, format),
		TagMode:          store.TagsMerge,
		UpdatedAt:        s.now().UTC(),
	}
	return s.apply(ctx, variant, update)
}

func (s *EnrichmentService) apply(ctx context.Context, variant string, update store.EnrichmentUpdate) (*domain.Note, error) {
	note, err := s.store.ApplyEnrichment(ctx, update)
	if err != nil {
		return nil, s.lookupError(variant, err)
	}

	log := s.logger.With("note_id", note.ID, "user_id", note.UserID, "variant", variant)
	log.Info("note enriched",
		"status", note.ProcessingStatus,
		"tags", len(note.NoteTags),
	)
	metrics.RecordReconcile(variant, metrics.ResultApplied)

	s.activity.Record(ctx, note.UserID, domain.ActivityNoteEnriched, "")
	if err := s.search.IndexNote(note); err != nil {
		log.Warn("failed to reindex note", "error", err)
	}
	s.events.Emit(sse.NewNoteEnrichedEvent(note))
	return note, nil
}

func (s *EnrichmentService) lookupError(variant string, err error) error {
	if domainerrors.Is(err, store.ErrNotFound) {
		metrics.RecordReconcile(variant, metrics.ResultNotFound)
		return domainerrors.NotFound("note not found")
	}
	metrics.RecordReconcile(variant, metrics.ResultError)
	return fmt.Errorf("reconcile note: %w", err)
}

func (s *EnrichmentService) nonEmptyText(raw *string, format sanitize.Format) *string {
	if raw == nil {
		return nil
	}
	return domain.StringPtr(s.sanitizer.Text(*raw, format))
}

func (s *EnrichmentService) nonEmptyLine(raw *string, format sanitize.Format) *string {
	if raw == nil {
		return nil
	}
	return domain.StringPtr(s.sanitizer.Line(*raw, format))
}

// tagNames keeps nil distinct from empty: nil leaves associations alone,
// an empty list clears them under replace.
func (s *EnrichmentService) tagNames(raw []string, format sanitize.Format) []string {
	if raw == nil {
		return nil
	}
	return domain.NormalizeTagNames(s.sanitizer.Lines(raw, format))
}

func processingStatus(raw string) string {
	if status := strings.TrimSpace(raw); status != "" {
		return status
	}
	return domain.StatusCompleted
}
