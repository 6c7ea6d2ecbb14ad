// Package store defines the persistence interface for the notes server.
package store

import (
	"context"
	"time"

	"github.com/listenupapp/notes-server/internal/domain"
)

// Store defines all persistence operations.
type Store interface {
	// Lifecycle
	Close() error
	Ping(ctx context.Context) error

	// Users
	CreateUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]*domain.User, error)

	// Notes
	CreateNoteWithOutbox(ctx context.Context, note *domain.Note, entry *domain.OutboxEntry) error
	GetNote(ctx context.Context, id string) (*domain.Note, error)
	ListNotes(ctx context.Context, userID string, filter NoteFilter) ([]*domain.Note, error)
	GetNotesByIDs(ctx context.Context, userID string, ids []string) ([]*domain.Note, error)
	NoteStats(ctx context.Context, userID string, monthStart time.Time) (*domain.NoteStats, error)
	ApplyEnrichment(ctx context.Context, update EnrichmentUpdate) (*domain.Note, error)

	// Tags
	UpsertTag(ctx context.Context, name string) (*domain.Tag, error)
	AttachTag(ctx context.Context, noteID, tagID string) error
	GetTagByName(ctx context.Context, name string) (*domain.Tag, error)
	ListUserTags(ctx context.Context, userID string) ([]*domain.Tag, error)

	// Enrichment outbox
	ClaimOutbox(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*domain.OutboxEntry, error)
	MarkOutboxDelivered(ctx context.Context, id string, at time.Time) error
	MarkOutboxSkipped(ctx context.Context, id, reason string, at time.Time) error
	RescheduleOutbox(ctx context.Context, id string, next time.Time, lastErr string) error
	MarkOutboxFailed(ctx context.Context, id, lastErr string, at time.Time) error
	PruneOutbox(ctx context.Context, before time.Time) (int, error)
	CountOutboxByStatus(ctx context.Context) (map[domain.OutboxStatus]int, error)

	// AI settings
	GetAISettings(ctx context.Context) (*domain.AISettings, error)
	SaveAISettings(ctx context.Context, settings *domain.AISettings) error
	UpdateAISettings(ctx context.Context, defaults *domain.AISettings, apply func(*domain.AISettings) error) (*domain.AISettings, error)

	// Activity
	RecordActivity(ctx context.Context, entry *domain.ActivityLog) error
	ListActivity(ctx context.Context, userID string, limit int) ([]*domain.ActivityLog, error)
}

// NoteFilter narrows a note listing. Zero values mean "no filter".
type NoteFilter struct {
	// Search is a case-insensitive substring matched against title, content and summary.
	Search string
	// Tag is an exact normalized tag name.
	Tag string
	// Limit caps the number of notes returned; 0 returns all.
	Limit int
	// Offset skips that many notes of the ordered result.
	Offset int
}

// TagMode selects how callback tags combine with a note's existing tags.
type TagMode int

const (
	// TagsMerge adds missing associations and keeps existing ones.
	TagsMerge TagMode = iota
	// TagsReplace removes every association before adding the supplied set.
	TagsReplace
)

// TitleMode selects when a callback title is written.
type TitleMode int

const (
	// TitleIfEmpty writes the title only when the note has none.
	TitleIfEmpty TitleMode = iota
	// TitleOverwrite always writes a supplied title.
	TitleOverwrite
)

// EnrichmentUpdate is one reconciliation applied atomically to a note.
type EnrichmentUpdate struct {
	NoteID           string
	ProcessingStatus string
	Summary          *string
	Title            *string
	TitleMode        TitleMode
	// Tags holds normalized names; nil leaves associations untouched.
	Tags      []string
	TagMode   TagMode
	UpdatedAt time.Time
}
