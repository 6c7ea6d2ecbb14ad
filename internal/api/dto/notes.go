// Package dto provides request and response types for the notes API.
// These types are used by huma to generate OpenAPI documentation.
package dto

import (
	"time"

	"github.com/listenupapp/notes-server/internal/domain"
)

// Tag is a tag in API responses.
type Tag struct {
	ID        string    `json:"id" doc:"Tag ID"`
	Name      string    `json:"name" doc:"Normalized tag name"`
	CreatedAt time.Time `json:"createdAt" doc:"Creation time"`
}

// NoteTag associates a note with a tag.
type NoteTag struct {
	ID     string `json:"id" doc:"Association ID"`
	NoteID string `json:"noteId" doc:"Note ID"`
	TagID  string `json:"tagId" doc:"Tag ID"`
	Tag    Tag    `json:"tag" doc:"The associated tag"`
}

// Note is a captured note in API responses.
type Note struct {
	ID               string    `json:"id" doc:"Note ID"`
	UserID           string    `json:"userId" doc:"Owner user ID"`
	Title            *string   `json:"title" doc:"Title, supplied or extracted"`
	URL              *string   `json:"url" doc:"Captured URL for url notes"`
	Content          *string   `json:"content" doc:"Captured text for text notes"`
	Summary          *string   `json:"summary" doc:"AI generated summary"`
	ProcessingStatus string    `json:"processingStatus" doc:"pending until the processor reports back"`
	CreatedAt        time.Time `json:"createdAt" doc:"Capture time"`
	UpdatedAt        time.Time `json:"updatedAt" doc:"Last change"`
	NoteTags         []NoteTag `json:"noteTags" doc:"Tags attached to the note"`
}

// NoteStats summarizes a user's notes.
type NoteStats struct {
	TotalNotes int `json:"totalNotes" doc:"Number of notes"`
	ThisMonth  int `json:"thisMonth" doc:"Notes captured since the start of the month (UTC)"`
	TotalTags  int `json:"totalTags" doc:"Distinct tags across the notes"`
}

// Activity is one audit log entry.
type Activity struct {
	ID        string    `json:"id" doc:"Entry ID"`
	Action    string    `json:"action" doc:"Action name, e.g. ADD_NOTE"`
	IPAddress string    `json:"ipAddress,omitempty" doc:"Client IP when known"`
	Timestamp time.Time `json:"timestamp" doc:"When the action happened"`
}

// FromTag converts a domain tag.
func FromTag(t *domain.Tag) Tag {
	return Tag{ID: t.ID, Name: t.Name, CreatedAt: t.CreatedAt}
}

// FromTags converts domain tags, never returning nil.
func FromTags(tags []*domain.Tag) []Tag {
	out := make([]Tag, len(tags))
	for i, t := range tags {
		out[i] = FromTag(t)
	}
	return out
}

// FromNote converts a domain note.
func FromNote(n *domain.Note) Note {
	tags := make([]NoteTag, len(n.NoteTags))
	for i, nt := range n.NoteTags {
		tags[i] = NoteTag{
			ID:     nt.ID,
			NoteID: nt.NoteID,
			TagID:  nt.TagID,
			Tag:    FromTag(&nt.Tag),
		}
	}
	return Note{
		ID:               n.ID,
		UserID:           n.UserID,
		Title:            n.Title,
		URL:              n.URL,
		Content:          n.Content,
		Summary:          n.Summary,
		ProcessingStatus: n.ProcessingStatus,
		CreatedAt:        n.CreatedAt,
		UpdatedAt:        n.UpdatedAt,
		NoteTags:         tags,
	}
}

// FromNotes converts domain notes, never returning nil.
func FromNotes(notes []*domain.Note) []Note {
	out := make([]Note, len(notes))
	for i, n := range notes {
		out[i] = FromNote(n)
	}
	return out
}

// FromStats converts note stats.
func FromStats(s *domain.NoteStats) NoteStats {
	return NoteStats{TotalNotes: s.TotalNotes, ThisMonth: s.ThisMonth, TotalTags: s.TotalTags}
}

// FromActivity converts activity entries, never returning nil.
func FromActivity(entries []*domain.ActivityLog) []Activity {
	out := make([]Activity, len(entries))
	for i, e := range entries {
		out[i] = Activity{
			ID:        e.ID,
			Action:    string(e.Action),
			IPAddress: e.IPAddress,
			Timestamp: e.Timestamp,
		}
	}
	return out
}
