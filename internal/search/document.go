// Package search provides full-text search over notes using Bleve.
// Every query is scoped to a single owner.
package search

import (
	"strings"

	"github.com/listenupapp/notes-server/internal/domain"
)

// NoteDocument is the indexed form of a note.
type NoteDocument struct {
	ID        string   `json:"id"`
	UserID    string   `json:"user_id"`
	Type      string   `json:"type"`
	Title     string   `json:"title,omitempty"`
	URL       string   `json:"url,omitempty"`
	Content   string   `json:"content,omitempty"`
	Summary   string   `json:"summary,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	Status    string   `json:"status"`
	CreatedAt int64    `json:"created_at"` // Unix millis
}

// NoteToDocument converts a note with its tags to a search document.
func NoteToDocument(n *domain.Note) *NoteDocument {
	return &NoteDocument{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      string(n.Type()),
		Title:     deref(n.Title),
		URL:       deref(n.URL),
		Content:   deref(n.Content),
		Summary:   deref(n.Summary),
		Tags:      n.TagNames(),
		Status:    n.ProcessingStatus,
		CreatedAt: n.CreatedAt.UnixMilli(),
	}
}

// ToMap converts the document to a map whose keys match the index mapping.
func (d *NoteDocument) ToMap() map[string]any {
	m := map[string]any{
		"id":         d.ID,
		"user_id":    d.UserID,
		"type":       d.Type,
		"status":     d.Status,
		"created_at": d.CreatedAt,
	}
	if d.Title != "" {
		m["title"] = d.Title
	}
	if d.URL != "" {
		m["url"] = d.URL
	}
	if d.Content != "" {
		m["content"] = d.Content
	}
	if d.Summary != "" {
		m["summary"] = d.Summary
	}
	if len(d.Tags) > 0 {
		m["tags"] = d.Tags
	}
	return m
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
