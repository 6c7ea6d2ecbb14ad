package domain

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NoteType identifies how a note was captured.
type NoteType string

const (
	NoteTypeURL  NoteType = "url"
	NoteTypeText NoteType = "text"
)

// Valid reports whether t is a known capture type.
func (t NoteType) Valid() bool {
	return t == NoteTypeURL || t == NoteTypeText
}

// Processing statuses. The external processor may report any other string;
// the store keeps whatever it is given.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// Note is a captured URL or block of text plus its enrichment fields.
type Note struct {
	ID               string    `json:"id"`
	UserID           string    `json:"userId"`
	Title            *string   `json:"title"`
	URL              *string   `json:"url"`
	Content          *string   `json:"content"`
	Summary          *string   `json:"summary"`
	ProcessingStatus string    `json:"processingStatus"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
	NoteTags         []NoteTag `json:"noteTags"`
}

// Type infers the capture type from the populated source field.
func (n *Note) Type() NoteType {
	if n.URL != nil {
		return NoteTypeURL
	}
	return NoteTypeText
}

// HasTitle reports whether the note has a non-empty title.
func (n *Note) HasTitle() bool {
	return n.Title != nil && *n.Title != ""
}

// TagNames returns the names of the note's tags in association order.
func (n *Note) TagNames() []string {
	names := make([]string, 0, len(n.NoteTags))
	for _, nt := range n.NoteTags {
		names = append(names, nt.Tag.Name)
	}
	return names
}

// SearchText is the case-folded title, content and summary that substring
// search matches against.
func (n *Note) SearchText() string {
	parts := make([]string, 0, 3)
	for _, field := range []*string{n.Title, n.Content, n.Summary} {
		if field != nil && *field != "" {
			parts = append(parts, FoldCase(*field))
		}
	}
	return strings.Join(parts, "\n")
}

// FoldCase returns s in a form where case-insensitive matches compare equal,
// beyond ASCII. A Caser is not safe for concurrent use, so each call takes
// its own.
func FoldCase(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}

// NoteTag associates a note with a shared tag.
type NoteTag struct {
	ID     string `json:"id"`
	NoteID string `json:"noteId"`
	TagID  string `json:"tagId"`
	Tag    Tag    `json:"tag"`
}

// NoteStats summarizes a user's captured notes.
type NoteStats struct {
	TotalNotes int `json:"totalNotes"`
	ThisMonth  int `json:"thisMonth"`
	TotalTags  int `json:"totalTags"`
}

// MonthStart returns the first instant of t's calendar month in UTC.
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
