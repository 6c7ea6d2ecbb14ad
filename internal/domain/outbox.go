package domain

import (
	"encoding/json"
	"time"
)

// OutboxStatus is the delivery state of an enrichment outbox entry.
type OutboxStatus string

const (
	OutboxPending    OutboxStatus = "pending"
	OutboxProcessing OutboxStatus = "processing"
	OutboxDelivered  OutboxStatus = "delivered"
	OutboxSkipped    OutboxStatus = "skipped"
	OutboxFailed     OutboxStatus = "failed"
)

// Terminal reports whether no further delivery will be attempted.
func (s OutboxStatus) Terminal() bool {
	return s == OutboxDelivered || s == OutboxSkipped || s == OutboxFailed
}

// OutboxEntry is a pending notification to the external processor, written in
// the same transaction as its note.
type OutboxEntry struct {
	ID            string          `json:"id"`
	NoteID        string          `json:"noteId"`
	Payload       json.RawMessage `json:"payload"`
	Status        OutboxStatus    `json:"status"`
	Attempts      int             `json:"attempts"`
	NextAttemptAt time.Time       `json:"nextAttemptAt"`
	LastError     string          `json:"lastError,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// EnrichmentRequest is the body POSTed to the external processor.
type EnrichmentRequest struct {
	NoteID       string    `json:"noteId"`
	UserID       string    `json:"userId"`
	UserEmail    string    `json:"userEmail"`
	Type         NoteType  `json:"type"`
	URL          *string   `json:"url,omitempty"`
	Content      *string   `json:"content,omitempty"`
	Title        *string   `json:"title,omitempty"`
	CustomPrompt string    `json:"customPrompt,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewEnrichmentRequest builds the dispatch payload for a freshly created note.
func NewEnrichmentRequest(note *Note, owner *User, now time.Time) EnrichmentRequest {
	req := EnrichmentRequest{
		NoteID:    note.ID,
		UserID:    owner.ID,
		UserEmail: owner.Email,
		Type:      note.Type(),
		Title:     note.Title,
		Timestamp: now.UTC(),
	}
	if req.Type == NoteTypeURL {
		req.URL = note.URL
	} else {
		req.Content = note.Content
	}
	return req
}
