// Package sse implements Server-Sent Events for live note updates.
package sse

import (
	"time"

	"github.com/listenupapp/notes-server/internal/domain"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventNoteCreated is sent to the owner when a note is captured.
	EventNoteCreated EventType = "note.created"
	// EventNoteEnriched is sent to the owner when a processor callback lands.
	EventNoteEnriched EventType = "note.enriched"
	// EventSettingsUpdated is sent to owners when the AI settings change.
	EventSettingsUpdated EventType = "settings.updated"
	// EventHeartbeat keeps idle connections open.
	EventHeartbeat EventType = "heartbeat"
)

// Event represents an SSE event to be sent to clients.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`

	// UserID restricts delivery to one user. Empty means every client.
	UserID string `json:"-"`
}

// NoteEventData is the payload of note events.
type NoteEventData struct {
	Note *domain.Note `json:"note"`
}

// SettingsEventData is the payload of settings events. Keys are masked.
type SettingsEventData struct {
	Settings *domain.AISettings `json:"settings"`
}

// HeartbeatEventData is the payload of heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"serverTime"`
}

// NewNoteCreatedEvent creates a note.created event addressed to the note owner.
func NewNoteCreatedEvent(note *domain.Note) Event {
	return Event{
		Type:      EventNoteCreated,
		Data:      NoteEventData{Note: note},
		UserID:    note.UserID,
		Timestamp: time.Now(),
	}
}

// NewNoteEnrichedEvent creates a note.enriched event addressed to the note owner.
func NewNoteEnrichedEvent(note *domain.Note) Event {
	return Event{
		Type:      EventNoteEnriched,
		Data:      NoteEventData{Note: note},
		UserID:    note.UserID,
		Timestamp: time.Now(),
	}
}

// NewSettingsUpdatedEvent creates an owner-only settings.updated event.
func NewSettingsUpdatedEvent(settings *domain.AISettings) Event {
	return Event{
		Type:      EventSettingsUpdated,
		Data:      SettingsEventData{Settings: settings.Masked()},
		Timestamp: time.Now(),
	}
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	return Event{
		Type:      EventHeartbeat,
		Data:      HeartbeatEventData{ServerTime: time.Now()},
		Timestamp: time.Now(),
	}
}

// ownerOnly reports whether an event is restricted to owners.
func ownerOnly(t EventType) bool {
	return t == EventSettingsUpdated
}
