package domain

import "time"

// ActivityType names an auditable user action.
type ActivityType string

const (
	ActivityAddNote          ActivityType = "ADD_NOTE"
	ActivityNoteEnriched     ActivityType = "NOTE_ENRICHED"
	ActivityUpdateAISettings ActivityType = "UPDATE_AI_SETTINGS"
)

// ActivityLog records one action by a user.
type ActivityLog struct {
	ID        string       `json:"id"`
	UserID    string       `json:"userId"`
	Action    ActivityType `json:"action"`
	IPAddress string       `json:"ipAddress,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}
