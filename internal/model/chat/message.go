package chat

import "time"

// Sender roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message kinds.
const (
	KindText   = "text"
	KindImage  = "image"
	KindSystem = "system"
)

// Message persists a single conversation turn. Immutable once stored.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Sender         string    `json:"sender"`
	Text           string    `json:"text"`
	Kind           string    `json:"kind"`
	Emotion        string    `json:"emotion,omitempty"`
	Action         string    `json:"action,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}
