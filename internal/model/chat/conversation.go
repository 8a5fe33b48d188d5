package chat

import "time"

// TitleMaxRunes bounds the auto-assigned conversation title taken from the
// first user message.
const TitleMaxRunes = 30

// Conversation is one chat thread for a user within a topic. The title is
// assigned once, from the first message, and never rewritten afterwards.
type Conversation struct {
	ID           string    `json:"id"`
	Participants []string  `json:"participants"`
	Topic        string    `json:"topic"`
	Title        string    `json:"title"`
	LastMessage  string    `json:"lastMessage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// HasParticipant reports whether the given user belongs to the conversation.
func (c Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}
