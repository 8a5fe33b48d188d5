// Package session resolves conversation threads and their message history.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/auralabs/aura/backend/internal/model/chat"
	"github.com/auralabs/aura/backend/internal/store"
)

// DefaultHistoryLimit caps how many recent messages feed the prompt.
const DefaultHistoryLimit = 10

// DefaultTopic is used when the client does not select a topic.
const DefaultTopic = "General"

// Manager owns conversation lifecycle: lazy creation, one-time titling and
// history retrieval.
type Manager struct {
	conversations store.ConversationStore
	messages      store.MessageStore
	historyLimit  int
}

// NewManager wires the session manager. historyLimit <= 0 selects
// DefaultHistoryLimit.
func NewManager(conversations store.ConversationStore, messages store.MessageStore, historyLimit int) *Manager {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Manager{
		conversations: conversations,
		messages:      messages,
		historyLimit:  historyLimit,
	}
}

// Resolve returns the conversation for the inbound message, creating it when
// conversationID is empty or unknown. A conversation that has no persisted
// messages yet gets its title assigned from firstMessage; an already-titled
// thread is returned unchanged.
func (m *Manager) Resolve(ctx context.Context, conversationID, userID, topic, firstMessage string) (chat.Conversation, error) {
	if topic == "" {
		topic = DefaultTopic
	}

	if conversationID != "" {
		conv, err := m.conversations.Get(ctx, conversationID)
		switch {
		case err == nil:
			return m.titleIfFirstMessage(ctx, conv, firstMessage)
		case errors.Is(err, store.ErrNotFound):
			// Fall through to lazy creation.
		default:
			return chat.Conversation{}, fmt.Errorf("failed to load conversation: %w", err)
		}
	}

	now := time.Now().UTC()
	conv := chat.Conversation{
		ID:           uuid.NewString(),
		Participants: []string{userID},
		Topic:        topic,
		Title:        truncateTitle(firstMessage),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := m.conversations.Create(ctx, conv); err != nil {
		return chat.Conversation{}, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

func (m *Manager) titleIfFirstMessage(ctx context.Context, conv chat.Conversation, firstMessage string) (chat.Conversation, error) {
	count, err := m.messages.Count(ctx, conv.ID)
	if err != nil {
		return chat.Conversation{}, fmt.Errorf("failed to count messages: %w", err)
	}
	if count > 0 {
		return conv, nil
	}

	conv.Title = truncateTitle(firstMessage)
	if err := m.conversations.Update(ctx, conv); err != nil {
		return chat.Conversation{}, fmt.Errorf("failed to title conversation: %w", err)
	}
	return conv, nil
}

// RecentHistory returns the most recent messages of the conversation in
// chronological order, bounded by the configured limit.
func (m *Manager) RecentHistory(ctx context.Context, conversationID string) ([]chat.Message, error) {
	history, err := m.messages.ListByConversation(ctx, conversationID, m.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return history, nil
}

// AppendMessage assigns identity and timestamp to the message and persists it.
func (m *Manager) AppendMessage(ctx context.Context, msg chat.Message) (chat.Message, error) {
	msg.ID = uuid.NewString()
	if msg.Kind == "" {
		msg.Kind = chat.KindText
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if err := m.messages.Append(ctx, msg); err != nil {
		return chat.Message{}, fmt.Errorf("failed to persist message: %w", err)
	}
	return msg, nil
}

// Touch refreshes the conversation's last-message snippet and updated-at.
func (m *Manager) Touch(ctx context.Context, conv chat.Conversation, lastMessage string) error {
	conv.LastMessage = truncateTitle(lastMessage)
	conv.UpdatedAt = time.Now().UTC()
	if err := m.conversations.Update(ctx, conv); err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	return nil
}

func truncateTitle(s string) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) > chat.TitleMaxRunes {
		runes = runes[:chat.TitleMaxRunes]
	}
	return string(runes)
}
