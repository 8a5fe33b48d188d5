package store

import (
	"context"
	"errors"

	"github.com/auralabs/aura/backend/internal/model/chat"
	"github.com/auralabs/aura/backend/internal/model/memory"
	"github.com/auralabs/aura/backend/internal/model/safety"
)

// ErrNotFound marks a lookup miss for any entity.
var ErrNotFound = errors.New("store: not found")

// ConversationStore persists chat threads.
type ConversationStore interface {
	Create(ctx context.Context, conv chat.Conversation) error
	Get(ctx context.Context, id string) (chat.Conversation, error)
	Update(ctx context.Context, conv chat.Conversation) error
	// ListByUser returns conversations containing the user, newest-updated
	// first. An empty topic matches all topics.
	ListByUser(ctx context.Context, userID, topic string) ([]chat.Conversation, error)
	Delete(ctx context.Context, id string) error
}

// MessageStore persists conversation turns.
type MessageStore interface {
	Append(ctx context.Context, msg chat.Message) error
	// ListByConversation returns messages in chronological order. When
	// limit > 0 only the most recent limit messages are returned, still
	// chronological.
	ListByConversation(ctx context.Context, conversationID string, limit int) ([]chat.Message, error)
	Count(ctx context.Context, conversationID string) (int, error)
	DeleteByConversation(ctx context.Context, conversationID string) error
}

// MemoryStore persists one dossier per (user, topic).
type MemoryStore interface {
	Get(ctx context.Context, key memory.Key) (memory.Record, error)
	Upsert(ctx context.Context, rec memory.Record) error
}

// AlertStore persists safety alerts. Append-only.
type AlertStore interface {
	Append(ctx context.Context, alert safety.Alert) error
	// ListByUser returns alerts for the user, newest first.
	ListByUser(ctx context.Context, userID string) ([]safety.Alert, error)
}

// Store bundles the per-entity stores behind one lifecycle.
type Store interface {
	Conversations() ConversationStore
	Messages() MessageStore
	Memories() MemoryStore
	Alerts() AlertStore
	Close() error
}
