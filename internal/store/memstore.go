package store

import (
	"context"
	"sort"
	"sync"

	"github.com/auralabs/aura/backend/internal/model/chat"
	"github.com/auralabs/aura/backend/internal/model/memory"
	"github.com/auralabs/aura/backend/internal/model/safety"
)

// MemStore keeps everything in process memory. Suitable for tests and for
// running without a data directory configured.
type MemStore struct {
	mu            sync.RWMutex
	conversations map[string]chat.Conversation
	messages      map[string][]chat.Message
	memories      map[memory.Key]memory.Record
	alerts        map[string][]safety.Alert
}

// NewMemStore bootstraps an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		conversations: make(map[string]chat.Conversation),
		messages:      make(map[string][]chat.Message),
		memories:      make(map[memory.Key]memory.Record),
		alerts:        make(map[string][]safety.Alert),
	}
}

func (s *MemStore) Conversations() ConversationStore { return (*memConversations)(s) }
func (s *MemStore) Messages() MessageStore           { return (*memMessages)(s) }
func (s *MemStore) Memories() MemoryStore            { return (*memMemories)(s) }
func (s *MemStore) Alerts() AlertStore               { return (*memAlerts)(s) }
func (s *MemStore) Close() error                     { return nil }

type memConversations MemStore

func (s *memConversations) Create(_ context.Context, conv chat.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[conv.ID] = conv
	return nil
}

func (s *memConversations) Get(_ context.Context, id string) (chat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return chat.Conversation{}, ErrNotFound
	}
	return conv, nil
}

func (s *memConversations) Update(_ context.Context, conv chat.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[conv.ID]; !ok {
		return ErrNotFound
	}
	s.conversations[conv.ID] = conv
	return nil
}

func (s *memConversations) ListByUser(_ context.Context, userID, topic string) ([]chat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]chat.Conversation, 0, 8)
	for _, conv := range s.conversations {
		if !conv.HasParticipant(userID) {
			continue
		}
		if topic != "" && conv.Topic != topic {
			continue
		}
		result = append(result, conv)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	return result, nil
}

func (s *memConversations) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, id)
	return nil
}

type memMessages MemStore

func (s *memMessages) Append(_ context.Context, msg chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], msg)
	return nil
}

func (s *memMessages) ListByConversation(_ context.Context, conversationID string, limit int) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[conversationID]
	start := 0
	if limit > 0 && len(msgs) > limit {
		start = len(msgs) - limit
	}
	copied := make([]chat.Message, len(msgs)-start)
	copy(copied, msgs[start:])
	return copied, nil
}

func (s *memMessages) Count(_ context.Context, conversationID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages[conversationID]), nil
}

func (s *memMessages) DeleteByConversation(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, conversationID)
	return nil
}

type memMemories MemStore

func (s *memMemories) Get(_ context.Context, key memory.Key) (memory.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.memories[key]
	if !ok {
		return memory.Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *memMemories) Upsert(_ context.Context, rec memory.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memories[rec.Key()] = rec
	return nil
}

type memAlerts MemStore

func (s *memAlerts) Append(_ context.Context, alert safety.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[alert.UserID] = append(s.alerts[alert.UserID], alert)
	return nil
}

func (s *memAlerts) ListByUser(_ context.Context, userID string) ([]safety.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alerts := s.alerts[userID]
	result := make([]safety.Alert, len(alerts))
	for i, a := range alerts {
		result[len(alerts)-1-i] = a
	}
	return result, nil
}
