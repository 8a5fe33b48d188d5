package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"github.com/auralabs/aura/backend/internal/model/chat"
	"github.com/auralabs/aura/backend/internal/model/memory"
	"github.com/auralabs/aura/backend/internal/model/safety"
)

// Key layout. Message and alert keys embed a zero-padded nanosecond timestamp
// so badger's lexical iteration order is chronological.
const (
	prefixConversation = "conv:"
	prefixMessage      = "msg:"
	prefixMemory       = "mem:"
	prefixAlert        = "alert:"
)

// BadgerStore persists documents as JSON values in a badger key-value
// database.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (or creates) the store under dirPath.
func OpenBadger(dirPath string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dirPath).
		WithLoggingLevel(badger.ERROR)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open document store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Conversations() ConversationStore { return (*badgerConversations)(s) }
func (s *BadgerStore) Messages() MessageStore           { return (*badgerMessages)(s) }
func (s *BadgerStore) Memories() MemoryStore            { return (*badgerMemories)(s) }
func (s *BadgerStore) Alerts() AlertStore               { return (*badgerAlerts)(s) }

func (s *BadgerStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *BadgerStore) setJSON(key string, value any) error {
	return s.db.Update(func(txn *badger.Txn) error {
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to marshal %s: %w", key, err)
		}
		return txn.Set([]byte(key), data)
	})
}

func (s *BadgerStore) getJSON(key string, out any) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err == badger.ErrKeyNotFound {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
}

func conversationKey(id string) string { return prefixConversation + id }

func messageKey(msg chat.Message) string {
	return fmt.Sprintf("%s%s:%020d:%s", prefixMessage, msg.ConversationID, msg.CreatedAt.UnixNano(), msg.ID)
}

func memoryKey(key memory.Key) string {
	return fmt.Sprintf("%s%s:%s", prefixMemory, key.UserID, key.Topic)
}

func alertKey(alert safety.Alert) string {
	return fmt.Sprintf("%s%s:%020d:%s", prefixAlert, alert.UserID, alert.CreatedAt.UnixNano(), alert.ID)
}

type badgerConversations BadgerStore

func (s *badgerConversations) Create(_ context.Context, conv chat.Conversation) error {
	return (*BadgerStore)(s).setJSON(conversationKey(conv.ID), conv)
}

func (s *badgerConversations) Get(_ context.Context, id string) (chat.Conversation, error) {
	var conv chat.Conversation
	if err := (*BadgerStore)(s).getJSON(conversationKey(id), &conv); err != nil {
		return chat.Conversation{}, err
	}
	return conv, nil
}

func (s *badgerConversations) Update(_ context.Context, conv chat.Conversation) error {
	key := []byte(conversationKey(conv.ID))
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == badger.ErrKeyNotFound {
			return ErrNotFound
		} else if err != nil {
			return err
		}
		data, err := json.Marshal(conv)
		if err != nil {
			return fmt.Errorf("failed to marshal %s: %w", key, err)
		}
		return txn.Set(key, data)
	})
}

func (s *badgerConversations) ListByUser(_ context.Context, userID, topic string) ([]chat.Conversation, error) {
	result := make([]chat.Conversation, 0, 8)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixConversation)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var conv chat.Conversation
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &conv)
			}); err != nil {
				return err
			}
			if !conv.HasParticipant(userID) {
				continue
			}
			if topic != "" && conv.Topic != topic {
				continue
			}
			result = append(result, conv)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	return result, nil
}

func (s *badgerConversations) Delete(_ context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(conversationKey(id)))
	})
}

type badgerMessages BadgerStore

func (s *badgerMessages) Append(_ context.Context, msg chat.Message) error {
	return (*BadgerStore)(s).setJSON(messageKey(msg), msg)
}

func (s *badgerMessages) ListByConversation(_ context.Context, conversationID string, limit int) ([]chat.Message, error) {
	msgs := make([]chat.Message, 0, 16)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixMessage + conversationID + ":")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var msg chat.Message
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &msg)
			}); err != nil {
				return err
			}
			msgs = append(msgs, msg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (s *badgerMessages) Count(_ context.Context, conversationID string) (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixMessage + conversationID + ":")
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

func (s *badgerMessages) DeleteByConversation(_ context.Context, conversationID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixMessage + conversationID + ":")
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		keys := make([][]byte, 0, 16)
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

type badgerMemories BadgerStore

func (s *badgerMemories) Get(_ context.Context, key memory.Key) (memory.Record, error) {
	var rec memory.Record
	if err := (*BadgerStore)(s).getJSON(memoryKey(key), &rec); err != nil {
		return memory.Record{}, err
	}
	return rec, nil
}

func (s *badgerMemories) Upsert(_ context.Context, rec memory.Record) error {
	return (*BadgerStore)(s).setJSON(memoryKey(rec.Key()), rec)
}

type badgerAlerts BadgerStore

func (s *badgerAlerts) Append(_ context.Context, alert safety.Alert) error {
	return (*BadgerStore)(s).setJSON(alertKey(alert), alert)
}

func (s *badgerAlerts) ListByUser(_ context.Context, userID string) ([]safety.Alert, error) {
	result := make([]safety.Alert, 0, 8)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixAlert + userID + ":")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var alert safety.Alert
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &alert)
			}); err != nil {
				return err
			}
			result = append(result, alert)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Iteration is oldest-first; callers want newest first.
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	return result, nil
}
