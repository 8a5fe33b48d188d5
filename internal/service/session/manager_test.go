package session

import (
	"context"
	"strings"
	"testing"

	"github.com/auralabs/aura/backend/internal/model/chat"
	"github.com/auralabs/aura/backend/internal/store"
)

func newManager() (*Manager, *store.MemStore) {
	st := store.NewMemStore()
	return NewManager(st.Conversations(), st.Messages(), 0), st
}

func TestResolveCreatesConversation(t *testing.T) {
	mgr, _ := newManager()
	ctx := context.Background()

	conv, err := mgr.Resolve(ctx, "", "u1", "Study", "help me with calculus")
	if err != nil {
		t.Fatalf("Resolve err: %v", err)
	}
	if conv.ID == "" {
		t.Fatal("expected generated conversation id")
	}
	if conv.Title != "help me with calculus" {
		t.Fatalf("title: got %q", conv.Title)
	}
	if conv.Topic != "Study" {
		t.Fatalf("topic: got %q", conv.Topic)
	}
	if !conv.HasParticipant("u1") {
		t.Fatal("creator should be a participant")
	}
}

func TestResolveUnknownIDCreatesFresh(t *testing.T) {
	mgr, _ := newManager()

	conv, err := mgr.Resolve(context.Background(), "does-not-exist", "u1", "", "hello")
	if err != nil {
		t.Fatalf("Resolve err: %v", err)
	}
	if conv.ID == "does-not-exist" {
		t.Fatal("unknown id must not be adopted")
	}
	if conv.Topic != DefaultTopic {
		t.Fatalf("topic default: got %q", conv.Topic)
	}
}

func TestTitleTruncated(t *testing.T) {
	mgr, _ := newManager()
	long := strings.Repeat("a", 80)

	conv, err := mgr.Resolve(context.Background(), "", "u1", "General", long)
	if err != nil {
		t.Fatalf("Resolve err: %v", err)
	}
	if got := len([]rune(conv.Title)); got != chat.TitleMaxRunes {
		t.Fatalf("title length: got %d", got)
	}
}

func TestTitleSetExactlyOnce(t *testing.T) {
	mgr, _ := newManager()
	ctx := context.Background()

	conv, err := mgr.Resolve(ctx, "", "u1", "General", "first message")
	if err != nil {
		t.Fatalf("Resolve err: %v", err)
	}

	// No messages persisted yet: resolving again may still retitle.
	conv, err = mgr.Resolve(ctx, conv.ID, "u1", "General", "retitled before first turn")
	if err != nil {
		t.Fatalf("second Resolve err: %v", err)
	}
	if conv.Title != "retitled before first turn" {
		t.Fatalf("empty conversation should take the new title, got %q", conv.Title)
	}

	if _, err := mgr.AppendMessage(ctx, chat.Message{ConversationID: conv.ID, Sender: chat.RoleUser, Text: "retitled before first turn"}); err != nil {
		t.Fatalf("AppendMessage err: %v", err)
	}

	conv, err = mgr.Resolve(ctx, conv.ID, "u1", "General", "a completely different message")
	if err != nil {
		t.Fatalf("third Resolve err: %v", err)
	}
	if conv.Title != "retitled before first turn" {
		t.Fatalf("title changed after first message: %q", conv.Title)
	}
}

func TestRecentHistoryChronologicalAndBounded(t *testing.T) {
	st := store.NewMemStore()
	mgr := NewManager(st.Conversations(), st.Messages(), 3)
	ctx := context.Background()

	conv, err := mgr.Resolve(ctx, "", "u1", "General", "start")
	if err != nil {
		t.Fatalf("Resolve err: %v", err)
	}

	texts := []string{"one", "two", "three", "four", "five"}
	for _, text := range texts {
		if _, err := mgr.AppendMessage(ctx, chat.Message{ConversationID: conv.ID, Sender: chat.RoleUser, Text: text}); err != nil {
			t.Fatalf("AppendMessage err: %v", err)
		}
	}

	history, err := mgr.RecentHistory(ctx, conv.ID)
	if err != nil {
		t.Fatalf("RecentHistory err: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("history length: got %d", len(history))
	}
	for i, want := range []string{"three", "four", "five"} {
		if history[i].Text != want {
			t.Fatalf("history[%d] = %q, want %q", i, history[i].Text, want)
		}
	}
}

func TestTouchUpdatesSnippet(t *testing.T) {
	mgr, st := newManager()
	ctx := context.Background()

	conv, err := mgr.Resolve(ctx, "", "u1", "General", "start")
	if err != nil {
		t.Fatalf("Resolve err: %v", err)
	}
	if err := mgr.Touch(ctx, conv, "latest assistant reply"); err != nil {
		t.Fatalf("Touch err: %v", err)
	}

	stored, err := st.Conversations().Get(ctx, conv.ID)
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}
	if stored.LastMessage != "latest assistant reply" {
		t.Fatalf("last message: got %q", stored.LastMessage)
	}
}
