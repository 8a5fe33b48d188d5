package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/auralabs/aura/backend/internal/model/chat"
)

func openTestBadger(t *testing.T) *BadgerStore {
	t.Helper()
	st, err := OpenBadger(t.TempDir())
	if err != nil {
		t.Fatalf("OpenBadger err: %v", err)
	}
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Errorf("Close err: %v", err)
		}
	})
	return st
}

func TestBadgerConversationUpdate(t *testing.T) {
	st := openTestBadger(t)
	ctx := context.Background()
	convs := st.Conversations()

	conv := chat.Conversation{
		ID:           "c1",
		Participants: []string{"u1"},
		Topic:        "General",
		Title:        "hello",
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	if err := convs.Create(ctx, conv); err != nil {
		t.Fatalf("Create err: %v", err)
	}

	conv.Title = "renamed"
	if err := convs.Update(ctx, conv); err != nil {
		t.Fatalf("Update err: %v", err)
	}

	got, err := convs.Get(ctx, "c1")
	if err != nil {
		t.Fatalf("Get err: %v", err)
	}
	if got.Title != "renamed" {
		t.Fatalf("title after update: got %q", got.Title)
	}
}

func TestBadgerConversationUpdateUnknownID(t *testing.T) {
	st := openTestBadger(t)

	err := st.Conversations().Update(context.Background(), chat.Conversation{ID: "ghost"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
