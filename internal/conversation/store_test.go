package conversation

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestStore_JoinLeaveLifecycle(t *testing.T) {
	handle := newTestDB(t)
	store := NewStore(handle)
	ctx := context.Background()

	conversationID := seedConversation(t, store, "alice", "bob")

	members, err := store.Members(ctx, conversationID)
	if err != nil {
		t.Fatalf("Members(): %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}

	// Joining twice is a no-op.
	if err := store.Join(ctx, conversationID, Member{UserID: "alice"}, KindGroup, "Test Group"); err != nil {
		t.Fatalf("re-Join(): %v", err)
	}
	members, _ = store.Members(ctx, conversationID)
	if len(members) != 2 {
		t.Errorf("re-join changed membership: %d members", len(members))
	}

	// Leaving removes both the member and the summary row.
	if err := store.Leave(ctx, conversationID, "bob"); err != nil {
		t.Fatalf("Leave(): %v", err)
	}
	members, _ = store.Members(ctx, conversationID)
	if len(members) != 1 {
		t.Errorf("expected 1 member after leave, got %d", len(members))
	}
	sum, err := store.Summary(ctx, "bob", conversationID)
	if err != nil {
		t.Fatalf("Summary(): %v", err)
	}
	if sum != nil {
		t.Error("expected bob's summary to be deleted on leave")
	}
}

func TestStore_MarkRead(t *testing.T) {
	handle := newTestDB(t)
	store := NewStore(handle)
	engine := NewEngine(handle)
	ctx := context.Background()

	conversationID := seedConversation(t, store, "alice", "bob")

	_, _, err := engine.FanOut(ctx, &Message{
		ID:                uuid.New().String(),
		ConversationID:    conversationID,
		SenderID:          "alice",
		SenderDisplayName: "Alice",
		Content:           "ping",
	})
	if err != nil {
		t.Fatalf("FanOut(): %v", err)
	}

	if got := mustSummary(t, store, "bob", conversationID).UnreadCount; got != 1 {
		t.Fatalf("bob unread = %d, want 1", got)
	}

	if err := store.MarkRead(ctx, "bob", conversationID); err != nil {
		t.Fatalf("MarkRead(): %v", err)
	}
	if got := mustSummary(t, store, "bob", conversationID).UnreadCount; got != 0 {
		t.Errorf("bob unread after mark read = %d, want 0", got)
	}
}

func TestStore_ListSummariesOrder(t *testing.T) {
	handle := newTestDB(t)
	store := NewStore(handle)
	engine := NewEngine(handle)
	ctx := context.Background()

	first := seedConversation(t, store, "alice", "bob")
	second := seedConversation(t, store, "alice", "carol")

	for _, conversationID := range []string{first, second} {
		if _, _, err := engine.FanOut(ctx, &Message{
			ID:                uuid.New().String(),
			ConversationID:    conversationID,
			SenderID:          "alice",
			SenderDisplayName: "Alice",
			Content:           "hello",
		}); err != nil {
			t.Fatalf("FanOut(%s): %v", conversationID, err)
		}
	}

	summaries, err := store.ListSummaries(ctx, "alice")
	if err != nil {
		t.Fatalf("ListSummaries(): %v", err)
	}
	// Other tests may have left alice summaries behind; find ours.
	var idx []int
	for i, s := range summaries {
		if s.ConversationID == first || s.ConversationID == second {
			idx = append(idx, i)
		}
	}
	if len(idx) != 2 {
		t.Fatalf("expected both test conversations listed, got %d", len(idx))
	}
	if summaries[idx[0]].ConversationID != second {
		t.Errorf("expected most recently updated conversation first")
	}
}

func TestStore_CallPlaceholderLifecycle(t *testing.T) {
	handle := newTestDB(t)
	store := NewStore(handle)
	ctx := context.Background()

	conversationID := seedConversation(t, store, "alice", "bob")
	callID := uuid.New().String()

	placed, err := store.InsertCallPlaceholder(ctx, &Message{
		ID:                uuid.New().String(),
		ConversationID:    conversationID,
		SenderID:          "alice",
		SenderDisplayName: "Alice",
		Content:           "Calling…",
		CallID:            callID,
	})
	if err != nil {
		t.Fatalf("InsertCallPlaceholder(): %v", err)
	}
	if placed.CallStatus != CallStatusCalling {
		t.Errorf("call status = %q, want %q", placed.CallStatus, CallStatusCalling)
	}

	final, err := store.FinalizeCall(ctx, conversationID, callID, "Video call • 3 min")
	if err != nil {
		t.Fatalf("FinalizeCall(): %v", err)
	}
	if final == nil {
		t.Fatal("expected the placeholder to be finalized")
	}
	if final.Content != "Video call • 3 min" || final.CallStatus != CallStatusEnded {
		t.Errorf("finalized message = %+v", final)
	}

	// Finalizing an unknown correlation id is a no-op.
	missing, err := store.FinalizeCall(ctx, conversationID, "unknown-call", "x")
	if err != nil {
		t.Fatalf("FinalizeCall(unknown): %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown correlation id, got %+v", missing)
	}

	// Deleting consumes the placeholder exactly once.
	deletedID, err := store.DeleteCallPlaceholder(ctx, conversationID, callID)
	if err != nil {
		t.Fatalf("DeleteCallPlaceholder(): %v", err)
	}
	if deletedID != placed.ID {
		t.Errorf("deleted id = %q, want %q", deletedID, placed.ID)
	}
	deletedID, err = store.DeleteCallPlaceholder(ctx, conversationID, callID)
	if err != nil {
		t.Fatalf("DeleteCallPlaceholder() second call: %v", err)
	}
	if deletedID != "" {
		t.Errorf("expected no-op on second delete, got %q", deletedID)
	}
}
