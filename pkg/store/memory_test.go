package store

import (
	"context"
	"testing"
	"time"

	"github.com/aminrj/storedesk/pkg/model"
)

func msg(id int64, conv, sender, recipient, body string, at time.Time) *model.Message {
	return &model.Message{
		ID:             id,
		ConversationID: conv,
		SenderID:       sender,
		RecipientID:    recipient,
		Body:           body,
		Kind:           model.KindText,
		CreatedAt:      at,
	}
}

func TestMemoryHistoryOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Now().UTC()

	for i := int64(1); i <= 5; i++ {
		if err := m.Append(ctx, msg(i, "cust1", "cust1", "agent1", "m", base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := m.History(ctx, "cust1", 3)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	// Most recent 3, ascending.
	for i, want := range []int64{3, 4, 5} {
		if got[i].ID != want {
			t.Fatalf("got[%d].ID = %d, want %d", i, got[i].ID, want)
		}
	}

	all, err := m.History(ctx, "cust1", 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("unlimited len = %d, want 5", len(all))
	}
}

func TestMemoryMarkReadIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Now().UTC()

	m.Append(ctx, msg(1, "cust1", "cust1", "agent1", "a", now))
	m.Append(ctx, msg(2, "cust1", "cust1", "agent1", "b", now.Add(time.Second)))
	m.Append(ctx, msg(3, "cust1", "agent1", "cust1", "c", now.Add(2*time.Second)))

	n, err := m.CountUnread(ctx, "cust1", "agent1")
	if err != nil {
		t.Fatalf("CountUnread: %v", err)
	}
	if n != 2 {
		t.Fatalf("unread = %d, want 2", n)
	}

	updated, err := m.MarkRead(ctx, "cust1", "cust1", "agent1")
	if err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if updated != 2 {
		t.Fatalf("updated = %d, want 2", updated)
	}

	// Second call matches zero rows and leaves state unchanged.
	updated, err = m.MarkRead(ctx, "cust1", "cust1", "agent1")
	if err != nil {
		t.Fatalf("MarkRead again: %v", err)
	}
	if updated != 0 {
		t.Fatalf("second updated = %d, want 0", updated)
	}

	n, _ = m.CountUnread(ctx, "cust1", "agent1")
	if n != 0 {
		t.Fatalf("unread after mark = %d, want 0", n)
	}

	// The transition set readAt and never touched the other direction.
	hist, _ := m.History(ctx, "cust1", 0)
	for _, h := range hist {
		if h.SenderID == "cust1" {
			if !h.Read || h.ReadAt == nil {
				t.Fatalf("message %d should be read with readAt set", h.ID)
			}
		} else if h.Read {
			t.Fatalf("message %d direction should be untouched", h.ID)
		}
	}
}

func TestMemoryMarkReadAnySender(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Now().UTC()

	m.Append(ctx, msg(1, "cust1", "agent1", "cust1", "a", now))
	m.Append(ctx, msg(2, "cust1", "agent2", "cust1", "b", now.Add(time.Second)))
	m.Append(ctx, msg(3, "cust1", "cust1", "agent1", "c", now.Add(2*time.Second)))

	updated, err := m.MarkRead(ctx, "cust1", "", "cust1")
	if err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if updated != 2 {
		t.Fatalf("updated = %d, want 2 (both admin senders)", updated)
	}

	// The customer's own outbound message is untouched.
	n, _ := m.CountUnread(ctx, "cust1", "agent1")
	if n != 1 {
		t.Fatalf("outbound unread = %d, want 1", n)
	}
}

func TestMemoryConversations(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Now().UTC()

	m.Append(ctx, msg(1, "cust1", "cust1", "agent1", "a", now))
	m.Append(ctx, msg(2, "cust2", "cust2", "agent1", "b", now))
	m.Append(ctx, msg(3, "cust1", "agent1", "cust1", "c", now))

	ids, err := m.Conversations(ctx)
	if err != nil {
		t.Fatalf("Conversations: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("len = %d, want 2", len(ids))
	}
	seen := map[string]bool{}
	for _, id := range ids {
		seen[id] = true
	}
	if !seen["cust1"] || !seen["cust2"] {
		t.Fatalf("missing conversation ids: %v", ids)
	}
}

func TestMemoryAppendCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	original := msg(1, "cust1", "cust1", "agent1", "hello", time.Now().UTC())

	m.Append(ctx, original)
	original.Body = "mutated"

	hist, _ := m.History(ctx, "cust1", 0)
	if hist[0].Body != "hello" {
		t.Fatalf("store aliased caller memory: %q", hist[0].Body)
	}
}
