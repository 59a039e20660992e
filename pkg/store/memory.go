package store

import (
	"context"
	"sync"
	"time"

	"github.com/aminrj/storedesk/pkg/model"
)

// Memory is the single-node MessageStore used by tests and by local runs
// without a ScyllaDB cluster. Messages are held per conversation in append
// order, which matches createdAt order because the coordinator assigns
// timestamps at append time.
type Memory struct {
	mu    sync.RWMutex
	convs map[string][]*model.Message
}

func NewMemory() *Memory {
	return &Memory{convs: make(map[string][]*model.Message)}
}

func (m *Memory) Append(ctx context.Context, msg *model.Message) error {
	cp := *msg
	m.mu.Lock()
	defer m.mu.Unlock()
	m.convs[msg.ConversationID] = append(m.convs[msg.ConversationID], &cp)
	return nil
}

func (m *Memory) History(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := m.convs[conversationID]
	start := 0
	if limit > 0 && len(msgs) > limit {
		start = len(msgs) - limit
	}
	out := make([]model.Message, 0, len(msgs)-start)
	for _, msg := range msgs[start:] {
		out = append(out, *msg)
	}
	return out, nil
}

func (m *Memory) Conversations(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.convs))
	for id := range m.convs {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *Memory) CountUnread(ctx context.Context, conversationID, recipientID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, msg := range m.convs[conversationID] {
		if msg.RecipientID == recipientID && !msg.Read {
			n++
		}
	}
	return n, nil
}

func (m *Memory) MarkRead(ctx context.Context, conversationID, senderID, recipientID string) (int, error) {
	now := time.Now().UTC()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.convs[conversationID] {
		if (senderID == "" || msg.SenderID == senderID) && msg.RecipientID == recipientID && !msg.Read {
			msg.Read = true
			at := now
			msg.ReadAt = &at
			n++
		}
	}
	return n, nil
}
