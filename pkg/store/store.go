package store

import (
	"context"

	"github.com/aminrj/storedesk/pkg/model"
)

// MessageStore is the durable, append-mostly log of messages and the single
// source of truth. Conversation summaries and unread counts are always
// derived from it on demand; nothing derived is ever written back.
type MessageStore interface {
	// Append persists a message. The caller assigns id, conversation key and
	// createdAt before calling.
	Append(ctx context.Context, msg *model.Message) error

	// History returns the most recent limit messages of a conversation in
	// ascending createdAt order. limit <= 0 means no limit.
	History(ctx context.Context, conversationID string, limit int) ([]model.Message, error)

	// Conversations lists every conversation id present in the log.
	Conversations(ctx context.Context) ([]string, error)

	// CountUnread counts messages in the conversation addressed to
	// recipientID that are still unread.
	CountUnread(ctx context.Context, conversationID, recipientID string) (int, error)

	// MarkRead flips every unread senderID->recipientID message in the
	// conversation to read and reports how many rows changed. An empty
	// senderID matches any sender. Calling it again matches zero rows.
	MarkRead(ctx context.Context, conversationID, senderID, recipientID string) (int, error)
}
