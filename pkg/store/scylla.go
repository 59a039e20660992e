package store

import (
	"context"
	"time"

	"github.com/aminrj/storedesk/pkg/db"
	"github.com/aminrj/storedesk/pkg/model"
)

// Scylla is the production MessageStore. Messages partition by conversation
// and cluster by id descending, so "latest N" is a single partition read.
// The conversations table is a partner index only: it never holds unread
// counts or last-message snapshots, those stay derived from the log.
type Scylla struct {
	session *db.Session
}

func NewScylla(session *db.Session) *Scylla {
	return &Scylla{session: session}
}

func (s *Scylla) Append(ctx context.Context, msg *model.Message) error {
	var fileName string
	var fileSize int64
	if msg.File != nil {
		fileName = msg.File.Name
		fileSize = msg.File.Size
	}
	var readAt time.Time
	if msg.ReadAt != nil {
		readAt = *msg.ReadAt
	}

	q := `INSERT INTO messages (conversation_id, id, sender_id, recipient_id, body, kind, file_name, file_size, read, read_at, created_at)
	      VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if err := s.session.Query(q,
		msg.ConversationID, msg.ID, msg.SenderID, msg.RecipientID, msg.Body,
		string(msg.Kind), fileName, fileSize, msg.Read, readAt, msg.CreatedAt,
	).WithContext(ctx).Exec(); err != nil {
		return err
	}

	// Partner index so the aggregator can enumerate conversations without a
	// full table scan.
	return s.session.Query(
		`INSERT INTO conversations (conversation_id, last_updated) VALUES (?, ?)`,
		msg.ConversationID, msg.CreatedAt,
	).WithContext(ctx).Exec()
}

func (s *Scylla) History(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	q := `SELECT id, sender_id, recipient_id, body, kind, file_name, file_size, read, read_at, created_at
	      FROM messages WHERE conversation_id = ?`
	args := []interface{}{conversationID}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	iter := s.session.Query(q, args...).WithContext(ctx).Iter()

	// Clustering order is id DESC: newest first. Scan then reverse so the
	// caller gets ascending createdAt for linear display.
	var out []model.Message
	var id int64
	var sender, recipient, body, kind, fname string
	var fsize int64
	var read bool
	var readAt, createdAt time.Time
	for iter.Scan(&id, &sender, &recipient, &body, &kind, &fname, &fsize, &read, &readAt, &createdAt) {
		msg := model.Message{
			ID:             id,
			ConversationID: conversationID,
			SenderID:       sender,
			RecipientID:    recipient,
			Body:           body,
			Kind:           model.MessageKind(kind),
			Read:           read,
			CreatedAt:      createdAt,
		}
		if fname != "" {
			msg.File = &model.FileMeta{Name: fname, Size: fsize}
		}
		if !readAt.IsZero() {
			at := readAt
			msg.ReadAt = &at
		}
		out = append(out, msg)
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *Scylla) Conversations(ctx context.Context) ([]string, error) {
	iter := s.session.Query(`SELECT conversation_id FROM conversations`).WithContext(ctx).Iter()
	var ids []string
	var id string
	for iter.Scan(&id) {
		ids = append(ids, id)
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *Scylla) CountUnread(ctx context.Context, conversationID, recipientID string) (int, error) {
	// Filtering within a single partition; partitions are one support thread,
	// small enough that this beats maintaining a counter that can drift.
	var n int
	err := s.session.Query(
		`SELECT COUNT(*) FROM messages WHERE conversation_id = ? AND recipient_id = ? AND read = false ALLOW FILTERING`,
		conversationID, recipientID,
	).WithContext(ctx).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Scylla) MarkRead(ctx context.Context, conversationID, senderID, recipientID string) (int, error) {
	q := `SELECT id FROM messages WHERE conversation_id = ? AND recipient_id = ? AND read = false ALLOW FILTERING`
	args := []interface{}{conversationID, recipientID}
	if senderID != "" {
		q = `SELECT id FROM messages WHERE conversation_id = ? AND sender_id = ? AND recipient_id = ? AND read = false ALLOW FILTERING`
		args = []interface{}{conversationID, senderID, recipientID}
	}
	iter := s.session.Query(q, args...).WithContext(ctx).Iter()

	var ids []int64
	var id int64
	for iter.Scan(&id) {
		ids = append(ids, id)
	}
	if err := iter.Close(); err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	for _, id := range ids {
		if err := s.session.Query(
			`UPDATE messages SET read = true, read_at = ? WHERE conversation_id = ? AND id = ?`,
			now, conversationID, id,
		).WithContext(ctx).Exec(); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}
