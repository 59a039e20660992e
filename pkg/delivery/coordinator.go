package delivery

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aminrj/storedesk/pkg/identity"
	"github.com/aminrj/storedesk/pkg/model"
	"github.com/aminrj/storedesk/pkg/presence"
	"github.com/aminrj/storedesk/pkg/snowflake"
	"github.com/aminrj/storedesk/pkg/store"
)

// Coordinator routes messages: persist first, push second. A send that fails
// persistence pushes nothing; a send whose recipient is offline is still a
// success, the message waits in the store.
type Coordinator struct {
	store    store.MessageStore
	registry presence.Registry
	dir      identity.Directory
	ids      *snowflake.Node
	firehose Publisher
}

func NewCoordinator(msgs store.MessageStore, reg presence.Registry, dir identity.Directory, ids *snowflake.Node, firehose Publisher) *Coordinator {
	return &Coordinator{store: msgs, registry: reg, dir: dir, ids: ids, firehose: firehose}
}

// Send persists the message and attempts live delivery. The pushed event is
// tagged with the conversation key (the non-admin participant's id), so both
// sides of the desk file it under the same thread. A non-admin sender
// additionally fans out to every admin-pool connection: any agent on duty
// sees any customer message live, not just the addressed one.
func (c *Coordinator) Send(ctx context.Context, senderID, recipientID, body string, kind model.MessageKind, file *model.FileMeta) (*model.Message, error) {
	if recipientID == "" || recipientID == senderID {
		return nil, model.ErrInvalidRecipient
	}
	sender, err := c.dir.Lookup(ctx, senderID)
	if err != nil {
		return nil, fmt.Errorf("sender %q: %w", senderID, model.ErrUnknownIdentity)
	}
	recipient, err := c.dir.Lookup(ctx, recipientID)
	if err != nil {
		return nil, fmt.Errorf("recipient %q: %w", recipientID, model.ErrInvalidRecipient)
	}
	if sender.Role != model.RoleAdmin && recipient.Role != model.RoleAdmin {
		// Customers only reach the desk. A customer pair would persist under a
		// key no conversation list or history fetch ever resolves.
		return nil, fmt.Errorf("recipient %q: %w", recipientID, model.ErrInvalidRecipient)
	}
	if kind == "" {
		kind = model.KindText
	}

	msg := &model.Message{
		ID:             c.ids.Generate(),
		ConversationID: model.ConversationKey(sender, recipient),
		SenderID:       senderID,
		RecipientID:    recipientID,
		Body:           body,
		Kind:           kind,
		File:           file,
		CreatedAt:      time.Now().UTC(),
	}

	if err := c.store.Append(ctx, msg); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrPersistence, err)
	}

	if c.firehose != nil {
		if err := c.firehose.PublishMessage(ctx, msg); err != nil {
			log.Printf("firehose: message %d: %v", msg.ID, err)
		}
	}

	out := *msg
	out.SenderName = sender.Name
	out.SenderAvatar = sender.Avatar
	ev := model.Event{Type: model.EventIncomingMessage, Message: &out}

	direct, online := c.registry.Get(recipientID)
	if online {
		c.push(direct, ev)
	}
	if sender.Role != model.RoleAdmin {
		for _, pc := range c.registry.Pool() {
			if online && pc == direct {
				continue // addressed admin already got it
			}
			c.push(pc, ev)
		}
	}

	return msg, nil
}

// MarkRead flips every unread senderID->viewerID message in one batch.
// Repeating the call matches zero rows. A customer may pass the pool alias as
// senderID to clear the whole support thread, whichever admins wrote it. No
// live event is emitted; clients refetch summaries instead of trusting a push
// for read-state.
func (c *Coordinator) MarkRead(ctx context.Context, senderID, viewerID string) (int, error) {
	viewer, err := c.dir.Lookup(ctx, viewerID)
	if err != nil {
		return 0, fmt.Errorf("viewer %q: %w", viewerID, model.ErrUnknownIdentity)
	}
	if viewer.Role != model.RoleAdmin && senderID == model.PoolAlias {
		return c.store.MarkRead(ctx, viewer.ID, "", viewerID)
	}
	sender, err := c.dir.Lookup(ctx, senderID)
	if err != nil {
		return 0, fmt.Errorf("sender %q: %w", senderID, model.ErrUnknownIdentity)
	}
	return c.store.MarkRead(ctx, model.ConversationKey(sender, viewer), senderID, viewerID)
}

// Typing relays a typing signal point-to-point, plus admin-pool fan-out for
// non-admin senders. Nothing is stored or replayed.
func (c *Coordinator) Typing(ctx context.Context, senderID, recipientID string, isTyping bool) {
	sender, err := c.dir.Lookup(ctx, senderID)
	if err != nil {
		return
	}
	ev := model.Event{
		Type: model.EventPeerTyping,
		Peer: &model.PeerTyping{SenderID: senderID, IsTyping: isTyping},
	}
	direct, online := c.registry.Get(recipientID)
	if online {
		c.push(direct, ev)
	}
	if sender.Role != model.RoleAdmin {
		for _, pc := range c.registry.Pool() {
			if online && pc == direct {
				continue
			}
			c.push(pc, ev)
		}
	}
}

// push is isolated per target: one slow or full connection never blocks the
// rest of a fan-out.
func (c *Coordinator) push(conn presence.Conn, ev model.Event) {
	if err := conn.Push(ev); err != nil {
		log.Printf("push to %s dropped: %v", conn.ID(), err)
	}
}
