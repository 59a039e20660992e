package delivery

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/aminrj/storedesk/pkg/model"
	"github.com/aminrj/storedesk/pkg/presence"
)

// Broadcaster fans out-of-band notifications out to live connections.
// Identities not currently present simply miss the event; durable replay is
// the notification store's job, fed through the firehose.
type Broadcaster struct {
	registry presence.Registry
	firehose Publisher
}

func NewBroadcaster(reg presence.Registry, firehose Publisher) *Broadcaster {
	return &Broadcaster{registry: reg, firehose: firehose}
}

// Broadcast delivers n to the target: explicit ids if given, else the admin
// pool for the admins audience, else every currently connected non-admin
// identity. Returns the notification with id and timestamp filled in.
func (b *Broadcaster) Broadcast(ctx context.Context, n model.Notification, target model.BroadcastTarget) model.Notification {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	if b.firehose != nil {
		if err := b.firehose.PublishNotification(ctx, n); err != nil {
			log.Printf("firehose: notification %s: %v", n.ID, err)
		}
	}

	ev := model.Event{Type: model.EventIncomingNotification, Notification: &n}

	switch {
	case len(target.IDs) > 0:
		for _, id := range target.IDs {
			if c, ok := b.registry.Get(id); ok {
				b.push(c, ev)
			}
		}
	case target.Audience == model.AudienceAdmins:
		for _, c := range b.registry.Pool() {
			b.push(c, ev)
		}
	default:
		// All online non-admins: everyone bound whose connection is not in
		// the pool.
		inPool := make(map[presence.Conn]struct{})
		for _, c := range b.registry.Pool() {
			inPool[c] = struct{}{}
		}
		for _, id := range b.registry.Online() {
			c, ok := b.registry.Get(id)
			if !ok {
				continue
			}
			if _, admin := inPool[c]; admin {
				continue
			}
			b.push(c, ev)
		}
	}

	return n
}

func (b *Broadcaster) push(conn presence.Conn, ev model.Event) {
	if err := conn.Push(ev); err != nil {
		log.Printf("notification push to %s dropped: %v", conn.ID(), err)
	}
}
