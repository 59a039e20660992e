package convo

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aminrj/storedesk/pkg/identity"
	"github.com/aminrj/storedesk/pkg/model"
	"github.com/aminrj/storedesk/pkg/store"
)

// Summary is one derived conversation-list row. It is recomputed from the
// message store on every read and never cached, so it cannot drift from the
// log.
type Summary struct {
	Counterpart model.Identity `json:"counterpart"`
	LastMessage model.Message  `json:"last_message"`
	UnreadCount int            `json:"unread_count"`
}

// SupportCounterpart is the synthetic row a customer's conversation list
// collapses to: the whole admin pool presents as one party.
var SupportCounterpart = model.Identity{ID: model.PoolAlias, Role: model.RoleAdmin, Name: "Support"}

// Aggregator derives per-viewer conversation summaries and history from the
// message store on demand.
type Aggregator struct {
	store store.MessageStore
	dir   identity.Directory
}

func NewAggregator(msgs store.MessageStore, dir identity.Directory) *Aggregator {
	return &Aggregator{store: msgs, dir: dir}
}

// ListConversations returns the viewer's summaries, newest thread first.
// The counterpart space is asymmetric: a customer sees at most one row (the
// support pool), an admin sees one row per customer that has messaged any
// admin.
func (a *Aggregator) ListConversations(ctx context.Context, viewerID string) ([]Summary, error) {
	viewer, err := a.dir.Lookup(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("viewer %q: %w", viewerID, err)
	}
	if viewer.Role == model.RoleAdmin {
		return a.adminList(ctx, viewer)
	}
	return a.customerList(ctx, viewer)
}

func (a *Aggregator) customerList(ctx context.Context, viewer model.Identity) ([]Summary, error) {
	// A customer's whole support thread lives under their own id.
	msgs, err := a.store.History(ctx, viewer.ID, 1)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return []Summary{}, nil
	}
	unread, err := a.store.CountUnread(ctx, viewer.ID, viewer.ID)
	if err != nil {
		return nil, err
	}
	last := msgs[len(msgs)-1:]
	a.decorate(ctx, last)
	return []Summary{{Counterpart: SupportCounterpart, LastMessage: last[0], UnreadCount: unread}}, nil
}

func (a *Aggregator) adminList(ctx context.Context, viewer model.Identity) ([]Summary, error) {
	ids, err := a.store.Conversations(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, 0, len(ids))
	for _, id := range ids {
		counterpart, err := a.dir.Lookup(ctx, id)
		if errors.Is(err, model.ErrUnknownIdentity) {
			// Same-role pair keys and departed identities are not support
			// threads; skip them.
			continue
		}
		if err != nil {
			return nil, err
		}
		if counterpart.Role == model.RoleAdmin {
			continue
		}
		msgs, err := a.store.History(ctx, id, 1)
		if err != nil {
			return nil, err
		}
		if len(msgs) == 0 {
			continue
		}
		// Independent count: the latest message being read says nothing
		// about older ones.
		unread, err := a.store.CountUnread(ctx, id, viewer.ID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, Summary{
			Counterpart: counterpart,
			LastMessage: msgs[len(msgs)-1],
			UnreadCount: unread,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastMessage.CreatedAt.After(summaries[j].LastMessage.CreatedAt)
	})
	a.decorateSummaries(ctx, summaries)
	return summaries, nil
}

// GetHistory returns the most recent limit messages of the viewer's thread
// with the counterpart, ascending for linear display. A customer viewer's
// thread is always the support thread regardless of counterpart.
func (a *Aggregator) GetHistory(ctx context.Context, viewerID, counterpartID string, limit int) ([]model.Message, error) {
	viewer, err := a.dir.Lookup(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("viewer %q: %w", viewerID, err)
	}

	conv := viewer.ID
	if viewer.Role == model.RoleAdmin {
		counterpart, err := a.dir.Lookup(ctx, counterpartID)
		if err != nil {
			return nil, fmt.Errorf("counterpart %q: %w", counterpartID, err)
		}
		conv = model.ConversationKey(viewer, counterpart)
	}

	msgs, err := a.store.History(ctx, conv, limit)
	if err != nil {
		return nil, err
	}
	a.decorate(ctx, msgs)
	return msgs, nil
}

// TotalUnread sums unread counts across the viewer's conversation list.
func (a *Aggregator) TotalUnread(ctx context.Context, viewerID string) (int, error) {
	summaries, err := a.ListConversations(ctx, viewerID)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, s := range summaries {
		total += s.UnreadCount
	}
	return total, nil
}

// decorate joins sender display attributes into messages, best-effort.
func (a *Aggregator) decorate(ctx context.Context, msgs []model.Message) {
	cache := make(map[string]model.Identity)
	for i := range msgs {
		ident, ok := cache[msgs[i].SenderID]
		if !ok {
			var err error
			ident, err = a.dir.Lookup(ctx, msgs[i].SenderID)
			if err != nil {
				continue
			}
			cache[msgs[i].SenderID] = ident
		}
		msgs[i].SenderName = ident.Name
		msgs[i].SenderAvatar = ident.Avatar
	}
}

func (a *Aggregator) decorateSummaries(ctx context.Context, summaries []Summary) {
	for i := range summaries {
		one := []model.Message{summaries[i].LastMessage}
		a.decorate(ctx, one)
		summaries[i].LastMessage = one[0]
	}
}
