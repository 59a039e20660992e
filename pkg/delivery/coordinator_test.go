package delivery

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aminrj/storedesk/pkg/identity"
	"github.com/aminrj/storedesk/pkg/model"
	"github.com/aminrj/storedesk/pkg/presence"
	"github.com/aminrj/storedesk/pkg/snowflake"
	"github.com/aminrj/storedesk/pkg/store"
)

type fakeConn struct {
	id   string
	fail bool

	mu  sync.Mutex
	evs []model.Event
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Push(ev model.Event) error {
	if f.fail {
		return errors.New("send buffer full")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evs = append(f.evs, ev)
	return nil
}

func (f *fakeConn) events() []model.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Event, len(f.evs))
	copy(out, f.evs)
	return out
}

func (f *fakeConn) messages() []model.Message {
	var out []model.Message
	for _, ev := range f.events() {
		if ev.Type == model.EventIncomingMessage && ev.Message != nil {
			out = append(out, *ev.Message)
		}
	}
	return out
}

type failStore struct {
	store.MessageStore
}

func (f *failStore) Append(ctx context.Context, msg *model.Message) error {
	return errors.New("cluster unreachable")
}

type capturePublisher struct {
	mu    sync.Mutex
	msgs  []model.Message
	notes []model.Notification
}

func (c *capturePublisher) PublishMessage(ctx context.Context, msg *model.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, *msg)
	return nil
}

func (c *capturePublisher) PublishNotification(ctx context.Context, n model.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notes = append(c.notes, n)
	return nil
}

type fixture struct {
	store    *store.Memory
	registry *presence.Memory
	dir      *identity.Memory
	pub      *capturePublisher
	coord    *Coordinator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}
	f := &fixture{
		store:    store.NewMemory(),
		registry: presence.NewMemory(),
		dir:      identity.NewMemory(),
		pub:      &capturePublisher{},
	}
	f.coord = NewCoordinator(f.store, f.registry, f.dir, node, f.pub)

	f.dir.Put(model.Identity{ID: "agent1", Role: model.RoleAdmin, Name: "Agent One"})
	f.dir.Put(model.Identity{ID: "agent2", Role: model.RoleAdmin, Name: "Agent Two"})
	f.dir.Put(model.Identity{ID: "cust1", Role: model.RoleCustomer, Name: "Customer One"})
	f.dir.Put(model.Identity{ID: "cust2", Role: model.RoleCustomer, Name: "Customer Two"})
	return f
}

// connect binds a fake connection and, for admins, joins the pool the way the
// gateway does.
func (f *fixture) connect(id string, admin bool) *fakeConn {
	c := &fakeConn{id: id}
	f.registry.Bind(id, c)
	if admin {
		f.registry.JoinPool(c)
	}
	return c
}

func TestSendPersistsThenPushes(t *testing.T) {
	f := newFixture(t)
	agent := f.connect("agent1", true)

	msg, err := f.coord.Send(context.Background(), "cust1", "agent1", "hello", model.KindText, nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if msg.ID == 0 || msg.CreatedAt.IsZero() {
		t.Fatal("id and createdAt must be assigned at persistence")
	}
	if msg.Read {
		t.Fatal("new message must start unread")
	}
	if msg.ConversationID != "cust1" {
		t.Fatalf("conversation = %q, want cust1", msg.ConversationID)
	}

	hist, _ := f.store.History(context.Background(), "cust1", 0)
	if len(hist) != 1 || hist[0].ID != msg.ID {
		t.Fatalf("message not in store: %v", hist)
	}

	got := agent.messages()
	if len(got) != 1 || got[0].Body != "hello" {
		t.Fatalf("agent push = %v", got)
	}
	if got[0].ConversationID != "cust1" {
		t.Fatalf("push conversation = %q, want cust1", got[0].ConversationID)
	}

	if len(f.pub.msgs) != 1 {
		t.Fatalf("firehose got %d messages, want 1", len(f.pub.msgs))
	}
}

func TestSendPersistenceFailurePushesNothing(t *testing.T) {
	f := newFixture(t)
	agent := f.connect("agent1", true)

	node, _ := snowflake.NewNode(1)
	broken := NewCoordinator(&failStore{MessageStore: f.store}, f.registry, f.dir, node, f.pub)

	_, err := broken.Send(context.Background(), "cust1", "agent1", "hello", model.KindText, nil)
	if !errors.Is(err, model.ErrPersistence) {
		t.Fatalf("err = %v, want ErrPersistence", err)
	}

	if hist, _ := f.store.History(context.Background(), "cust1", 0); len(hist) != 0 {
		t.Fatal("nothing may be stored on persistence failure")
	}
	if len(agent.events()) != 0 {
		t.Fatal("nothing may be pushed on persistence failure")
	}
	if len(f.pub.msgs) != 0 {
		t.Fatal("nothing may reach the firehose on persistence failure")
	}
}

func TestSendInvalidRecipient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, recipient := range []string{"", "cust1", "ghost"} {
		if _, err := f.coord.Send(ctx, "cust1", recipient, "hi", model.KindText, nil); !errors.Is(err, model.ErrInvalidRecipient) {
			t.Fatalf("recipient %q: err = %v, want ErrInvalidRecipient", recipient, err)
		}
	}
	if ids, _ := f.store.Conversations(ctx); len(ids) != 0 {
		t.Fatal("rejected sends must not persist")
	}
}

func TestCustomerCannotMessageCustomer(t *testing.T) {
	f := newFixture(t)
	cust2 := f.connect("cust2", false)
	ctx := context.Background()

	_, err := f.coord.Send(ctx, "cust1", "cust2", "psst", model.KindText, nil)
	if !errors.Is(err, model.ErrInvalidRecipient) {
		t.Fatalf("err = %v, want ErrInvalidRecipient", err)
	}

	// Nothing durable, nothing live: a customer pair thread would be
	// unreachable from every conversation list and history fetch.
	if ids, _ := f.store.Conversations(ctx); len(ids) != 0 {
		t.Fatal("rejected send must not persist")
	}
	if len(cust2.events()) != 0 {
		t.Fatal("rejected send must not push")
	}
}

func TestAdminCanMessageAdmin(t *testing.T) {
	f := newFixture(t)
	agent2 := f.connect("agent2", true)

	msg, err := f.coord.Send(context.Background(), "agent1", "agent2", "can you take cust1?", model.KindText, nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if msg.ConversationID != "dm:agent1:agent2" {
		t.Fatalf("conversation = %q, want dm:agent1:agent2", msg.ConversationID)
	}
	// Direct only: admin senders never fan out to the pool.
	if n := len(agent2.messages()); n != 1 {
		t.Fatalf("agent2 got %d copies, want 1", n)
	}
}

func TestCustomerSendFansOutToAdminPool(t *testing.T) {
	f := newFixture(t)
	agent1 := f.connect("agent1", true)
	agent2 := f.connect("agent2", true)
	cust2 := f.connect("cust2", false)
	sender := f.connect("cust1", false)

	if _, err := f.coord.Send(context.Background(), "cust1", "agent1", "help", model.KindText, nil); err != nil {
		t.Fatalf("Send: %v", err)
	}

	// The addressed admin gets exactly one copy, not direct plus fan-out.
	if n := len(agent1.messages()); n != 1 {
		t.Fatalf("agent1 got %d copies, want 1", n)
	}
	// Every other pool member sees the customer message live.
	if n := len(agent2.messages()); n != 1 {
		t.Fatalf("agent2 got %d copies, want 1", n)
	}
	// No one else.
	if n := len(cust2.messages()); n != 0 {
		t.Fatalf("cust2 got %d copies, want 0", n)
	}
	if n := len(sender.messages()); n != 0 {
		t.Fatalf("sender got %d copies, want 0", n)
	}
}

func TestAdminReplyGoesOnlyToCustomer(t *testing.T) {
	f := newFixture(t)
	f.connect("agent1", true)
	agent2 := f.connect("agent2", true)
	cust1 := f.connect("cust1", false)

	if _, err := f.coord.Send(context.Background(), "agent1", "cust1", "on it", model.KindText, nil); err != nil {
		t.Fatalf("Send: %v", err)
	}

	got := cust1.messages()
	if len(got) != 1 {
		t.Fatalf("customer got %d copies, want 1", len(got))
	}
	// Replies are filed under the customer's conversation on their screen.
	if got[0].ConversationID != "cust1" {
		t.Fatalf("conversation = %q, want cust1", got[0].ConversationID)
	}
	if len(agent2.messages()) != 0 {
		t.Fatal("admin replies must not fan out to the pool")
	}
}

func TestSendToOfflineRecipientSucceeds(t *testing.T) {
	f := newFixture(t)

	msg, err := f.coord.Send(context.Background(), "agent1", "cust1", "still there?", model.KindText, nil)
	if err != nil {
		t.Fatalf("recipient offline must not fail send: %v", err)
	}
	hist, _ := f.store.History(context.Background(), "cust1", 0)
	if len(hist) != 1 || hist[0].ID != msg.ID {
		t.Fatal("message must be durable for later fetch")
	}
}

func TestFanOutIsolatedPerTarget(t *testing.T) {
	f := newFixture(t)
	stuck := &fakeConn{id: "agent1", fail: true}
	f.registry.Bind("agent1", stuck)
	f.registry.JoinPool(stuck)
	agent2 := f.connect("agent2", true)

	if _, err := f.coord.Send(context.Background(), "cust1", "agent1", "anyone?", model.KindText, nil); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(agent2.messages()) != 1 {
		t.Fatal("one failed target must not block the rest of the pool")
	}
}

func TestMarkReadIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.coord.Send(ctx, "cust1", "agent1", "one", model.KindText, nil)
	f.coord.Send(ctx, "cust1", "agent1", "two", model.KindText, nil)

	updated, err := f.coord.MarkRead(ctx, "cust1", "agent1")
	if err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if updated != 2 {
		t.Fatalf("updated = %d, want 2", updated)
	}

	updated, err = f.coord.MarkRead(ctx, "cust1", "agent1")
	if err != nil {
		t.Fatalf("MarkRead again: %v", err)
	}
	if updated != 0 {
		t.Fatalf("second call updated = %d, want 0", updated)
	}

	unread, _ := f.store.CountUnread(ctx, "cust1", "agent1")
	if unread != 0 {
		t.Fatalf("unread = %d, want 0", unread)
	}
}

func TestMarkReadSupportAliasClearsWholeThread(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.coord.Send(ctx, "agent1", "cust1", "one", model.KindText, nil)
	f.coord.Send(ctx, "agent2", "cust1", "two", model.KindText, nil)
	f.coord.Send(ctx, "cust1", "agent1", "thanks", model.KindText, nil)

	// The customer's list names the pool, not individual agents; reading via
	// the alias clears every admin's messages in one call.
	updated, err := f.coord.MarkRead(ctx, model.PoolAlias, "cust1")
	if err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if updated != 2 {
		t.Fatalf("updated = %d, want 2", updated)
	}

	updated, err = f.coord.MarkRead(ctx, model.PoolAlias, "cust1")
	if err != nil {
		t.Fatalf("MarkRead again: %v", err)
	}
	if updated != 0 {
		t.Fatalf("second call updated = %d, want 0", updated)
	}

	// The customer's own outbound message stays unread on the admin side.
	unread, _ := f.store.CountUnread(ctx, "cust1", "agent1")
	if unread != 1 {
		t.Fatalf("admin unread = %d, want 1", unread)
	}
}

func TestTypingRelay(t *testing.T) {
	f := newFixture(t)
	agent1 := f.connect("agent1", true)
	agent2 := f.connect("agent2", true)
	cust1 := f.connect("cust1", false)

	f.coord.Typing(context.Background(), "cust1", "agent1", true)

	for name, conn := range map[string]*fakeConn{"agent1": agent1, "agent2": agent2} {
		evs := conn.events()
		if len(evs) != 1 || evs[0].Type != model.EventPeerTyping {
			t.Fatalf("%s events = %v, want one peer_typing", name, evs)
		}
		if evs[0].Peer.SenderID != "cust1" || !evs[0].Peer.IsTyping {
			t.Fatalf("%s payload = %+v", name, evs[0].Peer)
		}
	}
	if len(cust1.events()) != 0 {
		t.Fatal("sender must not receive their own typing signal")
	}

	// Admin typing goes point-to-point only.
	f.coord.Typing(context.Background(), "agent1", "cust1", true)
	if len(cust1.events()) != 1 {
		t.Fatal("customer should receive the admin typing signal")
	}
	if len(agent2.events()) != 1 {
		t.Fatal("admin typing must not fan out to the pool")
	}
}
