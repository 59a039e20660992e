package presence

import "github.com/aminrj/storedesk/pkg/model"

// Conn is a live, authenticated connection able to receive pushed events.
// Push must not block; a full peer drops the event (live delivery is a hint,
// durable state lives in the message store).
type Conn interface {
	ID() string
	Push(ev model.Event) error
}

// Registry tracks which identities currently have an open, authenticated
// connection, plus the admin pool. Single process only: a multi-node
// deployment substitutes a shared implementation behind this interface.
type Registry interface {
	// Bind registers conn as the live connection for id and returns the
	// connection it replaced, if any. One entry per identity.
	Bind(id string, c Conn) (prev Conn)

	// Unbind removes the entry for id, but only if it is still bound to c,
	// so a superseded connection's teardown cannot evict its replacement.
	Unbind(id string, c Conn) bool

	Get(id string) (Conn, bool)

	// Online lists every identity currently bound.
	Online() []string

	JoinPool(c Conn)
	LeavePool(c Conn)

	// Pool snapshots the admin-pool connections.
	Pool() []Conn
}
