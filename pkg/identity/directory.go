package identity

import (
	"context"
	"sync"

	"github.com/aminrj/storedesk/pkg/model"
)

// Directory is the narrow read contract to the external identity provider.
// The messaging core resolves roles and display attributes through it and
// never mutates identities.
type Directory interface {
	Lookup(ctx context.Context, id string) (model.Identity, error)
}

// Recorder caches verified identities observed at handshake/login so the
// aggregator can join display attributes without a round trip to the
// provider. Implemented by both directory backends.
type Recorder interface {
	Record(ctx context.Context, id model.Identity) error
}

// Memory backs tests and single-node runs.
type Memory struct {
	mu   sync.RWMutex
	byID map[string]model.Identity
}

func NewMemory() *Memory {
	return &Memory{byID: make(map[string]model.Identity)}
}

func (m *Memory) Record(ctx context.Context, id model.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[id.ID] = id
	return nil
}

// Put seeds an identity; test helper alias for Record.
func (m *Memory) Put(id model.Identity) {
	_ = m.Record(context.Background(), id)
}

func (m *Memory) Lookup(ctx context.Context, id string) (model.Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ident, ok := m.byID[id]
	if !ok {
		return model.Identity{}, model.ErrUnknownIdentity
	}
	return ident, nil
}
