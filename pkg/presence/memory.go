package presence

import "sync"

// Memory is the in-process Registry. Connect/disconnect handlers are the only
// writers; pushes read through snapshots so fan-out never holds the lock.
type Memory struct {
	mu    sync.RWMutex
	conns map[string]Conn
	pool  map[Conn]struct{}
}

func NewMemory() *Memory {
	return &Memory{
		conns: make(map[string]Conn),
		pool:  make(map[Conn]struct{}),
	}
}

func (m *Memory) Bind(id string, c Conn) Conn {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.conns[id]
	m.conns[id] = c
	return prev
}

func (m *Memory) Unbind(id string, c Conn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conns[id] != c {
		return false
	}
	delete(m.conns, id)
	return true
}

func (m *Memory) Get(id string) (Conn, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.conns[id]
	return c, ok
}

func (m *Memory) Online() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.conns))
	for id := range m.conns {
		ids = append(ids, id)
	}
	return ids
}

func (m *Memory) JoinPool(c Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pool[c] = struct{}{}
}

func (m *Memory) LeavePool(c Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pool, c)
}

func (m *Memory) Pool() []Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Conn, 0, len(m.pool))
	for c := range m.pool {
		out = append(out, c)
	}
	return out
}
