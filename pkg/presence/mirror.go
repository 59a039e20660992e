package presence

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"
)

// Redis set keys the mirror maintains. The REST presence endpoint and any
// out-of-process consumer read these.
const (
	OnlineSet = "presence:online"
	AdminSet  = "presence:admins"
)

// Mirror decorates a Registry, reflecting membership into Redis sets.
// Mirroring is best-effort: the in-process registry stays authoritative and a
// Redis hiccup never affects connection lifecycle.
type Mirror struct {
	Registry
	rdb *redis.Client
}

func NewMirror(inner Registry, rdb *redis.Client) *Mirror {
	return &Mirror{Registry: inner, rdb: rdb}
}

func (m *Mirror) Bind(id string, c Conn) Conn {
	prev := m.Registry.Bind(id, c)
	if err := m.rdb.SAdd(context.Background(), OnlineSet, id).Err(); err != nil {
		log.Printf("presence mirror: add %s: %v", id, err)
	}
	return prev
}

func (m *Mirror) Unbind(id string, c Conn) bool {
	ok := m.Registry.Unbind(id, c)
	if ok {
		if err := m.rdb.SRem(context.Background(), OnlineSet, id).Err(); err != nil {
			log.Printf("presence mirror: remove %s: %v", id, err)
		}
	}
	return ok
}

func (m *Mirror) JoinPool(c Conn) {
	m.Registry.JoinPool(c)
	if err := m.rdb.SAdd(context.Background(), AdminSet, c.ID()).Err(); err != nil {
		log.Printf("presence mirror: add admin %s: %v", c.ID(), err)
	}
}

func (m *Mirror) LeavePool(c Conn) {
	m.Registry.LeavePool(c)
	if err := m.rdb.SRem(context.Background(), AdminSet, c.ID()).Err(); err != nil {
		log.Printf("presence mirror: remove admin %s: %v", c.ID(), err)
	}
}
