package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/aminrj/storedesk/pkg/auth"
	"github.com/aminrj/storedesk/pkg/delivery"
	"github.com/aminrj/storedesk/pkg/identity"
	"github.com/aminrj/storedesk/pkg/model"
	"github.com/aminrj/storedesk/pkg/presence"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum event size allowed from peer.
	maxMessageSize = 4096

	// Outbound buffer per connection; a full buffer drops the push.
	sendBuffer = 256

	// Compose events per second a single connection may emit.
	composeRate  = 5
	composeBurst = 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // storefront and back office are served cross-origin
	},
}

var errSendBufferFull = errors.New("send buffer full")

// Gateway owns connection lifecycle: handshake, event dispatch, presence
// registration, teardown.
type Gateway struct {
	registry presence.Registry
	rec      identity.Recorder
	coord    *delivery.Coordinator
	bcast    *delivery.Broadcaster
}

func NewGateway(reg presence.Registry, rec identity.Recorder, coord *delivery.Coordinator, bcast *delivery.Broadcaster) *Gateway {
	return &Gateway{registry: reg, rec: rec, coord: coord, bcast: bcast}
}

// Client is a middleman between one websocket connection and the core.
// A connection is Unauthenticated until its handshake event succeeds, then
// Authenticated until it closes. Rebinding is not supported.
type Client struct {
	gw      *Gateway
	conn    *websocket.Conn
	send    chan model.Event
	done    chan struct{}
	limiter *rate.Limiter

	// Set once by readPump on successful handshake, read only from readPump
	// and teardown paths on that same goroutine.
	identity model.Identity
	authed   bool
}

func (c *Client) ID() string { return c.identity.ID }

// Push queues an event without blocking. A full buffer means the peer is too
// slow; the event is dropped and the peer refetches durable state.
func (c *Client) Push(ev model.Event) error {
	select {
	case c.send <- ev:
		return nil
	default:
		return errSendBufferFull
	}
}

// ServeWS upgrades the connection and runs the pumps. Authentication happens
// in-band via the handshake event, not at upgrade time.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}
	c := &Client{
		gw:      g,
		conn:    conn,
		send:    make(chan model.Event, sendBuffer),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(composeRate), composeBurst),
	}
	go c.writePump()
	c.readPump()
}

// readPump pumps events from the websocket connection into the dispatcher.
func (c *Client) readPump() {
	defer c.teardown()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("read: %v", err)
			}
			return
		}
		var ev model.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			c.pushError("malformed event")
			continue
		}
		c.dispatch(ev)
	}
}

// dispatch is the single place inbound events are interpreted.
func (c *Client) dispatch(ev model.Event) {
	ctx := context.Background()

	if !c.authed && ev.Type != model.EventHandshake {
		c.pushError(model.ErrAuthenticationRequired.Error())
		return
	}

	switch ev.Type {
	case model.EventHandshake:
		c.handleHandshake(ctx, ev.Handshake)

	case model.EventCompose:
		if ev.Compose == nil {
			c.pushError("compose payload required")
			return
		}
		if !c.limiter.Allow() {
			c.pushError("slow down")
			return
		}
		if _, err := c.gw.coord.Send(ctx, c.identity.ID, ev.Compose.RecipientID, ev.Compose.Body, ev.Compose.Kind, ev.Compose.File); err != nil {
			c.pushError(err.Error())
		}

	case model.EventMarkRead:
		if ev.MarkRead == nil {
			c.pushError("mark_read payload required")
			return
		}
		if _, err := c.gw.coord.MarkRead(ctx, ev.MarkRead.SenderID, c.identity.ID); err != nil {
			c.pushError(err.Error())
		}

	case model.EventTyping:
		if ev.Typing == nil {
			c.pushError("typing payload required")
			return
		}
		c.gw.coord.Typing(ctx, c.identity.ID, ev.Typing.RecipientID, ev.Typing.IsTyping)

	case model.EventNotify:
		if ev.Notify == nil {
			c.pushError("notify payload required")
			return
		}
		if c.identity.Role != model.RoleAdmin {
			c.pushError("notify is admin-only")
			return
		}
		c.gw.bcast.Broadcast(ctx, ev.Notify.Notification, model.BroadcastTarget{
			IDs:      ev.Notify.TargetIDs,
			Audience: ev.Notify.Audience,
		})

	default:
		c.pushError("unknown event type: " + string(ev.Type))
	}
}

func (c *Client) handleHandshake(ctx context.Context, p *model.HandshakePayload) {
	if c.authed {
		c.pushError("already authenticated")
		return
	}
	if p == nil || p.Token == "" {
		c.pushAck(false, "token required")
		return
	}
	claims, err := auth.ValidateToken(p.Token)
	if err != nil {
		c.pushAck(false, "invalid token")
		return
	}

	c.identity = claims.Identity()
	c.authed = true

	if c.gw.rec != nil {
		if err := c.gw.rec.Record(ctx, c.identity); err != nil {
			log.Printf("identity record %s: %v", c.identity.ID, err)
		}
	}

	// Single active connection per identity: a newer tab replaces the old
	// one. Tell the loser before cutting it off.
	if prev := c.gw.registry.Bind(c.identity.ID, c); prev != nil {
		_ = prev.Push(model.Event{Type: model.EventError, Error: "connection superseded"})
		c.gw.registry.LeavePool(prev)
		if pc, ok := prev.(*Client); ok {
			pc.conn.Close()
		}
	}

	c.pushAck(true, "")

	if c.identity.Role == model.RoleAdmin {
		c.gw.registry.JoinPool(c)
		// Seed the agent's online-users list.
		_ = c.Push(model.Event{Type: model.EventOnlineSnapshot, Online: c.gw.registry.Online()})
	} else {
		for _, pc := range c.gw.registry.Pool() {
			_ = pc.Push(model.Event{
				Type:     model.EventPresenceGained,
				Presence: &model.PresenceEvent{IdentityID: c.identity.ID},
			})
		}
	}

	log.Printf("client authenticated: %s (%s)", c.identity.ID, c.identity.Role)
}

func (c *Client) teardown() {
	close(c.done)
	c.conn.Close()
	if !c.authed {
		return
	}
	c.gw.registry.LeavePool(c)
	if c.gw.registry.Unbind(c.identity.ID, c) && c.identity.Role != model.RoleAdmin {
		// The pool loses sight of this customer. Superseded connections skip
		// this: the identity is still online through its replacement.
		for _, pc := range c.gw.registry.Pool() {
			_ = pc.Push(model.Event{
				Type:     model.EventPresenceLost,
				Presence: &model.PresenceEvent{IdentityID: c.identity.ID},
			})
		}
	}
	log.Printf("client disconnected: %s", c.identity.ID)
}

// writePump pumps queued events to the websocket connection and keeps the
// transport's liveness detection fed with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case ev := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) pushError(msg string) {
	_ = c.Push(model.Event{Type: model.EventError, Error: msg})
}

func (c *Client) pushAck(ok bool, errMsg string) {
	ack := &model.HandshakeAck{OK: ok, Error: errMsg}
	if ok {
		id := c.identity
		ack.Identity = &id
	}
	_ = c.Push(model.Event{Type: model.EventHandshakeAck, Ack: ack})
}
