package model

// EventType tags the wire envelope. Inbound types are the only events a
// client may send; everything else is push-only.
type EventType string

const (
	// Inbound.
	EventHandshake EventType = "handshake"
	EventCompose   EventType = "compose"
	EventMarkRead  EventType = "mark_read"
	EventTyping    EventType = "typing"
	EventNotify    EventType = "notify"

	// Outbound.
	EventHandshakeAck         EventType = "handshake_ack"
	EventIncomingMessage      EventType = "incoming_message"
	EventPeerTyping           EventType = "peer_typing"
	EventPresenceGained       EventType = "presence_gained"
	EventPresenceLost         EventType = "presence_lost"
	EventOnlineSnapshot       EventType = "online_snapshot"
	EventIncomingNotification EventType = "incoming_notification"
	EventError                EventType = "error"
)

// Event is the tagged envelope for everything crossing a live connection.
// Exactly one payload field matches Type; the gateway dispatches on Type in a
// single switch so the contract stays checkable in one place.
type Event struct {
	Type EventType `json:"type"`

	Handshake *HandshakePayload `json:"handshake,omitempty"`
	Compose   *ComposePayload   `json:"compose,omitempty"`
	MarkRead  *MarkReadPayload  `json:"mark_read,omitempty"`
	Typing    *TypingPayload    `json:"typing,omitempty"`
	Notify    *NotifyPayload    `json:"notify,omitempty"`

	Ack          *HandshakeAck  `json:"ack,omitempty"`
	Message      *Message       `json:"message,omitempty"`
	Peer         *PeerTyping    `json:"peer,omitempty"`
	Presence     *PresenceEvent `json:"presence,omitempty"`
	Online       []string       `json:"online,omitempty"`
	Notification *Notification  `json:"notification,omitempty"`
	Error        string         `json:"error,omitempty"`
}

// HandshakePayload carries the signed (identityId, role) pair issued by the
// identity provider. Nothing else is accepted before it.
type HandshakePayload struct {
	Token string `json:"token"`
}

type HandshakeAck struct {
	OK       bool      `json:"ok"`
	Error    string    `json:"error,omitempty"`
	Identity *Identity `json:"identity,omitempty"`
}

type ComposePayload struct {
	RecipientID string      `json:"recipient_id"`
	Body        string      `json:"body"`
	Kind        MessageKind `json:"kind,omitempty"`
	File        *FileMeta   `json:"file,omitempty"`
}

type MarkReadPayload struct {
	SenderID string `json:"sender_id"`
}

type TypingPayload struct {
	RecipientID string `json:"recipient_id"`
	IsTyping    bool   `json:"is_typing"`
}

type NotifyPayload struct {
	Notification Notification `json:"notification"`
	TargetIDs    []string     `json:"target_ids,omitempty"`
	Audience     Audience     `json:"audience,omitempty"`
}

type PeerTyping struct {
	SenderID string `json:"sender_id"`
	IsTyping bool   `json:"is_typing"`
}

type PresenceEvent struct {
	IdentityID string `json:"identity_id"`
}
