package model

import "time"

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
)

// PoolAlias is the counterpart id a customer's client uses for the collapsed
// admin pool: one name for whichever agents are behind the desk.
const PoolAlias = "support"

// Identity is a participant as supplied by the identity provider. The
// messaging core never mutates identities.
type Identity struct {
	ID     string `json:"id"`
	Role   Role   `json:"role"`
	Name   string `json:"name,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

type MessageKind string

const (
	KindText MessageKind = "text"
	KindFile MessageKind = "file"
)

type FileMeta struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Message is one entry in the durable log. The only mutation ever applied
// after append is the one-way read:false->true transition.
type Message struct {
	ID             int64       `json:"id"`
	ConversationID string      `json:"conversation_id"`
	SenderID       string      `json:"sender_id"`
	RecipientID    string      `json:"recipient_id"`
	Body           string      `json:"body"`
	Kind           MessageKind `json:"kind"`
	File           *FileMeta   `json:"file,omitempty"`
	Read           bool        `json:"read"`
	ReadAt         *time.Time  `json:"read_at,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`

	// Display attributes joined in for API/push payloads; not persisted.
	SenderName   string `json:"sender_name,omitempty"`
	SenderAvatar string `json:"sender_avatar,omitempty"`
}

// ConversationKey files a mixed-role pair under the non-admin participant's
// id, so a customer's thread with support is one conversation no matter which
// admin replies. Admin pairs get a direct pair key; customer pairs never
// occur, the coordinator rejects customer-to-customer sends.
func ConversationKey(a, b Identity) string {
	if a.Role == RoleAdmin && b.Role != RoleAdmin {
		return b.ID
	}
	if b.Role == RoleAdmin && a.Role != RoleAdmin {
		return a.ID
	}
	lo, hi := a.ID, b.ID
	if lo > hi {
		lo, hi = hi, lo
	}
	return "dm:" + lo + ":" + hi
}
