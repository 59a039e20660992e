package model

import "time"

// Audience selects a broadcast target class when no explicit id list is given.
type Audience string

const (
	// AudienceAdmins targets every connection in the admin pool.
	AudienceAdmins Audience = "admins"
	// AudienceCustomers targets every currently connected non-admin identity.
	// This is the default when a target carries neither ids nor an audience.
	AudienceCustomers Audience = "customers"
)

// Notification is an out-of-band announcement (order shipped, promo live,
// stock alert). Live fan-out only; durable storage belongs to the external
// notification store, which consumes the firehose.
type Notification struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// BroadcastTarget names who receives a notification. Explicit ids win over
// the audience tag.
type BroadcastTarget struct {
	IDs      []string `json:"ids,omitempty"`
	Audience Audience `json:"audience,omitempty"`
}
