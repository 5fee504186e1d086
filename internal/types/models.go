// internal/types/models.go
package types

import (
	"time"
)

// ContentKind describes what a filed message held. Informational only; the
// stores accept any value.
type ContentKind string

const (
	ContentText     ContentKind = "text"
	ContentPhoto    ContentKind = "photo"
	ContentVideo    ContentKind = "video"
	ContentDocument ContentKind = "document"
	ContentOther    ContentKind = "other"
)

// Category is a user-defined bucket for filed messages. Names are
// case-sensitive and unique per owner.
type Category struct {
	ID        CategoryID `json:"id"`
	Owner     OwnerID    `json:"owner"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
}

// MessageReference points at platform-hosted content by chat and message id.
// It never carries the content itself.
type MessageReference struct {
	ID         ReferenceID `json:"id"`
	Owner      OwnerID     `json:"owner"`
	CategoryID CategoryID  `json:"category_id"`
	ChatID     ChatID      `json:"chat_id"`
	MessageID  MessageID   `json:"message_id"`
	Kind       ContentKind `json:"kind"`
	FiledAt    time.Time   `json:"filed_at"`
}

// AuditEntry records a completed mutation for one owner.
type AuditEntry struct {
	ID          AuditID     `json:"id"`
	Owner       OwnerID     `json:"owner"`
	Seq         int64       `json:"seq"`
	Action      string      `json:"action"`
	CategoryID  CategoryID  `json:"category_id,omitempty"`
	ReferenceID ReferenceID `json:"reference_id,omitempty"`
	Detail      string      `json:"detail,omitempty"`
	At          time.Time   `json:"at"`
}

// EventKind classifies an inbound transport event.
type EventKind string

const (
	EventCommand  EventKind = "command"
	EventCallback EventKind = "callback"
	EventText     EventKind = "text"
	EventForward  EventKind = "forward"
)

// InboundEvent is the transport-neutral shape of one user interaction.
// Exactly one of Command/Callback/Text is meaningful depending on Kind;
// EventForward carries the MessageID and Content of the forwardable message.
type InboundEvent struct {
	Owner     OwnerID     `json:"owner"`
	ChatID    ChatID      `json:"chat_id"`
	Kind      EventKind   `json:"kind"`
	Command   string      `json:"command,omitempty"`
	Callback  string      `json:"callback,omitempty"`
	Text      string      `json:"text,omitempty"`
	MessageID MessageID   `json:"message_id,omitempty"`
	Content   ContentKind `json:"content,omitempty"`
}

// Button is a labeled action on a keyboard. Data is an opaque callback
// payload round-tripped back to the router.
type Button struct {
	Label string `json:"label"`
	Data  string `json:"data"`
}

// Keyboard is a transport-neutral action grid.
type Keyboard struct {
	Rows [][]Button `json:"rows"`
}

// Outbound is a single response to the user: rendered text, an optional
// keyboard, and references the transport should re-deliver first.
type Outbound struct {
	ChatID    ChatID              `json:"chat_id"`
	Text      string              `json:"text"`
	Keyboard  *Keyboard           `json:"keyboard,omitempty"`
	Redeliver []*MessageReference `json:"redeliver,omitempty"`
}
