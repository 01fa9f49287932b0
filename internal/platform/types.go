// Package platform abstracts the hosting chat surfaces. Adapters deliver
// inbound events and expose the send/update/delete primitives the turn
// processor needs; everything platform-specific stays behind this boundary.
package platform

import (
	"context"
	"encoding/json"
	"time"
)

// EventKind classifies an inbound platform event.
type EventKind string

const (
	EventMessage      EventKind = "message"
	EventMemberJoined EventKind = "member_joined"
)

// ActionClearHistory is the special action that short-circuits a turn and
// clears the conversation's history.
const ActionClearHistory = "clearHistory"

// Event is one inbound platform event. PrincipalID is empty when the
// platform provides no durable identity for the sender.
type Event struct {
	Kind           EventKind
	Text           string
	ConversationID string
	PrincipalID    string
	SpecialAction  string
	ReceivedAt     time.Time
}

// Payload is one outbound message body: plain text, or a citation card.
type Payload struct {
	Text string
	Card json.RawMessage
}

// IsCard reports whether the payload carries a card attachment.
func (p Payload) IsCard() bool {
	return len(p.Card) > 0
}

// Capabilities describes which payload kinds a platform can edit in place.
type Capabilities struct {
	CanUpdateText bool
	CanUpdateCard bool
}

// CanUpdate reports whether the platform supports in-place edit for the
// given payload.
func (c Capabilities) CanUpdate(p Payload) bool {
	if p.IsCard() {
		return c.CanUpdateCard
	}
	return c.CanUpdateText
}

// Messenger sends into the conversation an event arrived from. All calls are
// fire-and-forget from the turn processor's perspective except that
// SendMessage's returned identifier is needed for a later update or delete.
type Messenger interface {
	SendMessage(ctx context.Context, p Payload) (string, error)
	UpdateMessage(ctx context.Context, messageID string, p Payload) error
	DeleteMessage(ctx context.Context, messageID string) error
	SendTyping(ctx context.Context) error
	Capabilities() Capabilities
}

// Handler processes one inbound event with a messenger bound to its
// conversation.
type Handler func(ctx context.Context, ev Event, m Messenger) error

// Connection is a live adapter session.
type Connection interface {
	Stop(ctx context.Context) error
}

// Adapter is a chat platform integration.
type Adapter interface {
	Type() string
	Capabilities() Capabilities
	Connect(ctx context.Context, handler Handler) (Connection, error)
}

// StopFunc adapts a function to the Connection interface.
type StopFunc func(ctx context.Context) error

// Stop implements Connection.
func (f StopFunc) Stop(ctx context.Context) error { return f(ctx) }
