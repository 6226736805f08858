// Package mesh implements the inter-agent mesh: typed messages
// routed by compile-time-distinct variants, a transport exposing
// unicast/broadcast/pub-sub with bounded-buffer backpressure, and
// coordination patterns layered on top.
//
// Routing is grounded on the reference implementation's channelBroadcaster
// (runtime/mcp/broadcast.go) for the pub/sub fan-out shape and on
// runtime/toolregistry/messages.go for the typed-envelope idea, adapted
// from a single tool-call message to a routing-state family. Go has no
// phantom types, so this package falls back to using distinct
// concrete struct types per route (Unicast, Broadcast, System,
// Anonymous) — each exposes exactly the sender()/recipient() accessors
// its routing state allows, which a generic Message interface cannot,
// giving the same "unrepresentable invalid state" guarantee at the type
// level that a phantom-typed design would get from compile-time
// markers.
package mesh

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/shurankain/skreaver-sub005/errorsx"
)

// RouteKind discriminates which concrete Message variant an envelope
// carries.
type RouteKind int

const (
	RouteUnrouted RouteKind = iota
	RouteUnicast
	RouteBroadcast
	RouteSystem
	RouteAnonymous
)

func (k RouteKind) String() string {
	switch k {
	case RouteUnicast:
		return "unicast"
	case RouteBroadcast:
		return "broadcast"
	case RouteSystem:
		return "system"
	case RouteAnonymous:
		return "anonymous"
	default:
		return "unrouted"
	}
}

// PayloadKind discriminates the Payload union.
type PayloadKind int

const (
	PayloadText PayloadKind = iota
	PayloadBinary
	PayloadJSON
	PayloadCommand
)

// Payload is the mesh message body.
type Payload struct {
	Kind    PayloadKind
	Text    string
	Binary  []byte
	JSON    json.RawMessage
	Command string
}

// MessageID is a validated UUID: Parse
// fails with a distinct errorsx.MeshError for any non-UUID input, and
// New always produces a value that round-trips through Parse/String.
type MessageID uuid.UUID

// NewMessageID generates a fresh random MessageID.
func NewMessageID() MessageID { return MessageID(uuid.New()) }

// ParseMessageID parses s as a MessageID, failing with
// errorsx.MeshDeserialization on anything that is not a valid UUID.
func ParseMessageID(s string) (MessageID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return MessageID{}, &errorsx.MeshError{Kind: errorsx.MeshDeserialization, Message: "invalid message id: " + err.Error(), Cause: err}
	}
	return MessageID(u), nil
}

func (id MessageID) String() string { return uuid.UUID(id).String() }

func (id MessageID) MarshalJSON() ([]byte, error) {
	return json.Marshal(uuid.UUID(id).String())
}

func (id *MessageID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return &errorsx.MeshError{Kind: errorsx.MeshDeserialization, Message: "message id must be a JSON string", Cause: err}
	}
	parsed, err := ParseMessageID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

type (
	// Envelope carries the fields common to every routing variant.
	Envelope struct {
		ID            MessageID
		Payload       Payload
		Metadata      map[string]any
		Timestamp     time.Time
		CorrelationID string
	}

	// Message is the common capability set every routed variant
	// exposes. Sender/Recipient are deliberately NOT part of this
	// interface: they exist only as methods on the concrete variant
	// types that carry them, so calling code must type-assert (or
	// accept the concrete type) to reach them — a BroadcastMessage has
	// no Recipient(), a SystemMessage no Sender(), and an
	// AnonymousMessage neither.
	Message interface {
		Envelope() Envelope
		Kind() RouteKind
	}

	// UnicastMessage routes from exactly one sender to exactly one
	// recipient; both are statically present.
	UnicastMessage struct {
		Env  Envelope
		From string
		To   string
	}

	// BroadcastMessage routes from one sender to every subscriber; it
	// has no single recipient, and Recipient() is simply absent from
	// this type — not merely unset.
	BroadcastMessage struct {
		Env  Envelope
		From string
	}

	// SystemMessage is addressed to one recipient from the mesh itself
	// (no agent sender).
	SystemMessage struct {
		Env Envelope
		To  string
	}

	// AnonymousMessage carries neither sender nor recipient.
	AnonymousMessage struct {
		Env Envelope
	}
)

func (m UnicastMessage) Envelope() Envelope   { return m.Env }
func (m UnicastMessage) Kind() RouteKind      { return RouteUnicast }
func (m UnicastMessage) Sender() string       { return m.From }
func (m UnicastMessage) Recipient() string    { return m.To }

func (m BroadcastMessage) Envelope() Envelope { return m.Env }
func (m BroadcastMessage) Kind() RouteKind    { return RouteBroadcast }
func (m BroadcastMessage) Sender() string     { return m.From }

func (m SystemMessage) Envelope() Envelope { return m.Env }
func (m SystemMessage) Kind() RouteKind    { return RouteSystem }
func (m SystemMessage) Recipient() string  { return m.To }

func (m AnonymousMessage) Envelope() Envelope { return m.Env }
func (m AnonymousMessage) Kind() RouteKind    { return RouteAnonymous }

// Sender returns (sender, true) iff msg statically carries one
// (Unicast or Broadcast).
func Sender(msg Message) (string, bool) {
	switch v := msg.(type) {
	case UnicastMessage:
		return v.From, true
	case BroadcastMessage:
		return v.From, true
	default:
		return "", false
	}
}

// Recipient returns (recipient, true) iff msg statically carries one
// (Unicast or System).
func Recipient(msg Message) (string, bool) {
	switch v := msg.(type) {
	case UnicastMessage:
		return v.To, true
	case SystemMessage:
		return v.To, true
	default:
		return "", false
	}
}

// WithCorrelationID returns a copy of msg with its envelope's
// CorrelationID replaced, preserving its concrete route type. Used by
// RequestReply to stamp an outgoing request with the reply topic's
// correlation id without mutating the caller's original message.
func WithCorrelationID(msg Message, corr string) Message {
	switch v := msg.(type) {
	case UnicastMessage:
		v.Env.CorrelationID = corr
		return v
	case BroadcastMessage:
		v.Env.CorrelationID = corr
		return v
	case SystemMessage:
		v.Env.CorrelationID = corr
		return v
	case AnonymousMessage:
		v.Env.CorrelationID = corr
		return v
	default:
		return msg
	}
}
