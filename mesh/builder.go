package mesh

import (
	"time"

	"github.com/shurankain/skreaver-sub005/errorsx"
)

// MessageBuilder constructs a typed Message at runtime, for call sites
// (e.g. deserializing a routing decision from config) where the route
// kind is not known until construction time. Compile-time-known routes
// should construct the concrete type directly or via the Unicast/
// Broadcast/System/Anonymous package functions; the builder exists for
// the dynamic case and fails explicitly when a required routing
// component is missing.
type MessageBuilder struct {
	kind          RouteKind
	from          string
	to            string
	payload       Payload
	metadata      map[string]any
	correlationID string
	err           error
}

// Unicast starts building a message routed from `from` to `to`.
func Unicast(from, to string) *MessageBuilder {
	return &MessageBuilder{kind: RouteUnicast, from: from, to: to}
}

// Broadcast starts building a message routed from `from` to every
// subscriber.
func Broadcast(from string) *MessageBuilder {
	return &MessageBuilder{kind: RouteBroadcast, from: from}
}

// System starts building a message routed to `to` with no agent
// sender.
func System(to string) *MessageBuilder {
	return &MessageBuilder{kind: RouteSystem, to: to}
}

// Anonymous starts building a message with no sender or recipient.
func Anonymous() *MessageBuilder {
	return &MessageBuilder{kind: RouteAnonymous}
}

// RouteBuilder starts building a message whose kind is chosen at
// runtime (e.g. by a config value), wiring from/to via With* methods.
// Build validates that the kind's required fields were supplied.
func RouteBuilder(kind RouteKind) *MessageBuilder {
	return &MessageBuilder{kind: kind}
}

// From sets the sender for a dynamically-built Unicast or Broadcast
// message.
func (b *MessageBuilder) From(from string) *MessageBuilder {
	b.from = from
	return b
}

// To sets the recipient for a dynamically-built Unicast or System
// message.
func (b *MessageBuilder) To(to string) *MessageBuilder {
	b.to = to
	return b
}

// WithText sets a text payload.
func (b *MessageBuilder) WithText(text string) *MessageBuilder {
	b.payload = Payload{Kind: PayloadText, Text: text}
	return b
}

// WithBinary sets a binary payload.
func (b *MessageBuilder) WithBinary(data []byte) *MessageBuilder {
	b.payload = Payload{Kind: PayloadBinary, Binary: data}
	return b
}

// WithJSON sets a raw JSON payload.
func (b *MessageBuilder) WithJSON(raw []byte) *MessageBuilder {
	b.payload = Payload{Kind: PayloadJSON, JSON: raw}
	return b
}

// WithCommand sets a command payload.
func (b *MessageBuilder) WithCommand(cmd string) *MessageBuilder {
	b.payload = Payload{Kind: PayloadCommand, Command: cmd}
	return b
}

// WithMetadata attaches a metadata key/value.
func (b *MessageBuilder) WithMetadata(key string, value any) *MessageBuilder {
	if b.metadata == nil {
		b.metadata = make(map[string]any)
	}
	b.metadata[key] = value
	return b
}

// WithCorrelationID sets the correlation id, used by request/reply
// patterns to match replies to requests.
func (b *MessageBuilder) WithCorrelationID(id string) *MessageBuilder {
	b.correlationID = id
	return b
}

// Build validates the accumulated fields against b's RouteKind and
// returns the corresponding concrete Message, failing if a routing
// component the kind requires (sender and/or recipient) is empty.
func (b *MessageBuilder) Build() (Message, error) {
	env := Envelope{
		ID:            NewMessageID(),
		Payload:       b.payload,
		Metadata:      b.metadata,
		Timestamp:     time.Now().UTC(),
		CorrelationID: b.correlationID,
	}
	switch b.kind {
	case RouteUnicast:
		if b.from == "" || b.to == "" {
			return nil, invalidRoute("unicast requires both from and to")
		}
		return UnicastMessage{Env: env, From: b.from, To: b.to}, nil
	case RouteBroadcast:
		if b.from == "" {
			return nil, invalidRoute("broadcast requires from")
		}
		return BroadcastMessage{Env: env, From: b.from}, nil
	case RouteSystem:
		if b.to == "" {
			return nil, invalidRoute("system requires to")
		}
		return SystemMessage{Env: env, To: b.to}, nil
	case RouteAnonymous:
		return AnonymousMessage{Env: env}, nil
	default:
		return nil, invalidRoute("unrouted message cannot be built")
	}
}

func invalidRoute(reason string) error {
	return &errorsx.MeshError{Kind: errorsx.MeshInvalidConfig, Message: reason}
}
