package mesh

import (
	"encoding/json"
	"time"

	"github.com/shurankain/skreaver-sub005/errorsx"
)

// wireEnvelope is the flat JSON shape every Message variant marshals
// to and unmarshals from; Kind discriminates which fields apply, and
// From/To are simply absent (omitted, not zero-valued-but-present) for
// variants that do not carry them — restoring the same structural
// distinction the concrete Go types enforce.
type wireEnvelope struct {
	ID            MessageID       `json:"id"`
	Kind          string          `json:"kind"`
	From          string          `json:"from,omitempty"`
	To            string          `json:"to,omitempty"`
	PayloadKind   string          `json:"payloadKind"`
	Text          string          `json:"text,omitempty"`
	Binary        []byte          `json:"binary,omitempty"`
	JSON          json.RawMessage `json:"json,omitempty"`
	Command       string          `json:"command,omitempty"`
	Metadata      map[string]any  `json:"metadata,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlationId,omitempty"`
}

func payloadKindName(k PayloadKind) string {
	switch k {
	case PayloadText:
		return "text"
	case PayloadBinary:
		return "binary"
	case PayloadJSON:
		return "json"
	case PayloadCommand:
		return "command"
	default:
		return "text"
	}
}

func parsePayloadKind(s string) PayloadKind {
	switch s {
	case "binary":
		return PayloadBinary
	case "json":
		return PayloadJSON
	case "command":
		return PayloadCommand
	default:
		return PayloadText
	}
}

// Marshal serializes msg to its flat wire form.
func Marshal(msg Message) ([]byte, error) {
	env := msg.Envelope()
	w := wireEnvelope{
		ID:            env.ID,
		Kind:          msg.Kind().String(),
		PayloadKind:   payloadKindName(env.Payload.Kind),
		Text:          env.Payload.Text,
		Binary:        env.Payload.Binary,
		JSON:          env.Payload.JSON,
		Command:       env.Payload.Command,
		Metadata:      env.Metadata,
		Timestamp:     env.Timestamp,
		CorrelationID: env.CorrelationID,
	}
	switch v := msg.(type) {
	case UnicastMessage:
		w.From, w.To = v.From, v.To
	case BroadcastMessage:
		w.From = v.From
	case SystemMessage:
		w.To = v.To
	case AnonymousMessage:
	}
	data, err := json.Marshal(w)
	if err != nil {
		return nil, &errorsx.MeshError{Kind: errorsx.MeshSerialization, Message: err.Error(), Cause: err}
	}
	return data, nil
}

// Unmarshal restores a Message from its flat wire form, reconstructing
// the concrete variant named by the wire "kind" field.
func Unmarshal(data []byte) (Message, error) {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, &errorsx.MeshError{Kind: errorsx.MeshDeserialization, Message: err.Error(), Cause: err}
	}
	env := Envelope{
		ID: w.ID,
		Payload: Payload{
			Kind:    parsePayloadKind(w.PayloadKind),
			Text:    w.Text,
			Binary:  w.Binary,
			JSON:    w.JSON,
			Command: w.Command,
		},
		Metadata:      w.Metadata,
		Timestamp:     w.Timestamp,
		CorrelationID: w.CorrelationID,
	}
	switch w.Kind {
	case RouteUnicast.String():
		if w.From == "" || w.To == "" {
			return nil, &errorsx.MeshError{Kind: errorsx.MeshDeserialization, Message: "unicast message missing from/to"}
		}
		return UnicastMessage{Env: env, From: w.From, To: w.To}, nil
	case RouteBroadcast.String():
		return BroadcastMessage{Env: env, From: w.From}, nil
	case RouteSystem.String():
		return SystemMessage{Env: env, To: w.To}, nil
	case RouteAnonymous.String():
		return AnonymousMessage{Env: env}, nil
	default:
		return nil, &errorsx.MeshError{Kind: errorsx.MeshDeserialization, Message: "unknown route kind: " + w.Kind}
	}
}
