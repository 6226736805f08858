package a2a

import (
	"time"

	"github.com/shurankain/skreaver-sub005/unified"
)

// FromUnifiedMessage converts a unified.Message to its wire form without
// lossy conversion: part ordering, roles, and media types survive
// byte-for-byte.
func FromUnifiedMessage(m unified.Message) Message {
	wire := Message{
		ID:               m.ID,
		Role:             roleToWire(m.Role),
		ReferenceTaskIDs: m.ReferenceTaskIDs,
		Metadata:         m.Metadata,
	}
	if m.Timestamp != nil {
		wire.Timestamp = m.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	for _, p := range m.Parts {
		wire.Parts = append(wire.Parts, fromUnifiedPart(p))
	}
	return wire
}

// ToUnifiedMessage converts a wire Message back to unified.Message.
func ToUnifiedMessage(m Message) unified.Message {
	out := unified.Message{
		ID:               m.ID,
		Role:             roleFromWire(m.Role),
		ReferenceTaskIDs: m.ReferenceTaskIDs,
		Metadata:         m.Metadata,
	}
	if m.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339Nano, m.Timestamp); err == nil {
			out.Timestamp = &ts
		}
	}
	for _, p := range m.Parts {
		out.Parts = append(out.Parts, toUnifiedPart(p))
	}
	return out
}

func fromUnifiedPart(p unified.ContentPart) Part {
	switch p.Kind {
	case unified.ContentText:
		return Part{Type: "text", Text: p.Text.Value, Metadata: p.Text.Metadata}
	case unified.ContentFile:
		return Part{Type: "file", URI: p.File.URI, MediaType: p.File.MediaType, Name: p.File.Name, Metadata: p.File.Metadata}
	case unified.ContentData:
		return Part{Type: "data", Data: p.Data.JSON, MediaType: p.Data.MediaType, Metadata: p.Data.Metadata}
	default:
		return Part{Type: "text"}
	}
}

func toUnifiedPart(p Part) unified.ContentPart {
	switch p.Type {
	case "file":
		return unified.NewFilePart(p.URI, p.MediaType, p.Name, p.Metadata)
	case "data":
		return unified.NewDataPart(p.Data, p.MediaType, p.Metadata)
	default:
		return unified.NewTextPart(p.Text, p.Metadata)
	}
}

func roleToWire(r unified.Role) string {
	switch r {
	case unified.RoleAgent:
		return "agent"
	case unified.RoleSystem:
		return "system"
	default:
		return "user"
	}
}

func roleFromWire(s string) unified.Role {
	switch s {
	case "agent":
		return unified.RoleAgent
	case "system":
		return unified.RoleSystem
	default:
		return unified.RoleUser
	}
}

func statusToWire(s unified.TaskStatus) string {
	switch s {
	case unified.TaskPending:
		return "submitted"
	case unified.TaskWorking:
		return "working"
	case unified.TaskInputRequired:
		return "input-required"
	case unified.TaskCompleted:
		return "completed"
	case unified.TaskFailed:
		return "failed"
	case unified.TaskCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

func statusFromWire(s string) unified.TaskStatus {
	switch s {
	case "submitted":
		return unified.TaskPending
	case "working":
		return unified.TaskWorking
	case "input-required":
		return unified.TaskInputRequired
	case "completed":
		return unified.TaskCompleted
	case "failed":
		return unified.TaskFailed
	case "canceled":
		return unified.TaskCanceled
	default:
		return unified.TaskPending
	}
}

// FromUnifiedArtifact converts a unified.Artifact to its wire form.
func FromUnifiedArtifact(a unified.Artifact) Artifact {
	wire := Artifact{ID: a.ID, MediaType: a.MediaType, Label: a.Label, Description: a.Description, Metadata: a.Metadata, Final: a.Final}
	for _, p := range a.Parts {
		wire.Parts = append(wire.Parts, fromUnifiedPart(p))
	}
	return wire
}

// ToUnifiedArtifact converts a wire Artifact back to unified.Artifact.
func ToUnifiedArtifact(a Artifact) unified.Artifact {
	out := unified.Artifact{ID: a.ID, MediaType: a.MediaType, Label: a.Label, Description: a.Description, Metadata: a.Metadata, Final: a.Final}
	for _, p := range a.Parts {
		out.Parts = append(out.Parts, toUnifiedPart(p))
	}
	return out
}

// FromUnifiedTask converts a unified.Task to its wire form.
func FromUnifiedTask(t unified.Task) Task {
	wire := Task{
		ID:        t.ID,
		Status:    TaskStatus{State: statusToWire(t.Status)},
		ContextID: t.ContextID,
		CreatedAt: t.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt: t.UpdatedAt.UTC().Format(time.RFC3339Nano),
		Metadata:  t.Metadata,
	}
	for _, m := range t.Messages {
		wire.Messages = append(wire.Messages, FromUnifiedMessage(m))
	}
	for _, a := range t.Artifacts {
		wire.Artifacts = append(wire.Artifacts, FromUnifiedArtifact(a))
	}
	return wire
}

// ToUnifiedTask converts a wire Task back to unified.Task.
func ToUnifiedTask(t Task) unified.Task {
	out := unified.Task{
		ID:        t.ID,
		Status:    statusFromWire(t.Status.State),
		ContextID: t.ContextID,
		Metadata:  t.Metadata,
	}
	if ts, err := time.Parse(time.RFC3339Nano, t.CreatedAt); err == nil {
		out.CreatedAt = ts
	}
	if ts, err := time.Parse(time.RFC3339Nano, t.UpdatedAt); err == nil {
		out.UpdatedAt = ts
	}
	for _, m := range t.Messages {
		out.Messages = append(out.Messages, ToUnifiedMessage(m))
	}
	for _, a := range t.Artifacts {
		out.Artifacts = append(out.Artifacts, ToUnifiedArtifact(a))
	}
	return out
}
