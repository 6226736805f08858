// Package unified defines the protocol-agnostic agent data model:
// Message, Task, Artifact, Capability, and AgentInfo, plus the
// UnifiedAgent capability set both protocol adapters (A2A, tool-server)
// convert into and out of without lossy conversion.
package unified

import (
	"context"
	"time"
)

// Role identifies who authored a Message.
type Role int

const (
	RoleUser Role = iota
	RoleAgent
	RoleSystem
)

// ContentPart is one ordered element of a Message or Artifact. Exactly
// one of Text, File, or Data describes a given part; Kind says which.
type ContentPart struct {
	Kind ContentKind
	Text TextContent
	File FileContent
	Data DataContent
}

// ContentKind discriminates the ContentPart union.
type ContentKind int

const (
	ContentText ContentKind = iota
	ContentFile
	ContentData
)

// TextContent is a plain-text content part.
type TextContent struct {
	Value    string
	Metadata map[string]any
}

// FileContent is a file-reference content part. MediaType is preserved
// byte-for-byte across protocol round trips.
type FileContent struct {
	URI       string
	MediaType string
	Name      string
	Metadata  map[string]any
}

// DataContent is a structured-JSON content part.
type DataContent struct {
	JSON      []byte
	MediaType string
	Metadata  map[string]any
}

// NewTextPart constructs a text ContentPart.
func NewTextPart(value string, meta map[string]any) ContentPart {
	return ContentPart{Kind: ContentText, Text: TextContent{Value: value, Metadata: meta}}
}

// NewFilePart constructs a file ContentPart.
func NewFilePart(uri, mediaType, name string, meta map[string]any) ContentPart {
	return ContentPart{Kind: ContentFile, File: FileContent{URI: uri, MediaType: mediaType, Name: name, Metadata: meta}}
}

// NewDataPart constructs a structured-data ContentPart.
func NewDataPart(json []byte, mediaType string, meta map[string]any) ContentPart {
	return ContentPart{Kind: ContentData, Data: DataContent{JSON: json, MediaType: mediaType, Metadata: meta}}
}

// Message is an ordered sequence of content parts attributed to a role.
// Part ordering is semantically significant and is preserved
// through every conversion in this repository.
type Message struct {
	ID               string
	Role             Role
	Parts            []ContentPart
	ReferenceTaskIDs []string
	Timestamp        *time.Time
	Metadata         map[string]any
}

// TaskStatus is one node of the task lifecycle DAG.
type TaskStatus int

const (
	TaskPending TaskStatus = iota
	TaskWorking
	TaskInputRequired
	TaskCompleted
	TaskFailed
	TaskCanceled
)

// IsTerminal reports whether status has no further valid transitions.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskCanceled:
		return true
	default:
		return false
	}
}

// String renders the status for logs and wire encodings.
func (s TaskStatus) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskWorking:
		return "working"
	case TaskInputRequired:
		return "input-required"
	case TaskCompleted:
		return "completed"
	case TaskFailed:
		return "failed"
	case TaskCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Artifact is an output unit of a Task. Once published with Final set,
// it must not be mutated again.
type Artifact struct {
	ID          string
	Parts       []ContentPart
	MediaType   string
	Label       string
	Description string
	Metadata    map[string]any
	Final       bool
}

// Task is the protocol-agnostic unit of work tracked by an adapter.
// Status transitions are validated by SetStatus; UpdatedAt is
// monotonically non-decreasing across the task's lifetime.
type Task struct {
	ID        string
	Status    TaskStatus
	Messages  []Message
	Artifacts []Artifact
	ContextID string
	CreatedAt time.Time
	UpdatedAt time.Time
	Metadata  map[string]any
}

// validTransitions enumerates the DAG edges: Pending→Working;
// Working↔InputRequired; Working→{Completed,Failed,Canceled}.
var validTransitions = map[TaskStatus]map[TaskStatus]bool{
	TaskPending:       {TaskWorking: true},
	TaskWorking:       {TaskInputRequired: true, TaskCompleted: true, TaskFailed: true, TaskCanceled: true},
	TaskInputRequired: {TaskWorking: true},
}

// ErrInvalidTransition is returned by SetStatus for an edge not in the
// DAG, including any attempt to leave a terminal status.
type ErrInvalidTransition struct {
	From, To TaskStatus
}

func (e *ErrInvalidTransition) Error() string {
	return "unified: invalid task status transition from " + e.From.String() + " to " + e.To.String()
}

// SetStatus transitions the task to next if the DAG permits it, bumping
// UpdatedAt. A terminal task accepts no further transitions.
func (t *Task) SetStatus(next TaskStatus, now time.Time) error {
	if t.Status.IsTerminal() {
		return &ErrInvalidTransition{From: t.Status, To: next}
	}
	if !validTransitions[t.Status][next] {
		return &ErrInvalidTransition{From: t.Status, To: next}
	}
	t.Status = next
	if now.After(t.UpdatedAt) {
		t.UpdatedAt = now
	}
	return nil
}

// AddMessage appends msg to the task's history. Adding a message to a
// Pending task transitions it to Working.
func (t *Task) AddMessage(msg Message, now time.Time) error {
	if t.Status == TaskPending {
		if err := t.SetStatus(TaskWorking, now); err != nil {
			return err
		}
	}
	t.Messages = append(t.Messages, msg)
	if now.After(t.UpdatedAt) {
		t.UpdatedAt = now
	}
	return nil
}

// AddArtifact appends art to the task. Marking an artifact Final twice
// is harmless: the second call is a no-op update
// to the same slice entry, not a new artifact.
func (t *Task) AddArtifact(art Artifact) {
	for i := range t.Artifacts {
		if t.Artifacts[i].ID == art.ID {
			t.Artifacts[i] = art
			return
		}
	}
	t.Artifacts = append(t.Artifacts, art)
}

// Capability is a declarative descriptor of an ability an agent
// advertises.
type Capability struct {
	Name        string
	Description string
	Schema      []byte
}

// Protocol identifies which wire protocol an AgentInfo's endpoint speaks.
type Protocol int

const (
	ProtocolPeerAgent Protocol = iota
	ProtocolToolServer
	ProtocolUnified
)

// AgentInfo is the discoverable identity of an agent.
type AgentInfo struct {
	ID           string
	Name         string
	Version      string
	Description  string
	Endpoint     string
	Protocol     Protocol
	Capabilities []Capability
	Interfaces   []string
	Tags         []string
	Metadata     map[string]any
}

// StreamEventKind discriminates the StreamEvent union.
type StreamEventKind int

const (
	EventStatusUpdate StreamEventKind = iota
	EventMessageAdded
	EventArtifactAdded
	EventError
)

// StreamEvent is one element of the lazy, finite event stream returned
// by UnifiedAgent.Stream. A stream terminates with either a terminal
// StatusUpdate or an Error event.
type StreamEvent struct {
	Kind            StreamEventKind
	Status          TaskStatus
	StatusMessage   *Message
	Message         *Message
	Artifact        *Artifact
	ArtifactIsFinal bool
	Reason          string
}

// UnifiedAgent is the capability set every protocol adapter converts
// into: discover identity, send a message and await a task, fetch or
// cancel a task by id, and stream task lifecycle events.
type UnifiedAgent interface {
	Info(ctx context.Context) (AgentInfo, error)
	SendMessage(ctx context.Context, msg Message) (Task, error)
	GetTask(ctx context.Context, id string) (Task, error)
	CancelTask(ctx context.Context, id string) (Task, error)
	Stream(ctx context.Context, msg Message) (<-chan StreamEvent, error)
}
