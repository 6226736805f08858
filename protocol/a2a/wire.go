// Package a2a implements Protocol Adapter A: the peer-agent wire
// protocol's task lifecycle, message/artifact exchange, streaming
// events, and the well-known agent discovery card. Wire types use
// camelCase JSON field names.
//
//nolint:tagliatelle // the peer-agent wire protocol mandates camelCase
package a2a

import "encoding/json"

type (
	// AgentCard is the discovery document served at
	// /.well-known/agent.json.
	AgentCard struct {
		ID                 string               `json:"id"`
		Name               string               `json:"name"`
		URL                string               `json:"url"`
		Description        string               `json:"description,omitempty"`
		Version             string              `json:"version,omitempty"`
		Capabilities       CardCapabilities      `json:"capabilities"`
		Skills             []Skill              `json:"skills"`
		Interfaces         []string             `json:"interfaces,omitempty"`
		Security           []map[string][]string `json:"security,omitempty"`
	}

	// CardCapabilities flags the optional protocol features this agent
	// supports.
	CardCapabilities struct {
		Streaming               bool `json:"streaming"`
		PushNotifications       bool `json:"pushNotifications"`
		StateTransitionHistory  bool `json:"stateTransitionHistory"`
	}

	// Skill is one capability advertised in the AgentCard.
	Skill struct {
		ID          string   `json:"id"`
		Name        string   `json:"name"`
		Description string   `json:"description,omitempty"`
		Tags        []string `json:"tags,omitempty"`
	}

	// SendMessageRequest is the tasks/send and tasks/sendSubscribe body.
	SendMessageRequest struct {
		Message   Message        `json:"message"`
		TaskID    string         `json:"taskId,omitempty"`
		ContextID string         `json:"contextId,omitempty"`
		Metadata  map[string]any `json:"metadata,omitempty"`
	}

	// SendMessageResponse wraps the resulting task.
	SendMessageResponse struct {
		Task Task `json:"task"`
	}

	// CancelRequest is the tasks/{id}/cancel body.
	CancelRequest struct {
		Reason string `json:"reason,omitempty"`
	}

	// Message is the wire form of unified.Message.
	Message struct {
		ID               string         `json:"id,omitempty"`
		Role             string         `json:"role"`
		Parts            []Part         `json:"parts"`
		ReferenceTaskIDs []string       `json:"referenceTaskIds,omitempty"`
		Timestamp        string         `json:"timestamp,omitempty"`
		Metadata         map[string]any `json:"metadata,omitempty"`
	}

	// Part is tagged by Type: "text", "file", or "data".
	Part struct {
		Type      string          `json:"type"`
		Text      string          `json:"text,omitempty"`
		URI       string          `json:"uri,omitempty"`
		MediaType string          `json:"mediaType,omitempty"`
		Name      string          `json:"name,omitempty"`
		Data      json.RawMessage `json:"data,omitempty"`
		Metadata  map[string]any  `json:"metadata,omitempty"`
	}

	// Task is the wire form of unified.Task.
	Task struct {
		ID        string         `json:"id"`
		Status    TaskStatus     `json:"status"`
		Messages  []Message      `json:"messages,omitempty"`
		Artifacts []Artifact     `json:"artifacts,omitempty"`
		ContextID string         `json:"contextId,omitempty"`
		CreatedAt string         `json:"createdAt,omitempty"`
		UpdatedAt string         `json:"updatedAt,omitempty"`
		Metadata  map[string]any `json:"metadata,omitempty"`
	}

	// TaskStatus carries the state and optional status message.
	TaskStatus struct {
		State     string   `json:"state"`
		Message   *Message `json:"message,omitempty"`
		Timestamp string   `json:"timestamp,omitempty"`
	}

	// Artifact is the wire form of unified.Artifact.
	Artifact struct {
		ID          string         `json:"id"`
		Parts       []Part         `json:"parts"`
		MediaType   string         `json:"mediaType,omitempty"`
		Label       string         `json:"label,omitempty"`
		Description string         `json:"description,omitempty"`
		Metadata    map[string]any `json:"metadata,omitempty"`
		Final       bool           `json:"final,omitempty"`
	}

	// StreamingEvent is one SSE frame from tasks/sendSubscribe.
	StreamingEvent struct {
		Type                string           `json:"type"`
		TaskID              string           `json:"taskId"`
		TaskStatusUpdate    *TaskStatus      `json:"taskStatusUpdate,omitempty"`
		TaskArtifactUpdate  *Artifact        `json:"taskArtifactUpdate,omitempty"`
		Message             *Message         `json:"message,omitempty"`
		Final               bool             `json:"final,omitempty"`
	}

	// ErrorResponse is the error envelope for every A2A endpoint.
	ErrorResponse struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Data    any    `json:"data,omitempty"`
	}
)

const (
	eventTypeStatus   = "taskStatusUpdate"
	eventTypeArtifact = "taskArtifactUpdate"
)
