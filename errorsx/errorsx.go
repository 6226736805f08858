// Package errorsx defines the domain-partitioned error taxonomy shared
// across the runtime. Each kind carries structured fields instead of a
// free-form message so callers can branch on them with errors.As, and
// each supports wrapping an underlying cause so chains survive through
// errors.Is/errors.As.
package errorsx

import (
	"errors"
	"fmt"
)

// MemoryError reports a failure in the memory contract.
type MemoryError struct {
	Kind    MemoryErrorKind
	Key     string
	Backend string
	Reason  string
	Cause   error
}

// MemoryErrorKind enumerates the MemoryError variants.
type MemoryErrorKind int

const (
	MemoryStoreFailed MemoryErrorKind = iota
	MemoryLoadFailed
	MemoryConnectionFailed
	MemoryInvalidKey
	MemoryTransactionFailed
)

func (e *MemoryError) Error() string {
	switch e.Kind {
	case MemoryStoreFailed:
		return fmt.Sprintf("memory: store failed for key %q: %s", e.Key, e.Reason)
	case MemoryLoadFailed:
		return fmt.Sprintf("memory: load failed for key %q on backend %q: %s", e.Key, e.Backend, e.Reason)
	case MemoryConnectionFailed:
		return fmt.Sprintf("memory: connection to backend %q failed: %s", e.Backend, e.Reason)
	case MemoryInvalidKey:
		return fmt.Sprintf("memory: invalid key %q: %s", e.Key, e.Reason)
	case MemoryTransactionFailed:
		return fmt.Sprintf("memory: transaction failed: %s", e.Reason)
	default:
		return fmt.Sprintf("memory: %s", e.Reason)
	}
}

func (e *MemoryError) Unwrap() error { return e.Cause }

// NewInvalidKey builds a MemoryError for a key that fails validation.
func NewInvalidKey(key, reason string) *MemoryError {
	return &MemoryError{Kind: MemoryInvalidKey, Key: key, Reason: reason}
}

// ToolError reports a failure in tool dispatch.
type ToolError struct {
	Kind      ToolErrorKind
	Name      string
	Input     string
	Principal string
	Reason    string
	// RetryHint is an optional example payload the caller can use to retry
	// the call with corrected input, surfaced by the registry on Failure.
	RetryHint string
	Cause     error
}

// ToolErrorKind enumerates the ToolError variants.
type ToolErrorKind int

const (
	ToolNotFound ToolErrorKind = iota
	ToolInvalidInput
	ToolAccessDenied
	ToolExecutionFailed
)

func (e *ToolError) Error() string {
	switch e.Kind {
	case ToolNotFound:
		return fmt.Sprintf("tool: %q not found", e.Name)
	case ToolInvalidInput:
		return fmt.Sprintf("tool: invalid input for %q: %s", e.Name, e.Reason)
	case ToolAccessDenied:
		return fmt.Sprintf("tool: %q denied for principal %q", e.Name, e.Principal)
	case ToolExecutionFailed:
		return fmt.Sprintf("tool: %q execution failed: %s", e.Name, e.Reason)
	default:
		return fmt.Sprintf("tool: %s", e.Reason)
	}
}

func (e *ToolError) Unwrap() error { return e.Cause }

// NewToolFailure wraps an arbitrary error into a ToolExecutionFailed, preserving
// the chain via Unwrap. Mirrors the reference implementation's toolerrors.NewWithCause shape.
func NewToolFailure(name string, cause error) *ToolError {
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	return &ToolError{Kind: ToolExecutionFailed, Name: name, Reason: reason, Cause: cause}
}

// AgentError reports a failure in the unified agent model or a protocol
// adapter (C5–C8).
type AgentError struct {
	Kind     AgentErrorKind
	Protocol string
	Reason   string
	Cause    error
}

// AgentErrorKind enumerates the AgentError variants.
type AgentErrorKind int

const (
	AgentProtocolNotSupported AgentErrorKind = iota
	AgentCapabilityNotFound
	AgentTaskNotFound
	AgentNotFound
	AgentConnectionError
	AgentTimeout
	AgentAuthenticationFailed
	AgentInvalidRequest
	AgentInvalidResponse
	AgentSerialization
	AgentInternal
)

func (e *AgentError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("agent: %s: %s", e.kindLabel(), e.Reason)
	}
	return fmt.Sprintf("agent: %s", e.kindLabel())
}

func (e *AgentError) Unwrap() error { return e.Cause }

func (e *AgentError) kindLabel() string {
	switch e.Kind {
	case AgentProtocolNotSupported:
		return "protocol not supported"
	case AgentCapabilityNotFound:
		return "capability not found"
	case AgentTaskNotFound:
		return "task not found"
	case AgentNotFound:
		return "agent not found"
	case AgentConnectionError:
		return "connection error"
	case AgentTimeout:
		return "timeout"
	case AgentAuthenticationFailed:
		return "authentication failed"
	case AgentInvalidRequest:
		return "invalid request"
	case AgentInvalidResponse:
		return "invalid response"
	case AgentSerialization:
		return "serialization error"
	default:
		return "internal error"
	}
}

// CoordinatorError reports a failure driving an agent through a step.
type CoordinatorError struct {
	Kind        CoordinatorErrorKind
	Reason      string
	FailedTools []string
	Key         string
	Cause       error
}

// CoordinatorErrorKind enumerates the CoordinatorError variants.
type CoordinatorErrorKind int

const (
	CoordinatorStepFailed CoordinatorErrorKind = iota
	CoordinatorToolDispatchFailed
	CoordinatorContextUpdateFailed
)

func (e *CoordinatorError) Error() string {
	switch e.Kind {
	case CoordinatorStepFailed:
		return fmt.Sprintf("coordinator: step failed: %s", e.Reason)
	case CoordinatorToolDispatchFailed:
		return fmt.Sprintf("coordinator: tool dispatch failed for %v", e.FailedTools)
	case CoordinatorContextUpdateFailed:
		return fmt.Sprintf("coordinator: context update failed for key %q: %s", e.Key, e.Reason)
	default:
		return fmt.Sprintf("coordinator: %s", e.Reason)
	}
}

func (e *CoordinatorError) Unwrap() error { return e.Cause }

// BackpressureError reports a failure in the HTTP runtime's admission
// control.
type BackpressureError struct {
	Kind      BackpressureErrorKind
	AgentID   string
	MaxSize   int
	Ms        int
	Load      float64
	Message   string
	Cause     error
}

// BackpressureErrorKind enumerates the BackpressureError variants.
type BackpressureErrorKind int

const (
	BackpressureQueueFull BackpressureErrorKind = iota
	BackpressureQueueTimeout
	BackpressureProcessingTimeout
	BackpressureSystemOverloaded
	BackpressureAgentNotFound
	BackpressureRequestCancelled
	BackpressureInternal
)

func (e *BackpressureError) Error() string {
	switch e.Kind {
	case BackpressureQueueFull:
		return fmt.Sprintf("backpressure: queue full for agent %q (max %d)", e.AgentID, e.MaxSize)
	case BackpressureQueueTimeout:
		return fmt.Sprintf("backpressure: queue timeout after %dms", e.Ms)
	case BackpressureProcessingTimeout:
		return fmt.Sprintf("backpressure: processing timeout after %dms", e.Ms)
	case BackpressureSystemOverloaded:
		return fmt.Sprintf("backpressure: system overloaded (load %.2f)", e.Load)
	case BackpressureAgentNotFound:
		return fmt.Sprintf("backpressure: agent %q not found", e.AgentID)
	case BackpressureRequestCancelled:
		return "backpressure: request cancelled"
	default:
		return fmt.Sprintf("backpressure: %s", e.Message)
	}
}

func (e *BackpressureError) Unwrap() error { return e.Cause }

// MeshError reports a failure in the inter-agent mesh.
type MeshError struct {
	Kind     MeshErrorKind
	Size     int
	Limit    int
	Capacity int
	Current  int
	Topic    string
	AgentID  string
	Timeout  string
	Message  string
	Cause    error
}

// MeshErrorKind enumerates the MeshError variants.
type MeshErrorKind int

const (
	MeshConnectionFailed MeshErrorKind = iota
	MeshSendFailed
	MeshReceiveFailed
	MeshSubscribeFailed
	MeshUnsubscribeFailed
	MeshSerialization
	MeshDeserialization
	MeshQueueFull
	MeshMessageTooLarge
	MeshAgentNotFound
	MeshTopicNotFound
	MeshTimeout
	MeshInvalidConfig
	MeshBackendError
	MeshOther
)

func (e *MeshError) Error() string {
	switch e.Kind {
	case MeshQueueFull:
		return fmt.Sprintf("mesh: queue full (capacity %d, current %d)", e.Capacity, e.Current)
	case MeshMessageTooLarge:
		return fmt.Sprintf("mesh: message too large (%d bytes, limit %d)", e.Size, e.Limit)
	case MeshAgentNotFound:
		return fmt.Sprintf("mesh: agent %q not found", e.AgentID)
	case MeshTopicNotFound:
		return fmt.Sprintf("mesh: topic %q not found", e.Topic)
	case MeshTimeout:
		return fmt.Sprintf("mesh: timeout after %s", e.Timeout)
	default:
		if e.Message != "" {
			return fmt.Sprintf("mesh: %s", e.Message)
		}
		return "mesh: error"
	}
}

func (e *MeshError) Unwrap() error { return e.Cause }

// As is a small convenience wrapper around errors.As for the common case of
// checking whether err is (or wraps) one of the taxonomy's pointer types.
func As[T error](err error) (T, bool) {
	var target T
	ok := errors.As(err, &target)
	return target, ok
}
