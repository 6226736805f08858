package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shurankain/skreaver-sub005/errorsx"
	"github.com/shurankain/skreaver-sub005/tool"
	"github.com/shurankain/skreaver-sub005/unified"
)

// singleToolCall is the wire shape DefaultSelector decodes from a
// Message's first text part.
type singleToolCall struct {
	Tool  string `json:"tool"`
	Input string `json:"input"`
}

// DefaultSelector decodes the message's first text part as a JSON
// object {"tool": "...", "input": "..."} naming the tool to invoke.
// Bridges with richer routing needs supply their own ToolSelector.
func DefaultSelector(msg unified.Message) (tool.Call, error) {
	if len(msg.Parts) == 0 || msg.Parts[0].Kind != unified.ContentText {
		return tool.Call{}, &errorsx.AgentError{Kind: errorsx.AgentInvalidRequest, Reason: "expected a text part naming {tool, input}"}
	}
	var req singleToolCall
	if err := json.Unmarshal([]byte(msg.Parts[0].Text.Value), &req); err != nil {
		return tool.Call{}, &errorsx.AgentError{Kind: errorsx.AgentInvalidRequest, Reason: "invalid tool selector payload: " + err.Error(), Cause: err}
	}
	id, err := tool.NewToolId(req.Tool)
	if err != nil {
		return tool.Call{}, err
	}
	return tool.Call{Name: id, Input: req.Input}, nil
}

// ToolSelector maps an incoming peer Message to the local tool call it
// should trigger. Implementations typically inspect the message's
// first text part (e.g. "<tool-name> <json-input>") or its Metadata.
type ToolSelector func(msg unified.Message) (tool.Call, error)

// ToolServerAsAgent exposes a tool.Registry as a unified.UnifiedAgent
//: incoming peer messages are mapped to tool
// invocations via Selector, tool success becomes a completed task with
// one text Artifact, and tool failure becomes a Failed task.
type ToolServerAsAgent struct {
	info     unified.AgentInfo
	reg      *tool.Registry
	selector ToolSelector
	mu       sync.Mutex
	tasks    map[string]*unified.Task
}

// NewToolServerAsAgent builds a ToolServerAsAgent fronting reg,
// advertised under info, routing incoming messages via selector.
func NewToolServerAsAgent(info unified.AgentInfo, reg *tool.Registry, selector ToolSelector) *ToolServerAsAgent {
	return &ToolServerAsAgent{info: info, reg: reg, selector: selector, tasks: make(map[string]*unified.Task)}
}

var _ unified.UnifiedAgent = (*ToolServerAsAgent)(nil)

// Info returns the static AgentInfo this bridge was constructed with.
func (b *ToolServerAsAgent) Info(ctx context.Context) (unified.AgentInfo, error) {
	return b.info, nil
}

// SendMessage maps msg to a tool call via Selector, runs it
// synchronously, and returns a completed or failed Task carrying the
// result as an Artifact.
func (b *ToolServerAsAgent) SendMessage(ctx context.Context, msg unified.Message) (unified.Task, error) {
	now := time.Now()
	task := &unified.Task{ID: uuid.NewString(), Status: unified.TaskPending, CreatedAt: now, UpdatedAt: now}
	if err := task.AddMessage(msg, now); err != nil {
		return unified.Task{}, &errorsx.AgentError{Kind: errorsx.AgentInternal, Protocol: "toolserver-bridge", Reason: err.Error(), Cause: err}
	}

	call, err := b.selector(msg)
	if err != nil {
		_ = task.SetStatus(unified.TaskFailed, time.Now())
		b.store(task)
		return *task, &errorsx.AgentError{Kind: errorsx.AgentInvalidRequest, Protocol: "toolserver-bridge", Reason: err.Error(), Cause: err}
	}

	res, err := b.reg.TryDispatch(ctx, call)
	if err != nil {
		_ = task.SetStatus(unified.TaskFailed, time.Now())
		b.store(task)
		return *task, nil
	}
	if !res.IsSuccess() {
		_ = task.SetStatus(unified.TaskFailed, time.Now())
		task.AddArtifact(unified.Artifact{ID: "result", Final: true, Parts: []unified.ContentPart{unified.NewTextPart(res.Reason(), nil)}})
		b.store(task)
		return *task, nil
	}

	task.AddArtifact(unified.Artifact{ID: "result", Final: true, Parts: []unified.ContentPart{unified.NewTextPart(res.Output(), nil)}})
	_ = task.SetStatus(unified.TaskCompleted, time.Now())
	b.store(task)
	return *task, nil
}

// GetTask returns a previously completed bridge task by id.
func (b *ToolServerAsAgent) GetTask(ctx context.Context, id string) (unified.Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.tasks[id]
	if !ok {
		return unified.Task{}, &errorsx.AgentError{Kind: errorsx.AgentTaskNotFound, Protocol: "toolserver-bridge", Reason: id}
	}
	return *t, nil
}

// CancelTask marks a bridge task canceled. Since tool calls run
// synchronously to completion before a task is ever visible, this
// only affects tasks that have not yet reached a terminal status,
// which in practice means none — included for UnifiedAgent
// conformance and future async bridging.
func (b *ToolServerAsAgent) CancelTask(ctx context.Context, id string) (unified.Task, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.tasks[id]
	if !ok {
		return unified.Task{}, &errorsx.AgentError{Kind: errorsx.AgentTaskNotFound, Protocol: "toolserver-bridge", Reason: id}
	}
	_ = t.SetStatus(unified.TaskCanceled, time.Now())
	return *t, nil
}

// Stream runs SendMessage and emits its terminal status as the sole
// stream event, since the underlying tool.Registry has no incremental
// progress notion.
func (b *ToolServerAsAgent) Stream(ctx context.Context, msg unified.Message) (<-chan unified.StreamEvent, error) {
	ch := make(chan unified.StreamEvent, 1)
	go func() {
		defer close(ch)
		task, err := b.SendMessage(ctx, msg)
		if err != nil {
			ch <- unified.StreamEvent{Kind: unified.EventError, Reason: err.Error()}
			return
		}
		ch <- unified.StreamEvent{Kind: unified.EventStatusUpdate, Status: task.Status}
	}()
	return ch, nil
}

func (b *ToolServerAsAgent) store(task *unified.Task) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tasks[task.ID] = task
}
