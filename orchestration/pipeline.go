// Package orchestration composes unified.UnifiedAgent values into
// higher-order agents: a sequential pipeline, a parallel fan-out
// with configurable aggregation, rule- and capability-based routers,
// and a bounded supervisor decision loop. Every composite itself
// implements unified.UnifiedAgent, so orchestration nests arbitrarily
// deep without the rest of the runtime needing to know.
package orchestration

import (
	"context"

	"github.com/shurankain/skreaver-sub005/errorsx"
	"github.com/shurankain/skreaver-sub005/unified"
)

// SequentialPipeline runs a fixed list of agents in order, feeding each
// stage's task output forward as the next stage's input message. It short-circuits on the first Failed task.
type SequentialPipeline struct {
	info   unified.AgentInfo
	stages []unified.UnifiedAgent
}

// NewSequentialPipeline builds a pipeline over stages, advertised under
// info. With no stages, SendMessage returns a zero Task and a nil
// error.
func NewSequentialPipeline(info unified.AgentInfo, stages ...unified.UnifiedAgent) *SequentialPipeline {
	return &SequentialPipeline{info: info, stages: stages}
}

var _ unified.UnifiedAgent = (*SequentialPipeline)(nil)

// Info returns the pipeline's own advertised identity, not any stage's.
func (p *SequentialPipeline) Info(ctx context.Context) (unified.AgentInfo, error) {
	return p.info, nil
}

// SendMessage runs msg through every stage in order. Stage i+1 receives
// a synthesized Message built from stage i's task: every Artifact part
// (in artifact order) followed by the parts of the task's last
// agent-authored message, all under Role = Agent. This is the one
// message-aggregation convention this repo follows (DESIGN.md Open
// Question (c)); it mirrors the reference convertArtifact +
// history-append behavior when relaying A2A task state onward.
func (p *SequentialPipeline) SendMessage(ctx context.Context, msg unified.Message) (unified.Task, error) {
	var task unified.Task
	next := msg
	for i, stage := range p.stages {
		var err error
		task, err = stage.SendMessage(ctx, next)
		if err != nil {
			return unified.Task{}, &errorsx.AgentError{Kind: errorsx.AgentInternal, Protocol: "pipeline", Reason: err.Error(), Cause: err}
		}
		if task.Status == unified.TaskFailed {
			return task, nil
		}
		if i == len(p.stages)-1 {
			break
		}
		next = aggregateStageOutput(task)
	}
	return task, nil
}

// aggregateStageOutput builds the next stage's input Message per the
// convention documented on SendMessage.
func aggregateStageOutput(task unified.Task) unified.Message {
	var parts []unified.ContentPart
	for _, art := range task.Artifacts {
		parts = append(parts, art.Parts...)
	}
	if len(task.Messages) > 0 {
		last := task.Messages[len(task.Messages)-1]
		if last.Role == unified.RoleAgent {
			parts = append(parts, last.Parts...)
		}
	}
	return unified.Message{Role: unified.RoleAgent, Parts: parts, ReferenceTaskIDs: []string{task.ID}}
}

// GetTask is not meaningfully implementable over a stateless pipeline
// run: each SendMessage call starts fresh stages with no retained task
// store. It reports AgentTaskNotFound, matching a pipeline with no
// persisted intermediate state.
func (p *SequentialPipeline) GetTask(ctx context.Context, id string) (unified.Task, error) {
	return unified.Task{}, &errorsx.AgentError{Kind: errorsx.AgentTaskNotFound, Protocol: "pipeline", Reason: id}
}

// CancelTask is unsupported for the same reason as GetTask.
func (p *SequentialPipeline) CancelTask(ctx context.Context, id string) (unified.Task, error) {
	return unified.Task{}, &errorsx.AgentError{Kind: errorsx.AgentTaskNotFound, Protocol: "pipeline", Reason: id}
}

// Stream runs SendMessage and reports its terminal status as the sole
// event; per-stage progress is not surfaced incrementally.
func (p *SequentialPipeline) Stream(ctx context.Context, msg unified.Message) (<-chan unified.StreamEvent, error) {
	ch := make(chan unified.StreamEvent, 1)
	go func() {
		defer close(ch)
		task, err := p.SendMessage(ctx, msg)
		if err != nil {
			ch <- unified.StreamEvent{Kind: unified.EventError, Reason: err.Error()}
			return
		}
		ch <- unified.StreamEvent{Kind: unified.EventStatusUpdate, Status: task.Status}
	}()
	return ch, nil
}
