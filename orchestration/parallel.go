package orchestration

import (
	"context"
	"sync"

	"github.com/shurankain/skreaver-sub005/errorsx"
	"github.com/shurankain/skreaver-sub005/unified"
)

// AggregationMode determines how ParallelAgent reduces n branch tasks
// into the one task it returns.
type AggregationMode int

const (
	// FirstSuccess returns the first branch task to reach Completed, in
	// branch-index order if more than one completes before the others
	// are observed.
	FirstSuccess AggregationMode = iota
	// All requires every branch to complete; any Failed branch fails
	// the aggregate. The returned task's artifacts are the concatenation
	// of every branch's artifacts, in branch order.
	All
	// MajorityContent picks the task whose serialized artifact text is
	// shared by a strict majority of branches, failing if none exists.
	MajorityContent
	// MajorityStatus picks the status shared by a strict majority of
	// branches, returning the first branch task with that status and
	// failing if none exists.
	MajorityStatus
	// Custom defers aggregation entirely to a user-supplied Aggregator.
	Custom
)

// Aggregator reduces the per-branch results of a Custom-mode
// ParallelAgent into a single Task.
type Aggregator func(branches []unified.Task) (unified.Task, error)

// TransformMode governs how the aggregate's input Message is reshaped
// per branch before dispatch. Identity sends msg unchanged
// to every branch.
type TransformMode int

const (
	// Identity forwards the same Message to every branch unmodified.
	Identity TransformMode = iota
	// PerBranch applies a caller-supplied Transform function per branch.
	PerBranch
)

// Transform reshapes msg for the branch at index i of n.
type Transform func(msg unified.Message, branchIndex int, branchCount int) unified.Message

// ParallelAgent sends one message to n agents concurrently and
// aggregates their resulting tasks per Mode. Canceling the
// context passed to SendMessage cancels every outstanding branch call.
type ParallelAgent struct {
	info      unified.AgentInfo
	branches  []unified.UnifiedAgent
	mode      AggregationMode
	aggregate Aggregator
	transform TransformMode
	shape     Transform
}

// NewParallelAgent builds a ParallelAgent fanning out to branches,
// aggregating per mode. aggregate is only consulted when mode ==
// Custom; it may be nil otherwise.
func NewParallelAgent(info unified.AgentInfo, mode AggregationMode, aggregate Aggregator, branches ...unified.UnifiedAgent) *ParallelAgent {
	return &ParallelAgent{info: info, branches: branches, mode: mode, aggregate: aggregate}
}

// WithTransform sets a PerBranch input-shaping function, returning p
// for chaining.
func (p *ParallelAgent) WithTransform(shape Transform) *ParallelAgent {
	p.transform = PerBranch
	p.shape = shape
	return p
}

var _ unified.UnifiedAgent = (*ParallelAgent)(nil)

// Info returns the parallel agent's own advertised identity.
func (p *ParallelAgent) Info(ctx context.Context) (unified.AgentInfo, error) {
	return p.info, nil
}

// SendMessage dispatches msg to every branch concurrently and reduces
// the results per p.mode.
func (p *ParallelAgent) SendMessage(ctx context.Context, msg unified.Message) (unified.Task, error) {
	if len(p.branches) == 0 {
		return unified.Task{}, &errorsx.AgentError{Kind: errorsx.AgentInvalidRequest, Protocol: "parallel", Reason: "no branches configured"}
	}

	branchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]unified.Task, len(p.branches))
	errs := make([]error, len(p.branches))
	var wg sync.WaitGroup
	for i, agent := range p.branches {
		branchMsg := msg
		if p.transform == PerBranch && p.shape != nil {
			branchMsg = p.shape(msg, i, len(p.branches))
		}
		wg.Add(1)
		go func(i int, agent unified.UnifiedAgent, branchMsg unified.Message) {
			defer wg.Done()
			task, err := agent.SendMessage(branchCtx, branchMsg)
			results[i] = task
			errs[i] = err
			if err == nil && p.mode == FirstSuccess && task.Status == unified.TaskCompleted {
				cancel()
			}
		}(i, agent, branchMsg)
	}
	wg.Wait()

	return p.reduce(results, errs)
}

func (p *ParallelAgent) reduce(results []unified.Task, errs []error) (unified.Task, error) {
	switch p.mode {
	case FirstSuccess:
		for i, err := range errs {
			if err == nil && results[i].Status == unified.TaskCompleted {
				return results[i], nil
			}
		}
		return unified.Task{}, &errorsx.AgentError{Kind: errorsx.AgentInternal, Protocol: "parallel", Reason: "no branch succeeded"}

	case All:
		var merged unified.Task
		for i, err := range errs {
			if err != nil {
				return unified.Task{}, &errorsx.AgentError{Kind: errorsx.AgentInternal, Protocol: "parallel", Reason: err.Error(), Cause: err}
			}
			if results[i].Status == unified.TaskFailed {
				return results[i], nil
			}
			merged.Artifacts = append(merged.Artifacts, results[i].Artifacts...)
		}
		merged.ID = results[0].ID
		merged.Status = unified.TaskCompleted
		return merged, nil

	case MajorityContent:
		return majorityByKey(results, func(t unified.Task) string { return artifactDigest(t) })

	case MajorityStatus:
		return majorityByKey(results, func(t unified.Task) string { return t.Status.String() })

	case Custom:
		if p.aggregate == nil {
			return unified.Task{}, &errorsx.AgentError{Kind: errorsx.AgentInvalidRequest, Protocol: "parallel", Reason: "Custom aggregation mode requires an Aggregator"}
		}
		task, err := p.aggregate(results)
		if err != nil {
			return unified.Task{}, &errorsx.AgentError{Kind: errorsx.AgentInternal, Protocol: "parallel", Reason: err.Error(), Cause: err}
		}
		return task, nil

	default:
		return unified.Task{}, &errorsx.AgentError{Kind: errorsx.AgentInvalidRequest, Protocol: "parallel", Reason: "unknown aggregation mode"}
	}
}

// artifactDigest renders a task's artifact text parts into one
// comparable string, used to group branches by content for
// MajorityContent aggregation.
func artifactDigest(t unified.Task) string {
	var s string
	for _, a := range t.Artifacts {
		for _, part := range a.Parts {
			s += part.Text.Value
		}
	}
	return s
}

// majorityByKey groups results by key(result) and returns the first
// result belonging to the largest group, failing if no group holds a
// strict majority.
func majorityByKey(results []unified.Task, key func(unified.Task) string) (unified.Task, error) {
	counts := make(map[string]int)
	first := make(map[string]unified.Task)
	for _, t := range results {
		k := key(t)
		counts[k]++
		if _, ok := first[k]; !ok {
			first[k] = t
		}
	}
	var bestKey string
	best := 0
	for k, c := range counts {
		if c > best {
			best, bestKey = c, k
		}
	}
	if best*2 <= len(results) {
		return unified.Task{}, &errorsx.AgentError{Kind: errorsx.AgentInternal, Protocol: "parallel", Reason: "no majority among branch results"}
	}
	return first[bestKey], nil
}

// GetTask is not supported: ParallelAgent retains no task store across
// calls, matching SequentialPipeline's statelessness.
func (p *ParallelAgent) GetTask(ctx context.Context, id string) (unified.Task, error) {
	return unified.Task{}, &errorsx.AgentError{Kind: errorsx.AgentTaskNotFound, Protocol: "parallel", Reason: id}
}

// CancelTask is unsupported for the same reason as GetTask.
func (p *ParallelAgent) CancelTask(ctx context.Context, id string) (unified.Task, error) {
	return unified.Task{}, &errorsx.AgentError{Kind: errorsx.AgentTaskNotFound, Protocol: "parallel", Reason: id}
}

// Stream runs SendMessage and reports only the terminal aggregate.
func (p *ParallelAgent) Stream(ctx context.Context, msg unified.Message) (<-chan unified.StreamEvent, error) {
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
