package orchestration

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/shurankain/skreaver-sub005/errorsx"
	"github.com/shurankain/skreaver-sub005/unified"
)

// SupervisorDecisionKind discriminates the SupervisorDecision union
// returned by a SupervisorLogic step.
type SupervisorDecisionKind int

const (
	// Forward routes msg to the named agent and feeds its resulting
	// task back into the next SupervisorLogic call.
	Forward SupervisorDecisionKind = iota
	// Split fans msg out to a plan of (agentID, message) pairs,
	// running them concurrently and folding every resulting task's
	// artifacts into one merged Task that the next SupervisorLogic call
	// receives as previous.
	Split
	// Complete ends the loop, returning Task as the supervisor's final
	// result.
	Complete
	// Fail ends the loop with a failed task carrying Reason under
	// Metadata["reason"].
	Fail
)

// SplitTarget is one fan-out branch of a Split decision.
type SplitTarget struct {
	AgentID string
	Message unified.Message
}

// SupervisorDecision is the result of one SupervisorLogic step.
type SupervisorDecision struct {
	Kind    SupervisorDecisionKind
	AgentID string          // Forward
	Message unified.Message // Forward
	Plan    []SplitTarget   // Split
	Task    unified.Task    // Complete
	Reason  string          // Fail
}

// SupervisorLogic inspects the task produced by the previous step (the
// zero Task on the first call) and decides what happens next.
type SupervisorLogic func(ctx context.Context, step int, previous unified.Task) (SupervisorDecision, error)

// SupervisorAgent drives a user-supplied SupervisorLogic through a
// bounded decision loop, resolving Forward/Split targets
// by agent id through resolve. The loop never runs unbounded: reaching
// MaxSteps without a Complete or Fail decision itself produces a failed
// task, mirroring coordinator.Coordinator.Loop's iteration-cap
// guard-rail rather than looping to exhaustion.
type SupervisorAgent struct {
	info            unified.AgentInfo
	logic           SupervisorLogic
	resolve         func(agentID string) (unified.UnifiedAgent, bool)
	maxSteps        int
	maxRetries      uint64
	initialInterval time.Duration
}

// NewSupervisorAgent builds a SupervisorAgent advertised under info,
// driven by logic, resolving agent ids via resolve, bounded to
// maxSteps decision iterations.
func NewSupervisorAgent(info unified.AgentInfo, logic SupervisorLogic, resolve func(agentID string) (unified.UnifiedAgent, bool), maxSteps int) *SupervisorAgent {
	return &SupervisorAgent{info: info, logic: logic, resolve: resolve, maxSteps: maxSteps, initialInterval: backoff.DefaultInitialInterval}
}

// WithRetry lets each Forward decision's agent.SendMessage call be
// retried up to maxRetries times after the first attempt, backing off
// between attempts starting at initial and growing by backoff's
// default exponential multiplier. Retries apply
// only to a Forward step's outbound call, not to the SupervisorLogic
// step count itself. Returns s for chaining.
func (s *SupervisorAgent) WithRetry(maxRetries uint64, initial time.Duration) *SupervisorAgent {
	s.maxRetries = maxRetries
	s.initialInterval = initial
	return s
}

var _ unified.UnifiedAgent = (*SupervisorAgent)(nil)

// Info returns the supervisor's own advertised identity.
func (s *SupervisorAgent) Info(ctx context.Context) (unified.AgentInfo, error) {
	return s.info, nil
}

// SendMessage seeds the loop with msg wrapped as a synthetic completed
// Task (so the first SupervisorLogic call sees the caller's message as
// the prior step's sole artifact-free message) and drives decisions
// until Complete, Fail, or MaxSteps.
func (s *SupervisorAgent) SendMessage(ctx context.Context, msg unified.Message) (unified.Task, error) {
	seed := unified.Task{Status: unified.TaskCompleted, Messages: []unified.Message{msg}}

	current := seed
	for step := 0; step < s.maxSteps; step++ {
		decision, err := s.logic(ctx, step, current)
		if err != nil {
			return unified.Task{}, &errorsx.AgentError{Kind: errorsx.AgentInternal, Protocol: "supervisor", Reason: err.Error(), Cause: err}
		}

		switch decision.Kind {
		case Complete:
			return decision.Task, nil

		case Fail:
			return unified.Task{Status: unified.TaskFailed, Metadata: map[string]any{"reason": decision.Reason}}, nil

		case Forward:
			agent, ok := s.resolve(decision.AgentID)
			if !ok {
				return unified.Task{}, &errorsx.AgentError{Kind: errorsx.AgentNotFound, Protocol: "supervisor", Reason: decision.AgentID}
			}
			task, err := s.forwardWithRetry(ctx, agent, decision.Message)
			if err != nil {
				return unified.Task{}, &errorsx.AgentError{Kind: errorsx.AgentInternal, Protocol: "supervisor", Reason: err.Error(), Cause: err}
			}
			current = task

		case Split:
			task, err := s.runSplit(ctx, decision.Plan)
			if err != nil {
				return unified.Task{}, err
			}
			current = task

		default:
			return unified.Task{}, &errorsx.AgentError{Kind: errorsx.AgentInvalidRequest, Protocol: "supervisor", Reason: "unknown SupervisorDecisionKind"}
		}
	}
	return unified.Task{}, &errorsx.AgentError{Kind: errorsx.AgentInternal, Protocol: "supervisor", Reason: "exceeded maximum supervisor steps without a Complete or Fail decision"}
}

// forwardWithRetry calls agent.SendMessage, retrying a failed Task or a
// transport error up to s.maxRetries times with exponential backoff.
// With maxRetries == 0 (the default) it is a single, unretried call.
func (s *SupervisorAgent) forwardWithRetry(ctx context.Context, agent unified.UnifiedAgent, msg unified.Message) (unified.Task, error) {
	var result unified.Task
	var transportErr error
	op := func() error {
		task, err := agent.SendMessage(ctx, msg)
		if err != nil {
			transportErr = err
			return err
		}
		transportErr = nil
		result = task
		if task.Status == unified.TaskFailed {
			return errors.New("forwarded task failed")
		}
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.initialInterval
	bo := backoff.WithContext(backoff.WithMaxRetries(eb, s.maxRetries), ctx)
	if err := backoff.Retry(op, bo); err != nil && transportErr != nil {
		return unified.Task{}, transportErr
	}
	return result, nil
}

// runSplit fans a Split decision's plan out via a ParallelAgent in All
// mode, reusing its concurrency and artifact-concatenation behavior
// rather than duplicating a second fan-out implementation.
func (s *SupervisorAgent) runSplit(ctx context.Context, plan []SplitTarget) (unified.Task, error) {
	if len(plan) == 0 {
		return unified.Task{}, &errorsx.AgentError{Kind: errorsx.AgentInvalidRequest, Protocol: "supervisor", Reason: "Split decision carries an empty plan"}
	}
	branches := make([]unified.UnifiedAgent, len(plan))
	for i, target := range plan {
		agent, ok := s.resolve(target.AgentID)
		if !ok {
			return unified.Task{}, &errorsx.AgentError{Kind: errorsx.AgentNotFound, Protocol: "supervisor", Reason: target.AgentID}
		}
		branches[i] = agent
	}
	messages := make([]unified.Message, len(plan))
	for i, target := range plan {
		messages[i] = target.Message
	}
	par := NewParallelAgent(s.info, All, nil, branches...).WithTransform(func(_ unified.Message, i, _ int) unified.Message {
		return messages[i]
	})
	return par.SendMessage(ctx, unified.Message{})
}

// GetTask and CancelTask have no supervisor-local meaning beyond one
// SendMessage call's own decision loop, which retains no state between
// invocations.
func (s *SupervisorAgent) GetTask(ctx context.Context, id string) (unified.Task, error) {
	return unified.Task{}, &errorsx.AgentError{Kind: errorsx.AgentTaskNotFound, Protocol: "supervisor", Reason: id}
}

func (s *SupervisorAgent) CancelTask(ctx context.Context, id string) (unified.Task, error) {
	return unified.Task{}, &errorsx.AgentError{Kind: errorsx.AgentTaskNotFound, Protocol: "supervisor", Reason: id}
}

// Stream runs SendMessage and reports only the terminal status.
func (s *SupervisorAgent) Stream(ctx context.Context, msg unified.Message) (<-chan unified.StreamEvent, error) {
	ch := make(chan unified.StreamEvent, 1)
	go func() {
		defer close(ch)
		task, err := s.SendMessage(ctx, msg)
		if err != nil {
			ch <- unified.StreamEvent{Kind: unified.EventError, Reason: err.Error()}
			return
		}
		ch <- unified.StreamEvent{Kind: unified.EventStatusUpdate, Status: task.Status}
	}()
	return ch, nil
}
