// Package coordinator drives one Agent against a tool Registry for one
// observation at a time. It never loops internally: a caller that
// wants repeated steps supplies an explicit iteration cap, which the
// Coordinator enforces as a guard-rail against runaway agents.
package coordinator

import (
	"context"

	"github.com/shurankain/skreaver-sub005/agent"
	"github.com/shurankain/skreaver-sub005/errorsx"
	"github.com/shurankain/skreaver-sub005/tool"
)

// Coordinator exclusively owns the Agent it drives.
type Coordinator struct {
	a   agent.Agent
	reg *tool.Registry
}

// New constructs a Coordinator that drives a against reg.
func New(a agent.Agent, reg *tool.Registry) *Coordinator {
	return &Coordinator{a: a, reg: reg}
}

// Step runs one observe → drain-tool-calls → act cycle and returns the
// resulting action. Tool calls are dispatched in the order Agent.CallTools
// returned them, and each result is fed back via HandleResult in that
// same order before Act is invoked.
func (c *Coordinator) Step(ctx context.Context, obs agent.Observation) (agent.Action, error) {
	if err := c.a.Observe(ctx, obs); err != nil {
		return agent.Action{}, &errorsx.CoordinatorError{Kind: errorsx.CoordinatorStepFailed, Reason: err.Error(), Cause: err}
	}

	calls, err := c.a.CallTools(ctx)
	if err != nil {
		return agent.Action{}, &errorsx.CoordinatorError{Kind: errorsx.CoordinatorStepFailed, Reason: err.Error(), Cause: err}
	}

	var failed []string
	for _, call := range calls {
		result, err := c.reg.TryDispatch(ctx, call)
		if err != nil {
			failed = append(failed, call.Name.String())
			result = tool.NewFailure(err.Error(), "")
		}
		if err := c.a.HandleResult(ctx, result); err != nil {
			return agent.Action{}, &errorsx.CoordinatorError{Kind: errorsx.CoordinatorStepFailed, Reason: err.Error(), Cause: err}
		}
	}
	if len(failed) > 0 {
		return agent.Action{}, &errorsx.CoordinatorError{Kind: errorsx.CoordinatorToolDispatchFailed, FailedTools: failed}
	}

	action, err := c.a.Act(ctx)
	if err != nil {
		return agent.Action{}, &errorsx.CoordinatorError{Kind: errorsx.CoordinatorStepFailed, Reason: err.Error(), Cause: err}
	}
	return action, nil
}

// TerminalCheck reports whether an agent-driven loop has reached a
// stopping condition. Loop uses it, together with MaxIterations, to
// bound repeated calls to Step without looping inside the Coordinator
// itself.
type TerminalCheck func(agent.Action) bool

// Loop calls Step repeatedly, feeding obsFn's output back in, until
// isTerminal reports true or maxIters steps have run. If the cap is
// reached while the agent remains non-terminal, Loop returns
// CoordinatorError{Kind: StepFailed} and performs no further steps
//: exactly maxIters iterations run, with no
// additional side effects beyond them.
func (c *Coordinator) Loop(ctx context.Context, first agent.Observation, nextObs func(agent.Action) agent.Observation, isTerminal TerminalCheck, maxIters int) (agent.Action, error) {
	obs := first
	for i := 0; i < maxIters; i++ {
		action, err := c.Step(ctx, obs)
		if err != nil {
			return agent.Action{}, err
		}
		if isTerminal(action) {
			return action, nil
		}
		obs = nextObs(action)
	}
	return agent.Action{}, &errorsx.CoordinatorError{
		Kind:   errorsx.CoordinatorStepFailed,
		Reason: "exceeded maximum iteration count without reaching a terminal action",
	}
}
