// Package agent defines the per-cycle agent contract: observe,
// optionally call tools, handle each tool result, act, and update
// context at will. An Agent owns its memory backend exclusively,
// exposed through narrowed reader/writer views.
package agent

import (
	"context"

	"github.com/shurankain/skreaver-sub005/memory"
	"github.com/shurankain/skreaver-sub005/tool"
)

type (
	// Observation is the input an agent reacts to on one cycle.
	Observation struct {
		Input string
	}

	// Action is what an agent decided to do, returned at the end of one
	// cycle.
	Action struct {
		Output string
	}

	// MemoryUpdate is a request to mutate the agent's backing store,
	// applied via UpdateContext.
	MemoryUpdate = memory.Update

	// Agent is the minimum per-cycle contract.
	// A Coordinator drives it: Observe, then CallTools (optionally
	// empty), then HandleResult for each external tool result, then Act,
	// with UpdateContext callable at any point in the cycle.
	Agent interface {
		// Observe records obs as the input for the current cycle.
		Observe(ctx context.Context, obs Observation) error
		// CallTools returns the tool calls this cycle wants dispatched,
		// in the order they must be invoked.
		CallTools(ctx context.Context) ([]tool.Call, error)
		// HandleResult folds one tool's result back into agent state. It
		// is invoked once per entry returned by CallTools, in order.
		HandleResult(ctx context.Context, result tool.Result) error
		// Act produces this cycle's action.
		Act(ctx context.Context) (Action, error)
		// UpdateContext applies a memory mutation. Callable at any point
		// in the cycle, not just between Observe and Act.
		UpdateContext(ctx context.Context, update MemoryUpdate) error
		// MemoryReader exposes the agent's backing store for reads.
		MemoryReader() memory.Reader
		// MemoryWriter exposes the agent's backing store for writes.
		MemoryWriter() memory.Writer
	}
)
