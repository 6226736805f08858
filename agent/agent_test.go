package agent_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shurankain/skreaver-sub005/agent"
	"github.com/shurankain/skreaver-sub005/memory"
	"github.com/shurankain/skreaver-sub005/tool"
)

// echoAgent is a minimal fixture implementing agent.Agent: it stores the
// observed input, calls the "uppercase" tool once, and replies with
// "Echo: <uppercased>". It exists only to exercise the Agent contract
// in tests; it is not the CLI's example agent.
type echoAgent struct {
	mem   memory.Memory
	input string
	upper string
}

func newEchoAgent() *echoAgent { return &echoAgent{mem: memory.NewInMemory()} }

func (e *echoAgent) Observe(ctx context.Context, obs agent.Observation) error {
	e.input = obs.Input
	return e.mem.Store(ctx, memory.Update{Key: "input", Value: obs.Input})
}

func (e *echoAgent) CallTools(context.Context) ([]tool.Call, error) {
	id, err := tool.NewToolId("uppercase")
	if err != nil {
		return nil, err
	}
	return []tool.Call{{Name: id, Input: e.input}}, nil
}

func (e *echoAgent) HandleResult(_ context.Context, result tool.Result) error {
	e.upper = result.Output()
	return nil
}

func (e *echoAgent) Act(context.Context) (agent.Action, error) {
	return agent.Action{Output: "Echo: " + e.upper}, nil
}

func (e *echoAgent) UpdateContext(ctx context.Context, update agent.MemoryUpdate) error {
	return e.mem.Store(ctx, update)
}

func (e *echoAgent) MemoryReader() memory.Reader { return e.mem }
func (e *echoAgent) MemoryWriter() memory.Writer { return e.mem }

var _ agent.Agent = (*echoAgent)(nil)

func TestEchoAgentRoundTrip(t *testing.T) {
	ctx := context.Background()
	reg := tool.NewRegistry()
	upperID, _ := tool.NewToolId("uppercase")
	var invokedWith string
	reg.Register(tool.Func{ID: upperID, Fn: func(_ context.Context, input string) tool.Result {
		invokedWith = input
		return tool.NewSuccess(strings.ToUpper(input))
	}})

	a := newEchoAgent()
	require.NoError(t, a.Observe(ctx, agent.Observation{Input: "Skreaver"}))

	calls, err := a.CallTools(ctx)
	require.NoError(t, err)
	require.Len(t, calls, 1)

	res, ok := reg.Dispatch(ctx, calls[0])
	require.True(t, ok)
	require.NoError(t, a.HandleResult(ctx, *res))

	action, err := a.Act(ctx)
	require.NoError(t, err)

	assert.Equal(t, "Echo: SKREAVER", action.Output)
	assert.Equal(t, "Skreaver", invokedWith)

	v, ok, err := a.MemoryReader().Load(ctx, "input")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Skreaver", v)
}
