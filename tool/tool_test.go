package tool_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shurankain/skreaver-sub005/errorsx"
	"github.com/shurankain/skreaver-sub005/tool"
)

func uppercaseTool(t *testing.T) tool.Tool {
	t.Helper()
	id, err := tool.NewToolId("uppercase")
	require.NoError(t, err)
	return tool.Func{ID: id, Fn: func(_ context.Context, input string) tool.Result {
		return tool.NewSuccess(strings.ToUpper(input))
	}}
}

func TestDispatchUnknownToolReturnsNone(t *testing.T) {
	reg := tool.NewRegistry()
	id, _ := tool.NewToolId("missing")
	_, ok := reg.Dispatch(context.Background(), tool.Call{Name: id, Input: "x"})
	assert.False(t, ok)
}

func TestTryDispatchUnknownToolReturnsNotFound(t *testing.T) {
	reg := tool.NewRegistry()
	id, _ := tool.NewToolId("missing")
	_, err := reg.TryDispatch(context.Background(), tool.Call{Name: id, Input: "x"})
	require.Error(t, err)
	var te *errorsx.ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, errorsx.ToolNotFound, te.Kind)
}

func TestDispatchInvokesRegisteredTool(t *testing.T) {
	reg := tool.NewRegistry()
	reg.Register(uppercaseTool(t))
	id, _ := tool.NewToolId("uppercase")

	res, ok := reg.Dispatch(context.Background(), tool.Call{Name: id, Input: "Skreaver"})
	require.True(t, ok)
	require.True(t, res.IsSuccess())
	assert.Equal(t, "SKREAVER", res.Output())
}

func TestResultAccessorsNeverPanic(t *testing.T) {
	success := tool.NewSuccess("ok")
	assert.Equal(t, "", success.Reason())

	failure := tool.NewFailure("bad input", `{"example":true}`)
	assert.Equal(t, "", failure.Output())
	assert.Equal(t, "bad input", failure.Reason())
	assert.Equal(t, `{"example":true}`, failure.RetryHint())
}

func TestInvalidToolIdRejected(t *testing.T) {
	_, err := tool.NewToolId("Not Valid!")
	require.Error(t, err)
}

func TestSecureRegistryDeniesWithoutInvokingTool(t *testing.T) {
	called := false
	id, _ := tool.NewToolId("danger")
	reg := tool.NewRegistry()
	reg.Register(tool.Func{ID: id, Fn: func(context.Context, string) tool.Result {
		called = true
		return tool.NewSuccess("should not run")
	}})

	policy := tool.NewAllowList()
	secure := tool.NewSecureRegistry(reg, policy)

	_, err := secure.TryDispatch(context.Background(), "alice", tool.Call{Name: id, Input: "x"})
	require.Error(t, err)
	var te *errorsx.ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, errorsx.ToolAccessDenied, te.Kind)
	assert.False(t, called)

	policy.Grant("alice", id)
	res, err := secure.TryDispatch(context.Background(), "alice", tool.Call{Name: id, Input: "x"})
	require.NoError(t, err)
	assert.True(t, res.IsSuccess())
	assert.True(t, called)
}

func TestRegisterWithSchemaRejectsInvalidInput(t *testing.T) {
	reg := tool.NewRegistry()
	id, _ := tool.NewToolId("typed")
	schema := []byte(`{"type":"object","properties":{"n":{"type":"number"}},"required":["n"]}`)
	require.NoError(t, reg.RegisterWithSchema(tool.Func{ID: id, Fn: func(_ context.Context, input string) tool.Result {
		return tool.NewSuccess(input)
	}}, schema))

	_, err := reg.TryDispatch(context.Background(), tool.Call{Name: id, Input: `{"n":"not a number"}`})
	require.Error(t, err)
	var te *errorsx.ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, errorsx.ToolInvalidInput, te.Kind)

	res, err := reg.TryDispatch(context.Background(), tool.Call{Name: id, Input: `{"n":3}`})
	require.NoError(t, err)
	assert.True(t, res.IsSuccess())
}
