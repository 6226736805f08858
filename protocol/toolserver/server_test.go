package toolserver_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shurankain/skreaver-sub005/protocol/toolserver"
	"github.com/shurankain/skreaver-sub005/tool"
)

func newTestRegistry() *tool.Registry {
	reg := tool.NewRegistry()
	id, _ := tool.NewToolId("echo")
	reg.Register(tool.Func{ID: id, Fn: func(ctx context.Context, input string) tool.Result {
		return tool.NewSuccess("echo: " + input)
	}})
	slowID, _ := tool.NewToolId("slow-job")
	reg.Register(tool.Func{ID: slowID, Fn: func(ctx context.Context, input string) tool.Result {
		time.Sleep(50 * time.Millisecond)
		return tool.NewSuccess("done: " + input)
	}})
	return reg
}

func TestToolsListSurfacesAnnotations(t *testing.T) {
	reg := newTestRegistry()
	srv := toolserver.NewServer(reg)
	srv.Describe("echo", "echoes input", nil, toolserver.Annotations{ReadOnly: true, Idempotent: true})

	ts := newHTTPTestServer(t, srv)
	defer ts.Close()

	var result struct {
		Tools []toolserver.ToolDescriptor `json:"tools"`
	}
	rpcCall(t, ts.URL, toolserver.MethodToolsList, nil, &result)

	require.Len(t, result.Tools, 2)
	var echo *toolserver.ToolDescriptor
	for i := range result.Tools {
		if result.Tools[i].Name == "echo" {
			echo = &result.Tools[i]
		}
	}
	require.NotNil(t, echo)
	assert.True(t, echo.Annotations.ReadOnly)
	assert.True(t, echo.Annotations.Idempotent)
	assert.False(t, echo.Annotations.Destructive)
}

func TestToolsCallSynchronousRoundTrip(t *testing.T) {
	reg := newTestRegistry()
	srv := toolserver.NewServer(reg)
	ts := newHTTPTestServer(t, srv)
	defer ts.Close()

	client, err := toolserver.NewClient(context.Background(), toolserver.ClientOptions{Endpoint: ts.URL})
	require.NoError(t, err)

	id, _ := tool.NewToolId("echo")
	res := client.AsTool(id).Call(context.Background(), "hi")
	require.True(t, res.IsSuccess())
	assert.Equal(t, "echo: hi", res.Output())
}

func TestToolsCallDeferredTaskPollsToCompletion(t *testing.T) {
	reg := newTestRegistry()
	srv := toolserver.NewServer(reg).WithLongRunning(toolserver.NewLongRunning("slow-job"))
	ts := newHTTPTestServer(t, srv)
	defer ts.Close()

	client, err := toolserver.NewClient(context.Background(), toolserver.ClientOptions{
		Endpoint:     ts.URL,
		PollInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	id, _ := tool.NewToolId("slow-job")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res := client.AsTool(id).Call(ctx, "payload")
	require.True(t, res.IsSuccess())
	assert.Equal(t, "done: payload", res.Output())
}

func TestTasksStatusUnknownTaskIsRPCError(t *testing.T) {
	reg := newTestRegistry()
	srv := toolserver.NewServer(reg)
	ts := newHTTPTestServer(t, srv)
	defer ts.Close()

	resp := rpcCallExpectError(t, ts.URL, toolserver.MethodTasksStatus, map[string]string{"taskId": "nope"})
	require.NotNil(t, resp.Error)
}

func TestDiscoverReExportsRemoteToolsAsLocalTools(t *testing.T) {
	reg := newTestRegistry()
	srv := toolserver.NewServer(reg)
	ts := newHTTPTestServer(t, srv)
	defer ts.Close()

	client, err := toolserver.NewClient(context.Background(), toolserver.ClientOptions{Endpoint: ts.URL})
	require.NoError(t, err)

	tools, err := client.Discover(context.Background())
	require.NoError(t, err)
	assert.Len(t, tools, 2)
}
