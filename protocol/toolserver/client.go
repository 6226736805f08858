package toolserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/shurankain/skreaver-sub005/errorsx"
	"github.com/shurankain/skreaver-sub005/tool"
)

// ClientOptions configures a Client, grounded on the reference implementation's
// HTTPOptions (features/mcp/runtime/httpcaller.go).
type ClientOptions struct {
	Endpoint     string
	HTTPClient   *http.Client
	ClientName   string
	PollInterval time.Duration
}

// Client is a bridge-as-client: it connects outbound to a remote
// tool-server, discovers its tools via tools/list, and lets each be
// re-exported as a local tool.Tool via AsTool.
type Client struct {
	endpoint     string
	hc           *http.Client
	pollInterval time.Duration
	id           atomic.Uint64
}

// NewClient builds a Client and performs the initialize handshake.
func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = 200 * time.Millisecond
	}
	c := &Client{endpoint: opts.Endpoint, hc: hc, pollInterval: poll}
	if err := c.call(ctx, MethodInitialize, map[string]any{"clientName": opts.ClientName}, nil); err != nil {
		return nil, &errorsx.AgentError{Kind: errorsx.AgentConnectionError, Protocol: "toolserver", Reason: err.Error(), Cause: err}
	}
	return c, nil
}

// ListTools fetches every ToolDescriptor exposed by the remote server.
func (c *Client) ListTools(ctx context.Context) ([]ToolDescriptor, error) {
	var result struct {
		Tools []ToolDescriptor `json:"tools"`
	}
	if err := c.call(ctx, MethodToolsList, nil, &result); err != nil {
		return nil, &errorsx.AgentError{Kind: errorsx.AgentConnectionError, Protocol: "toolserver", Reason: err.Error(), Cause: err}
	}
	return result.Tools, nil
}

// Discover lists the remote tools and re-exports each as a local
// tool.Tool, so the rest of the runtime (registries, coordinators,
// orchestration) cannot distinguish them from locally-registered
// tools.
func (c *Client) Discover(ctx context.Context) ([]tool.Tool, error) {
	descs, err := c.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]tool.Tool, 0, len(descs))
	for _, d := range descs {
		id, err := tool.NewToolId(d.Name)
		if err != nil {
			continue
		}
		out = append(out, c.AsTool(id))
	}
	return out, nil
}

// AsTool wraps the remote tool named id as a local tool.Tool. Call
// marshals input as the JSON-RPC tools/call arguments, and if the
// server defers the call, polls tasks/status until the task reaches a
// terminal status.
func (c *Client) AsTool(id tool.ToolId) tool.Tool {
	return tool.Func{
		ID: id,
		Fn: func(ctx context.Context, input string) tool.Result {
			return c.callTool(ctx, id.String(), input)
		},
	}
}

func (c *Client) callTool(ctx context.Context, name, input string) tool.Result {
	params := toolsCallParams{Name: name, Arguments: json.RawMessage(input)}
	var result toolsCallResult
	if err := c.call(ctx, MethodToolsCall, params, &result); err != nil {
		return tool.NewFailure(err.Error(), "")
	}
	if result.Defer != nil {
		return c.awaitTask(ctx, result.Defer.TaskID)
	}
	return fromCallResult(result)
}

func (c *Client) awaitTask(ctx context.Context, taskID string) tool.Result {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return tool.NewFailure("context canceled awaiting deferred task", "")
		case <-ticker.C:
			var status taskStatusResult
			if err := c.call(ctx, MethodTasksStatus, tasksStatusParams{TaskID: taskID}, &status); err != nil {
				return tool.NewFailure(err.Error(), "")
			}
			switch status.Status {
			case TaskCompleted.String():
				return tool.NewSuccess(status.Result)
			case TaskFailed.String():
				return tool.NewFailure(status.Error, "")
			case TaskCanceled.String():
				return tool.NewFailure("task canceled", "")
			}
		}
	}
}

func fromCallResult(result toolsCallResult) tool.Result {
	text := ""
	if len(result.Content) > 0 {
		text = result.Content[0].Text
	}
	if result.IsError {
		return tool.NewFailure(text, "")
	}
	return tool.NewSuccess(text)
}

func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	id := c.id.Add(1)
	var rawParams json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return err
		}
		rawParams = b
	}
	reqBody, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: method, ID: id, Params: rawParams})
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("toolserver rpc status %d", resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return err
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if out != nil && rpcResp.Result != nil {
		return json.Unmarshal(rpcResp.Result, out)
	}
	return nil
}
