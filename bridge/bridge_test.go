package bridge_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shurankain/skreaver-sub005/bridge"
	"github.com/shurankain/skreaver-sub005/errorsx"
	"github.com/shurankain/skreaver-sub005/tool"
	"github.com/shurankain/skreaver-sub005/unified"
)

type completingAgent struct {
	artifactText string
	fail         bool
}

func (a *completingAgent) Info(ctx context.Context) (unified.AgentInfo, error) {
	return unified.AgentInfo{ID: "remote"}, nil
}

func (a *completingAgent) SendMessage(ctx context.Context, msg unified.Message) (unified.Task, error) {
	now := time.Now()
	status := unified.TaskCompleted
	if a.fail {
		status = unified.TaskFailed
	}
	task := unified.Task{ID: "t1", Status: status, CreatedAt: now, UpdatedAt: now}
	if !a.fail {
		task.AddArtifact(unified.Artifact{ID: "out", Final: true, Parts: []unified.ContentPart{unified.NewTextPart(a.artifactText, nil)}})
	}
	return task, nil
}

func (a *completingAgent) GetTask(ctx context.Context, id string) (unified.Task, error) {
	return unified.Task{}, errors.New("not used in this fixture")
}

func (a *completingAgent) CancelTask(ctx context.Context, id string) (unified.Task, error) {
	return unified.Task{}, errors.New("not used in this fixture")
}

func (a *completingAgent) Stream(ctx context.Context, msg unified.Message) (<-chan unified.StreamEvent, error) {
	return nil, errors.New("not used in this fixture")
}

var _ unified.UnifiedAgent = (*completingAgent)(nil)

func TestAgentAsToolSerializesArtifactsIntoExecutionResult(t *testing.T) {
	agent := &completingAgent{artifactText: "hello from remote"}
	tl := bridge.AgentAsTool(agent, "remote-skill")

	res := tl.Call(context.Background(), "do the thing")
	require.True(t, res.IsSuccess())

	var payload struct {
		TaskID    string `json:"taskId"`
		Status    string `json:"status"`
		Artifacts []struct {
			ID    string `json:"id"`
			Parts []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"artifacts"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.Output()), &payload))
	assert.Equal(t, "completed", payload.Status)
	require.Len(t, payload.Artifacts, 1)
	assert.Equal(t, "hello from remote", payload.Artifacts[0].Parts[0].Text)
}

func TestAgentAsToolFailedTaskIsToolFailure(t *testing.T) {
	agent := &completingAgent{fail: true}
	tl := bridge.AgentAsTool(agent, "remote-skill")

	res := tl.Call(context.Background(), "do the thing")
	assert.False(t, res.IsSuccess())
}

func TestToolServerAsAgentMapsMessageToToolCallAndCompletes(t *testing.T) {
	reg := tool.NewRegistry()
	id, _ := tool.NewToolId("uppercase")
	reg.Register(tool.Func{ID: id, Fn: func(ctx context.Context, input string) tool.Result {
		return tool.NewSuccess(input + "!")
	}})

	b := bridge.NewToolServerAsAgent(unified.AgentInfo{ID: "bridged-tools"}, reg, bridge.DefaultSelector)

	req, _ := json.Marshal(map[string]string{"tool": "uppercase", "input": "hi"})
	msg := unified.Message{Role: unified.RoleUser, Parts: []unified.ContentPart{unified.NewTextPart(string(req), nil)}}

	task, err := b.SendMessage(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, unified.TaskCompleted, task.Status)
	require.Len(t, task.Artifacts, 1)
	assert.Equal(t, "hi!", task.Artifacts[0].Parts[0].Text.Value)

	fetched, err := b.GetTask(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, fetched.ID)
}

func TestToolServerAsAgentUnknownToolBecomesFailedTask(t *testing.T) {
	reg := tool.NewRegistry()
	b := bridge.NewToolServerAsAgent(unified.AgentInfo{ID: "bridged-tools"}, reg, bridge.DefaultSelector)

	req, _ := json.Marshal(map[string]string{"tool": "missing", "input": "x"})
	msg := unified.Message{Role: unified.RoleUser, Parts: []unified.ContentPart{unified.NewTextPart(string(req), nil)}}

	task, err := b.SendMessage(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, unified.TaskFailed, task.Status)
}

func TestGatewayDispatchesByRegisteredID(t *testing.T) {
	gw := bridge.NewGateway()
	agent := &completingAgent{artifactText: "ok"}
	gw.Register("remote-1", unified.AgentInfo{ID: "remote-1"}, agent)

	task, err := gw.Dispatch(context.Background(), "remote-1", unified.Message{Role: unified.RoleUser})
	require.NoError(t, err)
	assert.Equal(t, unified.TaskCompleted, task.Status)

	info, ok := gw.Lookup("remote-1")
	require.True(t, ok)
	assert.Equal(t, "remote-1", info.ID)
}

func TestGatewayDispatchUnknownIDReturnsAgentNotFound(t *testing.T) {
	gw := bridge.NewGateway()
	_, err := gw.Dispatch(context.Background(), "nope", unified.Message{})
	require.Error(t, err)

	agentErr, ok := errorsx.As[*errorsx.AgentError](err)
	require.True(t, ok)
	assert.Equal(t, errorsx.AgentNotFound, agentErr.Kind)
}
