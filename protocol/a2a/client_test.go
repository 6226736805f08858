package a2a_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shurankain/skreaver-sub005/errorsx"
	"github.com/shurankain/skreaver-sub005/protocol/a2a"
	"github.com/shurankain/skreaver-sub005/unified"
)

func TestClientSendMessageRoundTripsThroughRemoteServer(t *testing.T) {
	ts, _ := newTestServer(t)
	defer ts.Close()

	client := a2a.NewClient(ts.URL, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	info, err := client.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, "echo", info.ID)

	msg := unified.Message{Role: unified.RoleUser, Parts: []unified.ContentPart{unified.NewTextPart("hi there", nil)}}
	task, err := client.SendMessage(ctx, msg)
	require.NoError(t, err)
	assert.Equal(t, unified.TaskCompleted, task.Status)
	require.Len(t, task.Messages, 1)
	assert.Equal(t, "hi there", task.Messages[0].Parts[0].Text.Value)

	fetched, err := client.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, unified.TaskCompleted, fetched.Status)
}

func TestClientGetTaskUnknownIDReturnsAgentError(t *testing.T) {
	ts, _ := newTestServer(t)
	defer ts.Close()

	client := a2a.NewClient(ts.URL, nil)
	_, err := client.GetTask(context.Background(), "nope")
	require.Error(t, err)

	agentErr, ok := errorsx.As[*errorsx.AgentError](err)
	require.True(t, ok)
	assert.Equal(t, errorsx.AgentTaskNotFound, agentErr.Kind)
}

func TestClientStreamDeliversStatusUpdatesInOrder(t *testing.T) {
	ts, _ := newTestServer(t)
	defer ts.Close()

	client := a2a.NewClient(ts.URL, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msg := unified.Message{Role: unified.RoleUser, Parts: []unified.ContentPart{unified.NewTextPart("stream me", nil)}}
	events, err := client.Stream(ctx, msg)
	require.NoError(t, err)

	var statuses []unified.TaskStatus
	for ev := range events {
		require.NotEqual(t, unified.EventError, ev.Kind)
		statuses = append(statuses, ev.Status)
	}
	require.Len(t, statuses, 2)
	assert.Equal(t, unified.TaskWorking, statuses[0])
	assert.Equal(t, unified.TaskCompleted, statuses[1])
}
