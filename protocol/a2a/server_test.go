package a2a_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shurankain/skreaver-sub005/protocol/a2a"
	"github.com/shurankain/skreaver-sub005/unified"
)

// fakeAgent is a minimal UnifiedAgent fixture exercising the task DAG
// through the A2A wire server.
type fakeAgent struct {
	tasks map[string]*unified.Task
}

func newFakeAgent() *fakeAgent { return &fakeAgent{tasks: make(map[string]*unified.Task)} }

func (f *fakeAgent) Info(ctx context.Context) (unified.AgentInfo, error) {
	return unified.AgentInfo{ID: "echo", Name: "Echo Agent"}, nil
}

func (f *fakeAgent) SendMessage(ctx context.Context, msg unified.Message) (unified.Task, error) {
	now := time.Now()
	task := &unified.Task{ID: "task-1", Status: unified.TaskPending, CreatedAt: now, UpdatedAt: now}
	_ = task.AddMessage(msg, now)
	_ = task.SetStatus(unified.TaskCompleted, now.Add(time.Second))
	f.tasks[task.ID] = task
	return *task, nil
}

func (f *fakeAgent) GetTask(ctx context.Context, id string) (unified.Task, error) {
	if t, ok := f.tasks[id]; ok {
		return *t, nil
	}
	return unified.Task{}, assertNotFoundErr
}

func (f *fakeAgent) CancelTask(ctx context.Context, id string) (unified.Task, error) {
	t, ok := f.tasks[id]
	if !ok {
		return unified.Task{}, assertNotFoundErr
	}
	_ = t.SetStatus(unified.TaskCanceled, time.Now())
	return *t, nil
}

func (f *fakeAgent) Stream(ctx context.Context, msg unified.Message) (<-chan unified.StreamEvent, error) {
	ch := make(chan unified.StreamEvent, 2)
	ch <- unified.StreamEvent{Kind: unified.EventStatusUpdate, Status: unified.TaskWorking}
	ch <- unified.StreamEvent{Kind: unified.EventStatusUpdate, Status: unified.TaskCompleted}
	close(ch)
	return ch, nil
}

type notFoundErr struct{}

func (notFoundErr) Error() string { return "not found" }

var assertNotFoundErr = notFoundErr{}

var _ unified.UnifiedAgent = (*fakeAgent)(nil)

func newTestServer(t *testing.T) (*httptest.Server, *fakeAgent) {
	t.Helper()
	agent := newFakeAgent()
	srv := a2a.NewServer(agent, a2a.CardConfig{ID: "echo", Name: "Echo Agent", Streaming: true})
	r := chi.NewRouter()
	srv.Routes(r)
	return httptest.NewServer(r), agent
}

func TestAgentCardServedAtWellKnownPath(t *testing.T) {
	ts, _ := newTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/.well-known/agent.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var card a2a.AgentCard
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&card))
	assert.Equal(t, "echo", card.ID)
	assert.True(t, card.Capabilities.Streaming)
}

func TestTasksSendThenGetReflectsCompletedDAGState(t *testing.T) {
	ts, _ := newTestServer(t)
	defer ts.Close()

	reqBody := a2a.SendMessageRequest{
		Message: a2a.Message{Role: "user", Parts: []a2a.Part{{Type: "text", Text: "hello"}}},
	}
	raw, _ := json.Marshal(reqBody)
	resp, err := http.Post(ts.URL+"/tasks/send", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sendResp a2a.SendMessageResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sendResp))
	assert.Equal(t, "completed", sendResp.Task.Status.State)

	getResp, err := http.Get(ts.URL + "/tasks/" + sendResp.Task.ID)
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)

	var task a2a.Task
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&task))
	assert.Equal(t, "completed", task.Status.State)
	require.Len(t, task.Messages, 1)
	assert.Equal(t, "hello", task.Messages[0].Parts[0].Text)
}

func TestTasksGetUnknownIDReturnsNotFound(t *testing.T) {
	ts, _ := newTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/tasks/does-not-exist")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
