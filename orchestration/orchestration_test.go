package orchestration_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shurankain/skreaver-sub005/errorsx"
	"github.com/shurankain/skreaver-sub005/orchestration"
	"github.com/shurankain/skreaver-sub005/unified"
)

// echoAgent completes a task whose sole artifact echoes every text
// part of the inbound message, uppercased if upper is set.
type echoAgent struct {
	id    string
	upper bool
	fail  bool
}

func (a *echoAgent) Info(ctx context.Context) (unified.AgentInfo, error) {
	return unified.AgentInfo{ID: a.id}, nil
}

func (a *echoAgent) SendMessage(ctx context.Context, msg unified.Message) (unified.Task, error) {
	if a.fail {
		return unified.Task{ID: a.id, Status: unified.TaskFailed}, nil
	}
	var text string
	for _, p := range msg.Parts {
		if p.Kind == unified.ContentText {
			text += p.Text.Value
		}
	}
	if a.upper {
		upper := make([]byte, len(text))
		for i := 0; i < len(text); i++ {
			c := text[i]
			if c >= 'a' && c <= 'z' {
				c -= 32
			}
			upper[i] = c
		}
		text = string(upper)
	}
	task := unified.Task{ID: a.id, Status: unified.TaskCompleted}
	task.AddArtifact(unified.Artifact{ID: "out", Final: true, Parts: []unified.ContentPart{unified.NewTextPart(text, nil)}})
	return task, nil
}

func (a *echoAgent) GetTask(ctx context.Context, id string) (unified.Task, error) {
	return unified.Task{}, errors.New("not used in this fixture")
}

func (a *echoAgent) CancelTask(ctx context.Context, id string) (unified.Task, error) {
	return unified.Task{}, errors.New("not used in this fixture")
}

func (a *echoAgent) Stream(ctx context.Context, msg unified.Message) (<-chan unified.StreamEvent, error) {
	return nil, errors.New("not used in this fixture")
}

var _ unified.UnifiedAgent = (*echoAgent)(nil)

func textMsg(s string) unified.Message {
	return unified.Message{Role: unified.RoleUser, Parts: []unified.ContentPart{unified.NewTextPart(s, nil)}}
}

func TestSequentialPipelineChainsStageOutputToNextInput(t *testing.T) {
	pipe := orchestration.NewSequentialPipeline(unified.AgentInfo{ID: "pipe"}, &echoAgent{id: "s1"}, &echoAgent{id: "s2", upper: true})

	task, err := pipe.SendMessage(context.Background(), textMsg("hi"))
	require.NoError(t, err)
	assert.Equal(t, unified.TaskCompleted, task.Status)
	require.Len(t, task.Artifacts, 1)
	assert.Equal(t, "HI", task.Artifacts[0].Parts[0].Text.Value)
}

func TestSequentialPipelineShortCircuitsOnFailure(t *testing.T) {
	pipe := orchestration.NewSequentialPipeline(unified.AgentInfo{ID: "pipe"}, &echoAgent{id: "s1", fail: true}, &echoAgent{id: "s2"})

	task, err := pipe.SendMessage(context.Background(), textMsg("hi"))
	require.NoError(t, err)
	assert.Equal(t, unified.TaskFailed, task.Status)
}

func TestParallelAgentFirstSuccessReturnsACompletedBranch(t *testing.T) {
	par := orchestration.NewParallelAgent(unified.AgentInfo{ID: "par"}, orchestration.FirstSuccess, nil,
		&echoAgent{id: "a", fail: true}, &echoAgent{id: "b"})

	task, err := par.SendMessage(context.Background(), textMsg("hi"))
	require.NoError(t, err)
	assert.Equal(t, unified.TaskCompleted, task.Status)
}

func TestParallelAgentAllFailsIfAnyBranchFails(t *testing.T) {
	par := orchestration.NewParallelAgent(unified.AgentInfo{ID: "par"}, orchestration.All, nil,
		&echoAgent{id: "a"}, &echoAgent{id: "b", fail: true})

	task, err := par.SendMessage(context.Background(), textMsg("hi"))
	require.NoError(t, err)
	assert.Equal(t, unified.TaskFailed, task.Status)
}

func TestParallelAgentAllMergesArtifactsAcrossBranches(t *testing.T) {
	par := orchestration.NewParallelAgent(unified.AgentInfo{ID: "par"}, orchestration.All, nil,
		&echoAgent{id: "a"}, &echoAgent{id: "b"})

	task, err := par.SendMessage(context.Background(), textMsg("hi"))
	require.NoError(t, err)
	assert.Equal(t, unified.TaskCompleted, task.Status)
	assert.Len(t, task.Artifacts, 2)
}

func TestParallelAgentMajorityContentPicksTheAgreeingMajority(t *testing.T) {
	par := orchestration.NewParallelAgent(unified.AgentInfo{ID: "par"}, orchestration.MajorityContent, nil,
		&echoAgent{id: "a"}, &echoAgent{id: "b"}, &echoAgent{id: "c", upper: true})

	task, err := par.SendMessage(context.Background(), textMsg("hi"))
	require.NoError(t, err)
	assert.Equal(t, "hi", task.Artifacts[0].Parts[0].Text.Value)
}

func TestParallelAgentCustomModeWithoutAggregatorFails(t *testing.T) {
	par := orchestration.NewParallelAgent(unified.AgentInfo{ID: "par"}, orchestration.Custom, nil, &echoAgent{id: "a"})

	_, err := par.SendMessage(context.Background(), textMsg("hi"))
	require.Error(t, err)
}

func resolverOf(agents map[string]unified.UnifiedAgent) func(string) (unified.UnifiedAgent, bool) {
	return func(id string) (unified.UnifiedAgent, bool) {
		a, ok := agents[id]
		return a, ok
	}
}

func TestRouterAgentDispatchesToFirstMatchingRule(t *testing.T) {
	agents := map[string]unified.UnifiedAgent{"upper": &echoAgent{id: "upper", upper: true}, "plain": &echoAgent{id: "plain"}}
	router := orchestration.NewRouterAgent(unified.AgentInfo{ID: "router"}, resolverOf(agents),
		orchestration.RoutingRule{
			Predicate: func(msg unified.Message) bool { return len(msg.Parts) > 0 && msg.Parts[0].Text.Value == "shout" },
			AgentID:   "upper",
		},
	).WithDefault("plain")

	task, err := router.SendMessage(context.Background(), textMsg("shout"))
	require.NoError(t, err)
	assert.Equal(t, "SHOUT", task.Artifacts[0].Parts[0].Text.Value)

	task, err = router.SendMessage(context.Background(), textMsg("whisper"))
	require.NoError(t, err)
	assert.Equal(t, "whisper", task.Artifacts[0].Parts[0].Text.Value)
}

func TestRouterAgentNoMatchAndNoDefaultReturnsInvalidRequest(t *testing.T) {
	router := orchestration.NewRouterAgent(unified.AgentInfo{ID: "router"}, resolverOf(nil))

	_, err := router.SendMessage(context.Background(), textMsg("anything"))
	require.Error(t, err)
	agentErr, ok := errorsx.As[*errorsx.AgentError](err)
	require.True(t, ok)
	assert.Equal(t, errorsx.AgentInvalidRequest, agentErr.Kind)
}

func TestCapabilityBasedSupervisorRoutesByCapability(t *testing.T) {
	agents := map[string]unified.UnifiedAgent{"translator": &echoAgent{id: "translator", upper: true}}
	infos := []unified.AgentInfo{{ID: "translator", Capabilities: []unified.Capability{{Name: "translate"}}}}

	sup := orchestration.NewCapabilityBasedSupervisor(unified.AgentInfo{ID: "cap-sup"}, infos, resolverOf(agents))

	msg := textMsg("hi")
	msg.Metadata = map[string]any{"capability": "translate"}

	task, err := sup.SendMessage(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, "HI", task.Artifacts[0].Parts[0].Text.Value)
}

func TestSupervisorAgentForwardsThenCompletes(t *testing.T) {
	agents := map[string]unified.UnifiedAgent{"worker": &echoAgent{id: "worker", upper: true}}

	logic := func(ctx context.Context, step int, previous unified.Task) (orchestration.SupervisorDecision, error) {
		switch step {
		case 0:
			return orchestration.SupervisorDecision{Kind: orchestration.Forward, AgentID: "worker", Message: textMsg("hi")}, nil
		default:
			return orchestration.SupervisorDecision{Kind: orchestration.Complete, Task: previous}, nil
		}
	}

	sup := orchestration.NewSupervisorAgent(unified.AgentInfo{ID: "sup"}, logic, resolverOf(agents), 10)
	task, err := sup.SendMessage(context.Background(), textMsg("ignored"))
	require.NoError(t, err)
	assert.Equal(t, unified.TaskCompleted, task.Status)
	assert.Equal(t, "HI", task.Artifacts[0].Parts[0].Text.Value)
}

func TestSupervisorAgentExceedingMaxStepsFails(t *testing.T) {
	agents := map[string]unified.UnifiedAgent{"worker": &echoAgent{id: "worker"}}
	logic := func(ctx context.Context, step int, previous unified.Task) (orchestration.SupervisorDecision, error) {
		return orchestration.SupervisorDecision{Kind: orchestration.Forward, AgentID: "worker", Message: textMsg("x")}, nil
	}

	sup := orchestration.NewSupervisorAgent(unified.AgentInfo{ID: "sup"}, logic, resolverOf(agents), 3)
	_, err := sup.SendMessage(context.Background(), textMsg("ignored"))
	require.Error(t, err)
	agentErr, ok := errorsx.As[*errorsx.AgentError](err)
	require.True(t, ok)
	assert.Equal(t, errorsx.AgentInternal, agentErr.Kind)
}

// flakyAgent fails its first N calls, then succeeds.
type flakyAgent struct {
	id          string
	failUntil   int
	invocations int
}

func (a *flakyAgent) Info(ctx context.Context) (unified.AgentInfo, error) {
	return unified.AgentInfo{ID: a.id}, nil
}

func (a *flakyAgent) SendMessage(ctx context.Context, msg unified.Message) (unified.Task, error) {
	a.invocations++
	if a.invocations <= a.failUntil {
		return unified.Task{ID: a.id, Status: unified.TaskFailed}, nil
	}
	task := unified.Task{ID: a.id, Status: unified.TaskCompleted}
	task.AddArtifact(unified.Artifact{ID: "out", Final: true, Parts: []unified.ContentPart{unified.NewTextPart("recovered", nil)}})
	return task, nil
}

func (a *flakyAgent) GetTask(ctx context.Context, id string) (unified.Task, error) {
	return unified.Task{}, errors.New("not used in this fixture")
}

func (a *flakyAgent) CancelTask(ctx context.Context, id string) (unified.Task, error) {
	return unified.Task{}, errors.New("not used in this fixture")
}

func (a *flakyAgent) Stream(ctx context.Context, msg unified.Message) (<-chan unified.StreamEvent, error) {
	return nil, errors.New("not used in this fixture")
}

var _ unified.UnifiedAgent = (*flakyAgent)(nil)

func TestSupervisorAgentWithRetryRecoversFromTransientFailure(t *testing.T) {
	flaky := &flakyAgent{id: "flaky", failUntil: 2}
	agents := map[string]unified.UnifiedAgent{"flaky": flaky}

	logic := func(ctx context.Context, step int, previous unified.Task) (orchestration.SupervisorDecision, error) {
		switch step {
		case 0:
			return orchestration.SupervisorDecision{Kind: orchestration.Forward, AgentID: "flaky", Message: textMsg("hi")}, nil
		default:
			return orchestration.SupervisorDecision{Kind: orchestration.Complete, Task: previous}, nil
		}
	}

	sup := orchestration.NewSupervisorAgent(unified.AgentInfo{ID: "sup"}, logic, resolverOf(agents), 10).WithRetry(3, time.Millisecond)
	task, err := sup.SendMessage(context.Background(), textMsg("ignored"))
	require.NoError(t, err)
	assert.Equal(t, unified.TaskCompleted, task.Status)
	assert.Equal(t, "recovered", task.Artifacts[0].Parts[0].Text.Value)
}

func TestSupervisorAgentFailDecisionReturnsFailedTask(t *testing.T) {
	logic := func(ctx context.Context, step int, previous unified.Task) (orchestration.SupervisorDecision, error) {
		return orchestration.SupervisorDecision{Kind: orchestration.Fail, Reason: "no viable plan"}, nil
	}

	sup := orchestration.NewSupervisorAgent(unified.AgentInfo{ID: "sup"}, logic, resolverOf(nil), 3)
	task, err := sup.SendMessage(context.Background(), textMsg("ignored"))
	require.NoError(t, err)
	assert.Equal(t, unified.TaskFailed, task.Status)
}
