// Package bridge implements Protocol Bridge: translating a peer
// agent into a tool-server tool (A→B) and a tool registry into a peer
// agent (B→A), plus a protocol-dispatching Gateway.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/shurankain/skreaver-sub005/tool"
	"github.com/shurankain/skreaver-sub005/unified"
)

// pollInterval paces GetTask polling while awaiting a terminal status.
const pollInterval = 100 * time.Millisecond

// executionResult is the single JSON payload a bridged peer-agent
// skill returns to its caller, serializing every artifact the
// completed task produced.
type executionResult struct {
	TaskID    string          `json:"taskId"`
	Status    string          `json:"status"`
	Artifacts []artifactParts `json:"artifacts,omitempty"`
}

type artifactParts struct {
	ID    string     `json:"id"`
	Label string     `json:"label,omitempty"`
	Parts []partJSON `json:"parts"`
}

type partJSON struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	URI       string          `json:"uri,omitempty"`
	MediaType string          `json:"mediaType,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// AgentAsTool adapts one skill of a remote peer agent into a local
// tool.Tool. Calling it sends a single text Message, awaits a
// terminal Task by polling GetTask (Stream is not used), and
// serializes every produced Artifact back as one ExecutionResult JSON
// payload.
func AgentAsTool(agent unified.UnifiedAgent, skillID string) tool.Tool {
	id, err := tool.NewToolId(skillID)
	if err != nil {
		id = tool.ToolId{}
	}
	return tool.Func{
		ID: id,
		Fn: func(ctx context.Context, input string) tool.Result {
			return callAgentSkill(ctx, agent, input)
		},
	}
}

func callAgentSkill(ctx context.Context, agent unified.UnifiedAgent, input string) tool.Result {
	msg := unified.Message{
		Role:  unified.RoleUser,
		Parts: []unified.ContentPart{unified.NewTextPart(input, nil)},
	}

	task, err := agent.SendMessage(ctx, msg)
	if err != nil {
		return tool.NewFailure(err.Error(), "")
	}

	for !task.Status.IsTerminal() {
		select {
		case <-ctx.Done():
			return tool.NewFailure("context canceled awaiting remote task", "")
		case <-time.After(pollInterval):
		}
		task, err = agent.GetTask(ctx, task.ID)
		if err != nil {
			return tool.NewFailure(err.Error(), "")
		}
	}

	payload, err := json.Marshal(toExecutionResult(task))
	if err != nil {
		return tool.NewFailure(err.Error(), "")
	}

	if task.Status == unified.TaskFailed {
		return tool.NewFailure(string(payload), "")
	}
	return tool.NewSuccess(string(payload))
}

func toExecutionResult(task unified.Task) executionResult {
	out := executionResult{TaskID: task.ID, Status: task.Status.String()}
	for _, a := range task.Artifacts {
		ap := artifactParts{ID: a.ID, Label: a.Label}
		for _, p := range a.Parts {
			ap.Parts = append(ap.Parts, toPartJSON(p))
		}
		out.Artifacts = append(out.Artifacts, ap)
	}
	return out
}

func toPartJSON(p unified.ContentPart) partJSON {
	switch p.Kind {
	case unified.ContentFile:
		return partJSON{Type: "file", URI: p.File.URI, MediaType: p.File.MediaType}
	case unified.ContentData:
		return partJSON{Type: "data", Data: json.RawMessage(bytes.TrimSpace(p.Data.JSON)), MediaType: p.Data.MediaType}
	default:
		return partJSON{Type: "text", Text: p.Text.Value}
	}
}
