package a2a

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shurankain/skreaver-sub005/errorsx"
	"github.com/shurankain/skreaver-sub005/unified"
)

// Client consumes a remote peer agent's A2A endpoints and implements
// unified.UnifiedAgent, making a remote A2A agent indistinguishable
// from a local one to the rest of the runtime.
type Client struct {
	baseURL string
	hc      *http.Client
	info    *unified.AgentInfo
}

// NewClient builds a Client against baseURL (no trailing slash
// expected), using httpClient if non-nil or an http.Client with a
// 30-second timeout otherwise.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: strings.TrimSuffix(baseURL, "/"), hc: httpClient}
}

var _ unified.UnifiedAgent = (*Client)(nil)

// Info fetches and caches the remote AgentCard, converting it to an
// AgentInfo.
func (c *Client) Info(ctx context.Context) (unified.AgentInfo, error) {
	if c.info != nil {
		return *c.info, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/.well-known/agent.json", nil)
	if err != nil {
		return unified.AgentInfo{}, &errorsx.AgentError{Kind: errorsx.AgentInternal, Protocol: "a2a", Reason: err.Error(), Cause: err}
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return unified.AgentInfo{}, &errorsx.AgentError{Kind: errorsx.AgentConnectionError, Protocol: "a2a", Reason: err.Error(), Cause: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return unified.AgentInfo{}, &errorsx.AgentError{Kind: errorsx.AgentConnectionError, Protocol: "a2a", Reason: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	var card AgentCard
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return unified.AgentInfo{}, &errorsx.AgentError{Kind: errorsx.AgentSerialization, Protocol: "a2a", Reason: err.Error(), Cause: err}
	}

	info := unified.AgentInfo{
		ID:          card.ID,
		Name:        card.Name,
		Version:     card.Version,
		Description: card.Description,
		Endpoint:    card.URL,
		Protocol:    unified.ProtocolPeerAgent,
		Interfaces:  card.Interfaces,
	}
	for _, s := range card.Skills {
		info.Capabilities = append(info.Capabilities, unified.Capability{Name: s.Name, Description: s.Description})
	}
	c.info = &info
	return info, nil
}

// SendMessage posts msg to the remote agent's tasks/send endpoint and
// waits for the resulting task.
func (c *Client) SendMessage(ctx context.Context, msg unified.Message) (unified.Task, error) {
	req := SendMessageRequest{Message: FromUnifiedMessage(msg)}
	var resp SendMessageResponse
	if err := c.postJSON(ctx, "/tasks/send", req, &resp); err != nil {
		return unified.Task{}, err
	}
	return ToUnifiedTask(resp.Task), nil
}

// GetTask fetches a task by id from the remote agent.
func (c *Client) GetTask(ctx context.Context, id string) (unified.Task, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tasks/"+id, nil)
	if err != nil {
		return unified.Task{}, &errorsx.AgentError{Kind: errorsx.AgentInternal, Protocol: "a2a", Reason: err.Error(), Cause: err}
	}
	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return unified.Task{}, &errorsx.AgentError{Kind: errorsx.AgentConnectionError, Protocol: "a2a", Reason: err.Error(), Cause: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return unified.Task{}, &errorsx.AgentError{Kind: errorsx.AgentTaskNotFound, Protocol: "a2a", Reason: id}
	}
	var wire Task
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return unified.Task{}, &errorsx.AgentError{Kind: errorsx.AgentSerialization, Protocol: "a2a", Reason: err.Error(), Cause: err}
	}
	return ToUnifiedTask(wire), nil
}

// CancelTask posts to the remote agent's cancel endpoint.
func (c *Client) CancelTask(ctx context.Context, id string) (unified.Task, error) {
	var wire Task
	if err := c.postJSON(ctx, "/tasks/"+id+"/cancel", CancelRequest{}, &wire); err != nil {
		return unified.Task{}, err
	}
	return ToUnifiedTask(wire), nil
}

// Stream opens an SSE connection to tasks/sendSubscribe and decodes
// frames into unified.StreamEvent, closing the channel when the remote
// agent emits a Final event or the connection ends.
func (c *Client) Stream(ctx context.Context, msg unified.Message) (<-chan unified.StreamEvent, error) {
	body, err := json.Marshal(SendMessageRequest{Message: FromUnifiedMessage(msg)})
	if err != nil {
		return nil, &errorsx.AgentError{Kind: errorsx.AgentSerialization, Protocol: "a2a", Reason: err.Error(), Cause: err}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tasks/sendSubscribe", bytes.NewReader(body))
	if err != nil {
		return nil, &errorsx.AgentError{Kind: errorsx.AgentInternal, Protocol: "a2a", Reason: err.Error(), Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return nil, &errorsx.AgentError{Kind: errorsx.AgentConnectionError, Protocol: "a2a", Reason: err.Error(), Cause: err}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &errorsx.AgentError{Kind: errorsx.AgentConnectionError, Protocol: "a2a", Reason: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	events := make(chan unified.StreamEvent)
	go func() {
		defer close(events)
		defer resp.Body.Close()
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), 1<<20)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var frame StreamingEvent
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &frame); err != nil {
				select {
				case events <- unified.StreamEvent{Kind: unified.EventError, Reason: err.Error()}:
				case <-ctx.Done():
				}
				return
			}
			ev := fromStreamingEvent(frame)
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
			if frame.Final {
				return
			}
		}
	}()
	return events, nil
}

func fromStreamingEvent(frame StreamingEvent) unified.StreamEvent {
	switch frame.Type {
	case eventTypeArtifact:
		if frame.TaskArtifactUpdate == nil {
			return unified.StreamEvent{Kind: unified.EventError, Reason: "missing artifact payload"}
		}
		art := ToUnifiedArtifact(*frame.TaskArtifactUpdate)
		return unified.StreamEvent{Kind: unified.EventArtifactAdded, Artifact: &art, ArtifactIsFinal: frame.Final}
	case "message":
		if frame.Message == nil {
			return unified.StreamEvent{Kind: unified.EventError, Reason: "missing message payload"}
		}
		msg := ToUnifiedMessage(*frame.Message)
		return unified.StreamEvent{Kind: unified.EventMessageAdded, Message: &msg}
	default:
		status := unified.TaskPending
		var statusMsg *unified.Message
		if frame.TaskStatusUpdate != nil {
			status = statusFromWire(frame.TaskStatusUpdate.State)
			if frame.TaskStatusUpdate.Message != nil {
				m := ToUnifiedMessage(*frame.TaskStatusUpdate.Message)
				statusMsg = &m
			}
			if frame.TaskStatusUpdate.State == "failed" {
				reason := ""
				if statusMsg != nil && len(statusMsg.Parts) > 0 && statusMsg.Parts[0].Kind == unified.ContentText {
					reason = statusMsg.Parts[0].Text.Value
				}
				return unified.StreamEvent{Kind: unified.EventError, Status: status, StatusMessage: statusMsg, Reason: reason}
			}
		}
		return unified.StreamEvent{Kind: unified.EventStatusUpdate, Status: status, StatusMessage: statusMsg}
	}
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return &errorsx.AgentError{Kind: errorsx.AgentSerialization, Protocol: "a2a", Reason: err.Error(), Cause: err}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return &errorsx.AgentError{Kind: errorsx.AgentInternal, Protocol: "a2a", Reason: err.Error(), Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return &errorsx.AgentError{Kind: errorsx.AgentConnectionError, Protocol: "a2a", Reason: err.Error(), Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &errorsx.AgentError{Kind: errorsx.AgentTaskNotFound, Protocol: "a2a"}
	}
	if resp.StatusCode >= 400 {
		var errResp ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return &errorsx.AgentError{Kind: errorsx.AgentInvalidResponse, Protocol: "a2a", Reason: errResp.Message}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &errorsx.AgentError{Kind: errorsx.AgentSerialization, Protocol: "a2a", Reason: err.Error(), Cause: err}
		}
	}
	return nil
}
