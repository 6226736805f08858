package toolserver

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/shurankain/skreaver-sub005/tool"
)

// LongRunning marks a tool id as deferred: calls to it are admitted as
// a Task and run on a background goroutine instead of blocking the
// tools/call response.
type LongRunning struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

// NewLongRunning builds a LongRunning set from zero or more tool ids.
func NewLongRunning(ids ...string) *LongRunning {
	lr := &LongRunning{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		lr.ids[id] = struct{}{}
	}
	return lr
}

func (lr *LongRunning) has(id string) bool {
	if lr == nil {
		return false
	}
	lr.mu.RLock()
	defer lr.mu.RUnlock()
	_, ok := lr.ids[id]
	return ok
}

// Server exposes a tool.Registry over the JSON-RPC tool-server wire.
// Descriptions and annotations are attached per tool via
// Describe; any registered tool without a description is still listed
// with a bare name.
type Server struct {
	reg          *tool.Registry
	descriptions map[string]ToolDescriptor
	longRunning  *LongRunning
	tasks        *taskStore
	mu           sync.RWMutex
}

// NewServer builds a Server fronting reg.
func NewServer(reg *tool.Registry) *Server {
	return &Server{reg: reg, descriptions: make(map[string]ToolDescriptor), tasks: newTaskStore()}
}

// Describe attaches a wire description and annotations to a tool id,
// surfaced by tools/list.
func (s *Server) Describe(id string, description string, inputSchema json.RawMessage, ann Annotations) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.descriptions[id] = ToolDescriptor{Name: id, Description: description, InputSchema: inputSchema, Annotations: ann}
}

// WithLongRunning configures which tool ids are admitted as deferred
// Tasks rather than answered synchronously.
func (s *Server) WithLongRunning(lr *LongRunning) *Server {
	s.longRunning = lr
	return s
}

// ServeHTTP dispatches one JSON-RPC request per POST body, matching
// the reference implementation's single-endpoint JSON-RPC transport shape
// (features/mcp/runtime/httpcaller.go, symmetric server side).
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRPC(w, rpcResponse{JSONRPC: "2.0", Error: &rpcError{Code: JSONRPCParseError, Message: err.Error()}})
		return
	}

	switch req.Method {
	case MethodInitialize:
		writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: json.RawMessage(`{"capabilities":{}}`)})
	case MethodToolsList:
		s.handleToolsList(w, req)
	case MethodToolsCall:
		s.handleToolsCall(r.Context(), w, req)
	case MethodTasksStatus:
		s.handleTasksStatus(w, req)
	case MethodTasksCancel:
		s.handleTasksCancel(w, req)
	default:
		writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: JSONRPCMethodNotFound, Message: "unknown method " + req.Method}})
	}
}

func (s *Server) handleToolsList(w http.ResponseWriter, req rpcRequest) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ToolDescriptor
	for _, id := range s.reg.Names() {
		if d, ok := s.descriptions[id.String()]; ok {
			out = append(out, d)
			continue
		}
		out = append(out, ToolDescriptor{Name: id.String()})
	}
	result, _ := json.Marshal(map[string]any{"tools": out})
	writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: result})
}

func (s *Server) handleToolsCall(ctx context.Context, w http.ResponseWriter, req rpcRequest) {
	var params toolsCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: JSONRPCInvalidParams, Message: err.Error()}})
		return
	}
	id, err := tool.NewToolId(params.Name)
	if err != nil {
		writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: JSONRPCInvalidParams, Message: err.Error()}})
		return
	}

	if s.longRunning.has(params.Name) {
		taskID := uuid.NewString()
		taskCtx, cancel := context.WithCancel(context.Background())
		s.tasks.create(taskID, cancel)
		go s.runDeferred(taskCtx, taskID, id, string(params.Arguments))

		result, _ := json.Marshal(toolsCallResult{Defer: &deferredTask{TaskID: taskID}})
		writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: result})
		return
	}

	res, err := s.reg.TryDispatch(ctx, tool.Call{Name: id, Input: string(params.Arguments)})
	if err != nil {
		writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: JSONRPCInvalidRequest, Message: err.Error()}})
		return
	}
	result, _ := json.Marshal(toCallResult(res))
	writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: result})
}

func (s *Server) runDeferred(ctx context.Context, taskID string, id tool.ToolId, input string) {
	s.tasks.setRunning(taskID)
	res, err := s.reg.TryDispatch(ctx, tool.Call{Name: id, Input: input})
	if err != nil {
		s.tasks.fail(taskID, err.Error())
		return
	}
	if !res.IsSuccess() {
		s.tasks.fail(taskID, res.Reason())
		return
	}
	s.tasks.complete(taskID, res.Output())
}

func toCallResult(res tool.Result) toolsCallResult {
	if res.IsSuccess() {
		return toolsCallResult{Content: []contentItem{{Type: "text", Text: res.Output()}}}
	}
	return toolsCallResult{Content: []contentItem{{Type: "text", Text: res.Reason()}}, IsError: true}
}

type tasksStatusParams struct {
	TaskID string `json:"taskId"`
}

func (s *Server) handleTasksStatus(w http.ResponseWriter, req rpcRequest) {
	var params tasksStatusParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: JSONRPCInvalidParams, Message: err.Error()}})
		return
	}
	t, ok := s.tasks.get(params.TaskID)
	if !ok {
		writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: JSONRPCInvalidParams, Message: "unknown task"}})
		return
	}
	result, _ := json.Marshal(taskStatusWire(t))
	writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: result})
}

func (s *Server) handleTasksCancel(w http.ResponseWriter, req rpcRequest) {
	var params tasksStatusParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: JSONRPCInvalidParams, Message: err.Error()}})
		return
	}
	t, err := s.tasks.cancel(params.TaskID)
	if err != nil {
		writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: JSONRPCInvalidParams, Message: err.Error()}})
		return
	}
	result, _ := json.Marshal(taskStatusWire(t))
	writeRPC(w, rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: result})
}

type taskStatusResult struct {
	TaskID string `json:"taskId"`
	Status string `json:"status"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

func taskStatusWire(t *Task) taskStatusResult {
	return taskStatusResult{TaskID: t.ID, Status: t.Status.String(), Result: t.Result, Error: t.Error}
}

func writeRPC(w http.ResponseWriter, resp rpcResponse) {
	resp.JSONRPC = "2.0"
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
