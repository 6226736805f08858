package a2a

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/shurankain/skreaver-sub005/errorsx"
	"github.com/shurankain/skreaver-sub005/unified"
)

type (
	// CardConfig is static configuration used to render the AgentCard.
	CardConfig struct {
		ID           string
		Name         string
		Description  string
		Version      string
		BaseURL      string
		Streaming    bool
		Skills       []Skill
		Interfaces   []string
		Security     []map[string][]string
	}

	// TaskStore persists TaskState for in-flight and completed tasks.
	// The core specifies only this interface; Server's default is the
	// in-memory reference implementation.
	TaskStore interface {
		Store(id string, state *unified.Task) error
		Load(id string) (*unified.Task, bool)
		Delete(id string)
	}

	// Server implements Protocol Adapter A by delegating execution to a
	// unified.UnifiedAgent and managing A2A task-lifecycle bookkeeping
	// around it.
	Server struct {
		agent  unified.UnifiedAgent
		config CardConfig
		store  TaskStore
		mu     sync.Mutex
		cancel map[string]context.CancelFunc
	}

	inMemoryTaskStore struct {
		mu    sync.RWMutex
		tasks map[string]*unified.Task
	}
)

// NewServer constructs a Server fronting agent, using an in-memory
// TaskStore by default.
func NewServer(a unified.UnifiedAgent, cfg CardConfig) *Server {
	return &Server{
		agent:  a,
		config: cfg,
		store:  newInMemoryTaskStore(),
		cancel: make(map[string]context.CancelFunc),
	}
}

// WithTaskStore overrides the default in-memory TaskStore.
func (s *Server) WithTaskStore(store TaskStore) *Server {
	s.store = store
	return s
}

// Routes mounts the A2A endpoints onto r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/.well-known/agent.json", s.handleAgentCard)
	r.Post("/tasks/send", s.handleTasksSend)
	r.Post("/tasks/sendSubscribe", s.handleTasksSendSubscribe)
	r.Get("/tasks/{id}", s.handleTasksGet)
	r.Post("/tasks/{id}/cancel", s.handleTasksCancel)
}

func (s *Server) handleAgentCard(w http.ResponseWriter, r *http.Request) {
	card := AgentCard{
		ID:          s.config.ID,
		Name:        s.config.Name,
		URL:         s.config.BaseURL,
		Description: s.config.Description,
		Version:     s.config.Version,
		Capabilities: CardCapabilities{
			Streaming:              s.config.Streaming,
			StateTransitionHistory: true,
		},
		Skills:     s.config.Skills,
		Interfaces: s.config.Interfaces,
		Security:   s.config.Security,
	}
	writeJSON(w, http.StatusOK, card)
}

func (s *Server) handleTasksSend(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	msg := ToUnifiedMessage(req.Message)
	msg.ReferenceTaskIDs = append(msg.ReferenceTaskIDs, req.TaskID)

	task, err := s.agent.SendMessage(r.Context(), msg)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	_ = s.store.Store(task.ID, &task)
	writeJSON(w, http.StatusOK, SendMessageResponse{Task: FromUnifiedTask(task)})
}

func (s *Server) handleTasksSendSubscribe(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, &errorsx.AgentError{Kind: errorsx.AgentInternal, Reason: "streaming not supported by response writer"})
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	msg := ToUnifiedMessage(req.Message)
	events, err := s.agent.Stream(r.Context(), msg)
	if err != nil {
		writeSSE(w, flusher, errorEvent(req.TaskID, err))
		return
	}

	for ev := range events {
		frame := toStreamingEvent(req.TaskID, ev)
		writeSSE(w, flusher, frame)
		if ev.Kind == unified.EventError {
			return
		}
		if ev.Kind == unified.EventStatusUpdate && ev.Status.IsTerminal() {
			return
		}
	}
}

func (s *Server) handleTasksGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if task, ok := s.store.Load(id); ok {
		writeJSON(w, http.StatusOK, FromUnifiedTask(*task))
		return
	}
	task, err := s.agent.GetTask(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, &errorsx.AgentError{Kind: errorsx.AgentTaskNotFound, Reason: id})
		return
	}
	writeJSON(w, http.StatusOK, FromUnifiedTask(task))
}

func (s *Server) handleTasksCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	task, err := s.agent.CancelTask(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, &errorsx.AgentError{Kind: errorsx.AgentTaskNotFound, Reason: id})
		return
	}
	_ = s.store.Store(task.ID, &task)
	writeJSON(w, http.StatusOK, FromUnifiedTask(task))
}

func toStreamingEvent(taskID string, ev unified.StreamEvent) StreamingEvent {
	switch ev.Kind {
	case unified.EventArtifactAdded:
		art := FromUnifiedArtifact(*ev.Artifact)
		art.Final = ev.ArtifactIsFinal
		return StreamingEvent{Type: eventTypeArtifact, TaskID: taskID, TaskArtifactUpdate: &art, Final: ev.ArtifactIsFinal}
	case unified.EventMessageAdded:
		msg := FromUnifiedMessage(*ev.Message)
		return StreamingEvent{Type: "message", TaskID: taskID, Message: &msg}
	case unified.EventError:
		return errorEvent(taskID, errStr(ev.Reason))
	default:
		status := TaskStatus{State: statusToWire(ev.Status), Timestamp: time.Now().UTC().Format(time.RFC3339Nano)}
		return StreamingEvent{Type: eventTypeStatus, TaskID: taskID, TaskStatusUpdate: &status, Final: ev.Status.IsTerminal()}
	}
}

type simpleErr string

func (e simpleErr) Error() string { return string(e) }
func errStr(s string) error       { return simpleErr(s) }

func errorEvent(taskID string, err error) StreamingEvent {
	status := TaskStatus{State: "failed", Timestamp: time.Now().UTC().Format(time.RFC3339Nano)}
	if err != nil {
		status.Message = &Message{Role: "system", Parts: []Part{{Type: "text", Text: err.Error()}}}
	}
	return StreamingEvent{Type: eventTypeStatus, TaskID: taskID, TaskStatusUpdate: &status, Final: true}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{Code: http.StatusText(status), Message: err.Error()})
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, ev StreamingEvent) {
	data, _ := json.Marshal(ev)
	_, _ = w.Write([]byte("data: "))
	_, _ = w.Write(data)
	_, _ = w.Write([]byte("\n\n"))
	flusher.Flush()
}

func newInMemoryTaskStore() *inMemoryTaskStore {
	return &inMemoryTaskStore{tasks: make(map[string]*unified.Task)}
}

func (s *inMemoryTaskStore) Store(id string, state *unified.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[id] = state
	return nil
}

func (s *inMemoryTaskStore) Load(id string) (*unified.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	return t, ok
}

func (s *inMemoryTaskStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
}

// NewTaskID generates a fresh task identifier.
func NewTaskID() string { return uuid.NewString() }

var _ TaskStore = (*inMemoryTaskStore)(nil)
