package mesh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/shurankain/skreaver-sub005/errorsx"
)

// RequestReply sends a request on an ephemeral reply topic and awaits
// exactly one correlated reply, retrying the send itself (not the
// wait) with exponential backoff on any send error — grounded
// on the same ctx-vs-timer select shape used by
// protocol/toolserver.Client.awaitTask, generalized from polling a
// task store to waiting on a mesh subscription.
type RequestReply struct {
	transport Transport
	retry     backoff.BackOff
}

// NewRequestReply constructs a RequestReply pattern over transport. A
// nil retry policy defaults to exponential backoff starting at 10ms
// with up to three retries after the first send (four attempts in
// all), matching the reference implementation's conservative retry
// posture. Every send error is retried, whatever its kind.
func NewRequestReply(transport Transport, retry backoff.BackOff) *RequestReply {
	if retry == nil {
		eb := backoff.NewExponentialBackOff()
		eb.InitialInterval = 10 * time.Millisecond
		eb.MaxElapsedTime = 0
		retry = backoff.WithMaxRetries(eb, 3)
	}
	return &RequestReply{transport: transport, retry: retry}
}

// Request publishes req to topic with its CorrelationID set (a fresh
// one when req has none), then waits up to timeout for the first
// message on the ephemeral per-call reply topic "reply:<CorrelationID>".
// The reply topic is not written into req's metadata; a responder
// derives it from the CorrelationID, and the reply's own
// CorrelationID is not checked.
func (rr *RequestReply) Request(ctx context.Context, topic string, req Message, timeout time.Duration) (Message, error) {
	corr := req.Envelope().CorrelationID
	if corr == "" {
		corr = NewMessageID().String()
	}
	replyTopic := "reply:" + corr
	req = WithCorrelationID(req, corr)

	replyCh, err := rr.transport.Subscribe(ctx, replyTopic)
	if err != nil {
		return nil, &errorsx.MeshError{Kind: errorsx.MeshSubscribeFailed, Topic: replyTopic, Cause: err}
	}
	defer rr.transport.Unsubscribe(replyTopic, replyCh)

	send := func() error {
		if pub, ok := rr.transport.(interface {
			Publish(context.Context, string, Message) error
		}); ok {
			return pub.Publish(ctx, topic, req)
		}
		return rr.transport.Send(ctx, topic, req)
	}
	if err := backoff.Retry(send, backoff.WithContext(rr.retry, ctx)); err != nil {
		return nil, &errorsx.MeshError{Kind: errorsx.MeshSendFailed, Topic: topic, Cause: err}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, &errorsx.MeshError{Kind: errorsx.MeshTimeout, Timeout: timeout.String(), Cause: ctx.Err()}
	case <-timer.C:
		return nil, &errorsx.MeshError{Kind: errorsx.MeshTimeout, Timeout: timeout.String()}
	case reply, ok := <-replyCh:
		if !ok {
			return nil, &errorsx.MeshError{Kind: errorsx.MeshReceiveFailed, Topic: replyTopic, Message: "reply channel closed"}
		}
		return reply, nil
	}
}

// GatherConfig bounds a BroadcastGather round.
type GatherConfig struct {
	MinResponses int
	Deadline     time.Duration
}

// BroadcastGatherRound publishes req to the worker-pool topic workTopic and collects
// responses on a shared gather topic until GatherConfig is satisfied
// (either MinResponses arrive, or Deadline elapses — whichever first).
func BroadcastGatherRound(ctx context.Context, transport Transport, workTopic, gatherTopic string, req Message, cfg GatherConfig) ([]Message, error) {
	gatherCh, err := transport.Subscribe(ctx, gatherTopic)
	if err != nil {
		return nil, &errorsx.MeshError{Kind: errorsx.MeshSubscribeFailed, Topic: gatherTopic, Cause: err}
	}
	defer transport.Unsubscribe(gatherTopic, gatherCh)

	if pub, ok := transport.(interface {
		Publish(context.Context, string, Message) error
	}); ok {
		err = pub.Publish(ctx, workTopic, req)
	} else {
		err = transport.Send(ctx, workTopic, req)
	}
	if err != nil {
		return nil, err
	}

	deadline := cfg.Deadline
	if deadline <= 0 {
		deadline = 30 * time.Second
	}
	timer := time.NewTimer(deadline)
	defer timer.Stop()

	var responses []Message
	for {
		if cfg.MinResponses > 0 && len(responses) >= cfg.MinResponses {
			return responses, nil
		}
		select {
		case <-ctx.Done():
			return responses, ctx.Err()
		case <-timer.C:
			return responses, nil
		case msg, ok := <-gatherCh:
			if !ok {
				return responses, nil
			}
			responses = append(responses, msg)
		}
	}
}

// PipelineStage is one link of a Pipeline: it consumes msg and
// produces the next stage's input message (or an error to abort the
// chain).
type PipelineStage func(ctx context.Context, msg Message) (Message, error)

// Pipeline chains stages over mesh topics: each stage subscribes to an
// input topic, applies its transform, and publishes to the next
// stage's topic, so stages may run in separate processes connected
// only by the shared transport.
type Pipeline struct {
	transport Transport
	topics    []string
	stages    []PipelineStage

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPipeline wires len(stages) stages across len(stages)+1 topics
// (topics[0] is the pipeline's input, topics[len(stages)] its output).
func NewPipeline(transport Transport, topics []string, stages []PipelineStage) (*Pipeline, error) {
	if len(topics) != len(stages)+1 {
		return nil, &errorsx.MeshError{Kind: errorsx.MeshInvalidConfig, Message: fmt.Sprintf("pipeline needs len(stages)+1 topics, got %d topics for %d stages", len(topics), len(stages))}
	}
	return &Pipeline{transport: transport, topics: topics, stages: stages}, nil
}

// Start launches one goroutine per stage, each subscribed to its input
// topic and publishing to the next. Start is idempotent only once;
// call Stop before restarting.
func (p *Pipeline) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	for i, stage := range p.stages {
		in, out := p.topics[i], p.topics[i+1]
		ch, err := p.transport.Subscribe(ctx, in)
		if err != nil {
			cancel()
			return &errorsx.MeshError{Kind: errorsx.MeshSubscribeFailed, Topic: in, Cause: err}
		}
		p.wg.Add(1)
		go p.run(ctx, ch, out, stage)
	}
	return nil
}

func (p *Pipeline) run(ctx context.Context, in <-chan Message, outTopic string, stage PipelineStage) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			next, err := stage(ctx, msg)
			if err != nil {
				continue
			}
			if pub, ok := p.transport.(interface {
				Publish(context.Context, string, Message) error
			}); ok {
				_ = pub.Publish(ctx, outTopic, next)
			} else {
				_ = p.transport.Send(ctx, outTopic, next)
			}
		}
	}
}

// Stop cancels every stage goroutine and waits for them to exit.
func (p *Pipeline) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

// TaskStatus is a Supervisor-tracked worker task's lifecycle state.
type TaskStatus int

const (
	TaskDispatched TaskStatus = iota
	TaskSucceeded
	TaskFailed
)

// SupervisedTask tracks one dispatched unit of work.
type SupervisedTask struct {
	ID       string
	Status   TaskStatus
	Attempts int
}

// Supervisor dispatches tasks to a worker-pool topic and tracks their
// status as reported through Complete and Fail, retrying failed tasks
// up to MaxRetries —
// grounded on coordinator.Coordinator's bounded-iteration guard-rail
//, generalized from a single agent's step cap to per-task retry
// counts.
type Supervisor struct {
	transport   Transport
	workTopic   string
	resultTopic string
	maxRetries  int

	mu    sync.Mutex
	tasks map[string]*SupervisedTask
}

// NewSupervisor constructs a Supervisor dispatching over workTopic.
// resultTopic is stored but not subscribed to; completions are
// recorded only through Complete and Fail.
func NewSupervisor(transport Transport, workTopic, resultTopic string, maxRetries int) *Supervisor {
	return &Supervisor{
		transport:   transport,
		workTopic:   workTopic,
		resultTopic: resultTopic,
		maxRetries:  maxRetries,
		tasks:       make(map[string]*SupervisedTask),
	}
}

// Dispatch publishes task to the worker-pool topic and records it as
// in-flight.
func (s *Supervisor) Dispatch(ctx context.Context, taskID string, task Message) error {
	s.mu.Lock()
	t := s.tasks[taskID]
	if t == nil {
		t = &SupervisedTask{ID: taskID}
		s.tasks[taskID] = t
	}
	t.Status = TaskDispatched
	t.Attempts++
	s.mu.Unlock()
	if pub, ok := s.transport.(interface {
		Publish(context.Context, string, Message) error
	}); ok {
		return pub.Publish(ctx, s.workTopic, task)
	}
	return s.transport.Send(ctx, s.workTopic, task)
}

// Complete records taskID as succeeded.
func (s *Supervisor) Complete(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[taskID]; ok {
		t.Status = TaskSucceeded
	}
}

// Fail records taskID as failed and, if Attempts has not reached
// MaxRetries, re-dispatches it; otherwise it stays Failed.
func (s *Supervisor) Fail(ctx context.Context, taskID string, task Message) error {
	s.mu.Lock()
	t := s.tasks[taskID]
	if t == nil {
		t = &SupervisedTask{ID: taskID}
		s.tasks[taskID] = t
	}
	t.Status = TaskFailed
	retry := t.Attempts < s.maxRetries
	s.mu.Unlock()
	if !retry {
		return nil
	}
	return s.Dispatch(ctx, taskID, task)
}

// Status returns the current tracked state of taskID.
func (s *Supervisor) Status(taskID string) (SupervisedTask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return SupervisedTask{}, false
	}
	return *t, true
}
