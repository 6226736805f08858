// Package httpruntime implements the HTTP serving surface: request
// intake with backpressure, connection accounting with ordered locks,
// streaming responses, and graceful shutdown.
//
// Grounded on the reference implementation's runtime/a2a/server.go task-lifecycle and
// streaming shape (already adapted once into protocol/a2a.Server) and
// on example/cmd/assistant/http.go's wg+ctx.Done+Shutdown(timeout)
// graceful-shutdown goroutine, generalized to an arbitrary handler
// instead of goa-generated endpoints. The adaptive-mode EMA tracking is
// grounded on features/model/middleware.AdaptiveRateLimiter's AIMD
// token-bucket adjustment, carried over from per-request token budgets
// to per-request processing-time budgets.
package httpruntime

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/shurankain/skreaver-sub005/errorsx"
)

// Priority orders admission within one per-agent queue.
type Priority int

const (
	Low Priority = iota
	Normal
	High
	Critical
)

// Mode selects whether backpressure thresholds are fixed (Static) or
// adjust to observed load (Adaptive).
type Mode int

const (
	Static Mode = iota
	Adaptive
)

// Config bounds the backpressure controller's admission behavior.
type Config struct {
	MaxQueueSize           int
	MaxConcurrentRequests  int // per agent
	GlobalMaxConcurrent    int
	QueueTimeout           time.Duration
	ProcessingTimeout      time.Duration
	Mode                   Mode
	TargetProcessingTimeMs float64
	LoadThreshold          float64

	// GlobalRPS caps the sustained admission rate across all agents,
	// independent of concurrency. Zero disables the cap.
	GlobalRPS  float64
	BurstLimit int
}

// DefaultConfig returns a conservative Static-mode configuration.
func DefaultConfig() Config {
	return Config{
		MaxQueueSize:          64,
		MaxConcurrentRequests: 8,
		GlobalMaxConcurrent:   64,
		QueueTimeout:          5 * time.Second,
		ProcessingTimeout:     30 * time.Second,
		Mode:                  Static,
	}
}

// State is a Request's lifecycle state: Queued, Processing,
// Completed, Failed. Transitions Queued->Processing (admission),
// Queued->Failed (queue timeout/cancellation), Processing->Completed
// (success), Processing->Failed (timeout/error). Go has no phantom
// types, so this is a
// tagged value plus a transition table enforced in Advance, rather
// than a type parameter that makes invalid calls fail to compile.
type State int

const (
	Queued State = iota
	Processing
	Completed
	Failed
)

// FailureReason names why a Request moved to Failed.
type FailureReason int

const (
	NoFailure FailureReason = iota
	QueueTimeoutReason
	ProcessingTimeoutReason
	ProcessingError
	CancelledReason
)

// Request tracks one admitted unit of work through its lifecycle.
type Request struct {
	ID        string
	AgentID   string
	Priority  Priority
	State     State
	Reason    FailureReason
	EnqueuedAt time.Time
	AdmittedAt time.Time
	EndedAt    time.Time
}

// Advance validates and applies a state transition, returning an error
// for any transition not in the state DAG. This is the
// table-enforced stand-in for the reference implementation's
// unrepresentable-by-construction typestate.
func (r *Request) Advance(to State, reason FailureReason) error {
	valid := map[State][]State{
		Queued:     {Processing, Failed},
		Processing: {Completed, Failed},
	}
	allowed := valid[r.State]
	ok := false
	for _, s := range allowed {
		if s == to {
			ok = true
			break
		}
	}
	if !ok {
		return &errorsx.BackpressureError{Kind: errorsx.BackpressureInternal, Message: "invalid request state transition"}
	}
	r.State = to
	r.Reason = reason
	switch to {
	case Processing:
		r.AdmittedAt = time.Now()
	case Completed, Failed:
		r.EndedAt = time.Now()
	}
	return nil
}

// queueItem is one entry in a per-agent priority queue.
type queueItem struct {
	req    *Request
	seq    int64
	admitC chan error
}

// perAgentQueue is a bounded FIFO-within-priority queue guarded by its
// own lock.
type perAgentQueue struct {
	mu      sync.Mutex
	maxSize int
	items   map[Priority][]*queueItem
	inFlight int
	maxConcurrent int
	nextSeq int64
}

func newPerAgentQueue(maxSize, maxConcurrent int) *perAgentQueue {
	return &perAgentQueue{
		maxSize:       maxSize,
		maxConcurrent: maxConcurrent,
		items:         make(map[Priority][]*queueItem),
	}
}

func (q *perAgentQueue) size() int {
	n := 0
	for _, items := range q.items {
		n += len(items)
	}
	return n
}

// Controller is the HTTP runtime's backpressure admission gate. One
// Controller is shared across all agents; it owns a global semaphore
// and a per-agent queue map.
type Controller struct {
	cfg Config

	mu     sync.Mutex
	queues map[string]*perAgentQueue

	globalSem chan struct{}
	limiter   *rate.Limiter

	emaMu sync.Mutex
	ema   float64
}

// NewController constructs a Controller enforcing cfg.
func NewController(cfg Config) *Controller {
	if cfg.GlobalMaxConcurrent <= 0 {
		cfg.GlobalMaxConcurrent = 1 << 20 // effectively unbounded
	}
	var limiter *rate.Limiter
	if cfg.GlobalRPS > 0 {
		burst := cfg.BurstLimit
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.GlobalRPS), burst)
	}
	return &Controller{
		cfg:       cfg,
		queues:    make(map[string]*perAgentQueue),
		globalSem: make(chan struct{}, cfg.GlobalMaxConcurrent),
		limiter:   limiter,
	}
}

func (c *Controller) queueFor(agentID string) *perAgentQueue {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, ok := c.queues[agentID]
	if !ok {
		q = newPerAgentQueue(c.cfg.MaxQueueSize, c.cfg.MaxConcurrentRequests)
		c.queues[agentID] = q
	}
	return q
}

// Admit applies the global rate limit (if configured) and then the
// four queue/concurrency admission rules in order; if admitted, it
// blocks until either a processing slot is available or ctx /
// QueueTimeout expires. It returns the Request (now either Processing
// or Failed) and a release func that must be called exactly once when
// processing ends. A request rejected by the rate limit or an admission
// rule is never enqueued and comes back as a nil Request with the
// error. The per-agent queue counts both waiting and in-flight
// requests against MaxQueueSize.
func (c *Controller) Admit(ctx context.Context, agentID string, prio Priority) (*Request, func(), error) {
	req := &Request{AgentID: agentID, Priority: prio, State: Queued, EnqueuedAt: time.Now()}

	if c.limiter != nil && !c.limiter.Allow() {
		return nil, noop, &errorsx.BackpressureError{Kind: errorsx.BackpressureSystemOverloaded, AgentID: agentID, Load: c.load(), Message: "global request rate exceeded"}
	}

	q := c.queueFor(agentID)
	q.mu.Lock()
	if q.size()+q.inFlight >= q.maxSize {
		q.mu.Unlock()
		return nil, noop, &errorsx.BackpressureError{Kind: errorsx.BackpressureQueueFull, AgentID: agentID, MaxSize: q.maxSize}
	}
	if len(c.globalSem) >= cap(c.globalSem) {
		q.mu.Unlock()
		return nil, noop, &errorsx.BackpressureError{Kind: errorsx.BackpressureSystemOverloaded, Load: c.load()}
	}
	if c.cfg.Mode == Adaptive && prio == Low && q.size() > 0 && c.overLoadThreshold() {
		q.mu.Unlock()
		return nil, noop, &errorsx.BackpressureError{Kind: errorsx.BackpressureSystemOverloaded, Load: c.load()}
	}

	item := &queueItem{req: req, seq: q.nextSeq, admitC: make(chan error, 1)}
	q.nextSeq++
	q.items[prio] = append(q.items[prio], item)
	q.mu.Unlock()

	c.tryDrain(q)

	timeout := c.cfg.QueueTimeout
	var timer *time.Timer
	var timeoutC <-chan time.Time
	if timeout > 0 {
		timer = time.NewTimer(timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	select {
	case err := <-item.admitC:
		if err != nil {
			_ = req.Advance(Failed, ProcessingError)
			return req, noop, err
		}
		_ = req.Advance(Processing, NoFailure)
		release := func() { c.release(q) }
		return req, release, nil
	case <-timeoutC:
		c.removeQueued(q, item)
		_ = req.Advance(Failed, QueueTimeoutReason)
		return req, noop, &errorsx.BackpressureError{Kind: errorsx.BackpressureQueueTimeout, Ms: int(timeout.Milliseconds())}
	case <-ctx.Done():
		c.removeQueued(q, item)
		_ = req.Advance(Failed, CancelledReason)
		return req, noop, &errorsx.BackpressureError{Kind: errorsx.BackpressureRequestCancelled}
	}
}

func noop() {}

// tryDrain admits the highest-priority, oldest-sequence queued item if
// both a per-agent and a global concurrency slot are free.
func (c *Controller) tryDrain(q *perAgentQueue) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.inFlight >= q.maxConcurrent {
		return
	}
	var best *queueItem
	bestPrio := Priority(-1)
	for prio, items := range q.items {
		if len(items) == 0 {
			continue
		}
		candidate := items[0]
		if prio > bestPrio || (prio == bestPrio && best != nil && candidate.seq < best.seq) {
			best, bestPrio = candidate, prio
		}
	}
	if best == nil {
		return
	}
	select {
	case c.globalSem <- struct{}{}:
	default:
		return
	}
	q.items[bestPrio] = q.items[bestPrio][1:]
	q.inFlight++
	best.admitC <- nil
}

func (c *Controller) release(q *perAgentQueue) {
	q.mu.Lock()
	if q.inFlight > 0 {
		q.inFlight--
	}
	q.mu.Unlock()
	select {
	case <-c.globalSem:
	default:
	}
	c.tryDrain(q)
}

func (c *Controller) removeQueued(q *perAgentQueue, item *queueItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items[item.req.Priority]
	for i, it := range items {
		if it == item {
			q.items[item.req.Priority] = append(items[:i], items[i+1:]...)
			return
		}
	}
}

func (c *Controller) load() float64 {
	return float64(len(c.globalSem)) / float64(cap(c.globalSem))
}

// ObserveProcessingTime folds d into the controller's exponential
// moving average of processing time, used by Adaptive mode's
// Low-priority rejection rule.
func (c *Controller) ObserveProcessingTime(d time.Duration) {
	const alpha = 0.2
	c.emaMu.Lock()
	defer c.emaMu.Unlock()
	ms := float64(d.Milliseconds())
	if c.ema == 0 {
		c.ema = ms
		return
	}
	c.ema = alpha*ms + (1-alpha)*c.ema
}

func (c *Controller) overLoadThreshold() bool {
	if c.cfg.TargetProcessingTimeMs <= 0 || c.cfg.LoadThreshold <= 0 {
		return false
	}
	c.emaMu.Lock()
	ema := c.ema
	c.emaMu.Unlock()
	return ema > c.cfg.TargetProcessingTimeMs*(1/c.cfg.LoadThreshold)
}
