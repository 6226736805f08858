// Package discovery implements the agent registry: registration,
// health tracking, and queries by id, protocol, capability, or tag, with
// a broadcast channel for registration/health events.
//
// The core specifies only the Provider interface and the event shape;
// concrete backends (in-memory, remote) are collaborators. This package
// ships the in-memory reference implementation, generalizing a
// Manager/Cache/RegistrationManager shape (TTL bookkeeping,
// RWMutex-guarded maps, functional-options construction) from tool
// discovery to agent discovery.
package discovery

import (
	"context"
	"sync"
	"time"

	"github.com/shurankain/skreaver-sub005/unified"
)

type (
	// Registration is what a registering agent supplies.
	Registration struct {
		Info           unified.AgentInfo
		HealthEndpoint string
		Tags           []string
		TTL            time.Duration
	}

	// Health is an agent's liveness as tracked by the registry.
	Health int

	// EventKind discriminates the Event union emitted on the broadcast
	// channel.
	EventKind int

	// Event is published whenever registration or health state changes.
	Event struct {
		Kind    EventKind
		AgentID string
		Health  Health
	}

	// Query filters the set of entries returned by Provider.Find. A zero
	// Query matches every entry not marked unhealthy; IncludeUnhealthy
	// widens that.
	Query struct {
		ID                string
		Protocol          *unified.Protocol
		Capability        string
		Tag               string
		IncludeUnhealthy  bool
		Predicate         func(entry Entry) bool
	}

	// Entry is one registered agent as returned by queries.
	Entry struct {
		Registration
		Health       Health
		RegisteredAt time.Time
		LastHeartbeat time.Time
	}

	// HealthChecker pings an agent's health endpoint. The registry's
	// health loop calls it once per configured interval per entry;
	// concrete transports (HTTP, gRPC) are collaborators.
	HealthChecker interface {
		Ping(ctx context.Context, endpoint string) error
	}

	// Provider is the abstract registry contract. InMemory
	// is the reference implementation; a remote provider is a
	// collaborator reached over the network.
	Provider interface {
		Register(ctx context.Context, reg Registration) error
		Deregister(ctx context.Context, agentID string) error
		Find(ctx context.Context, q Query) ([]Entry, error)
		Events() <-chan Event
		Close() error
	}
)

const (
	HealthUnknown Health = iota
	HealthHealthy
	HealthUnhealthy
)

const (
	EventRegistered EventKind = iota
	EventDeregistered
	EventHealthChanged
)

// InMemory is the reference Provider: an RWMutex-guarded map with a
// background health loop, matching the reference implementation's Manager/
// RegistrationManager locking discipline (runtime/registry/manager.go,
// runtime/registry/registration.go) generalized from toolset
// registries to agent registries.
type InMemory struct {
	mu      sync.RWMutex
	entries map[string]*Entry

	checker       HealthChecker
	checkInterval time.Duration
	graceWindow   time.Duration

	events chan Event

	closeOnce sync.Once
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// Option configures an InMemory registry.
type Option func(*InMemory)

// WithHealthChecker sets the collaborator used to ping each entry's
// health endpoint. Without one, entries are never automatically marked
// unhealthy (Health stays at whatever Register/Deregister left it).
func WithHealthChecker(c HealthChecker) Option {
	return func(r *InMemory) { r.checker = c }
}

// WithCheckInterval sets how often the health loop pings every entry.
// Defaults to 30s.
func WithCheckInterval(d time.Duration) Option {
	return func(r *InMemory) { r.checkInterval = d }
}

// WithGraceWindow sets how long a missed heartbeat is tolerated before
// an entry is marked unhealthy. Defaults to 3x the check interval.
func WithGraceWindow(d time.Duration) Option {
	return func(r *InMemory) { r.graceWindow = d }
}

// New constructs an InMemory registry and, if a HealthChecker is
// configured, starts its background health loop.
func New(opts ...Option) *InMemory {
	r := &InMemory{
		entries:       make(map[string]*Entry),
		checkInterval: 30 * time.Second,
		events:        make(chan Event, 64),
		stopCh:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.graceWindow == 0 {
		r.graceWindow = 3 * r.checkInterval
	}
	if r.checker != nil {
		r.wg.Add(1)
		go r.healthLoop()
	}
	return r
}

// Register upserts reg. A re-registration refreshes RegisteredAt,
// LastHeartbeat, and clears Unhealthy back to Unknown so the next
// health check re-evaluates it.
func (r *InMemory) Register(_ context.Context, reg Registration) error {
	now := time.Now()
	r.mu.Lock()
	r.entries[reg.Info.ID] = &Entry{
		Registration:  reg,
		Health:        HealthUnknown,
		RegisteredAt:  now,
		LastHeartbeat: now,
	}
	r.mu.Unlock()
	r.publish(Event{Kind: EventRegistered, AgentID: reg.Info.ID})
	return nil
}

// Deregister removes agentID unconditionally; a deregistration of an
// unknown id is not an error (it is already absent).
func (r *InMemory) Deregister(_ context.Context, agentID string) error {
	r.mu.Lock()
	_, existed := r.entries[agentID]
	delete(r.entries, agentID)
	r.mu.Unlock()
	if existed {
		r.publish(Event{Kind: EventDeregistered, AgentID: agentID})
	}
	return nil
}

// Find returns every entry matching q, excluding unhealthy entries
// unless q.IncludeUnhealthy is set.
func (r *InMemory) Find(_ context.Context, q Query) ([]Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		if !q.IncludeUnhealthy && e.Health == HealthUnhealthy {
			continue
		}
		if q.ID != "" && e.Info.ID != q.ID {
			continue
		}
		if q.Protocol != nil && e.Info.Protocol != *q.Protocol {
			continue
		}
		if q.Capability != "" && !hasCapability(e.Info.Capabilities, q.Capability) {
			continue
		}
		if q.Tag != "" && !hasTag(e.Tags, q.Tag) {
			continue
		}
		if q.Predicate != nil && !q.Predicate(*e) {
			continue
		}
		cp := *e
		out = append(out, cp)
	}
	return out, nil
}

// Events returns the channel of registration/health events. Consumers
// must drain it; the channel is buffered (64) but a blocked consumer
// eventually drops events rather than blocking Register/Deregister —
// callers wanting lossless delivery should drain promptly.
func (r *InMemory) Events() <-chan Event { return r.events }

// Close stops the background health loop and closes the event channel.
func (r *InMemory) Close() error {
	r.closeOnce.Do(func() {
		close(r.stopCh)
		r.wg.Wait()
		close(r.events)
	})
	return nil
}

// Heartbeat records a successful liveness signal for agentID without
// waiting for the next health-loop tick, and marks it healthy if it
// was not already.
func (r *InMemory) Heartbeat(agentID string) {
	r.mu.Lock()
	e, ok := r.entries[agentID]
	if !ok {
		r.mu.Unlock()
		return
	}
	e.LastHeartbeat = time.Now()
	changed := e.Health != HealthHealthy
	e.Health = HealthHealthy
	r.mu.Unlock()
	if changed {
		r.publish(Event{Kind: EventHealthChanged, AgentID: agentID, Health: HealthHealthy})
	}
}

func (r *InMemory) healthLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.checkInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.checkAll()
		}
	}
}

func (r *InMemory) checkAll() {
	r.mu.RLock()
	snapshot := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		snapshot = append(snapshot, e)
	}
	r.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), r.checkInterval)
	defer cancel()

	now := time.Now()
	for _, e := range snapshot {
		healthy := r.checker.Ping(ctx, e.HealthEndpoint) == nil
		if healthy {
			r.Heartbeat(e.Info.ID)
			continue
		}
		if now.Sub(e.LastHeartbeat) <= r.graceWindow {
			continue
		}
		r.mu.Lock()
		cur, ok := r.entries[e.Info.ID]
		changed := ok && cur.Health != HealthUnhealthy
		if ok {
			cur.Health = HealthUnhealthy
		}
		r.mu.Unlock()
		if changed {
			r.publish(Event{Kind: EventHealthChanged, AgentID: e.Info.ID, Health: HealthUnhealthy})
		}
	}
}

func (r *InMemory) publish(ev Event) {
	select {
	case r.events <- ev:
	default:
	}
}

func hasCapability(caps []unified.Capability, name string) bool {
	for _, c := range caps {
		if c.Name == name {
			return true
		}
	}
	return false
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

var _ Provider = (*InMemory)(nil)
