package mesh

import (
	"context"
	"sync"

	"github.com/shurankain/skreaver-sub005/errorsx"
)

// Transport is the abstract mesh contract: unicast send,
// broadcast, and topic pub/sub. A concrete broker-backed transport
// (e.g. Redis Streams) is a collaborator satisfying the same
// interface; InMemory is the reference implementation.
type Transport interface {
	Send(ctx context.Context, to string, msg Message) error
	Broadcast(ctx context.Context, msg Message) error
	Subscribe(ctx context.Context, topic string) (<-chan Message, error)
	Unsubscribe(topic string, ch <-chan Message)
	Close() error
}

// Config bounds an InMemory transport's resource usage.
type Config struct {
	// SubscriberBufferSize is the bounded per-subscriber channel
	// capacity. Overflow policy is reject-new: Send/Broadcast return
	// MeshError{Kind: MeshQueueFull} rather than blocking or dropping
	// silently. Defaults to 64.
	SubscriberBufferSize int
	// MaxMessageSize caps a single message's serialized size in
	// bytes. Zero disables the cap.
	MaxMessageSize int
}

// InMemory is a process-local Transport grounded on a channelBroadcaster
// shape (runtime/mcp/broadcast.go): per-topic sets of buffered
// subscriber channels, guarded by one RWMutex. Unlike that broadcaster,
// overflow here never blocks the publisher and never silently drops —
// it surfaces MeshError{Kind: MeshQueueFull} so callers can apply their
// own retry/drop policy.
type InMemory struct {
	cfg Config

	mu     sync.RWMutex
	topics map[string]map[chan Message]struct{}
	closed bool
}

// NewInMemory constructs an InMemory transport. A zero Config applies
// the documented defaults.
func NewInMemory(cfg Config) *InMemory {
	if cfg.SubscriberBufferSize <= 0 {
		cfg.SubscriberBufferSize = 64
	}
	return &InMemory{cfg: cfg, topics: make(map[string]map[chan Message]struct{})}
}

func agentTopic(agentID string) string { return "agent:" + agentID }

// Send delivers msg only to subscribers of the recipient agent's
// topic (unicast).
func (m *InMemory) Send(_ context.Context, to string, msg Message) error {
	if err := m.checkSize(msg); err != nil {
		return err
	}
	return m.publish(agentTopic(to), msg)
}

// Broadcast delivers msg to every subscriber of every topic.
func (m *InMemory) Broadcast(_ context.Context, msg Message) error {
	if err := m.checkSize(msg); err != nil {
		return err
	}
	m.mu.RLock()
	topics := make([]string, 0, len(m.topics))
	for t := range m.topics {
		topics = append(topics, t)
	}
	m.mu.RUnlock()
	for _, t := range topics {
		if err := m.publish(t, msg); err != nil {
			return err
		}
	}
	return nil
}

// Publish delivers msg to subscribers of an arbitrary topic (the
// primitive Send/Broadcast and the mesh coordination patterns build
// on).
func (m *InMemory) Publish(_ context.Context, topic string, msg Message) error {
	if err := m.checkSize(msg); err != nil {
		return err
	}
	return m.publish(topic, msg)
}

func (m *InMemory) publish(topic string, msg Message) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return &errorsx.MeshError{Kind: errorsx.MeshConnectionFailed, Message: "transport closed"}
	}
	subs := m.topics[topic]
	for ch := range subs {
		select {
		case ch <- msg:
		default:
			return &errorsx.MeshError{Kind: errorsx.MeshQueueFull, Capacity: cap(ch), Current: len(ch), Topic: topic}
		}
	}
	return nil
}

// Subscribe registers a new subscriber on topic and returns a
// receive-only channel of bounded capacity.
func (m *InMemory) Subscribe(_ context.Context, topic string) (<-chan Message, error) {
	ch := make(chan Message, m.cfg.SubscriberBufferSize)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		close(ch)
		return ch, nil
	}
	if m.topics[topic] == nil {
		m.topics[topic] = make(map[chan Message]struct{})
	}
	m.topics[topic][ch] = struct{}{}
	return ch, nil
}

// Unsubscribe removes ch from topic's subscriber set and closes it.
// Passing a channel not currently registered is a no-op.
func (m *InMemory) Unsubscribe(topic string, ch <-chan Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	subs := m.topics[topic]
	for c := range subs {
		if (<-chan Message)(c) == ch {
			delete(subs, c)
			close(c)
			return
		}
	}
}

// Close shuts down the transport, closing every subscriber channel.
// Subsequent Send/Broadcast/Publish calls fail with
// MeshError{Kind: MeshConnectionFailed}.
func (m *InMemory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	for _, subs := range m.topics {
		for ch := range subs {
			close(ch)
		}
	}
	m.topics = nil
	return nil
}

func (m *InMemory) checkSize(msg Message) error {
	if m.cfg.MaxMessageSize <= 0 {
		return nil
	}
	data, err := Marshal(msg)
	if err != nil {
		return err
	}
	if len(data) > m.cfg.MaxMessageSize {
		return &errorsx.MeshError{Kind: errorsx.MeshMessageTooLarge, Size: len(data), Limit: m.cfg.MaxMessageSize}
	}
	return nil
}

var _ Transport = (*InMemory)(nil)
