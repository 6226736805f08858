package memory

import (
	"context"
	"sync"
)

// InMemory is the reference Memory implementation: a process-local,
// mutex-guarded map. It also implements Transactor and Snapshotter so
// tests can exercise the optional capability traits without a real
// external backend.
type InMemory struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewInMemory constructs an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{data: make(map[string]string)}
}

// Load returns the value for key and true if present.
func (m *InMemory) Load(_ context.Context, key string) (string, bool, error) {
	if err := ValidateKey(key); err != nil {
		return "", false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

// LoadMany returns a value (or absence) for each key, in input order.
func (m *InMemory) LoadMany(_ context.Context, keys []string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make([]Entry, len(keys))
	for i, k := range keys {
		if err := ValidateKey(k); err != nil {
			return nil, err
		}
		v, ok := m.data[k]
		entries[i] = Entry{Key: k, Value: v, Present: ok}
	}
	return entries, nil
}

// Store applies update; last-writer-wins.
func (m *InMemory) Store(_ context.Context, update Update) error {
	if err := ValidateKey(update.Key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[update.Key] = update.Value
	return nil
}

// StoreMany applies updates in listed order. A validation failure on a
// later update leaves the prior updates in this call persisted, matching
// the non-transactional contract.
func (m *InMemory) StoreMany(ctx context.Context, updates []Update) error {
	for _, u := range updates {
		if err := m.Store(ctx, u); err != nil {
			return err
		}
	}
	return nil
}

// Transaction runs fn against a private copy of the store's current
// state and, if fn succeeds, atomically swaps it in; if fn fails, no
// writes from fn are visible.
func (m *InMemory) Transaction(ctx context.Context, fn func(tx Memory) error) error {
	m.mu.Lock()
	copied := make(map[string]string, len(m.data))
	for k, v := range m.data {
		copied[k] = v
	}
	m.mu.Unlock()

	scratch := &InMemory{data: copied}
	if err := fn(scratch); err != nil {
		return err
	}

	m.mu.Lock()
	m.data = scratch.data
	m.mu.Unlock()
	return nil
}

type inMemorySnapshot struct {
	data map[string]string
}

func (inMemorySnapshot) snapshotMarker() {}

// Snapshot captures a point-in-time copy of the store.
func (m *InMemory) Snapshot(_ context.Context) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	copied := make(map[string]string, len(m.data))
	for k, v := range m.data {
		copied[k] = v
	}
	return inMemorySnapshot{data: copied}, nil
}

// Restore replaces the store's state with a previously captured snapshot.
func (m *InMemory) Restore(_ context.Context, snap Snapshot) error {
	s, ok := snap.(inMemorySnapshot)
	if !ok {
		return &invalidSnapshotError{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := make(map[string]string, len(s.data))
	for k, v := range s.data {
		copied[k] = v
	}
	m.data = copied
	return nil
}

type invalidSnapshotError struct{}

func (*invalidSnapshotError) Error() string { return "memory: snapshot not recognized by this backend" }

var (
	_ Memory      = (*InMemory)(nil)
	_ Transactor  = (*InMemory)(nil)
	_ Snapshotter = (*InMemory)(nil)
)
