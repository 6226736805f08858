// Package memory defines the keyed string-store contract shared by
// every agent: a reader, a writer, optional batch operations, and
// optional transaction/snapshot capability traits. Concrete backends
// (file, embedded SQL, Redis, Postgres) are external collaborators;
// this package specifies only the contract plus an in-memory reference
// implementation and a namespacing adapter.
package memory

import (
	"context"
	"strings"
	"unicode"

	"github.com/shurankain/skreaver-sub005/errorsx"
)

const maxKeyLength = 512

// reservedPrefixes may not appear at the start of a key; they are set
// aside for internal bookkeeping (for example mesh system topics reuse
// the same "__" convention).
var reservedPrefixes = []string{"__"}

type (
	// Update is a single key/value write.
	Update struct {
		Key   string
		Value string
	}

	// Reader loads values by key.
	Reader interface {
		// Load returns the value for key and true if present.
		Load(ctx context.Context, key string) (string, bool, error)
		// LoadMany returns a value (or absence) for each key, in the same order.
		LoadMany(ctx context.Context, keys []string) ([]Entry, error)
	}

	// Entry is one result row from LoadMany.
	Entry struct {
		Key     string
		Value   string
		Present bool
	}

	// Writer stores values by key.
	Writer interface {
		// Store applies update; last-writer-wins.
		Store(ctx context.Context, update Update) error
		// StoreMany applies updates in order. On a non-transactional
		// backend, a partial failure leaves prior writes persisted.
		StoreMany(ctx context.Context, updates []Update) error
	}

	// Memory is the minimum contract: a backend exposing both Reader and
	// Writer. An agent's memory_reader()/memory_writer() are
	// simply narrowed views of the same Memory value.
	Memory interface {
		Reader
		Writer
	}

	// Transactor is an optional capability: a backend that can run a
	// sequence of operations atomically.
	Transactor interface {
		Transaction(ctx context.Context, fn func(tx Memory) error) error
	}

	// Snapshotter is an optional capability: a backend that can capture
	// and restore a point-in-time copy of its state.
	Snapshotter interface {
		Snapshot(ctx context.Context) (Snapshot, error)
		Restore(ctx context.Context, snap Snapshot) error
	}

	// Snapshot is an opaque, backend-defined capture of store state.
	Snapshot interface {
		snapshotMarker()
	}
)

// ValidateKey enforces the key invariants: nonempty, bounded
// length, printable, and free of reserved prefixes.
func ValidateKey(key string) error {
	if key == "" {
		return errorsx.NewInvalidKey(key, "key must not be empty")
	}
	if len(key) > maxKeyLength {
		return errorsx.NewInvalidKey(key, "key exceeds maximum length")
	}
	for _, r := range key {
		if !unicode.IsPrint(r) {
			return errorsx.NewInvalidKey(key, "key must be printable")
		}
	}
	for _, p := range reservedPrefixes {
		if strings.HasPrefix(key, p) {
			return errorsx.NewInvalidKey(key, "key uses a reserved prefix")
		}
	}
	return nil
}
