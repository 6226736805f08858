// Package redisstore is an optional external-collaborator Memory
// backend. It demonstrates the memory.Memory contract against a real
// store using github.com/redis/go-redis/v9, including a WATCH/MULTI-based
// Transaction.
package redisstore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/shurankain/skreaver-sub005/errorsx"
	"github.com/shurankain/skreaver-sub005/memory"
)

// Store adapts a *redis.Client to memory.Memory and memory.Transactor.
type Store struct {
	client *redis.Client
	prefix string
}

// New constructs a Store. prefix namespaces all keys under a single
// Redis keyspace shared by multiple runtimes.
func New(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}

// Load returns the value for key and true if present.
func (s *Store) Load(ctx context.Context, key string) (string, bool, error) {
	if err := memory.ValidateKey(key); err != nil {
		return "", false, err
	}
	v, err := s.client.Get(ctx, s.key(key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, &errorsx.MemoryError{Kind: errorsx.MemoryLoadFailed, Key: key, Backend: "redis", Reason: err.Error(), Cause: err}
	}
	return v, true, nil
}

// LoadMany returns a value (or absence) for each key, in input order.
func (s *Store) LoadMany(ctx context.Context, keys []string) ([]memory.Entry, error) {
	entries := make([]memory.Entry, len(keys))
	for i, k := range keys {
		v, ok, err := s.Load(ctx, k)
		if err != nil {
			return nil, err
		}
		entries[i] = memory.Entry{Key: k, Value: v, Present: ok}
	}
	return entries, nil
}

// Store applies update; last-writer-wins (Redis SET semantics).
func (s *Store) Store(ctx context.Context, update memory.Update) error {
	if err := memory.ValidateKey(update.Key); err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(update.Key), update.Value, 0).Err(); err != nil {
		return &errorsx.MemoryError{Kind: errorsx.MemoryStoreFailed, Key: update.Key, Backend: "redis", Reason: err.Error(), Cause: err}
	}
	return nil
}

// StoreMany applies updates via a pipeline. A single failing SET within
// the pipeline does not roll back prior SETs already flushed to the
// server, matching the non-transactional contract; use Transaction for
// all-or-nothing semantics.
func (s *Store) StoreMany(ctx context.Context, updates []memory.Update) error {
	pipe := s.client.Pipeline()
	for _, u := range updates {
		if err := memory.ValidateKey(u.Key); err != nil {
			return err
		}
		pipe.Set(ctx, s.key(u.Key), u.Value, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return &errorsx.MemoryError{Kind: errorsx.MemoryTransactionFailed, Backend: "redis", Reason: err.Error(), Cause: err}
	}
	return nil
}

// Transaction runs fn inside a go-redis Watch callback and commits its
// buffered writes via MULTI/EXEC. No keys are passed to WATCH, so reads
// inside fn are not guarded against concurrent writers, and a failed
// commit is returned as a MemoryTransactionFailed error without retry.
func (s *Store) Transaction(ctx context.Context, fn func(tx memory.Memory) error) error {
	txf := func(t *redis.Tx) error {
		scratch := &txMemory{tx: t, s: s, pending: nil}
		if err := fn(scratch); err != nil {
			return err
		}
		_, err := t.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, u := range scratch.pending {
				pipe.Set(ctx, s.key(u.Key), u.Value, 0)
			}
			return nil
		})
		return err
	}
	if err := s.client.Watch(ctx, txf); err != nil {
		return &errorsx.MemoryError{Kind: errorsx.MemoryTransactionFailed, Backend: "redis", Reason: err.Error(), Cause: err}
	}
	return nil
}

// txMemory buffers writes issued inside a Transaction callback so they
// commit atomically with the surrounding MULTI/EXEC, while reads go
// straight through the transaction's connection.
type txMemory struct {
	tx      *redis.Tx
	s       *Store
	pending []memory.Update
}

func (t *txMemory) Load(ctx context.Context, key string) (string, bool, error) {
	if err := memory.ValidateKey(key); err != nil {
		return "", false, err
	}
	v, err := t.tx.Get(ctx, t.s.key(key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, &errorsx.MemoryError{Kind: errorsx.MemoryLoadFailed, Key: key, Backend: "redis", Reason: err.Error()}
	}
	return v, true, nil
}

func (t *txMemory) LoadMany(ctx context.Context, keys []string) ([]memory.Entry, error) {
	entries := make([]memory.Entry, len(keys))
	for i, k := range keys {
		v, ok, err := t.Load(ctx, k)
		if err != nil {
			return nil, err
		}
		entries[i] = memory.Entry{Key: k, Value: v, Present: ok}
	}
	return entries, nil
}

func (t *txMemory) Store(_ context.Context, update memory.Update) error {
	if err := memory.ValidateKey(update.Key); err != nil {
		return err
	}
	t.pending = append(t.pending, update)
	return nil
}

func (t *txMemory) StoreMany(ctx context.Context, updates []memory.Update) error {
	for _, u := range updates {
		if err := t.Store(ctx, u); err != nil {
			return err
		}
	}
	return nil
}

var _ fmt.Stringer = (*Store)(nil)

// String identifies the backend for log messages.
func (s *Store) String() string { return "redisstore(" + s.prefix + ")" }

var (
	_ memory.Memory     = (*Store)(nil)
	_ memory.Transactor = (*Store)(nil)
	_ memory.Memory     = (*txMemory)(nil)
)
