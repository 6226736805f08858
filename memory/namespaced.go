package memory

import (
	"context"
	"fmt"
)

// Namespaced wraps an underlying Memory, prefixing every key with
// "{ns}:" before delegating. The wrapped key is validated
// after prefixing so a namespace collision with a reserved prefix is
// caught at the adapter boundary, not silently passed through.
type Namespaced struct {
	ns   string
	base Memory
}

// NewNamespaced constructs a namespaced view over base using prefix ns.
func NewNamespaced(ns string, base Memory) *Namespaced {
	return &Namespaced{ns: ns, base: base}
}

func (n *Namespaced) prefixed(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	full := fmt.Sprintf("%s:%s", n.ns, key)
	if err := ValidateKey(full); err != nil {
		return "", err
	}
	return full, nil
}

// Load delegates to the underlying backend with the namespaced key.
func (n *Namespaced) Load(ctx context.Context, key string) (string, bool, error) {
	full, err := n.prefixed(key)
	if err != nil {
		return "", false, err
	}
	return n.base.Load(ctx, full)
}

// LoadMany delegates to the underlying backend with namespaced keys,
// returning entries keyed by the caller's original (unprefixed) keys.
func (n *Namespaced) LoadMany(ctx context.Context, keys []string) ([]Entry, error) {
	fulls := make([]string, len(keys))
	for i, k := range keys {
		full, err := n.prefixed(k)
		if err != nil {
			return nil, err
		}
		fulls[i] = full
	}
	entries, err := n.base.LoadMany(ctx, fulls)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Key = keys[i]
	}
	return entries, nil
}

// Store delegates to the underlying backend with the namespaced key.
func (n *Namespaced) Store(ctx context.Context, update Update) error {
	full, err := n.prefixed(update.Key)
	if err != nil {
		return err
	}
	return n.base.Store(ctx, Update{Key: full, Value: update.Value})
}

// StoreMany delegates to the underlying backend with namespaced keys, in
// the caller's order.
func (n *Namespaced) StoreMany(ctx context.Context, updates []Update) error {
	for _, u := range updates {
		if err := n.Store(ctx, u); err != nil {
			return err
		}
	}
	return nil
}

var _ Memory = (*Namespaced)(nil)
