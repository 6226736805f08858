package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shurankain/skreaver-sub005/errorsx"
	"github.com/shurankain/skreaver-sub005/memory"
)

func TestInMemoryStoreLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := memory.NewInMemory()

	require.NoError(t, m.Store(ctx, memory.Update{Key: "input", Value: "Skreaver"}))
	v, ok, err := m.Load(ctx, "input")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Skreaver", v)
}

func TestStoreIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := memory.NewInMemory()
	u := memory.Update{Key: "k", Value: "v"}
	require.NoError(t, m.Store(ctx, u))
	require.NoError(t, m.Store(ctx, u))

	v, ok, err := m.Load(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestStoreManyPartialFailureLeavesPriorWrites(t *testing.T) {
	ctx := context.Background()
	m := memory.NewInMemory()

	err := m.StoreMany(ctx, []memory.Update{
		{Key: "a", Value: "1"},
		{Key: "", Value: "invalid"},
		{Key: "b", Value: "2"},
	})
	require.Error(t, err)

	v, ok, _ := m.Load(ctx, "a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	_, ok, _ = m.Load(ctx, "b")
	assert.False(t, ok, "write after the failing update must not apply")
}

func TestValidateKeyRejectsReservedPrefix(t *testing.T) {
	err := memory.ValidateKey("__sys__topic")
	require.Error(t, err)
	var me *errorsx.MemoryError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, errorsx.MemoryInvalidKey, me.Kind)
}

func TestTransactionAtomicity(t *testing.T) {
	ctx := context.Background()
	m := memory.NewInMemory()
	require.NoError(t, m.Store(ctx, memory.Update{Key: "balance", Value: "10"}))

	err := m.Transaction(ctx, func(tx memory.Memory) error {
		require.NoError(t, tx.Store(ctx, memory.Update{Key: "balance", Value: "20"}))
		return assert.AnError
	})
	require.Error(t, err)

	v, _, _ := m.Load(ctx, "balance")
	assert.Equal(t, "10", v, "failed transaction must not mutate the store")
}

func TestSnapshotRestore(t *testing.T) {
	ctx := context.Background()
	m := memory.NewInMemory()
	require.NoError(t, m.Store(ctx, memory.Update{Key: "k", Value: "before"}))

	snap, err := m.Snapshot(ctx)
	require.NoError(t, err)

	require.NoError(t, m.Store(ctx, memory.Update{Key: "k", Value: "after"}))
	require.NoError(t, m.Restore(ctx, snap))

	v, _, _ := m.Load(ctx, "k")
	assert.Equal(t, "before", v)
}

func TestNamespacedJoinsWithColon(t *testing.T) {
	ctx := context.Background()
	base := memory.NewInMemory()
	ns := memory.NewNamespaced("agent1", base)

	require.NoError(t, ns.Store(ctx, memory.Update{Key: "k", Value: "v"}))

	// Invariant: load(k) on the namespaced view equals
	// load("p:k") on the underlying backend.
	viaNS, ok, err := ns.Load(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)

	viaBase, ok, err := base.Load(ctx, "agent1:k")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, viaBase, viaNS)
}
