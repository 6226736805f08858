package errorsx_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shurankain/skreaver-sub005/errorsx"
)

func TestMemoryErrorAs(t *testing.T) {
	err := errorsx.NewInvalidKey("", "empty key")
	wrapped := errors.Join(errors.New("context"), err)

	got, ok := errorsx.As[*errorsx.MemoryError](wrapped)
	require.True(t, ok)
	assert.Equal(t, errorsx.MemoryInvalidKey, got.Kind)
	assert.Contains(t, err.Error(), "empty key")
}

func TestToolErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	te := errorsx.NewToolFailure("uppercase", cause)
	assert.ErrorIs(t, te, cause)
	assert.Equal(t, errorsx.ToolExecutionFailed, te.Kind)
}

func TestBackpressureErrorMessages(t *testing.T) {
	qf := &errorsx.BackpressureError{Kind: errorsx.BackpressureQueueFull, AgentID: "a1", MaxSize: 2}
	assert.Contains(t, qf.Error(), "a1")
	assert.Contains(t, qf.Error(), "2")

	qt := &errorsx.BackpressureError{Kind: errorsx.BackpressureQueueTimeout, Ms: 10}
	assert.Contains(t, qt.Error(), "10ms")
}

func TestMeshErrorQueueFull(t *testing.T) {
	me := &errorsx.MeshError{Kind: errorsx.MeshQueueFull, Capacity: 4, Current: 4}
	assert.Contains(t, me.Error(), "capacity 4")
}
