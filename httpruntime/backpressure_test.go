package httpruntime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shurankain/skreaver-sub005/errorsx"
)

// S3: Config{max_queue_size: 2, max_concurrent_requests: 1}. Submit
// three requests back-to-back; first admits, second queues, third
// returns QueueFull{max_size: 2}.
func TestBackpressureQueueFull(t *testing.T) {
	ctrl := NewController(Config{MaxQueueSize: 2, MaxConcurrentRequests: 1, GlobalMaxConcurrent: 10})
	ctx := context.Background()

	_, release1, err := ctrl.Admit(ctx, "a", Normal)
	require.NoError(t, err)
	defer release1()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		req, release, err := ctrl.Admit(ctx, "a", Normal)
		if err == nil {
			release()
		}
		_ = req
	}()
	time.Sleep(20 * time.Millisecond) // let the second request enqueue

	_, _, err = ctrl.Admit(ctx, "a", Normal)
	require.Error(t, err)
	be, ok := errorsx.As[*errorsx.BackpressureError](err)
	require.True(t, ok)
	assert.Equal(t, errorsx.BackpressureQueueFull, be.Kind)
	assert.Equal(t, 2, be.MaxSize)

	release1()
	wg.Wait()
}

// S4: Config{queue_timeout: 10ms, max_concurrent_requests: 0}. Submit
// one request; after 10ms it yields QueueTimeout{timeout_ms: 10}.
func TestBackpressureQueueTimeout(t *testing.T) {
	ctrl := NewController(Config{MaxQueueSize: 5, MaxConcurrentRequests: 0, GlobalMaxConcurrent: 10, QueueTimeout: 10 * time.Millisecond})
	ctx := context.Background()

	_, _, err := ctrl.Admit(ctx, "a", Normal)
	require.Error(t, err)
	be, ok := errorsx.As[*errorsx.BackpressureError](err)
	require.True(t, ok)
	assert.Equal(t, errorsx.BackpressureQueueTimeout, be.Kind)
	assert.Equal(t, 10, be.Ms)
}

// Admission fairness: within one
// priority level, FIFO; higher priorities always admit first.
func TestAdmissionFairness(t *testing.T) {
	ctrl := NewController(Config{MaxQueueSize: 10, MaxConcurrentRequests: 1, GlobalMaxConcurrent: 10})
	ctx := context.Background()

	_, release0, err := ctrl.Admit(ctx, "a", Normal)
	require.NoError(t, err)

	var order []string
	var mu sync.Mutex
	var wg sync.WaitGroup

	submit := func(label string, prio Priority) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, release, err := ctrl.Admit(ctx, "a", prio)
			require.NoError(t, err)
			mu.Lock()
			order = append(order, label)
			mu.Unlock()
			release()
		}()
	}

	submit("low1", Low)
	time.Sleep(5 * time.Millisecond)
	submit("normal1", Normal)
	time.Sleep(5 * time.Millisecond)
	submit("high1", High)
	time.Sleep(5 * time.Millisecond)
	submit("low2", Low)
	time.Sleep(10 * time.Millisecond)

	release0()
	wg.Wait()

	require.Len(t, order, 4)
	assert.Equal(t, "high1", order[0], "highest priority admits first")
	assert.Equal(t, "normal1", order[1])
	assert.Equal(t, "low1", order[2], "FIFO within Low priority")
	assert.Equal(t, "low2", order[3])
}

func TestRequestStateDAG(t *testing.T) {
	r := &Request{State: Queued}
	require.NoError(t, r.Advance(Processing, NoFailure))
	require.NoError(t, r.Advance(Completed, NoFailure))
	assert.Error(t, r.Advance(Processing, NoFailure), "no transition out of a terminal state")
}

func TestRequestStateRejectsInvalidTransition(t *testing.T) {
	r := &Request{State: Queued}
	assert.Error(t, r.Advance(Completed, NoFailure), "Queued cannot jump straight to Completed")
}

func TestGlobalRPSRejectsBurstAboveLimit(t *testing.T) {
	ctrl := NewController(Config{
		MaxQueueSize: 10, MaxConcurrentRequests: 10, GlobalMaxConcurrent: 10,
		GlobalRPS: 1, BurstLimit: 1,
	})
	ctx := context.Background()

	_, release, err := ctrl.Admit(ctx, "a", Normal)
	require.NoError(t, err)
	defer release()

	_, _, err = ctrl.Admit(ctx, "a", Normal)
	require.Error(t, err)
	be, ok := errorsx.As[*errorsx.BackpressureError](err)
	require.True(t, ok)
	assert.Equal(t, errorsx.BackpressureSystemOverloaded, be.Kind)
}

func TestAdaptiveModeRejectsLowPriorityUnderLoad(t *testing.T) {
	ctrl := NewController(Config{
		MaxQueueSize: 10, MaxConcurrentRequests: 1, GlobalMaxConcurrent: 10,
		Mode: Adaptive, TargetProcessingTimeMs: 10, LoadThreshold: 0.5,
	})
	ctrl.ObserveProcessingTime(200 * time.Millisecond)
	ctrl.ObserveProcessingTime(200 * time.Millisecond)

	ctx := context.Background()
	_, release, err := ctrl.Admit(ctx, "a", Normal)
	require.NoError(t, err)
	defer release()

	// Occupy the only concurrency slot so a second Normal request sits
	// queued (q.size() > 0), matching adaptive rule 3's precondition.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, r2, err := ctrl.Admit(ctx, "a", Normal)
		if err == nil {
			r2()
		}
	}()
	time.Sleep(20 * time.Millisecond)

	_, _, err = ctrl.Admit(ctx, "a", Low)
	require.Error(t, err)
	be, ok := errorsx.As[*errorsx.BackpressureError](err)
	require.True(t, ok)
	assert.Equal(t, errorsx.BackpressureSystemOverloaded, be.Kind)

	release()
	wg.Wait()
}
