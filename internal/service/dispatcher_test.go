package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/raphaelgruber/ravan/internal/llm"
	"github.com/raphaelgruber/ravan/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func shutdown(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(ctx))
}

func TestDispatcherRunsTasks(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	mc := metrics.NewCollector()
	d := NewDispatcher(DispatcherConfig{Workers: 3, QueueSize: 16}, mc)

	var mu sync.Mutex
	seen := map[string]Stage{}
	record := func(_ context.Context, task Task) error {
		mu.Lock()
		defer mu.Unlock()
		seen[task.UserID] = task.Stage
		return nil
	}
	d.Handle(StageConsolidateMemory, record)
	d.Handle(StageGeneratePlan, record)
	d.Start()

	for i := range 10 {
		stage := StageConsolidateMemory
		if i%2 == 1 {
			stage = StageGeneratePlan
		}
		require.True(t, d.Enqueue(Task{Stage: stage, UserID: fmt.Sprintf("u%d", i)}))
	}
	shutdown(t, d)

	assert.Len(t, seen, 10)
	assert.Equal(t, StageGeneratePlan, seen["u1"])
	assert.Empty(t, d.DeadLetters())
	snap := mc.Snapshot()
	assert.Equal(t, int64(10), snap.Counters[metrics.CounterTasksEnqueued])
	assert.Equal(t, int64(10), snap.Counters[metrics.CounterTasksSucceeded])
}

func TestDispatcherFailureIsDeadLetteredWithoutRetry(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	d := NewDispatcher(DispatcherConfig{Workers: 1}, nil)
	var calls atomic.Int32
	d.Handle(StageGeneratePlan, func(context.Context, Task) error {
		calls.Add(1)
		return llm.ErrEmptyResponse
	})
	d.Start()

	d.Enqueue(Task{Stage: StageGeneratePlan, UserID: "u1"})
	shutdown(t, d)

	assert.Equal(t, int32(1), calls.Load())
	dead := d.DeadLetters()
	require.Len(t, dead, 1)
	assert.Equal(t, "u1", dead[0].Task.UserID)
	assert.Equal(t, 1, dead[0].Task.Attempts)
	assert.Contains(t, dead[0].Reason, "empty response")
}

func TestDispatcherRetriesUpToMaxAttempts(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	d := NewDispatcher(DispatcherConfig{Workers: 1, MaxAttempts: 3}, nil)
	var calls atomic.Int32
	done := make(chan struct{})
	d.Handle(StageConsolidateMemory, func(context.Context, Task) error {
		if calls.Add(1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	})
	d.Start()

	d.Enqueue(Task{Stage: StageConsolidateMemory, UserID: "u1"})
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("task never succeeded")
	}
	shutdown(t, d)

	assert.Equal(t, int32(3), calls.Load())
	assert.Empty(t, d.DeadLetters())
}

func TestDispatcherFatalErrorSkipsRetry(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	d := NewDispatcher(DispatcherConfig{Workers: 1, MaxAttempts: 5}, nil)
	var calls atomic.Int32
	d.Handle(StageNotify, func(context.Context, Task) error {
		calls.Add(1)
		return fmt.Errorf("send: %w", llm.ErrFatalAPI)
	})
	d.Start()

	d.Enqueue(Task{Stage: StageNotify})
	shutdown(t, d)

	assert.Equal(t, int32(1), calls.Load())
	assert.Len(t, d.DeadLetters(), 1)
}

func TestDispatcherRecoversPanics(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	d := NewDispatcher(DispatcherConfig{Workers: 1}, nil)
	var after atomic.Bool
	d.Handle(StageNotify, func(_ context.Context, task Task) error {
		if task.UserID == "boom" {
			panic("handler exploded")
		}
		after.Store(true)
		return nil
	})
	d.Start()

	d.Enqueue(Task{Stage: StageNotify, UserID: "boom"})
	d.Enqueue(Task{Stage: StageNotify, UserID: "ok"})
	shutdown(t, d)

	assert.True(t, after.Load(), "worker survives a panic")
	dead := d.DeadLetters()
	require.Len(t, dead, 1)
	assert.Contains(t, dead[0].Reason, "internal panic")
}

func TestDispatcherQueueFullNeverBlocks(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	d := NewDispatcher(DispatcherConfig{Workers: 1, QueueSize: 1}, nil)
	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	d.Handle(StageConsolidateMemory, func(context.Context, Task) error {
		once.Do(func() { close(started) })
		<-release
		return nil
	})
	d.Start()

	require.True(t, d.Enqueue(Task{Stage: StageConsolidateMemory, UserID: "running"}))
	<-started
	require.True(t, d.Enqueue(Task{Stage: StageConsolidateMemory, UserID: "queued"}))
	assert.False(t, d.Enqueue(Task{Stage: StageConsolidateMemory, UserID: "dropped"}))

	close(release)
	shutdown(t, d)

	dead := d.DeadLetters()
	require.Len(t, dead, 1)
	assert.Equal(t, "dropped", dead[0].Task.UserID)
	assert.Equal(t, "queue full", dead[0].Reason)
}

func TestDispatcherUnknownStage(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	d := NewDispatcher(DispatcherConfig{Workers: 1}, nil)
	d.Start()
	d.Enqueue(Task{Stage: "mystery"})
	shutdown(t, d)

	dead := d.DeadLetters()
	require.Len(t, dead, 1)
	assert.Contains(t, dead[0].Reason, "no handler")
}

func TestDispatcherEnqueueAfterShutdown(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	d := NewDispatcher(DispatcherConfig{Workers: 1}, nil)
	d.Start()
	shutdown(t, d)

	assert.False(t, d.Enqueue(Task{Stage: StageNotify}))
	assert.Equal(t, "dispatcher closed", d.DeadLetters()[0].Reason)
	require.NoError(t, d.Shutdown(context.Background()), "shutdown is idempotent")
}

func TestDispatcherDeadLetterCap(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{DeadLetterCap: 2}, nil)
	for i := range 5 {
		d.deadLetter(Task{UserID: fmt.Sprintf("u%d", i)}, "test")
	}
	dead := d.DeadLetters()
	require.Len(t, dead, 2)
	assert.Equal(t, "u3", dead[0].Task.UserID)
	assert.Equal(t, "u4", dead[1].Task.UserID)
}

func TestDispatcherAssignsTaskIdentity(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	d := NewDispatcher(DispatcherConfig{Workers: 1}, nil)
	got := make(chan Task, 1)
	d.Handle(StageNotify, func(_ context.Context, task Task) error {
		got <- task
		return nil
	})
	d.Start()
	d.Enqueue(Task{Stage: StageNotify})
	task := <-got
	shutdown(t, d)

	assert.Len(t, task.ID, 8)
	assert.False(t, task.EnqueuedAt.IsZero())
	assert.Equal(t, 1, task.Attempts)
}
