package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordTiming(t *testing.T) {
	c := NewCollector()
	c.RecordTiming(OpDBQuery, 10*time.Millisecond)
	c.RecordTiming(OpDBQuery, 30*time.Millisecond)

	snap := c.Snapshot().Operations[OpDBQuery]
	require.NotNil(t, snap)
	assert.Equal(t, int64(2), snap.Count)
	assert.Equal(t, int64(10), snap.MinTimeMs)
	assert.Equal(t, int64(30), snap.MaxTimeMs)
	assert.InDelta(t, 20.0, snap.AvgTimeMs, 0.001)
	assert.Nil(t, snap.InputTokens)
}

func TestRecordOutcome(t *testing.T) {
	c := NewCollector()
	c.RecordOutcome(OpPlan, time.Millisecond, nil)
	c.RecordOutcome(OpPlan, time.Millisecond, errors.New("boom"))

	snap := c.Snapshot().Operations[OpPlan]
	require.NotNil(t, snap)
	assert.Equal(t, int64(2), snap.Count)
	assert.Equal(t, int64(1), snap.Failures)
}

func TestRecordLLMUsage(t *testing.T) {
	c := NewCollector()
	c.RecordLLMUsage(OpLLMGenerate, time.Millisecond, 100, 20)
	c.RecordLLMUsage(OpLLMGenerate, time.Millisecond, 50, 30)

	snap := c.Snapshot().Operations[OpLLMGenerate]
	require.NotNil(t, snap)
	require.NotNil(t, snap.InputTokens)
	assert.Equal(t, int64(150), *snap.InputTokens)
	assert.Equal(t, int64(50), *snap.OutputTokens)
	assert.InDelta(t, 100.0, *snap.AvgTokens, 0.001)
}

func TestSnapshotOmitsUnusedOps(t *testing.T) {
	snap := NewCollector().Snapshot()
	assert.Empty(t, snap.Operations)
	assert.Empty(t, snap.Counters)
}

func TestConcurrentCounters(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Incr(CounterTasksEnqueued)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(50), c.Snapshot().Counters[CounterTasksEnqueued])
}
