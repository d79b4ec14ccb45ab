// Package metrics provides in-memory runtime statistics collection.
package metrics

import (
	"math"
	"sync"
	"time"
)

// OperationMetrics holds aggregated metrics for a single operation type.
type OperationMetrics struct {
	Count     int64
	Failures  int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration

	// Token metrics (only for LLM operations)
	TotalInputTokens  int64
	TotalOutputTokens int64
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Count        int64    `json:"count"`
	Failures     int64    `json:"failures,omitempty"`
	TotalTimeMs  int64    `json:"totalTimeMs"`
	AvgTimeMs    float64  `json:"avgTimeMs"`
	MinTimeMs    int64    `json:"minTimeMs"`
	MaxTimeMs    int64    `json:"maxTimeMs"`
	InputTokens  *int64   `json:"inputTokens,omitempty"`
	OutputTokens *int64   `json:"outputTokens,omitempty"`
	AvgTokens    *float64 `json:"avgTokens,omitempty"`
}

// Snapshot represents the full server statistics at a point in time.
type Snapshot struct {
	UptimeSeconds float64                       `json:"uptimeSeconds"`
	Operations    map[string]*OperationSnapshot `json:"operations"`
	Counters      map[string]int64              `json:"counters"`
}

// Operation names for the collector.
const (
	OpLLMGenerate = "llm_generate"
	OpLLMStream   = "llm_stream"
	OpDBQuery     = "db_query"

	OpChat        = "stage_chat"
	OpConsolidate = "stage_consolidate_memory"
	OpPlan        = "stage_generate_plan"
	OpReport      = "stage_clinical_report"
	OpDream       = "stage_generate_dream"
	OpPatterns    = "stage_analyze_dreams"
	OpNotify      = "stage_notify"
)

// Counter names for the collector.
const (
	CounterTasksEnqueued    = "tasks_enqueued"
	CounterTasksSucceeded   = "tasks_succeeded"
	CounterTasksFailed      = "tasks_failed"
	CounterTasksDeadLetter  = "tasks_dead_lettered"
	CounterCoerceFallback   = "coerce_fallbacks"
	CounterRateLimited      = "requests_rate_limited"
	CounterNotificationsOut = "notifications_sent"
)

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics
	counters  map[string]int64
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
		counters:  make(map[string]int64),
	}
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{MinTime: time.Duration(math.MaxInt64)}
		c.ops[op] = m
	}
	return m
}

func (m *OperationMetrics) observe(d time.Duration) {
	m.Count++
	m.TotalTime += d
	if d < m.MinTime {
		m.MinTime = d
	}
	if d > m.MaxTime {
		m.MaxTime = d
	}
}

// RecordTiming records timing for an operation.
func (c *Collector) RecordTiming(op string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.getOrCreate(op).observe(duration)
}

// RecordOutcome records timing for an operation and counts it as failed when err is non-nil.
func (c *Collector) RecordOutcome(op string, duration time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.getOrCreate(op)
	m.observe(duration)
	if err != nil {
		m.Failures++
	}
}

// RecordLLMUsage records timing and token usage for an LLM operation.
func (c *Collector) RecordLLMUsage(op string, duration time.Duration, inputTokens, outputTokens int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.getOrCreate(op)
	m.observe(duration)
	m.TotalInputTokens += inputTokens
	m.TotalOutputTokens += outputTokens
}

// Incr adds one to a named counter.
func (c *Collector) Incr(counter string) {
	c.mu.Lock()
	c.counters[counter]++
	c.mu.Unlock()
}

// snapshotOp creates a snapshot for an operation, returning nil if no data.
func snapshotOp(m *OperationMetrics) *OperationSnapshot {
	if m == nil || m.Count == 0 {
		return nil
	}

	snap := &OperationSnapshot{
		Count:       m.Count,
		Failures:    m.Failures,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
	}

	if m.TotalInputTokens > 0 || m.TotalOutputTokens > 0 {
		in, out := m.TotalInputTokens, m.TotalOutputTokens
		avg := float64(in+out) / float64(m.Count)
		snap.InputTokens = &in
		snap.OutputTokens = &out
		snap.AvgTokens = &avg
	}

	return snap
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ops := make(map[string]*OperationSnapshot, len(c.ops))
	for name, m := range c.ops {
		if s := snapshotOp(m); s != nil {
			ops[name] = s
		}
	}
	counters := make(map[string]int64, len(c.counters))
	for name, v := range c.counters {
		counters[name] = v
	}

	return Snapshot{
		UptimeSeconds: time.Since(c.startTime).Seconds(),
		Operations:    ops,
		Counters:      counters,
	}
}
