package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/ravan/internal/llm"
	"github.com/raphaelgruber/ravan/internal/metrics"
)

// Stage names a detached pipeline step run by the dispatcher.
type Stage string

const (
	StageConsolidateMemory Stage = "consolidate_memory"
	StageGeneratePlan      Stage = "generate_plan"
	StageNotify            Stage = "notify"
)

// Task is one unit of detached work.
type Task struct {
	ID         string         `json:"id"`
	Stage      Stage          `json:"stage"`
	UserID     string         `json:"userId"`
	Payload    map[string]any `json:"payload,omitempty"`
	Attempts   int            `json:"attempts"`
	EnqueuedAt time.Time      `json:"enqueuedAt"`
}

// DeadLetter is a task that will not be run again.
type DeadLetter struct {
	Task     Task      `json:"task"`
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failedAt"`
}

// TaskHandler runs one stage.
type TaskHandler func(ctx context.Context, task Task) error

// Enqueuer accepts detached work without blocking.
type Enqueuer interface {
	Enqueue(task Task) bool
}

// DispatcherConfig sizes the worker pool.
type DispatcherConfig struct {
	Workers       int
	QueueSize     int
	MaxAttempts   int
	TaskTimeout   time.Duration
	DeadLetterCap int
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.TaskTimeout <= 0 {
		c.TaskTimeout = 5 * time.Minute
	}
	if c.DeadLetterCap <= 0 {
		c.DeadLetterCap = 100
	}
	return c
}

// Dispatcher runs fire-and-forget stages on a fixed worker pool. Task
// failures are logged here and never reach the code that enqueued them.
type Dispatcher struct {
	cfg      DispatcherConfig
	queue    chan Task
	handlers map[Stage]TaskHandler
	metrics  *metrics.Collector

	mu     sync.RWMutex // guards closed against concurrent Enqueue
	closed bool

	deadMu sync.Mutex
	dead   []DeadLetter

	wg      sync.WaitGroup
	started bool
}

// NewDispatcher creates a dispatcher. Register handlers, then call Start.
func NewDispatcher(cfg DispatcherConfig, mc *metrics.Collector) *Dispatcher {
	cfg = cfg.withDefaults()
	return &Dispatcher{
		cfg:      cfg,
		queue:    make(chan Task, cfg.QueueSize),
		handlers: make(map[Stage]TaskHandler),
		metrics:  mc,
	}
}

// Handle registers the handler for a stage. Not safe after Start.
func (d *Dispatcher) Handle(stage Stage, h TaskHandler) {
	d.handlers[stage] = h
}

// Start launches the workers.
func (d *Dispatcher) Start() {
	if d.started {
		return
	}
	d.started = true
	for range d.cfg.Workers {
		d.wg.Add(1)
		go d.worker()
	}
	slog.Info("dispatcher started", "workers", d.cfg.Workers, "queue_size", d.cfg.QueueSize)
}

// Enqueue schedules a task. It never blocks: when the queue is full or the
// dispatcher is shut down the task is dead-lettered and false is returned.
func (d *Dispatcher) Enqueue(task Task) bool {
	if task.ID == "" {
		task.ID = uuid.New().String()[:8] // Short ID for convenience
	}
	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.deadLetter(task, "dispatcher closed")
		return false
	}

	select {
	case d.queue <- task:
		incr(d.metrics, metrics.CounterTasksEnqueued)
		slog.Debug("task enqueued", "task_id", task.ID, "stage", task.Stage, "user_id", task.UserID)
		return true
	default:
		d.deadLetter(task, "queue full")
		return false
	}
}

// DeadLetters returns the retained dead letters, newest last.
func (d *Dispatcher) DeadLetters() []DeadLetter {
	d.deadMu.Lock()
	defer d.deadMu.Unlock()
	return slices.Clone(d.dead)
}

// Pending returns the number of queued tasks.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

// Shutdown stops intake and waits for queued tasks to finish or ctx to end.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("dispatcher stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("dispatcher shutdown: %w", ctx.Err())
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for task := range d.queue {
		d.run(task)
	}
}

func (d *Dispatcher) run(task Task) {
	task.Attempts++
	err := d.execute(task)
	if err == nil {
		incr(d.metrics, metrics.CounterTasksSucceeded)
		return
	}

	incr(d.metrics, metrics.CounterTasksFailed)
	slog.Error("task failed",
		"task_id", task.ID,
		"stage", task.Stage,
		"user_id", task.UserID,
		"attempt", task.Attempts,
		"error", err)

	if errors.Is(err, llm.ErrFatalAPI) || task.Attempts >= d.cfg.MaxAttempts {
		d.deadLetter(task, err.Error())
		return
	}
	d.retry(task)
}

// retry re-queues without blocking; a worker must never wait on its own queue.
func (d *Dispatcher) retry(task Task) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.deadLetter(task, "dispatcher closed before retry")
		return
	}
	select {
	case d.queue <- task:
	default:
		d.deadLetter(task, "queue full on retry")
	}
}

func (d *Dispatcher) execute(task Task) (err error) {
	h, ok := d.handlers[task.Stage]
	if !ok {
		return fmt.Errorf("no handler for stage %q", task.Stage)
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.TaskTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("task panicked", "task_id", task.ID, "stage", task.Stage, "panic", r)
			err = fmt.Errorf("internal panic: %v", r)
		}
	}()

	start := time.Now()
	err = h(ctx, task)
	slog.Debug("task finished", "task_id", task.ID, "stage", task.Stage, "duration_ms", time.Since(start).Milliseconds())
	return err
}

func (d *Dispatcher) deadLetter(task Task, reason string) {
	incr(d.metrics, metrics.CounterTasksDeadLetter)
	slog.Warn("task dead-lettered", "task_id", task.ID, "stage", task.Stage, "user_id", task.UserID, "reason", reason)

	d.deadMu.Lock()
	defer d.deadMu.Unlock()
	d.dead = append(d.dead, DeadLetter{Task: task, Reason: reason, FailedAt: time.Now()})
	if over := len(d.dead) - d.cfg.DeadLetterCap; over > 0 {
		d.dead = slices.Delete(d.dead, 0, over)
	}
}
