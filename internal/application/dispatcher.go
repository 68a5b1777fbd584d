package application

import (
	"context"
	"sync"
	"time"

	"github.com/oms-platform/reconciliation-service/pkg/logging"
)

// Dispatcher runs best-effort side effects off the caller's path. Dispatch
// never blocks and never fails the caller; the task outcome is only logged.
// Used for the delivery stock adjustments so a slow or failing catalog
// write cannot delay or fail a status transition.
type Dispatcher struct {
	tasks       chan task
	taskTimeout time.Duration
	logger      *logging.Logger

	mu      sync.Mutex
	started bool
	done    chan struct{}
}

type task struct {
	name string
	fn   func(ctx context.Context) error
}

// NewDispatcher creates a dispatcher with the given queue capacity.
func NewDispatcher(queueSize int, taskTimeout time.Duration, logger *logging.Logger) *Dispatcher {
	if queueSize < 1 {
		queueSize = 64
	}
	return &Dispatcher{
		tasks:       make(chan task, queueSize),
		taskTimeout: taskTimeout,
		logger:      logger.WithComponent("dispatcher"),
		done:        make(chan struct{}),
	}
}

// Start launches the worker goroutine. Calling Start twice is a no-op.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true

	go func() {
		defer close(d.done)
		for t := range d.tasks {
			d.run(t)
		}
	}()
}

// Dispatch enqueues a task. When the queue is full the task is dropped and
// the drop is logged; the caller is never blocked.
func (d *Dispatcher) Dispatch(name string, fn func(ctx context.Context) error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started {
		d.logger.Warn("Dispatcher not running, task dropped", "task", name)
		return
	}

	select {
	case d.tasks <- task{name: name, fn: fn}:
	default:
		d.logger.Warn("Dispatcher queue full, task dropped", "task", name)
	}
}

// Stop closes the queue and waits for in-flight tasks to drain.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}
	d.started = false
	close(d.tasks)
	d.mu.Unlock()

	<-d.done
}

func (d *Dispatcher) run(t task) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Dispatched task panicked", "task", t.name, "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.taskTimeout)
	defer cancel()

	start := time.Now()
	if err := t.fn(ctx); err != nil {
		d.logger.Warn("Dispatched task failed",
			"task", t.name,
			"duration", time.Since(start).String(),
			"error", err.Error(),
		)
		return
	}
	d.logger.Debug("Dispatched task completed", "task", t.name, "duration", time.Since(start).String())
}
