// Package dispatch provides a bounded FIFO queue for calls to the external
// synthesis provider. It caps the number of in-flight requests and preserves
// arrival order for queued work.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/book-expert/logger"
	"github.com/google/uuid"

	"github.com/jaredblank/equity-voice-bigbrother-v2/internal/core"
)

// Defaults applied when the dispatcher is constructed with zero values.
const (
	DefaultMaxConcurrent   = 2
	DefaultRedispatchDelay = 100 * time.Millisecond
)

// Result carries the settled outcome of one queued task.
type Result struct {
	Value any
	Err   error
}

// task is one unit of provider work, owned by the dispatcher from enqueue
// until its execute function settles.
type task struct {
	id      string
	execute func(context.Context) (any, error)
	result  chan Result
}

// Dispatcher admits tasks in FIFO order and runs at most maxConcurrent of
// them at a time. Enqueue never rejects; back-pressure is the caller's
// concern via upstream rate limiting.
type Dispatcher struct {
	mu              sync.Mutex
	cond            *sync.Cond
	pending         []*task
	active          map[string]*task
	maxConcurrent   int
	redispatchDelay time.Duration
	log             *logger.Logger
}

// New creates a dispatcher with the given concurrency cap and re-dispatch
// delay. Non-positive values fall back to the package defaults.
func New(maxConcurrent int, redispatchDelay time.Duration, log *logger.Logger) *Dispatcher {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}

	if redispatchDelay <= 0 {
		redispatchDelay = DefaultRedispatchDelay
	}

	dispatcher := &Dispatcher{
		mu:              sync.Mutex{},
		cond:            nil,
		pending:         nil,
		active:          make(map[string]*task),
		maxConcurrent:   maxConcurrent,
		redispatchDelay: redispatchDelay,
		log:             log,
	}
	dispatcher.cond = sync.NewCond(&dispatcher.mu)

	return dispatcher
}

// Enqueue accepts a provider call and returns the future that will carry its
// result. The returned channel is buffered; the caller may abandon it without
// blocking the dispatcher. The task itself cannot be cancelled once enqueued.
func (d *Dispatcher) Enqueue(execute func(context.Context) (any, error)) <-chan Result {
	queued := &task{
		id:      uuid.NewString(),
		execute: execute,
		result:  make(chan Result, 1),
	}

	d.mu.Lock()
	d.pending = append(d.pending, queued)
	d.mu.Unlock()

	d.dispatch()

	return queued.result
}

// Status returns a point-in-time snapshot of queue occupancy.
func (d *Dispatcher) Status() core.QueueStatus {
	d.mu.Lock()
	defer d.mu.Unlock()

	return core.QueueStatus{
		Active:        len(d.active),
		Queued:        len(d.pending),
		MaxConcurrent: d.maxConcurrent,
	}
}

// Drain blocks until every enqueued task has settled.
func (d *Dispatcher) Drain() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for len(d.active) > 0 || len(d.pending) > 0 {
		d.cond.Wait()
	}
}

// dispatch moves pending tasks into the active set while slots are free.
// Admission is strictly FIFO.
func (d *Dispatcher) dispatch() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for len(d.active) < d.maxConcurrent && len(d.pending) > 0 {
		next := d.pending[0]
		d.pending = d.pending[1:]
		d.active[next.id] = next

		go d.run(next)
	}
}

// run executes a task, settles its future, and schedules the next dispatch
// pass on a timer. The deferred re-dispatch yields back to the scheduler
// instead of recursing from the completion path, which keeps bursts from
// growing the call stack and lets other queued work be considered.
func (d *Dispatcher) run(settled *task) {
	value, err := settled.execute(context.Background())
	if err != nil && d.log != nil {
		d.log.Warn("Dispatched task %s failed: %v", settled.id, err)
	}

	d.mu.Lock()
	delete(d.active, settled.id)
	d.cond.Broadcast()
	d.mu.Unlock()

	settled.result <- Result{Value: value, Err: err}

	time.AfterFunc(d.redispatchDelay, d.dispatch)
}
