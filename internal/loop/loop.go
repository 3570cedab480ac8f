// Package loop provides the executors on which model continuations run.
//
// A continuation is the work done when a network request finishes: merging
// the response into the attribute store and triggering events. Views and
// listeners assume those continuations never interleave, the way a browser
// event loop would guarantee. Two executors are provided:
//
//   - Inline runs the task on the posting goroutine. The model serializes
//     its own continuations, so this is enough for most programs and tests.
//   - Loop is a single-writer FIFO event loop. Programs that want every
//     state change on one goroutine (the repl command) post everything to it.
//
// Pending is the completion handle that asynchronous model and collection
// operations return.
package loop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrClosed is returned by Do once the loop no longer accepts tasks.
var ErrClosed = errors.New("loop closed")

// Executor runs tasks. Post returns false if the task was rejected
// because the executor is shut down.
type Executor interface {
	Post(task func()) bool
}

// Inline runs each task immediately on the caller's goroutine.
type Inline struct{}

// Post runs task and returns true.
func (Inline) Post(task func()) bool {
	task()
	return true
}

// Loop is a single-writer FIFO task loop.
//
// Thread-safety model:
//   - Post(): safe from any goroutine
//   - Run() / RunPending(): call from exactly one goroutine
type Loop struct {
	mu     sync.Mutex
	tasks  []func()
	closed bool
	signal chan struct{} // buffered, size 1: coalesces wake-ups
}

// New creates an empty loop.
func New() *Loop {
	return &Loop{
		tasks:  make([]func(), 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Post appends task to the queue. Returns false once the loop is closed.
func (l *Loop) Post(task func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return false
	}
	l.tasks = append(l.tasks, task)

	select {
	case l.signal <- struct{}{}:
	default:
	}
	return true
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.tasks) == 0 {
		return nil, false
	}
	task := l.tasks[0]
	// Nil out the slot so the closure can be collected.
	l.tasks[0] = nil
	if len(l.tasks) == 1 {
		l.tasks = l.tasks[:0]
	} else {
		l.tasks = l.tasks[1:]
	}
	return task, true
}

// RunPending runs every task queued at the time of the call, plus any task
// those tasks post, and returns how many ran.
func (l *Loop) RunPending() int {
	n := 0
	for {
		task, ok := l.next()
		if !ok {
			return n
		}
		task()
		n++
	}
}

// Run executes tasks until ctx is cancelled, or until the loop is closed
// and drained. It returns ctx.Err() on cancellation and nil on close.
func (l *Loop) Run(ctx context.Context) error {
	slog.Debug("loop starting")
	for {
		if task, ok := l.next(); ok {
			task()
			continue
		}

		l.mu.Lock()
		done := l.closed && len(l.tasks) == 0
		l.mu.Unlock()
		if done {
			slog.Debug("loop drained")
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.signal:
		}
	}
}

// Do posts task and blocks until it has run on the loop goroutine or ctx
// is done. Do must not be called from a task, since the loop would wait
// on itself.
func (l *Loop) Do(ctx context.Context, task func()) error {
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		task()
	}) {
		return ErrClosed
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len returns the number of queued tasks.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tasks)
}

// Close stops accepting tasks and wakes Run so it can drain and return.
func (l *Loop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	l.closed = true
	close(l.signal)
}
