// Package pool runs submitted tasks on a fixed set of background workers.
package pool

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("pool is closed")

// Task is one unit of work.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Result reports how a task ended.
type Result struct {
	Task     string
	Err      error
	Duration time.Duration
}

// ResultHandler receives every finished task's result on the worker that ran
// it. It must not block for long.
type ResultHandler func(Result)

// PanicError is the error reported for a task that panicked.
type PanicError struct {
	Task  string
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task %q panicked: %v", e.Task, e.Value)
}

// Pool is a fixed-size worker pool with an unbounded queue.
type Pool struct {
	queue   *taskQueue
	handler ResultHandler

	cancel context.CancelFunc
	wg     sync.WaitGroup

	closed atomic.Bool
	active atomic.Int32
}

// New starts size workers. Call Close when done to stop them.
func New(ctx context.Context, size int, handler ResultHandler) *Pool {
	if size < 1 {
		size = 1
	}
	if handler == nil {
		handler = func(Result) {}
	}

	ctx, cancel := context.WithCancel(ctx)
	p := &Pool{
		queue:   newTaskQueue(size),
		handler: handler,
		cancel:  cancel,
	}

	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.work(ctx)
	}
	return p
}

// Submit queues a task. It never blocks on worker availability.
func (p *Pool) Submit(name string, run func(ctx context.Context) error) error {
	if p.closed.Load() {
		return ErrClosed
	}
	if run == nil {
		return fmt.Errorf("task %q: nil function", name)
	}
	p.queue.Push(Task{Name: name, Run: run})
	return nil
}

// Pending returns the number of queued tasks not yet picked up.
func (p *Pool) Pending() int {
	return p.queue.Len()
}

// Active returns the number of tasks currently running.
func (p *Pool) Active() int {
	return int(p.active.Load())
}

// Close stops accepting tasks, discards queued ones, cancels the context of
// running ones and waits for the workers to exit. It returns the names of
// discarded tasks.
func (p *Pool) Close() []string {
	if !p.closed.CompareAndSwap(false, true) {
		p.wg.Wait()
		return nil
	}
	p.cancel()
	p.wg.Wait()

	var dropped []string
	for _, t := range p.queue.Drain() {
		dropped = append(dropped, t.Name)
	}
	return dropped
}

func (p *Pool) work(ctx context.Context) {
	defer p.wg.Done()

	for {
		t, ok := p.queue.Pull(ctx)
		if !ok {
			return
		}
		p.handler(p.runSingleTask(ctx, t))
	}
}

func (p *Pool) runSingleTask(ctx context.Context, t Task) (res Result) {
	p.active.Add(1)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			res.Err = &PanicError{Task: t.Name, Value: r, Stack: debug.Stack()}
		}
		res.Task = t.Name
		res.Duration = time.Since(start)
		p.active.Add(-1)
	}()

	res.Err = t.Run(ctx)
	return res
}
