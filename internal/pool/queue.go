package pool

import (
	"context"
	"sync"
)

// taskQueue is an unbounded FIFO queue. Pulling from an empty queue waits
// until a task is pushed or the context ends.
type taskQueue struct {
	mu   sync.Mutex
	wait chan struct{}
	data []Task
}

func newTaskQueue(waiters int) *taskQueue {
	if waiters < 1 {
		waiters = 1
	}
	return &taskQueue{
		wait: make(chan struct{}, waiters),
		data: make([]Task, 0),
	}
}

// Len returns the number of queued tasks.
func (q *taskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.data)
}

// Push appends a task and wakes one waiter, if any.
func (q *taskQueue) Push(t Task) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.data = append(q.data, t)

	select {
	case q.wait <- struct{}{}:
	default:
	}
}

// Pull removes the oldest task, waiting for one if the queue is empty. It
// returns false once ctx is done, even if tasks remain.
func (q *taskQueue) Pull(ctx context.Context) (Task, bool) {
	for {
		if ctx.Err() != nil {
			return Task{}, false
		}

		q.mu.Lock()
		if len(q.data) > 0 {
			t := q.data[0]
			q.data[0] = Task{}
			q.data = q.data[1:]
			q.mu.Unlock()
			return t, true
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return Task{}, false
		case <-q.wait:
		}
	}
}

// Drain empties the queue and returns what was in it.
func (q *taskQueue) Drain() []Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.data
	q.data = make([]Task, 0)
	return out
}
