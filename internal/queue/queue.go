// Package queue holds scrape tasks waiting for the single browser worker.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrQueueFull   = errors.New("queue is full")
	ErrQueueClosed = errors.New("queue is closed")
)

// Task is one review scrape waiting to run.
type Task struct {
	JobID      string
	ASIN       string
	PageBudget int
	Keyword    string
	Priority   int
	CreatedAt  time.Time
}

type Queue interface {
	Push(task *Task) error
	Pop(ctx context.Context) (*Task, error)
	Remove(jobID string) bool
	Size() int
	Close() error
}

// InMemoryQueue pops the highest priority first and is FIFO within a
// priority. Capacity 0 means unbounded.
type InMemoryQueue struct {
	mu       sync.Mutex
	tasks    []*Task
	capacity int
	closed   bool
	ready    chan struct{}
}

func NewInMemoryQueue(capacity int) *InMemoryQueue {
	return &InMemoryQueue{
		tasks:    make([]*Task, 0),
		capacity: capacity,
		ready:    make(chan struct{}, 1),
	}
}

func (q *InMemoryQueue) Push(task *Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if q.capacity > 0 && len(q.tasks) >= q.capacity {
		return ErrQueueFull
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}

	i := len(q.tasks)
	for i > 0 && q.tasks[i-1].Priority < task.Priority {
		i--
	}
	q.tasks = append(q.tasks, nil)
	copy(q.tasks[i+1:], q.tasks[i:])
	q.tasks[i] = task

	q.wake()
	return nil
}

// Pop blocks until a task is available, the queue is closed and drained, or
// ctx is done.
func (q *InMemoryQueue) Pop(ctx context.Context) (*Task, error) {
	for {
		q.mu.Lock()
		if len(q.tasks) > 0 {
			task := q.tasks[0]
			q.tasks = q.tasks[1:]
			if len(q.tasks) > 0 {
				q.wake()
			}
			q.mu.Unlock()
			return task, nil
		}
		if q.closed {
			// pass the wakeup on to the next waiter
			q.wake()
			q.mu.Unlock()
			return nil, ErrQueueClosed
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.ready:
		}
	}
}

// Remove drops the pending task of jobID and reports whether it was queued.
func (q *InMemoryQueue) Remove(jobID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, task := range q.tasks {
		if task.JobID == jobID {
			q.tasks = append(q.tasks[:i], q.tasks[i+1:]...)
			return true
		}
	}
	return false
}

func (q *InMemoryQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Close rejects further pushes. Tasks already queued can still be popped.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.wake()
	return nil
}

// wake must be called with q.mu held.
func (q *InMemoryQueue) wake() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
