package queue

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hoony8355/searcap/internal/models"
)

var (
	ErrQueueEmpty  = errors.New("queue is empty")
	ErrQueueClosed = errors.New("queue is closed")
)

// Task is one keyword to capture on one surface.
type Task struct {
	ID        string
	JobID     string
	Keyword   string
	Surface   models.Surface
	Priority  int
	Retries   int
	CreatedAt time.Time
}

// NewTask builds a task with a fresh ID.
func NewTask(keyword string, surface models.Surface) *Task {
	return &Task{
		ID:        uuid.NewString(),
		Keyword:   keyword,
		Surface:   surface,
		CreatedAt: time.Now().UTC(),
	}
}

type Queue interface {
	Push(task *Task) error
	Pop(ctx context.Context) (*Task, error)
	Size() int
	Close() error
}

// InMemoryQueue orders tasks by priority, highest first. Blocked Pop calls
// are woken through channels so cancellation never touches a mutex another
// goroutine holds.
type InMemoryQueue struct {
	tasks  []*Task
	mu     sync.Mutex
	wake   chan struct{}
	done   chan struct{}
	closed bool
}

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		tasks: make([]*Task, 0),
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

func (q *InMemoryQueue) Push(task *Task) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}

	q.tasks = append(q.tasks, task)
	sort.SliceStable(q.tasks, func(i, j int) bool {
		return q.tasks[i].Priority > q.tasks[j].Priority
	})
	q.mu.Unlock()

	q.notify()
	return nil
}

// Pop blocks until a task is available, the queue is closed, or the context
// is cancelled.
func (q *InMemoryQueue) Pop(ctx context.Context) (*Task, error) {
	for {
		q.mu.Lock()
		if len(q.tasks) > 0 {
			task := q.tasks[0]
			q.tasks = q.tasks[1:]
			remaining := len(q.tasks)
			q.mu.Unlock()

			// Keep other blocked consumers moving while tasks remain.
			if remaining > 0 {
				q.notify()
			}
			return task, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return nil, ErrQueueClosed
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.wake:
		case <-q.done:
		}
	}
}

func (q *InMemoryQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.done)
	}

	return nil
}

// notify wakes one blocked Pop without blocking the caller. A stale token
// only costs a waiter one spurious re-check of the queue.
func (q *InMemoryQueue) notify() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// PushAll enqueues every task, stopping on the first error.
func PushAll(q Queue, tasks []*Task) error {
	for _, task := range tasks {
		if err := q.Push(task); err != nil {
			return err
		}
	}
	return nil
}
