package router

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/user/deckhand/internal/types"
)

// Queue fans deliveries into per-key lanes with a global concurrency
// semaphore. Each session key gets its own FIFO channel so deliveries for one
// conversation are handled strictly in arrival order, while the semaphore
// caps how many conversations are processed at once. This is also what
// closes the double-trigger race: a second "generate" queued behind a first
// one only runs after the first has cleared the session.
type Queue struct {
	router    *Router
	lanes     map[types.SessionKey]chan *types.InboundEvent
	semaphore *semaphore.Weighted
	active    atomic.Int64

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
}

// NewQueue creates a Queue feeding the given router, allowing up to
// maxConcurrent deliveries to be handled simultaneously across all lanes.
func NewQueue(router *Router, maxConcurrent int64) *Queue {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &Queue{
		router:    router,
		lanes:     make(map[types.SessionKey]chan *types.InboundEvent),
		semaphore: semaphore.NewWeighted(maxConcurrent),
	}
}

// Start initialises the queue's context. Must be called before Enqueue.
func (q *Queue) Start(ctx context.Context) {
	q.ctx, q.cancel = context.WithCancel(ctx)
}

// Stop cancels the queue context, closes all lanes, and waits for in-flight
// handlers to finish.
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	for _, lane := range q.lanes {
		close(lane)
	}
	q.mu.Unlock()
	q.wg.Wait()
}

// Enqueue adds a delivery to its key's lane, creating the lane (and its
// goroutine) on first use. Returns an error if the lane's buffer is full or
// the queue has been stopped.
func (q *Queue) Enqueue(event *types.InboundEvent) error {
	key := event.Key()

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return fmt.Errorf("queue stopped")
	}

	lane, exists := q.lanes[key]
	if !exists {
		lane = make(chan *types.InboundEvent, 100)
		q.lanes[key] = lane
		q.wg.Add(1)
		go q.drainLane(lane)
	}

	select {
	case lane <- event:
		return nil
	default:
		return fmt.Errorf("queue full for session %s", key)
	}
}

// drainLane handles a single lane's deliveries in order, acquiring a
// semaphore slot before each one.
func (q *Queue) drainLane(lane chan *types.InboundEvent) {
	defer q.wg.Done()
	for {
		select {
		case event, ok := <-lane:
			if !ok {
				return
			}
			if err := q.semaphore.Acquire(q.ctx, 1); err != nil {
				return
			}
			q.active.Add(1)
			q.router.Handle(q.ctx, event)
			q.active.Add(-1)
			q.semaphore.Release(1)
		case <-q.ctx.Done():
			return
		}
	}
}

// WaitIdle blocks until no deliveries are actively being handled, or the
// timeout expires. Returns true if idle, false if timed out. Test hook.
func (q *Queue) WaitIdle(timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if q.active.Load() == 0 {
			return true
		}
		select {
		case <-deadline:
			return false
		case <-time.After(10 * time.Millisecond):
		}
	}
}
