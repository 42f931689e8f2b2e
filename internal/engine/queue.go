package engine

import (
	"sync"
)

// EventType distinguishes between scheduler event kinds.
type EventType int

const (
	// EventSync requests a full sync.
	EventSync EventType = iota + 1
	// EventHeartbeat requests a heartbeat.
	EventHeartbeat
	// EventConnectivity reports the result of a connectivity change or probe.
	EventConnectivity
)

func (t EventType) String() string {
	switch t {
	case EventSync:
		return "sync"
	case EventHeartbeat:
		return "heartbeat"
	case EventConnectivity:
		return "connectivity"
	}
	return "unknown"
}

// Event is one unit of scheduler work.
type Event struct {
	Type EventType
	// Online is the reported state for EventConnectivity.
	Online bool
	// Reason is logged with the event (startup, interval, manual).
	Reason string
}

// eventQueue is a thread-safe FIFO queue for events.
//
// Producers are the timers, the connectivity probe and external callers;
// the scheduler loop is the only consumer. The queue uses a channel for
// signaling so the loop can wait on it together with context cancellation.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{} // buffered, size 1
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 8),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	// Buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (Event{}, false) if queue is empty.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}

	e := q.events[0]
	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}
	return e, true
}

// Wait returns a channel that signals when events may be available. The
// channel is closed when the queue is closed.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close signals that no more events will be enqueued.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
