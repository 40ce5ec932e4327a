package engine

import (
	"sync"

	"github.com/roach88/stimline/internal/capture"
)

// EventType distinguishes between event kinds.
type EventType int

const (
	// EventStart activates the first step.
	EventStart EventType = iota + 1
	// EventKey relays a key-down event.
	EventKey
	// EventPointer relays a pointer event.
	EventPointer
	// EventFireTrigger fires a trigger of the active step by id.
	EventFireTrigger
	// EventTimer reports the expiry of an engine timer.
	EventTimer
	// EventRepeatAmount updates a level's repeat amount.
	EventRepeatAmount
)

// timerKind identifies what an engine timer does on expiry.
type timerKind int

const (
	timerTrigger  timerKind = iota + 1 // a timer trigger on the step
	timerSettle                        // deferred policy navigation
	timerTryAgain                      // end of a try-again cool-down
)

// Event is one unit of work for the loop.
type Event struct {
	Type    EventType
	Key     *capture.KeyEvent
	Pointer *capture.PointerEvent

	// TriggerID names the trigger for EventFireTrigger and trigger timers.
	TriggerID string

	// Epoch is the activation a timer was armed in.
	Epoch uint64
	timer timerKind

	// TemplateID and Amount carry an EventRepeatAmount update.
	TemplateID string
	Amount     int
}

// eventQueue is an unbounded FIFO of events. Producers never block, so
// a timer callback cannot stall the clock that runs it. A one-slot
// signal channel wakes Run; it is closed by Close.
type eventQueue struct {
	mu     sync.Mutex
	buf    []Event
	head   int
	closed bool
	signal chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{signal: make(chan struct{}, 1)}
}

// Enqueue appends e. It reports false once the queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.buf = append(q.buf, e)
	select {
	case q.signal <- struct{}{}:
	default: // a wake-up is already pending
	}
	return true
}

// TryDequeue pops the oldest event without blocking.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.head == len(q.buf) {
		return Event{}, false
	}
	e := q.buf[q.head]
	q.buf[q.head] = Event{}
	q.head++
	if q.head == len(q.buf) {
		q.buf, q.head = q.buf[:0], 0
	}
	return e, true
}

// Wait returns the wake-up channel. A receive means events may be queued.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf) - q.head
}

func (q *eventQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close stops further enqueues and wakes any waiter. Queued events stay
// available to TryDequeue.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.signal)
	}
}
