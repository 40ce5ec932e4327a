package capture

import (
	"sync"

	"github.com/roach88/stimline/internal/clock"
	"github.com/roach88/stimline/internal/timeline"
)

// Capture owns the single live subscription and stamps interactions with
// the injected clock.
//
// Thread-safety: Capture is safe for concurrent use. Records are delivered
// on the goroutine that relays the event.
type Capture struct {
	clock clock.Clock

	mu  sync.Mutex
	sub *Subscription
}

// Subscription forwards normalized interactions for one step activation.
type Subscription struct {
	stepID string
	record func(timeline.Interaction)

	mu     sync.Mutex
	closed bool
}

// New creates a capture stamping interactions with c.
func New(c clock.Clock) *Capture {
	return &Capture{clock: c}
}

// Attach subscribes record to input for stepID. Any previous subscription
// is closed first.
func (c *Capture) Attach(stepID string, record func(timeline.Interaction)) *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sub != nil {
		c.sub.Close()
	}
	c.sub = &Subscription{stepID: stepID, record: record}
	return c.sub
}

// Detach closes the live subscription, if any.
func (c *Capture) Detach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sub != nil {
		c.sub.Close()
		c.sub = nil
	}
}

// active returns the step id of the live subscription.
func (c *Capture) active() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sub == nil || c.sub.isClosed() {
		return "", false
	}
	return c.sub.stepID, true
}

// HandlePointer records a pointer event against the live subscription.
// It reports whether an interaction was recorded.
func (c *Capture) HandlePointer(ev PointerEvent) bool {
	sub := c.current()
	if sub == nil {
		return false
	}
	return sub.deliver(ResolvePointer(ev, c.clock.Now()))
}

// HandleKey records a key-down event against the live subscription.
// Lone modifier presses are dropped.
func (c *Capture) HandleKey(ev KeyEvent) bool {
	sub := c.current()
	if sub == nil {
		return false
	}
	combo, ok := NormalizeKey(ev)
	if !ok {
		return false
	}
	return sub.deliver(timeline.Interaction{
		Type:      timeline.InteractionKeydown,
		Timestamp: c.clock.Now(),
		Key:       combo,
	})
}

func (c *Capture) current() *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sub
}

// Close stops delivery. Safe to call more than once.
func (s *Subscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *Subscription) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Subscription) deliver(in timeline.Interaction) bool {
	if s.isClosed() {
		return false
	}
	s.record(in)
	return true
}
