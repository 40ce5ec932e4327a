package clock

import "sync/atomic"

// Seq is a monotonic logical clock.
//
// Every sealed result and trace event is stamped with a strictly increasing
// value from Next. Replaying the same inputs produces the same values.
//
// Thread-safety: Seq is safe for concurrent use (atomic operations).
type Seq struct {
	n atomic.Int64
}

// NewSeq creates a logical clock starting at 0.
func NewSeq() *Seq {
	return &Seq{}
}

// NewSeqAt creates a logical clock resuming after start.
func NewSeqAt(start int64) *Seq {
	s := &Seq{}
	s.n.Store(start)
	return s
}

// Next returns the next sequence number.
func (s *Seq) Next() int64 {
	return s.n.Add(1)
}

// Current returns the last issued sequence number without incrementing.
func (s *Seq) Current() int64 {
	return s.n.Load()
}
