package engine

import (
	"log/slog"
	"time"

	"github.com/roach88/stimline/internal/clock"
)

const (
	// DefaultSettleDelay lets answer feedback render before a policy navigation.
	DefaultSettleDelay = 100 * time.Millisecond

	// DefaultFeedback is the try-again duration when a step sets no feedbackDuration.
	DefaultFeedback = 1000 * time.Millisecond
)

// IDGenerator generates run ids.
// Implemented by compiler.UUIDv7Generator and testutil.SequentialIDs.
type IDGenerator interface {
	Generate() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source and timer scheduler. Default: clock.Real.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithSettleDelay sets the pause before a policy navigation.
func WithSettleDelay(d time.Duration) Option {
	return func(e *Engine) {
		e.settleDelay = d
	}
}

// WithDefaultFeedback sets the try-again duration used when a step's config
// has no feedbackDuration.
func WithDefaultFeedback(d time.Duration) Option {
	return func(e *Engine) {
		e.defaultFeedback = d
	}
}

// WithIDGenerator sets the generator for the run id.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithObserver registers an observer before the run starts.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observers = append(e.observers, o)
	}
}
