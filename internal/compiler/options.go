package compiler

import (
	"log/slog"
	"math/rand/v2"
)

// DefaultMaxDepth bounds task-reference nesting.
const DefaultMaxDepth = 16

// SaveOrderIndex is the order index of the terminal save step.
const SaveOrderIndex = 9999

// Option configures a Compiler.
type Option func(*Compiler)

// WithLookup sets the task lookup used for task references.
func WithLookup(l TaskLookup) Option {
	return func(c *Compiler) {
		c.lookup = l
	}
}

// WithSeed makes shuffling reproducible. Without it each Compile draws
// a fresh seed and reports it in Result.Seed.
func WithSeed(seed uint64) Option {
	return func(c *Compiler) {
		c.seed = seed
		c.seeded = true
	}
}

// WithRand sets the random source used for shuffling. It takes precedence
// over WithSeed; the reported seed is then zero.
func WithRand(r *rand.Rand) Option {
	return func(c *Compiler) {
		c.rng = r
	}
}

// WithIDGenerator sets the generator for compiled step and trigger ids.
func WithIDGenerator(g IDGenerator) Option {
	return func(c *Compiler) {
		c.ids = g
	}
}

// WithPreloader enables best-effort image preloading after compilation.
func WithPreloader(p Preloader) Option {
	return func(c *Compiler) {
		c.preloader = p
	}
}

// WithLogger sets the logger for warnings.
func WithLogger(l *slog.Logger) Option {
	return func(c *Compiler) {
		c.logger = l
	}
}

// WithMaxDepth sets the maximum task nesting depth.
func WithMaxDepth(n int) Option {
	return func(c *Compiler) {
		c.maxDepth = n
	}
}

func (c *Compiler) applyDefaults() {
	if c.ids == nil {
		c.ids = UUIDv7Generator{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.maxDepth <= 0 {
		c.maxDepth = DefaultMaxDepth
	}
}
