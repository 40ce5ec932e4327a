// Package engine runs a compiled sequence in front of a participant.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// Every state change happens on one goroutine. Input relayed from the
// presentation layer (key presses, pointer events, externally fired
// triggers) and timer expiries are enqueued as events; Run (or Drain, in
// tests and scripted sessions) processes them one at a time. This gives:
//   - strictly serialized step activation: a new StepResult is never opened
//     before the previous one is sealed
//   - no locks around results or navigation state
//   - reproducible runs under a manual clock
//
// Event Processing Flow:
//  1. Input or timer expiry enqueued
//  2. Capture normalizes input and records it on the open StepResult
//  3. The answer is evaluated against the active step's triggers
//  4. The answer policy or the matched trigger's action navigates
//  5. Activation seals the old result, opens a new one, arms timers
//
// Timers:
// Every activation starts a new epoch. Trigger, settle and try-again timers
// carry the epoch they were armed in and are stopped on activation; an
// expiry from an older epoch that was already queued is discarded. A timer
// armed on step A can therefore never navigate after B became active.
//
// The isUpdating flag marks a pending policy navigation. While it is set,
// further answers on the step are recorded but neither evaluated nor
// dispatched, so a key press racing a timer cannot advance twice.
package engine
