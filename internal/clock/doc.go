// Package clock provides the time sources the engine depends on.
//
// Two concerns live here:
//   - Seq: a monotonic logical counter used to order results and trace events.
//     Wall-clock timestamps are recorded for reaction times but never used
//     for ordering.
//   - Clock: wall time plus cancellable scheduled callbacks. Real wraps the
//     time package; Manual advances only when told to, so timer-driven runs
//     are reproducible in tests and scripted sessions.
package clock
