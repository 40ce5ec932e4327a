// Package compiler turns an authored timeline into the flat, ordered,
// self-contained sequence the execution engine runs.
//
// Compilation is a tree-to-list flattening pass:
//   - task references are resolved through a TaskLookup and compiled
//     recursively, guarded against cycles and runaway depth
//   - stimulus groups are expanded trial by trial, with optional per-trial
//     shuffling from an injectable random source
//   - feedback and inter-stimulus steps are synthesized around each child
//   - a terminal save step closes every top-level sequence
//
// The compiler never fails on data-shape problems. Unresolvable references
// and invalid values are logged, collected as warnings, and skipped or
// defaulted. Validate lints an authored timeline without compiling it.
package compiler
