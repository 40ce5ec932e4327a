// Package timeline provides the data model shared by the compiler, the
// execution engine and the results pipeline.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import timeline; timeline imports nothing internal.
//
// Key design constraints:
//   - Compiled steps are immutable once handed to the engine
//   - orderIndex is unique and strictly increasing within a compiled sequence
//   - Timer delays are resolved to non-negative milliseconds before execution
//   - JSON tags use camelCase, matching the authoring tool's documents
package timeline
