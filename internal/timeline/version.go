package timeline

// EngineVersion is the semantic version of the runtime that produced a run.
// Stored with every persisted run so results can be traced to the engine build.
const EngineVersion = "0.3.0"

// FormatVersion is the version of the compiled-sequence document format.
const FormatVersion = "1"
