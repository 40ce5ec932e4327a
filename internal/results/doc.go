// Package results aggregates the sealed step results of a run.
//
// A Collector observes an engine and decides when the run is complete: as
// soon as every scored step has a result, or when the terminal step
// activates. The completed Run is handed to a Sink for persistence.
//
// Summarize reduces a result history to accuracy and reaction-time figures.
// WriteCSV and WriteJSON export a run for reporting tools.
package results
