// Package capture turns raw pointer and keyboard events into normalized
// interaction records for the active step.
//
// The presentation layer relays input events; capture resolves which block
// was hit, converts coordinates to percentages of that block, and normalizes
// key combinations. Exactly one subscription is live at a time: attaching a
// new step tears down the previous one, so no handler outlives its step.
package capture
