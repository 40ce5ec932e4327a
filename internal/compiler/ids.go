package compiler

import "github.com/google/uuid"

// IDGenerator produces ids for compiled steps and synthetic triggers.
// Implemented by UUIDv7Generator (production) and testutil.SequentialIDs
// (tests, scripted sessions).
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 ids.
//
// UUIDv7 embeds a timestamp in the most significant bits, so ids sort by
// creation time, which keeps compiled documents readable when debugging.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
