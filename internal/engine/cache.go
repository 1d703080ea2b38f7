package engine

import (
	"context"

	"github.com/google/uuid"
)

// Cache is the Phase Cache contract: a TTL-less string key/value store,
// read here through typed accessors so callers never format the four key
// shapes by hand.
type Cache interface {
	// PhaseRecord returns the intersection's current (phase, phase_end), or
	// ok=false if either key is missing (a cache miss, not an error).
	PhaseRecord(ctx context.Context, intersectionID uuid.UUID) (rec PhaseRecord, ok bool)

	// SetPhaseRecord writes the intersection's current (phase, phase_end).
	SetPhaseRecord(ctx context.Context, intersectionID uuid.UUID, rec PhaseRecord)

	// SignalState returns a signal's current (color, end_time), or
	// ok=false if either key is missing.
	SignalState(ctx context.Context, signalID uuid.UUID) (state SignalState, ok bool)

	// SetSignalState writes a signal's current (color, end_time).
	SetSignalState(ctx context.Context, signalID uuid.UUID, state SignalState)
}
