package engine

import (
	"context"

	"github.com/google/uuid"
)

// Store is the Signal Store contract: the durable record of intersections
// and signals. The Cycle Engine, Override Handler, and Reset Handler are
// its only writers; CRUD for cities/areas/intersections is an external
// collaborator and talks to the same store directly.
type Store interface {
	// IntersectionSignals returns the (up to) four signals of an
	// intersection, in no particular order. Returns ErrNotFound if the
	// intersection does not exist.
	IntersectionSignals(ctx context.Context, intersectionID uuid.UUID) ([]Signal, error)

	// Signal returns a single signal and its intersection ID.
	// Returns ErrNotFound if the signal does not exist.
	Signal(ctx context.Context, signalID uuid.UUID) (Signal, error)

	// ExpiredManualSignals returns every signal with is_manual=true whose
	// last_updated+duration_seconds has already passed as of now.
	ExpiredManualSignals(ctx context.Context, now int64) ([]Signal, error)

	// AllIntersectionIDs returns every intersection's ID, for the tick
	// loop's per-intersection sweep.
	AllIntersectionIDs(ctx context.Context) ([]uuid.UUID, error)

	// CommitTransition writes new colors for a set of non-manual signals as
	// a single transaction.
	CommitTransition(ctx context.Context, updates []SignalColorUpdate) error

	// CommitResync writes the resynchronized color for one signal and
	// clears its manual flag, as a single transaction.
	CommitResync(ctx context.Context, update SignalColorUpdate) error

	// CommitOverride applies the override handler's full four-signal update
	// (target + partner + two conflicts) as a single transaction.
	CommitOverride(ctx context.Context, updates []SignalColorUpdate) error

	// CommitReset clears manual flags and re-anchors all signals of an
	// intersection to phase 0, as a single transaction.
	CommitReset(ctx context.Context, updates []SignalColorUpdate) error

	// ClearManual clears is_manual for a single signal without touching its
	// color. The signal resyncs on the next tick, not immediately.
	ClearManual(ctx context.Context, signalID uuid.UUID, now int64) error

	// SetDuration updates a signal's duration_seconds, effective at the
	// next phase transition.
	SetDuration(ctx context.Context, signalID uuid.UUID, durationSeconds int) error

	// SetDensity updates a signal's current_density. Stored, not consumed
	// by the cycle engine.
	SetDensity(ctx context.Context, signalID uuid.UUID, density int) error
}

// SignalColorUpdate is one row of a multi-signal write. DurationSeconds is
// nil when the write should leave the signal's configured duration alone.
type SignalColorUpdate struct {
	SignalID        uuid.UUID
	Color           Color
	IsManual        bool
	DurationSeconds *int
	LastUpdated     int64
}
