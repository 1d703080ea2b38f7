// Package engine implements the signal-cycle state machine: the tick loop
// that advances intersections through their phase alphabet, the override
// handler that reconciles manual commands with the safety invariant, and
// the reset handler that returns an intersection to automatic mode.
package engine

import (
	"time"

	"github.com/google/uuid"
)

// Direction is one of the four cardinal approaches of an intersection.
type Direction string

const (
	North Direction = "North"
	South Direction = "South"
	East  Direction = "East"
	West  Direction = "West"
)

// Directions lists all four directions in a stable order, used wherever a
// full sweep over an intersection's signals is needed.
var Directions = [4]Direction{North, South, East, West}

// Partner returns the co-axial direction that always mirrors color.
func (d Direction) Partner() Direction {
	switch d {
	case North:
		return South
	case South:
		return North
	case East:
		return West
	case West:
		return East
	default:
		return ""
	}
}

// Conflicts returns the pair of directions whose GREEN would violate the
// safety invariant given d's GREEN.
func (d Direction) Conflicts() [2]Direction {
	switch d {
	case North, South:
		return [2]Direction{East, West}
	case East, West:
		return [2]Direction{North, South}
	default:
		return [2]Direction{}
	}
}

// IsNS reports whether d is on the North/South axis.
func (d Direction) IsNS() bool {
	return d == North || d == South
}

// Color is a signal's displayed color.
type Color string

const (
	Red    Color = "RED"
	Yellow Color = "YELLOW"
	Green  Color = "GREEN"
)

// Valid reports whether c is one of the three defined colors.
func (c Color) Valid() bool {
	switch c {
	case Red, Yellow, Green:
		return true
	default:
		return false
	}
}

// Signal is one of an intersection's four directional lights.
type Signal struct {
	ID              uuid.UUID
	IntersectionID  uuid.UUID
	Direction       Direction
	Color           Color
	DurationSeconds int
	IsManual        bool
	LastUpdated     time.Time
	CurrentDensity  int
}

// PhaseRecord is the Phase Cache's per-intersection record: the current
// phase index and the wall-clock instant it ends.
type PhaseRecord struct {
	Phase    Phase
	PhaseEnd float64 // UTC epoch seconds
}

// SignalState is the Phase Cache's per-signal record. EndTime's meaning is
// asymmetric by color: for RED it is when the signal is expected to turn
// GREEN; for GREEN/YELLOW it is when the current phase ends.
type SignalState struct {
	Color   Color
	EndTime float64 // UTC epoch seconds
}
