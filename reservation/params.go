// Package reservation implements the IM-side ReservationTable: the
// occupancy map, per-vehicle reservation sets, request timeouts, and
// stall-priority markers described in spec.md §3, plus the tunable
// constants the feasibility search in package im is built against.
package reservation

import "math"

// Params collects the IM's tunable design constants (spec.md §4.7). All
// times are seconds, distances metres.
type Params struct {
	// Delta is the time-discretisation grid spacing.
	Delta float64
	// TimeBuffer is the minimum temporal padding either side of a
	// reserved (tile, t) slot for interior tiles.
	TimeBuffer float64
	// EdgeTileTimeBuffer is the padding used instead of TimeBuffer for
	// tiles on the boundary row/column of the grid.
	EdgeTileTimeBuffer float64
	// SafetyBufferX/Y pad the vehicle footprint before sweeping tiles.
	SafetyBufferX float64
	SafetyBufferY float64
	// MustAccelerateThreshold: above this arrival velocity, a vehicle whose
	// accelerating profile collides falls back to the constant-speed
	// profile; at or below it, that collision is an outright rejection.
	MustAccelerateThreshold float64
}

// DefaultParams returns the constants named in spec.md §4.7/§9: Δ=0.05s,
// TIME_BUFFER=0.5s, EDGE_TILE_TIME_BUFFER=1.0s, SAFETY_BUFFER=(0.5,1.0)m,
// MUST_ACCELERATE_THRESHOLD=4 m/s.
func DefaultParams() Params {
	return Params{
		Delta:                   0.05,
		TimeBuffer:              0.5,
		EdgeTileTimeBuffer:      1.0,
		SafetyBufferX:           0.5,
		SafetyBufferY:           1.0,
		MustAccelerateThreshold: 4.0,
	}
}

// DiscretiseMode selects how DiscretiseTime snaps a continuous time to the
// Δ-spaced grid.
type DiscretiseMode int

const (
	Nearest DiscretiseMode = iota
	Floor
	Ceiling
)

// Tick is a Δ-quantised instant, stored as an integer count of Δ steps
// from t=0. Using an integer key avoids the floating-point hash-key drift
// a raw float64(t/Δ) would introduce (spec.md §9).
type Tick int64

// DiscretiseTime snaps t onto the Δ grid per mode and returns the tick
// count, per spec.md §4.7's discretise_time(t, mode).
func DiscretiseTime(t, delta float64, mode DiscretiseMode) Tick {
	steps := t / delta
	switch mode {
	case Floor:
		return Tick(int64(math.Floor(steps)))
	case Ceiling:
		return Tick(int64(math.Ceil(steps)))
	default:
		return Tick(int64(math.Floor(steps + 0.5)))
	}
}

// Seconds converts a tick back to continuous time.
func (t Tick) Seconds(delta float64) float64 {
	return float64(t) * delta
}
