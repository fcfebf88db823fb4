package im

import (
	"math"

	"intersectioncontrol/geometry"
)

// entryDirection buckets a trajectory's starting heading into one of the
// four cardinal compass tags used to key the stall-priority marker
// (spec.md §4.7's nearest_stalled). The source keys this off the first
// character of the lane id string; spec.md §9's REDESIGN FLAGS calls that
// out as an encoding accident and asks for "a proper directional tag
// computed from trajectory geometry" instead, which is what this does: the
// tag names the direction the vehicle is travelling *from*, i.e. the
// reverse of its heading of travel.
func entryDirection(startHeading float64) string {
	// Heading points in the direction of travel; the entry direction is
	// named for where the vehicle came from, so invert it.
	from := startHeading + math.Pi
	deg := math.Mod(from*180/math.Pi, 360)
	if deg < 0 {
		deg += 360
	}
	switch {
	case deg < 45 || deg >= 315:
		return "E"
	case deg < 135:
		return "N"
	case deg < 225:
		return "W"
	default:
		return "S"
	}
}

func entryDirectionOf(trajectory *geometry.Trajectory) string {
	return entryDirection(trajectory.StartingPosition().Heading)
}
