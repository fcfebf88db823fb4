package geometry

import "fmt"

// InvalidArgumentError marks a caller bug: bad input that should never be
// recovered from, per the error taxonomy in spec.md §7.
type InvalidArgumentError struct {
	msg string
}

func (e *InvalidArgumentError) Error() string { return e.msg }

func invalidArgument(format string, args ...interface{}) error {
	return &InvalidArgumentError{msg: fmt.Sprintf(format, args...)}
}

// Trajectory is a piecewise-linear path through an intersection: a polyline
// plus a speed limit. It is immutable once constructed.
type Trajectory struct {
	speedLimit float64
	polyline   []Vec2
	cumLength  []float64 // cumLength[i] = arclength from polyline[0] to polyline[i]
	length     float64
}

// NewTrajectory builds a Trajectory from an ordered polyline. The polyline
// must have at least two points, and no two consecutive points may coincide
// (a zero-length segment has no defined heading).
func NewTrajectory(speedLimit float64, polyline []Vec2) (*Trajectory, error) {
	if len(polyline) < 2 {
		return nil, invalidArgument("trajectory polyline needs at least 2 points, got %d", len(polyline))
	}

	cumLength := make([]float64, len(polyline))
	for i := 1; i < len(polyline); i++ {
		seg := polyline[i].Sub(polyline[i-1]).Length()
		if seg == 0 {
			return nil, invalidArgument("trajectory polyline has coincident consecutive points at index %d", i)
		}
		cumLength[i] = cumLength[i-1] + seg
	}

	return &Trajectory{
		speedLimit: speedLimit,
		polyline:   polyline,
		cumLength:  cumLength,
		length:     cumLength[len(cumLength)-1],
	}, nil
}

// SpeedLimit returns the trajectory's posted speed limit.
func (t *Trajectory) SpeedLimit() float64 { return t.speedLimit }

// Length returns the total arclength of the trajectory. Computed once at
// construction and cached thereafter.
func (t *Trajectory) Length() float64 { return t.length }

// PointAt walks the polyline accumulating length until d is reached, and
// linearly interpolates position/heading within the segment containing d.
// For d >= Length(), the final endpoint and final segment heading are
// returned. Fails with InvalidArgumentError when d < 0.
func (t *Trajectory) PointAt(d float64) (Pose, error) {
	if d < 0 {
		return Pose{}, invalidArgument("point_at: arclength must be >= 0, got %f", d)
	}

	if d >= t.length {
		last := len(t.polyline) - 1
		heading := headingOf(t.polyline[last-1], t.polyline[last])
		return Pose{Position: t.polyline[last], Heading: heading}, nil
	}

	// Find the segment [i-1, i] containing d. Trajectories are short
	// (a handful of nodes for a turn), so a linear scan is adequate.
	seg := 1
	for seg < len(t.cumLength) && t.cumLength[seg] < d {
		seg++
	}

	start := t.polyline[seg-1]
	end := t.polyline[seg]
	segStart := t.cumLength[seg-1]
	segLen := t.cumLength[seg] - segStart
	frac := (d - segStart) / segLen

	pos := Vec2{
		X: start.X + (end.X-start.X)*frac,
		Y: start.Y + (end.Y-start.Y)*frac,
	}
	return Pose{Position: pos, Heading: headingOf(start, end)}, nil
}

// StartingPosition returns the entry pose, point_at(0).
func (t *Trajectory) StartingPosition() Pose {
	p, _ := t.PointAt(0)
	return p
}

func headingOf(from, to Vec2) float64 {
	d := to.Sub(from)
	return angle(d)
}
