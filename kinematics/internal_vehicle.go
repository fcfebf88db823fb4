// Package kinematics implements the simulated point vehicle used internally
// by both the intersection manager's feasibility search and a vehicle's own
// decentralised cell-occupancy cache, per spec.md §4.3.
package kinematics

import (
	"errors"
	"math"

	"intersectioncontrol/geometry"
)

// InternalVehicle is an ephemeral simulated vehicle: created for one
// feasibility check or cache computation, walked forward in fixed steps, and
// discarded. It is never shared or persisted.
type InternalVehicle struct {
	Velocity     float64
	Acceleration float64
	Length       float64
	Width        float64

	trajectory    *geometry.Trajectory
	distanceMoved float64
	pose          geometry.Pose
}

// New constructs an InternalVehicle positioned at the start of trajectory.
func New(velocity, acceleration, length, width float64, trajectory *geometry.Trajectory) *InternalVehicle {
	return &InternalVehicle{
		Velocity:     velocity,
		Acceleration: acceleration,
		Length:       length,
		Width:        width,
		trajectory:   trajectory,
		pose:         trajectory.StartingPosition(),
	}
}

// DistanceMoved is the arclength travelled since construction. Invariant:
// always >= 0.
func (v *InternalVehicle) DistanceMoved() float64 { return v.distanceMoved }

// Pose is the vehicle's current position and heading.
func (v *InternalVehicle) Pose() geometry.Pose { return v.pose }

// IsInIntersection reports whether the vehicle has yet to reach the end of
// its trajectory.
func (v *InternalVehicle) IsInIntersection() bool {
	return v.distanceMoved < v.trajectory.Length()
}

// Update advances the vehicle by one timestep: position first, then
// velocity, per spec.md §4.3.
func (v *InternalVehicle) Update(dt float64) error {
	v.distanceMoved += v.Velocity * dt
	pose, err := v.trajectory.PointAt(v.distanceMoved)
	if err != nil {
		return err
	}
	v.pose = pose
	v.Velocity += v.Acceleration * dt
	return nil
}

// CapSpeed zeroes the simulated acceleration once velocity reaches the
// lesser of maxVelocity and the trajectory's own speed limit, matching the
// IM's external speed-capping rule in spec.md §4.3.
func (v *InternalVehicle) CapSpeed(maxVelocity float64) {
	if v.Velocity >= math.Min(maxVelocity, v.trajectory.SpeedLimit()) {
		v.Acceleration = 0
	}
}

// ErrExceededStepBudget is returned by Walk when a simulated crossing does
// not terminate within MaxSteps(...) iterations. This should only occur
// under numerical pathology (e.g. zero or negative effective velocity); it
// guards the bounded predictor loop named in spec.md §9.
var ErrExceededStepBudget = errors.New("kinematics: simulated crossing exceeded its step budget")

// MaxSteps bounds the "while in intersection" predictor loop so it always
// terminates, per spec.md §9: trajectory.length / (minVelocity * dt).
// minVelocity should be the smallest velocity the loop could plausibly sustain;
// callers pass a small positive floor (never zero) to avoid an infinite bound.
func MaxSteps(trajectoryLength, minVelocity, dt float64) int {
	if minVelocity <= 0 || dt <= 0 {
		minVelocity, dt = 0.1, 0.05
	}
	steps := int(math.Ceil(trajectoryLength/(minVelocity*dt))) + 1
	if steps < 1 {
		steps = 1
	}
	return steps
}

// Walk steps the vehicle forward by dt until it leaves the intersection,
// invoking onStep with the pose/distance at each tick (including tick 0,
// before any Update). onStep may mutate the vehicle's Acceleration (e.g. to
// cap speed) and may return stop=true to abort early. Walk returns
// ErrExceededStepBudget if the vehicle is still in the intersection after
// MaxSteps(trajectory.Length(), minVelocity, dt)+1 iterations.
func (v *InternalVehicle) Walk(dt, minVelocityFloor float64, onStep func(v *InternalVehicle) (stop bool)) error {
	budget := MaxSteps(v.trajectory.Length(), minVelocityFloor, dt)
	for i := 0; v.IsInIntersection(); i++ {
		if i > budget {
			return ErrExceededStepBudget
		}
		if stop := onStep(v); stop {
			return nil
		}
		if err := v.Update(dt); err != nil {
			return err
		}
	}
	return nil
}
