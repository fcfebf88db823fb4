// Package vehicle implements ReservationVehicle, the centralised-protocol
// vehicle actor that requests and holds reservations from an
// im.Manager, per spec.md §4.8.
package vehicle

import "intersectioncontrol/geometry"

// ControlMode selects how the environment tracks a vehicle's speed.
type ControlMode int

const (
	// WithSafetyPrecautions lets the environment's own following/collision
	// avoidance govern speed.
	WithSafetyPrecautions ControlMode = iota
	// Manual hands exact speed tracking to the agent; used while a vehicle
	// crosses on its reservation, since automatic following would
	// interfere with the reserved trajectory (spec.md §4.8).
	Manual
)

// Environment is the subset of spec.md §6's vehicle/intersection handler
// surface a ReservationVehicle needs. Implementations are read-mostly: all
// methods except SetDesiredSpeed/SetControlMode are pure getters.
type Environment interface {
	// CurrentTime is the simulation clock in seconds.
	CurrentTime() float64

	// Approaching returns the intersection ahead and true iff the vehicle
	// currently occupies an approach lane.
	Approaching(vehicleID string) (intersectionID string, ok bool)
	// Departing returns the intersection behind and true iff the vehicle
	// is leaving it this step.
	Departing(vehicleID string) (intersectionID string, ok bool)
	// InIntersection reports whether the vehicle is currently inside an
	// intersection footprint.
	InIntersection(vehicleID string) bool

	Trajectory(vehicleID string) *geometry.Trajectory
	Length(vehicleID string) float64
	Width(vehicleID string) float64
	// DrivingDistance is the remaining distance to the intersection entry.
	DrivingDistance(vehicleID string) float64
	Speed(vehicleID string) float64
	Position(vehicleID string) geometry.Vec2
	// Direction is the lane/route tag the vehicle is travelling along;
	// it is the key the destination IM uses to look up the matching
	// Trajectory in its DiscretisedIntersection.
	Direction(vehicleID string) string
	SpeedLimit(vehicleID string) float64
	Acceleration(vehicleID string) float64
	MaxAcceleration(vehicleID string) float64
	MaxDeceleration(vehicleID string) float64

	// SetDesiredSpeed commands a target speed; to = -1 relinquishes speed
	// control back to the environment.
	SetDesiredSpeed(vehicleID string, to float64)
	SetControlMode(vehicleID string, mode ControlMode)
}
