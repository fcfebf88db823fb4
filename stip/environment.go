// Package stip implements the decentralised Space-Time Intersection
// Protocol alternative to the centralised im/vehicle pair: vehicles
// broadcast their intended trajectory cells and self-arbitrate conflicts
// by distance-to-intersection priority instead of deferring to an
// IntersectionManager, per spec.md §4.9.
package stip

import "intersectioncontrol/geometry"

// Environment is the subset of spec.md §6's handler surface a
// SpaceTimeVehicle needs. It has no notion of reservations: no
// set_control_mode, since nothing here ever hands speed control away from
// the vehicle itself.
type Environment interface {
	CurrentTime() float64

	Approaching(vehicleID string) (intersectionID string, ok bool)
	Departing(vehicleID string) (intersectionID string, ok bool)
	InIntersection(vehicleID string) bool

	Trajectory(vehicleID string) *geometry.Trajectory
	Length(vehicleID string) float64
	Width(vehicleID string) float64
	DrivingDistance(vehicleID string) float64
	Speed(vehicleID string) float64
	Direction(vehicleID string) string
	SpeedLimit(vehicleID string) float64

	// IntersectionGeometry returns the metadata needed to build a local
	// DiscretisedIntersection for cell-sweep caching.
	IntersectionGeometry(intersectionID string) (centre, size geometry.Vec2, granularity int)

	SetDesiredSpeed(vehicleID string, to float64)
}
