// Package simenv is the external collaborator every core agent (im.Manager,
// vehicle.Vehicle, stip.Vehicle) is written against: the Environment/
// IntersectionHandler/VehicleHandler surface of spec.md §6. It also
// provides World, an in-memory reference implementation used by the demo
// driver (cmd/imsim) and by this package's own tests — there is no
// production Environment beyond this one; a real deployment would replace
// World with a handler backed by an actual traffic simulator or live
// vehicle telemetry feed, without the core packages changing at all.
package simenv

import (
	"intersectioncontrol/geometry"
	"intersectioncontrol/vehicle"
)

// TrafficLightPhase is one of the three states a traffic-light baseline
// controller would cycle an intersection through. No
// TrafficLightIntersectionManager is implemented in this package (see
// DESIGN.md); the method exists on IntersectionHandler so the interface
// itself stays complete.
type TrafficLightPhase int

const (
	Green TrafficLightPhase = iota
	Yellow
	Red
)

// IntersectionHandler is the read side of an intersection's static
// geometry, per spec.md §6.
type IntersectionHandler interface {
	IDs() []string
	IntersectionWidth(id string) float64
	IntersectionHeight(id string) float64
	IntersectionPosition(id string) geometry.Vec2
	Trajectories(id string) map[string]*geometry.Trajectory
	SetTrafficLightPhase(id string, phase TrafficLightPhase)
}

// VehicleHandler is the read/write surface vehicles are queried and
// actuated through, per spec.md §6. Together with Environment's CurrentTime
// and IntersectionGeometry it covers both vehicle.Environment and
// stip.Environment; World satisfies both by implementing Environment.
type VehicleHandler interface {
	Approaching(vehicleID string) (intersectionID string, ok bool)
	Departing(vehicleID string) (intersectionID string, ok bool)
	InIntersection(vehicleID string) bool
	Trajectory(vehicleID string) *geometry.Trajectory
	Length(vehicleID string) float64
	Width(vehicleID string) float64
	DrivingDistance(vehicleID string) float64
	Speed(vehicleID string) float64
	Position(vehicleID string) geometry.Vec2
	Direction(vehicleID string) string
	SpeedLimit(vehicleID string) float64
	Acceleration(vehicleID string) float64
	MaxAcceleration(vehicleID string) float64
	MaxDeceleration(vehicleID string) float64
	SetDesiredSpeed(vehicleID string, to float64)
	SetControlMode(vehicleID string, mode vehicle.ControlMode)
}

// Environment is the full collaborator contract, per spec.md §6.
type Environment interface {
	IntersectionHandler
	VehicleHandler

	CurrentTime() float64
	Step(dt float64)
	AddedVehicles() []string
	RemovedVehicles() []string
	Clear()

	// IntersectionGeometry satisfies stip.Environment, which needs the
	// intersection's discretisation parameters (not just its bounding box)
	// to build its own local DiscretisedIntersection cache.
	IntersectionGeometry(intersectionID string) (centre, size geometry.Vec2, granularity int)
}
