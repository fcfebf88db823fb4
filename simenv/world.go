package simenv

import (
	"fmt"
	"math"

	"intersectioncontrol/geometry"
	"intersectioncontrol/vehicle"
)

// IntersectionConfig is the static geometry of one intersection: its
// bounding square and the named lane trajectories that cross it.
type IntersectionConfig struct {
	ID          string
	Centre      geometry.Vec2
	Size        geometry.Vec2
	Granularity int
	Lanes       map[string]*geometry.Trajectory
}

// VehicleConfig spawns one vehicle on an approach to an intersection.
// ApproachDistance is how far before the lane's trajectory start the
// vehicle begins (the "driving distance" a fresh vehicle reports).
type VehicleConfig struct {
	ID               string
	IntersectionID   string
	Lane             string
	Length, Width    float64
	SpeedLimit       float64
	MaxAcceleration  float64
	MaxDeceleration  float64
	ApproachDistance float64
	InitialSpeed     float64
}

type phase int

const (
	phaseApproach phase = iota
	phaseCrossing
	phaseDeparting
)

// vehicleRecord is World's ground-truth physical state for one vehicle. It
// deliberately does not reuse kinematics.InternalVehicle: that type is
// documented as an ephemeral, throwaway predictor (one feasibility check
// or cache build, then discarded), whereas a World vehicle is persistent
// across the whole crossing and needs a pre-intersection approach phase
// kinematics.InternalVehicle has no notion of. The integration formula
// (position from the old velocity, then velocity from acceleration) is the
// same one kinematics.Update uses, applied here across the approach
// segment too.
type vehicleRecord struct {
	cfg       VehicleConfig
	crossTraj *geometry.Trajectory
	entryPose geometry.Pose

	distanceMoved float64
	velocity      float64
	acceleration  float64
	phase         phase

	desiredSpeed float64
	controlMode  vehicle.ControlMode
}

func (rec *vehicleRecord) pose() geometry.Pose {
	if rec.distanceMoved < rec.cfg.ApproachDistance {
		remaining := rec.cfg.ApproachDistance - rec.distanceMoved
		dir := geometry.Vec2{X: math.Cos(rec.entryPose.Heading), Y: math.Sin(rec.entryPose.Heading)}
		return geometry.Pose{
			Position: rec.entryPose.Position.Sub(dir.Scale(remaining)),
			Heading:  rec.entryPose.Heading,
		}
	}
	pose, err := rec.crossTraj.PointAt(rec.distanceMoved - rec.cfg.ApproachDistance)
	if err != nil {
		panic(err)
	}
	return pose
}

// World is the in-memory reference Environment: a fixed set of
// intersections plus the vehicles currently approaching, crossing, or
// departing them, stepped forward in fixed synchronous ticks (spec.md §5 —
// a single-threaded cooperative model, the same one im.Manager and
// vehicle.Vehicle assume).
type World struct {
	now           float64
	intersections map[string]*IntersectionConfig
	lightPhases   map[string]TrafficLightPhase

	vehicles map[string]*vehicleRecord
	order    []string

	added   []string
	removed []string
}

// NewWorld returns an empty World at simulation time 0.
func NewWorld() *World {
	return &World{
		intersections: make(map[string]*IntersectionConfig),
		lightPhases:   make(map[string]TrafficLightPhase),
		vehicles:      make(map[string]*vehicleRecord),
	}
}

// AddIntersection registers an intersection's static geometry.
func (w *World) AddIntersection(cfg IntersectionConfig) {
	w.intersections[cfg.ID] = &cfg
}

// AddVehicle spawns a vehicle on its configured lane, ApproachDistance
// metres before the intersection. It is immediately visible to
// AddedVehicles() and to every VehicleHandler query.
func (w *World) AddVehicle(cfg VehicleConfig) error {
	isec, ok := w.intersections[cfg.IntersectionID]
	if !ok {
		return fmt.Errorf("simenv: unknown intersection %q", cfg.IntersectionID)
	}
	traj, ok := isec.Lanes[cfg.Lane]
	if !ok {
		return fmt.Errorf("simenv: intersection %q has no lane %q", cfg.IntersectionID, cfg.Lane)
	}

	rec := &vehicleRecord{
		cfg:          cfg,
		crossTraj:    traj,
		entryPose:    traj.StartingPosition(),
		velocity:     cfg.InitialSpeed,
		phase:        phaseApproach,
		desiredSpeed: -1,
		controlMode:  vehicle.WithSafetyPrecautions,
	}
	if cfg.ApproachDistance <= 0 {
		rec.phase = phaseCrossing
	}
	w.vehicles[cfg.ID] = rec
	w.order = append(w.order, cfg.ID)
	w.added = append(w.added, cfg.ID)
	return nil
}

// Step advances every active vehicle's physics by dt and the simulation
// clock by dt. A vehicle that reaches the end of its lane transitions to
// "departing" for exactly one Step call (so agents can observe
// Departing() == true and react) and is then removed at the start of the
// following Step, reported via RemovedVehicles().
func (w *World) Step(dt float64) {
	w.added = nil
	w.removed = nil

	var kept []string
	for _, id := range w.order {
		rec := w.vehicles[id]
		if rec.phase == phaseDeparting {
			delete(w.vehicles, id)
			w.removed = append(w.removed, id)
			continue
		}
		kept = append(kept, id)
	}
	w.order = kept

	for _, id := range w.order {
		w.advance(w.vehicles[id], dt)
	}
	w.now += dt
}

func (w *World) advance(rec *vehicleRecord, dt float64) {
	target := rec.cfg.SpeedLimit
	if rec.desiredSpeed >= 0 {
		target = rec.desiredSpeed
	}

	delta := target - rec.velocity
	var accel float64
	switch {
	case delta > 0:
		accel = math.Min(delta/dt, rec.cfg.MaxAcceleration)
	case delta < 0:
		accel = math.Max(delta/dt, -rec.cfg.MaxDeceleration)
	}
	rec.acceleration = accel

	rec.distanceMoved += rec.velocity * dt
	rec.velocity += accel * dt
	if rec.velocity < 0 {
		rec.velocity = 0
	}

	total := rec.cfg.ApproachDistance + rec.crossTraj.Length()
	switch {
	case rec.distanceMoved >= total:
		rec.phase = phaseDeparting
	case rec.distanceMoved >= rec.cfg.ApproachDistance:
		rec.phase = phaseCrossing
	default:
		rec.phase = phaseApproach
	}
}

func (w *World) mustVehicle(vehicleID string) *vehicleRecord {
	rec, ok := w.vehicles[vehicleID]
	if !ok {
		panic(fmt.Sprintf("simenv: unknown vehicle %q", vehicleID))
	}
	return rec
}

// --- IntersectionHandler ---

func (w *World) IDs() []string {
	ids := make([]string, 0, len(w.intersections))
	for id := range w.intersections {
		ids = append(ids, id)
	}
	return ids
}

func (w *World) IntersectionWidth(id string) float64 {
	return w.intersections[id].Size.X
}

func (w *World) IntersectionHeight(id string) float64 {
	return w.intersections[id].Size.Y
}

func (w *World) IntersectionPosition(id string) geometry.Vec2 {
	return w.intersections[id].Centre
}
func (w *World) Trajectories(id string) map[string]*geometry.Trajectory {
	return w.intersections[id].Lanes
}
func (w *World) SetTrafficLightPhase(id string, phase TrafficLightPhase) {
	w.lightPhases[id] = phase
}

// IntersectionGeometry satisfies stip.Environment.
func (w *World) IntersectionGeometry(intersectionID string) (centre, size geometry.Vec2, granularity int) {
	isec := w.intersections[intersectionID]
	return isec.Centre, isec.Size, isec.Granularity
}

// --- VehicleHandler ---

func (w *World) Approaching(vehicleID string) (string, bool) {
	rec, ok := w.vehicles[vehicleID]
	if !ok || rec.phase != phaseApproach {
		return "", false
	}
	return rec.cfg.IntersectionID, true
}

func (w *World) Departing(vehicleID string) (string, bool) {
	rec, ok := w.vehicles[vehicleID]
	if !ok || rec.phase != phaseDeparting {
		return "", false
	}
	return rec.cfg.IntersectionID, true
}

func (w *World) InIntersection(vehicleID string) bool {
	rec, ok := w.vehicles[vehicleID]
	return ok && rec.phase == phaseCrossing
}

func (w *World) Trajectory(vehicleID string) *geometry.Trajectory {
	return w.mustVehicle(vehicleID).crossTraj
}
func (w *World) Length(vehicleID string) float64 {
	return w.mustVehicle(vehicleID).cfg.Length
}

func (w *World) Width(vehicleID string) float64 {
	return w.mustVehicle(vehicleID).cfg.Width
}

func (w *World) DrivingDistance(vehicleID string) float64 {
	rec := w.mustVehicle(vehicleID)
	remaining := rec.cfg.ApproachDistance - rec.distanceMoved
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (w *World) Speed(vehicleID string) float64 {
	return w.mustVehicle(vehicleID).velocity
}

func (w *World) Position(vehicleID string) geometry.Vec2 {
	return w.mustVehicle(vehicleID).pose().Position
}

func (w *World) Direction(vehicleID string) string {
	return w.mustVehicle(vehicleID).cfg.Lane
}

func (w *World) SpeedLimit(vehicleID string) float64 {
	return w.mustVehicle(vehicleID).cfg.SpeedLimit
}

func (w *World) Acceleration(vehicleID string) float64 {
	return w.mustVehicle(vehicleID).acceleration
}
func (w *World) MaxAcceleration(vehicleID string) float64 {
	return w.mustVehicle(vehicleID).cfg.MaxAcceleration
}
func (w *World) MaxDeceleration(vehicleID string) float64 {
	return w.mustVehicle(vehicleID).cfg.MaxDeceleration
}

func (w *World) SetDesiredSpeed(vehicleID string, to float64) {
	w.mustVehicle(vehicleID).desiredSpeed = to
}
func (w *World) SetControlMode(vehicleID string, mode vehicle.ControlMode) {
	w.mustVehicle(vehicleID).controlMode = mode
}

// --- Environment ---

func (w *World) CurrentTime() float64 {
	return w.now
}

func (w *World) AddedVehicles() []string {
	return w.added
}

func (w *World) RemovedVehicles() []string {
	return w.removed
}

// Clear resets the World to empty, per spec.md §6's clear().
func (w *World) Clear() {
	w.now = 0
	w.intersections = make(map[string]*IntersectionConfig)
	w.lightPhases = make(map[string]TrafficLightPhase)
	w.vehicles = make(map[string]*vehicleRecord)
	w.order = nil
	w.added = nil
	w.removed = nil
}
