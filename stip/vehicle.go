package stip

import (
	"log"
	"math"

	"intersectioncontrol/geometry"
	"intersectioncontrol/kinematics"
	"intersectioncontrol/messaging"
)

// State is one node of the SpaceTimeVehicle state machine (spec.md §4.9).
type State int

const (
	Exit State = iota
	Approach
	Enter
)

func (s State) String() string {
	switch s {
	case Exit:
		return "EXIT"
	case Approach:
		return "APPROACH"
	case Enter:
		return "ENTER"
	default:
		return "UNKNOWN"
	}
}

// RecalculateThreshold is how far (seconds) a vehicle's arrival-time
// estimate must drift before its cached trajectory-cell sweep is rebuilt,
// per spec.md §4.9.
const RecalculateThreshold = 1.0

// cellSweepBufferX/Y pad the constant-speed-limit sweep used to build the
// cached trajectory cell set, mirroring the reservation search's own
// safety buffer (reservation.DefaultParams) though this package has no
// dependency on reservation itself.
const cellSweepBufferX = 0.5
const cellSweepBufferY = 1.0

// Vehicle is the decentralised-protocol agent: no IM, no reservation —
// conflicts are negotiated directly between vehicles by broadcasting
// intended trajectory cells and yielding to whichever peer has priority.
type Vehicle struct {
	ID   string
	Env  Environment
	Unit messaging.MessagingUnit

	State          State
	intersectionID string
	grid           *geometry.DiscretisedIntersection
	cells          map[geometry.Tile]struct{}
	arrivalTime    float64
	exitTime       float64

	lastSentDistance float64
	targetSpeed      float64
	hasTargetSpeed   bool
}

// New constructs a Vehicle in the EXIT (idle) state.
func New(id string, env Environment, unit messaging.MessagingUnit) *Vehicle {
	return &Vehicle{ID: id, Env: env, Unit: unit, State: Exit}
}

// Step runs one synchronous tick: react to peers' broadcasts, apply any
// state transition, then broadcast this vehicle's own status.
func (v *Vehicle) Step(now float64) {
	v.handleMessages(now)

	switch v.State {
	case Exit:
		if id, ok := v.Env.Approaching(v.ID); ok {
			v.enterApproach(now, id)
		}
	case Approach:
		if v.Env.InIntersection(v.ID) {
			v.State = Enter
		} else {
			v.maybeRecompute(now)
		}
	case Enter:
		if _, ok := v.Env.Departing(v.ID); ok {
			v.State = Exit
			v.reset()
		}
	}

	v.broadcastCurrent(now)
}

func (v *Vehicle) enterApproach(now float64, intersectionID string) {
	v.intersectionID = intersectionID
	v.State = Approach
	v.recomputeCells(now)
}

func (v *Vehicle) reset() {
	v.intersectionID = ""
	v.grid = nil
	v.cells = nil
	v.arrivalTime = 0
	v.exitTime = 0
	v.lastSentDistance = 0
	if v.hasTargetSpeed {
		v.Env.SetDesiredSpeed(v.ID, -1)
		v.hasTargetSpeed = false
	}
}

func (v *Vehicle) broadcastCurrent(now float64) {
	switch v.State {
	case Exit:
		v.Unit.Broadcast(messaging.Exit{ID: v.ID})
	case Approach:
		v.lastSentDistance = v.Env.DrivingDistance(v.ID)
		v.Unit.Broadcast(messaging.Enter{
			ID:              v.ID,
			ArrivalTime:     v.arrivalTime,
			ExitTime:        v.exitTime,
			TrajectoryCells: v.cells,
			Lane:            v.Env.Direction(v.ID),
			Distance:        v.lastSentDistance,
		})
	case Enter:
		v.lastSentDistance = 0
		v.Unit.Broadcast(messaging.Cross{
			ID:              v.ID,
			ArrivalTime:     now,
			ExitTime:        v.exitTime,
			TrajectoryCells: v.cells,
			Lane:            v.Env.Direction(v.ID),
			Distance:        0,
		})
	}
}

// recomputeCells rebuilds the local DiscretisedIntersection and the cached
// tile set swept along the trajectory at its speed limit, and re-derives
// the arrival/exit time estimates. Malformed intersection metadata is a
// caller bug (InvalidArgument, spec.md §7): it is not recoverable here and
// panics rather than silently caching an empty, unsafe tile set.
func (v *Vehicle) recomputeCells(now float64) {
	centre, size, granularity := v.Env.IntersectionGeometry(v.intersectionID)
	trajectory := v.Env.Trajectory(v.ID)
	di, err := geometry.NewDiscretisedIntersection(centre, size, granularity,
		map[string]*geometry.Trajectory{v.Env.Direction(v.ID): trajectory})
	if err != nil {
		panic(err)
	}
	v.grid = di
	v.cells = v.sweepCells(trajectory)
	v.updateEstimate(now, trajectory)
}

func (v *Vehicle) sweepCells(trajectory *geometry.Trajectory) map[geometry.Tile]struct{} {
	speedLimit := v.Env.SpeedLimit(v.ID)
	iv := kinematics.New(speedLimit, 0, v.Env.Length(v.ID), v.Env.Width(v.ID), trajectory)
	buffer := geometry.Buffer{X: cellSweepBufferX, Y: cellSweepBufferY}
	cells := make(map[geometry.Tile]struct{})
	if err := iv.Walk(0.1, 0.1, func(step *kinematics.InternalVehicle) bool {
		for tile := range v.grid.TilesSwept(step.Pose(), step.Length, step.Width, buffer) {
			cells[tile] = struct{}{}
		}
		return false
	}); err != nil {
		log.Printf("stip[%s]: cell sweep did not terminate cleanly: %v", v.ID, err)
	}
	return cells
}

func (v *Vehicle) maybeRecompute(now float64) {
	newArrival := v.estimateArrival(now)
	if math.Abs(newArrival-v.arrivalTime) > RecalculateThreshold {
		v.recomputeCells(now)
		return
	}
	v.updateEstimate(now, v.Env.Trajectory(v.ID))
}

func (v *Vehicle) estimateArrival(now float64) float64 {
	speed := v.Env.Speed(v.ID)
	if speed <= 0 {
		speed = 0.1
	}
	return now + v.Env.DrivingDistance(v.ID)/speed
}

func (v *Vehicle) updateEstimate(now float64, trajectory *geometry.Trajectory) {
	v.arrivalTime = v.estimateArrival(now)
	v.exitTime = v.arrivalTime + trajectory.Length()/v.Env.SpeedLimit(v.ID)
}

func (v *Vehicle) handleMessages(now float64) {
	for _, env := range v.Unit.Receive() {
		switch msg := env.Payload.(type) {
		case messaging.Enter:
			v.considerConflict(now, msg.ID, msg.ArrivalTime, msg.ExitTime, msg.TrajectoryCells, msg.Distance)
		case messaging.Cross:
			v.considerConflict(now, msg.ID, msg.ArrivalTime, msg.ExitTime, msg.TrajectoryCells, msg.Distance)
		case messaging.Exit:
			// The sender has left; nothing to reconcile against it.
		default:
			log.Printf("stip[%s]: ignoring unexpected message %T from %s", v.ID, msg, env.Sender)
		}
	}
}

// considerConflict implements spec.md §4.9's "on receiving an ENTER/CROSS
// while in APPROACH" rule: only evaluated while approaching, and only
// acted upon when both vehicles' cells and time windows overlap and this
// vehicle lacks priority.
func (v *Vehicle) considerConflict(now float64, otherID string, otherArrival, otherExit float64, otherCells map[geometry.Tile]struct{}, otherDistance float64) {
	if v.State != Approach {
		return
	}
	if !cellsOverlap(v.cells, otherCells) {
		return
	}
	if !(math.Min(v.exitTime, otherExit) > math.Max(v.arrivalTime, otherArrival)) {
		return
	}
	if v.hasPriority(otherID, otherDistance) {
		return
	}

	denom := otherExit - now
	if denom <= 0 {
		return
	}
	speedToMiss := v.Env.DrivingDistance(v.ID) / denom
	current := v.targetSpeed
	if !v.hasTargetSpeed {
		current = v.Env.Speed(v.ID)
	}
	if speedToMiss < current {
		v.targetSpeed = speedToMiss
		v.hasTargetSpeed = true
		v.Env.SetDesiredSpeed(v.ID, speedToMiss)
	}
}

// hasPriority reports whether this vehicle outranks a peer: the smaller
// last-sent distance wins, ties broken lexicographically by vehicle id.
func (v *Vehicle) hasPriority(otherID string, otherDistance float64) bool {
	if v.lastSentDistance != otherDistance {
		return v.lastSentDistance < otherDistance
	}
	return v.ID < otherID
}

func cellsOverlap(a, b map[geometry.Tile]struct{}) bool {
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	for tile := range small {
		if _, ok := large[tile]; ok {
			return true
		}
	}
	return false
}
