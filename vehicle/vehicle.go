package vehicle

import (
	"log"
	"math"

	"intersectioncontrol/messaging"
)

// State is one node of the ReservationVehicle state machine (spec.md §4.8).
type State int

const (
	Default State = iota
	ApproachingNoRes
	Waiting
	ApproachingWithRes
	InIntersection
)

func (s State) String() string {
	switch s {
	case Default:
		return "DEFAULT"
	case ApproachingNoRes:
		return "APPROACHING_NO_RES"
	case Waiting:
		return "WAITING"
	case ApproachingWithRes:
		return "APPROACHING_WITH_RES"
	case InIntersection:
		return "IN_INTERSECTION"
	default:
		return "UNKNOWN"
	}
}

// Reservation is the vehicle-side copy of a confirmed crossing window.
type Reservation struct {
	ID              string
	ArrivalTime     float64
	ArrivalVelocity float64
	EarlyError      float64
	LateError       float64
	Accelerate      bool
}

// Vehicle is the centralised-protocol agent: it requests a reservation from
// whichever IM it is approaching, waits if necessary, crosses under the
// granted window, and reports Done on departure.
type Vehicle struct {
	ID   string
	Env  Environment
	Unit messaging.MessagingUnit

	State          State
	Reservation    *Reservation
	Timeout        float64
	TargetSpeed    float64
	hasTargetSpeed bool
	ApproachingIM  string
	WasJustWaiting bool
	halted         bool
}

// New constructs a Vehicle in the DEFAULT state.
func New(id string, env Environment, unit messaging.MessagingUnit) *Vehicle {
	return &Vehicle{ID: id, Env: env, Unit: unit, State: Default}
}

// Step runs one synchronous tick: drain the mailbox, apply any resulting
// state transition, then the current state's scheduled actions. now is the
// simulation clock (seconds); it must equal Env.CurrentTime().
func (v *Vehicle) Step(now float64) {
	v.handleMessages()
	if v.halted {
		return
	}
	switch v.State {
	case Default:
		v.stepDefault()
		if v.State == ApproachingNoRes {
			v.stepApproachingNoRes(now)
		}
	case ApproachingNoRes:
		v.stepApproachingNoRes(now)
	case Waiting:
		v.stepWaiting(now)
	case ApproachingWithRes:
		v.stepApproachingWithRes(now)
	case InIntersection:
		v.stepInIntersection()
	}
}

func (v *Vehicle) stepDefault() {
	id, ok := v.Env.Approaching(v.ID)
	if !ok {
		return
	}
	for _, addr := range v.Unit.Discover() {
		if addr == id {
			v.ApproachingIM = id
			v.State = ApproachingNoRes
			return
		}
	}
}

func (v *Vehicle) stepApproachingNoRes(now float64) {
	if v.Env.DrivingDistance(v.ID) <= v.distanceToStop()+1 {
		v.State = Waiting
	}
	if now >= v.Timeout {
		v.sendRequest(now, "")
	}
}

func (v *Vehicle) stepWaiting(now float64) {
	if now >= v.Timeout {
		v.sendRequest(now, "")
	}
}

func (v *Vehicle) stepApproachingWithRes(now float64) {
	if v.Env.InIntersection(v.ID) {
		v.State = InIntersection
		v.Env.SetControlMode(v.ID, Manual)
		return
	}

	if v.WasJustWaiting || now < v.Timeout || v.Reservation == nil {
		return
	}
	expectedArrival := v.approximateArrivalTime(now)
	if expectedArrival >= v.Reservation.EarlyError && expectedArrival <= v.Reservation.LateError {
		return
	}
	drivingDistance := v.Env.DrivingDistance(v.ID)
	if drivingDistance <= v.distanceToStop() {
		// No braking room left to reconsider; ride out the existing
		// reservation rather than risk a stop inside the intersection.
		return
	}

	reservationID := v.Reservation.ID
	v.sendRequest(now, reservationID)
	v.Reservation = nil
	v.WasJustWaiting = false
	if drivingDistance <= v.distanceToStop()+1 {
		v.State = Waiting
	} else {
		v.State = ApproachingNoRes
	}
}

func (v *Vehicle) stepInIntersection() {
	if v.Reservation != nil && v.Reservation.Accelerate {
		v.Env.SetDesiredSpeed(v.ID, v.Env.SpeedLimit(v.ID))
	}
	if _, ok := v.Env.Departing(v.ID); !ok {
		return
	}
	reservationID := ""
	if v.Reservation != nil {
		reservationID = v.Reservation.ID
	}
	_ = v.Unit.Send(v.ApproachingIM, messaging.Done{VehicleID: v.ID, ReservationID: reservationID})

	v.Env.SetControlMode(v.ID, WithSafetyPrecautions)
	v.Env.SetDesiredSpeed(v.ID, -1)
	v.State = Default
	v.Reservation = nil
	v.hasTargetSpeed = false
	v.TargetSpeed = 0
	v.ApproachingIM = ""
	v.Timeout = 0
	v.WasJustWaiting = false
}

func (v *Vehicle) sendRequest(now float64, changingReservationID string) {
	req := messaging.Request{
		VehicleID:       v.ID,
		ArrivalTime:     v.approximateArrivalTime(now),
		ArrivalLane:     v.Env.Direction(v.ID),
		ArrivalVelocity: v.approximateArrivalVelocity(),
		MaxAcceleration: v.Env.MaxAcceleration(v.ID),
		MaxVelocity:     v.Env.SpeedLimit(v.ID),
		Length:          v.Env.Length(v.ID),
		Width:           v.Env.Width(v.ID),
		Distance:        v.Env.DrivingDistance(v.ID),
	}
	if changingReservationID != "" {
		_ = v.Unit.Send(v.ApproachingIM, messaging.ChangeRequest{Request: req, ReservationID: changingReservationID})
		return
	}
	_ = v.Unit.Send(v.ApproachingIM, req)
}

func (v *Vehicle) handleMessages() {
	for _, env := range v.Unit.Receive() {
		switch msg := env.Payload.(type) {
		case messaging.Confirm:
			v.handleConfirm(msg)
		case messaging.Reject:
			v.handleReject(msg)
		case messaging.Acknowledge:
			log.Printf("vehicle[%s]: acknowledged %s", v.ID, msg.ReservationID)
		case messaging.EmergencyStop:
			v.halted = true
			v.Env.SetDesiredSpeed(v.ID, 0)
		default:
			log.Printf("vehicle[%s]: ignoring unexpected message %T from %s", v.ID, msg, env.Sender)
		}
	}
}

func (v *Vehicle) handleConfirm(msg messaging.Confirm) {
	v.Reservation = &Reservation{
		ID:              msg.ReservationID,
		ArrivalTime:     msg.ArrivalTime,
		ArrivalVelocity: msg.ArrivalVelocity,
		EarlyError:      msg.EarlyError,
		LateError:       msg.LateError,
		Accelerate:      msg.Accelerate,
	}
	switch v.State {
	case ApproachingNoRes:
		v.WasJustWaiting = false
		v.State = ApproachingWithRes
	case Waiting:
		v.WasJustWaiting = true
		v.State = ApproachingWithRes
		v.TargetSpeed = msg.ArrivalVelocity
		v.hasTargetSpeed = true
		v.Env.SetDesiredSpeed(v.ID, v.TargetSpeed)
	case ApproachingWithRes:
		// A Change-Request was confirmed; stay in place with the new
		// reservation already installed above.
	}
}

func (v *Vehicle) handleReject(msg messaging.Reject) {
	v.Timeout = msg.Timeout
	if v.State == Waiting {
		return
	}
	current := v.Env.Speed(v.ID)
	v.TargetSpeed = math.Max(0.8*current, 2.0)
	v.hasTargetSpeed = true
	v.Env.SetDesiredSpeed(v.ID, v.TargetSpeed)
}

func (v *Vehicle) distanceToStop() float64 {
	maxDecel := v.Env.MaxDeceleration(v.ID)
	if maxDecel <= 0 {
		return math.Inf(1)
	}
	speed := v.Env.Speed(v.ID)
	return speed * speed / (2 * maxDecel)
}

func (v *Vehicle) approximateArrivalTime(now float64) float64 {
	drivingDistance := v.Env.DrivingDistance(v.ID)
	if v.State == Waiting || (v.hasTargetSpeed && v.TargetSpeed == 0) {
		maxAccel := v.Env.MaxAcceleration(v.ID)
		return now + math.Sqrt(2*drivingDistance/maxAccel)
	}
	speed := v.Env.Speed(v.ID)
	if v.hasTargetSpeed {
		speed = v.TargetSpeed
	}
	if speed <= 0 {
		maxAccel := v.Env.MaxAcceleration(v.ID)
		return now + math.Sqrt(2*drivingDistance/maxAccel)
	}
	return now + drivingDistance/speed
}

func (v *Vehicle) approximateArrivalVelocity() float64 {
	if v.State == Waiting {
		maxAccel := v.Env.MaxAcceleration(v.ID)
		drivingDistance := v.Env.DrivingDistance(v.ID)
		return math.Sqrt(2 * drivingDistance * maxAccel)
	}
	result := math.Min(v.Env.Speed(v.ID), v.Env.SpeedLimit(v.ID))
	if v.hasTargetSpeed {
		result = math.Min(result, v.TargetSpeed)
	}
	return result
}
