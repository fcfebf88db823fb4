// Package messaging implements the vehicle <-> intersection-manager wire
// protocol (spec.md §4.5-4.6) as a closed tagged union of payload types, and
// the range-limited MessagingUnit all agents exchange them through
// (spec.md §4.4). Replacing the source's untyped message dictionaries with
// concrete Go types is the redesign spec.md §9 calls for: a missed field is
// a compile error, not a runtime key lookup.
package messaging

import "intersectioncontrol/geometry"

// Payload is implemented by every concrete message type. The set is closed:
// Request, ChangeRequest, Cancel, Done (vehicle -> IM); Confirm, Reject,
// Acknowledge, EmergencyStop (IM -> vehicle); Enter, Cross, Exit (STIP
// vehicle -> vehicle).
type Payload interface {
	isPayload()
}

// Envelope is a message as delivered to a mailbox: the sender's address
// plus its payload.
type Envelope struct {
	Sender  string
	Payload Payload
}

// Request is sent by a vehicle without a reservation that wishes to make
// one. Spec.md §4.5.
type Request struct {
	VehicleID       string
	ArrivalTime     float64
	ArrivalLane     string
	ArrivalVelocity float64
	MaxAcceleration float64
	MaxVelocity     float64
	Length          float64
	Width           float64
	Distance        float64
	// IsEmergency is carried per spec.md §6: modelled as a flag only, no
	// authentication. It does not alter IM accept/reject behaviour in this
	// implementation (see SPEC_FULL.md Non-goals).
	IsEmergency bool
}

func (Request) isPayload() {}

// ChangeRequest is sent by a vehicle that already holds a reservation and
// wishes to replace it. It implicitly cancels ReservationID before the new
// request is evaluated (spec.md §4.5, §4.7).
type ChangeRequest struct {
	Request
	ReservationID string
}

func (ChangeRequest) isPayload() {}

// Cancel is sent by a vehicle that no longer desires its reservation.
// Documented for protocol symmetry; spec.md §9 notes it is not emitted by
// this implementation's vehicle agents.
type Cancel struct {
	VehicleID     string
	ReservationID string
}

func (Cancel) isPayload() {}

// Done is sent by a vehicle after it departs the intersection, releasing
// its reservation.
type Done struct {
	VehicleID     string
	ReservationID string
}

func (Done) isPayload() {}

// Confirm is the IM's reply granting a reservation. A vehicle may cross
// provided it actually arrives within [EarlyError, LateError].
type Confirm struct {
	ReservationID   string
	ArrivalTime     float64
	ArrivalVelocity float64
	EarlyError      float64
	LateError       float64
	Accelerate      bool
}

func (Confirm) isPayload() {}

// Reject is the IM's reply denying a request. No new request from this
// vehicle will be considered before Timeout.
type Reject struct {
	Timeout float64
}

func (Reject) isPayload() {}

// Acknowledge confirms receipt of a Cancel or Done message.
type Acknowledge struct {
	ReservationID string
}

func (Acknowledge) isPayload() {}

// EmergencyStop is a terminal halt command. Spec.md §4.6/§9: the message
// kind and receiver behaviour are part of the protocol, but this
// implementation never emits one.
type EmergencyStop struct{}

func (EmergencyStop) isPayload() {}

// Enter is broadcast by a SpaceTimeVehicle while approaching, per spec.md
// §4.9.
type Enter struct {
	ID              string
	ArrivalTime     float64
	ExitTime        float64
	TrajectoryCells map[geometry.Tile]struct{}
	Lane            string
	Distance        float64
}

func (Enter) isPayload() {}

// Cross is broadcast by a SpaceTimeVehicle once it has actually entered the
// intersection; ArrivalTime is the real arrival time and Distance is 0.
type Cross struct {
	ID              string
	ArrivalTime     float64
	ExitTime        float64
	TrajectoryCells map[geometry.Tile]struct{}
	Lane            string
	Distance        float64
}

func (Cross) isPayload() {}

// Exit is broadcast by a SpaceTimeVehicle on departure.
type Exit struct {
	ID string
}

func (Exit) isPayload() {}
