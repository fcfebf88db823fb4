package vehicle

import (
	"testing"

	"intersectioncontrol/geometry"
	"intersectioncontrol/messaging"

	. "github.com/smartystreets/goconvey/convey"
)

// fakeEnv is a minimal, directly-settable Environment double.
type fakeEnv struct {
	currentTime     float64
	approachingID   string
	approachingOK   bool
	departingID     string
	departingOK     bool
	inIntersection  bool
	trajectory      *geometry.Trajectory
	length, width   float64
	drivingDistance float64
	speed           float64
	position        geometry.Vec2
	direction       string
	speedLimit      float64
	acceleration    float64
	maxAcceleration float64
	maxDeceleration float64

	desiredSpeed float64
	controlMode  ControlMode
}

func (e *fakeEnv) CurrentTime() float64                      { return e.currentTime }
func (e *fakeEnv) Approaching(string) (string, bool)         { return e.approachingID, e.approachingOK }
func (e *fakeEnv) Departing(string) (string, bool)           { return e.departingID, e.departingOK }
func (e *fakeEnv) InIntersection(string) bool                { return e.inIntersection }
func (e *fakeEnv) Trajectory(string) *geometry.Trajectory    { return e.trajectory }
func (e *fakeEnv) Length(string) float64                     { return e.length }
func (e *fakeEnv) Width(string) float64                      { return e.width }
func (e *fakeEnv) DrivingDistance(string) float64            { return e.drivingDistance }
func (e *fakeEnv) Speed(string) float64                      { return e.speed }
func (e *fakeEnv) Position(string) geometry.Vec2             { return e.position }
func (e *fakeEnv) Direction(string) string                   { return e.direction }
func (e *fakeEnv) SpeedLimit(string) float64                 { return e.speedLimit }
func (e *fakeEnv) Acceleration(string) float64               { return e.acceleration }
func (e *fakeEnv) MaxAcceleration(string) float64            { return e.maxAcceleration }
func (e *fakeEnv) MaxDeceleration(string) float64            { return e.maxDeceleration }
func (e *fakeEnv) SetDesiredSpeed(_ string, to float64)      { e.desiredSpeed = to }
func (e *fakeEnv) SetControlMode(_ string, mode ControlMode) { e.controlMode = mode }

type fakeUnit struct {
	addr     string
	inbox    []messaging.Envelope
	sent     []messaging.Envelope
	reachIDs []string
}

func (f *fakeUnit) Address() string    { return f.addr }
func (f *fakeUnit) Discover() []string { return f.reachIDs }
func (f *fakeUnit) Send(address string, payload messaging.Payload) error {
	f.sent = append(f.sent, messaging.Envelope{Sender: address, Payload: payload})
	return nil
}
func (f *fakeUnit) Broadcast(messaging.Payload) {}
func (f *fakeUnit) Receive() []messaging.Envelope {
	msgs := f.inbox
	f.inbox = nil
	return msgs
}
func (f *fakeUnit) Destroy() {}

func (f *fakeUnit) last() messaging.Payload {
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1].Payload
}

func TestVehicleStateMachine(t *testing.T) {
	Convey("Given a vehicle approaching an intersection it can discover", t, func() {
		env := &fakeEnv{
			approachingID: "im-1", approachingOK: true,
			drivingDistance: 100, speed: 10, speedLimit: 15,
			maxAcceleration: 5, maxDeceleration: 5,
			direction: "WE", length: 5, width: 2,
		}
		unit := &fakeUnit{addr: "car-1", reachIDs: []string{"im-1"}}
		v := New("car-1", env, unit)

		Convey("it transitions to APPROACHING_NO_RES and requests once timeout allows", func() {
			v.Step(0)
			So(v.State, ShouldEqual, ApproachingNoRes)
			req, ok := unit.last().(messaging.Request)
			So(ok, ShouldBeTrue)
			So(req.ArrivalLane, ShouldEqual, "WE")
			So(req.VehicleID, ShouldEqual, "car-1")
		})

		Convey("receiving Confirm while APPROACHING_NO_RES moves to APPROACHING_WITH_RES", func() {
			v.Step(0)
			unit.inbox = []messaging.Envelope{{Sender: "im-1", Payload: messaging.Confirm{
				ReservationID: "car-1-1", ArrivalTime: 10, ArrivalVelocity: 10,
				EarlyError: 9.5, LateError: 10.5, Accelerate: true,
			}}}
			v.Step(0)
			So(v.State, ShouldEqual, ApproachingWithRes)
			So(v.Reservation, ShouldNotBeNil)
			So(v.Reservation.ID, ShouldEqual, "car-1-1")
		})

		Convey("close driving distance moves it to WAITING", func() {
			env.drivingDistance = 1
			env.speed = 0
			v.Step(0)
			So(v.State, ShouldEqual, Waiting)
		})

		Convey("a Reject stores the timeout and lowers target speed", func() {
			v.Step(0)
			unit.inbox = []messaging.Envelope{{Sender: "im-1", Payload: messaging.Reject{Timeout: 5}}}
			v.Step(1)
			So(v.Timeout, ShouldEqual, 5.0)
			So(env.desiredSpeed, ShouldEqual, 8.0) // max(0.8*10, 2)
		})

		Convey("entering the intersection with an accelerate reservation sets control mode and desired speed", func() {
			v.Step(0)
			unit.inbox = []messaging.Envelope{{Sender: "im-1", Payload: messaging.Confirm{
				ReservationID: "car-1-1", ArrivalTime: 10, ArrivalVelocity: 10,
				EarlyError: 9.5, LateError: 10.5, Accelerate: true,
			}}}
			v.Step(0)
			env.inIntersection = true
			v.Step(0) // transitions ApproachingWithRes -> InIntersection
			v.Step(0) // runs InIntersection's actions for the first time
			So(v.State, ShouldEqual, InIntersection)
			So(env.controlMode, ShouldEqual, Manual)
			So(env.desiredSpeed, ShouldEqual, env.speedLimit)

			Convey("departing sends Done and returns to DEFAULT", func() {
				env.departingID, env.departingOK = "im-1", true
				v.Step(0)
				So(v.State, ShouldEqual, Default)
				done, ok := unit.last().(messaging.Done)
				So(ok, ShouldBeTrue)
				So(done.ReservationID, ShouldEqual, "car-1-1")
				So(env.controlMode, ShouldEqual, WithSafetyPrecautions)
				So(v.Reservation, ShouldBeNil)
			})
		})

		Convey("an EmergencyStop halts the vehicle permanently", func() {
			unit.inbox = []messaging.Envelope{{Sender: "im-1", Payload: messaging.EmergencyStop{}}}
			v.Step(0)
			So(env.desiredSpeed, ShouldEqual, 0.0)

			before := v.State
			v.Step(1)
			So(v.State, ShouldEqual, before)
		})
	})

	Convey("Given a vehicle not near any intersection", t, func() {
		env := &fakeEnv{approachingOK: false}
		unit := &fakeUnit{addr: "car-2"}
		v := New("car-2", env, unit)

		Convey("it stays in DEFAULT and sends nothing", func() {
			v.Step(0)
			So(v.State, ShouldEqual, Default)
			So(unit.last(), ShouldBeNil)
		})
	})
}
