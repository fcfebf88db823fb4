package im

import (
	"math"
	"testing"

	"intersectioncontrol/geometry"
	"intersectioncontrol/messaging"
	"intersectioncontrol/reservation"

	. "github.com/smartystreets/goconvey/convey"
)

// sent records one outgoing (recipient, payload) pair captured by fakeUnit.
type sent struct {
	to      string
	payload messaging.Payload
}

// fakeUnit is a minimal messaging.MessagingUnit stand-in for tests: inbox
// holds messages to be drained by the next Receive, and every Send call is
// recorded instead of actually delivered.
type fakeUnit struct {
	addr  string
	inbox []messaging.Envelope
	sent  []sent
}

func (f *fakeUnit) Address() string    { return f.addr }
func (f *fakeUnit) Discover() []string { return nil }
func (f *fakeUnit) Send(address string, payload messaging.Payload) error {
	f.sent = append(f.sent, sent{to: address, payload: payload})
	return nil
}
func (f *fakeUnit) Broadcast(payload messaging.Payload) {}
func (f *fakeUnit) Receive() []messaging.Envelope {
	msgs := f.inbox
	f.inbox = nil
	return msgs
}
func (f *fakeUnit) Destroy() {}

func (f *fakeUnit) lastTo(vehicleID string) messaging.Payload {
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].to == vehicleID {
			return f.sent[i].payload
		}
	}
	return nil
}

// straightEastWest builds a west-to-east trajectory spanning a
// granularity-tile intersection centred at the origin.
func straightEastWest(t *testing.T, speedLimit, halfSpan float64) *geometry.Trajectory {
	t.Helper()
	tr, err := geometry.NewTrajectory(speedLimit, []geometry.Vec2{{X: -halfSpan, Y: 0}, {X: halfSpan, Y: 0}})
	if err != nil {
		t.Fatalf("building trajectory: %v", err)
	}
	return tr
}

func newIntersection(t *testing.T, granularity int, halfSpan float64, trajectory *geometry.Trajectory) *geometry.DiscretisedIntersection {
	t.Helper()
	di, err := geometry.NewDiscretisedIntersection(
		geometry.Vec2{X: 0, Y: 0},
		geometry.Vec2{X: 2 * halfSpan, Y: 2 * halfSpan},
		granularity,
		map[string]*geometry.Trajectory{"WE": trajectory},
	)
	if err != nil {
		t.Fatalf("building intersection: %v", err)
	}
	return di
}

func request(vehicleID string, arrivalTime, distance float64) messaging.Request {
	return messaging.Request{
		VehicleID:       vehicleID,
		ArrivalTime:     arrivalTime,
		ArrivalLane:     "WE",
		ArrivalVelocity: 6.5,
		MaxAcceleration: 5,
		MaxVelocity:     11,
		Length:          5,
		Width:           2,
		Distance:        distance,
	}
}

func TestIntersectionManagerScenarios(t *testing.T) {
	Convey("Given an intersection manager for a single WE lane", t, func() {
		trajectory := straightEastWest(t, 15, 10)
		intersection := newIntersection(t, 20, 10, trajectory)
		unit := &fakeUnit{addr: "im-1"}
		m := New("im-1", intersection, unit, reservation.DefaultParams())

		Convey("Scenario A: a single request is confirmed", func() {
			unit.inbox = []messaging.Envelope{{Sender: "Bob", Payload: request("Bob", 3, 10)}}
			m.Step(0)

			reply := unit.lastTo("Bob")
			confirm, ok := reply.(messaging.Confirm)
			So(ok, ShouldBeTrue)
			So(confirm.ArrivalTime, ShouldEqual, 3.0)
			So(m.Table.Reservations("Bob"), ShouldNotBeEmpty)
			So(math.IsInf(m.Table.NearestStalled("W"), 1), ShouldBeTrue)
			_ = confirm
		})

		Convey("Scenario B: an identical conflicting request is rejected", func() {
			unit.inbox = []messaging.Envelope{{Sender: "Bob", Payload: request("Bob", 3, 10)}}
			m.Step(0)
			So(unit.lastTo("Bob"), ShouldHaveSameTypeAs, messaging.Confirm{})

			unit.inbox = []messaging.Envelope{{Sender: "Pat", Payload: request("Pat", 3, 10)}}
			m.Step(0)

			reply := unit.lastTo("Pat")
			_, rejected := reply.(messaging.Reject)
			So(rejected, ShouldBeTrue)
			So(m.Table.NearestStalled("W"), ShouldEqual, 10)
			So(m.Table.Reservations("Pat"), ShouldBeEmpty)
		})

		Convey("Scenario C: stall-priority gating by distance", func() {
			unit.inbox = []messaging.Envelope{{Sender: "Bob", Payload: request("Bob", 3, 10)}}
			m.Step(0)
			unit.inbox = []messaging.Envelope{{Sender: "Pat", Payload: request("Pat", 3, 10)}}
			m.Step(0)
			So(m.Table.NearestStalled("W"), ShouldEqual, 10)

			Convey("a farther vehicle is rejected without a feasibility check", func() {
				unit.inbox = []messaging.Envelope{{Sender: "Quinn", Payload: request("Quinn", 3, 20)}}
				m.Step(0)
				_, rejected := unit.lastTo("Quinn").(messaging.Reject)
				So(rejected, ShouldBeTrue)
			})

			Convey("a closer, non-conflicting vehicle is confirmed and clears the stall marker", func() {
				// Arrives long after Bob has cleared the intersection, so
				// no tile/time overlap exists; distance 5 is inside the
				// stall-priority gate (< 10).
				unit.inbox = []messaging.Envelope{{Sender: "Rita", Payload: request("Rita", 60, 5)}}
				m.Step(0)
				_, confirmed := unit.lastTo("Rita").(messaging.Confirm)
				So(confirmed, ShouldBeTrue)
				So(math.IsInf(m.Table.NearestStalled("W"), 1), ShouldBeTrue)
			})
		})

		Convey("Done releases the reservation and acknowledges", func() {
			unit.inbox = []messaging.Envelope{{Sender: "Bob", Payload: request("Bob", 3, 10)}}
			m.Step(0)
			confirm := unit.lastTo("Bob").(messaging.Confirm)

			unit.inbox = []messaging.Envelope{{Sender: "Bob", Payload: messaging.Done{VehicleID: "Bob", ReservationID: confirm.ReservationID}}}
			m.Step(10)

			So(m.Table.Reservations("Bob"), ShouldBeEmpty)
			ack, ok := unit.lastTo("Bob").(messaging.Acknowledge)
			So(ok, ShouldBeTrue)
			So(ack.ReservationID, ShouldEqual, confirm.ReservationID)
		})

		Convey("Done from a vehicle with no reservation is logged and ignored, not acknowledged", func() {
			unit.inbox = []messaging.Envelope{{Sender: "Ghost", Payload: messaging.Done{VehicleID: "Ghost"}}}
			m.Step(0)
			So(unit.lastTo("Ghost"), ShouldBeNil)
		})

		Convey("A request naming an unknown lane is ignored", func() {
			bad := request("Bob", 3, 10)
			bad.ArrivalLane = "NS"
			unit.inbox = []messaging.Envelope{{Sender: "Bob", Payload: bad}}
			m.Step(0)
			So(unit.lastTo("Bob"), ShouldBeNil)
		})
	})
}
